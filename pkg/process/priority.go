// Package process binds the goroutine that drives a reactor to a fixed CPU and
// scheduling priority.
package process

type Priority int

const (
	Normal Priority = iota
	High
	Idle
)

// ParsePriority
// accepts normal, high or idle.
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "normal", "":
		return Normal, true
	case "high":
		return High, true
	case "idle":
		return Idle, true
	}
	return Normal, false
}
