//go:build linux

package liburing

import (
	"bytes"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

type Version struct {
	Major  int
	Minor  int
	Patch  int
	Flavor string
	valid  bool
}

func (v Version) Valid() bool {
	return v.valid
}

func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

func (v Version) GTE(major, minor, patch int) bool {
	return v.Compare(Version{Major: major, Minor: minor, Patch: patch}) >= 0
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, v.Flavor)
}

func cmpInt(a, b int) int {
	if a > b {
		return 1
	}
	if a < b {
		return -1
	}
	return 0
}

// VersionEnable
// reports whether the running kernel is at least major.minor.patch.
func VersionEnable(major, minor, patch int) bool {
	v := GetVersion()
	return v.Valid() && v.GTE(major, minor, patch)
}

var (
	kernelVersion     Version
	kernelVersionOnce sync.Once
)

func GetVersion() Version {
	kernelVersionOnce.Do(func() {
		uts := unix.Utsname{}
		if err := unix.Uname(&uts); err != nil {
			return
		}
		release := uts.Release[:]
		if i := bytes.IndexByte(release, 0); i >= 0 {
			release = release[:i]
		}
		kernelVersion, _ = parseKernelVersion(string(release))
	})
	return kernelVersion
}

func parseKernelVersion(release string) (v Version, err error) {
	var partial string
	parsed, _ := fmt.Sscanf(release, "%d.%d%s", &v.Major, &v.Minor, &partial)
	if parsed < 2 {
		err = fmt.Errorf("cannot parse kernel version: %s", release)
		return
	}
	parsed, _ = fmt.Sscanf(partial, ".%d%s", &v.Patch, &v.Flavor)
	if parsed < 1 {
		v.Flavor = partial
	}
	v.valid = true
	return
}
