package registry

import "fmt"

// Tag
// correlates a submission with its completion. The low 32 bits address a slot,
// the high 32 bits carry the slot generation, so a tag is never zero.
type Tag uint64

func NewTag(index uint32, generation uint32) Tag {
	return Tag(uint64(generation)<<32 | uint64(index))
}

// TagFromUserData
// recovers the tag echoed back in a completion's user data.
func TagFromUserData(userData uint64) Tag {
	return Tag(userData)
}

func (tag Tag) Index() uint32 {
	return uint32(tag)
}

func (tag Tag) Generation() uint32 {
	return uint32(tag >> 32)
}

func (tag Tag) UserData() uint64 {
	return uint64(tag)
}

func (tag Tag) String() string {
	return fmt.Sprintf("%d@%d", tag.Index(), tag.Generation())
}
