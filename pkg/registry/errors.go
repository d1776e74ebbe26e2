package registry

import (
	"github.com/brickingsoft/errors"
)

var (
	ErrRegistryFull      = errors.Define("registry full")
	ErrStaleTag          = errors.Define("stale tag")
	ErrStillPending      = errors.Define("operation still pending")
	ErrProtocolViolation = errors.Define("completion protocol violation")
	ErrShutdown          = errors.Define("registry shut down")
)

func IsRegistryFull(err error) bool {
	return errors.Is(err, ErrRegistryFull)
}

func IsStaleTag(err error) bool {
	return errors.Is(err, ErrStaleTag)
}

func IsStillPending(err error) bool {
	return errors.Is(err, ErrStillPending)
}

func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "registry"
)

const (
	errMetaOpKey      = "op"
	errMetaOpReserve  = "reserve"
	errMetaOpComplete = "complete"
	errMetaOpTake     = "take"
	errMetaOpAbandon  = "abandon"
	errMetaTagKey     = "tag"
)

func newError(op string, tag Tag, cause error) error {
	return errors.From(
		cause,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithMeta(errMetaTagKey, tag.String()),
	)
}
