//go:build !linux

package ringo

func Open(options ...Option) (*Reactor, error) {
	return nil, newOpError(errMetaOpOpen, ErrUnsupported)
}
