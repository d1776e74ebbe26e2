//go:build linux

package ringo

// Open
// sets up an io_uring instance and builds a reactor over it.
func Open(options ...Option) (*Reactor, error) {
	opts := defaultOptions()
	for _, option := range options {
		if err := option(&opts); err != nil {
			return nil, err
		}
	}
	transport, err := newRingTransport(opts)
	if err != nil {
		return nil, newOpError(errMetaOpOpen, err)
	}
	r, err := New(transport, options...)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	return r, nil
}
