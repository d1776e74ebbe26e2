//go:build !linux

package process

import "errors"

var errUnsupported = errors.New("process: thread placement is only supported on linux")

func PinThread(cpu int) (func(), error) {
	return nil, errUnsupported
}

func SetThreadPriority(priority Priority) error {
	return errUnsupported
}
