package ringo

import (
	"unsafe"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

func rawSockaddr(sa unix.Sockaddr) (*unix.RawSockaddrAny, uint32, error) {
	raw := &unix.RawSockaddrAny{}
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		inet := (*unix.RawSockaddrInet4)(unsafe.Pointer(raw))
		inet.Family = unix.AF_INET
		putPort(&inet.Port, addr.Port)
		inet.Addr = addr.Addr
		return raw, unix.SizeofSockaddrInet4, nil
	case *unix.SockaddrInet6:
		inet := (*unix.RawSockaddrInet6)(unsafe.Pointer(raw))
		inet.Family = unix.AF_INET6
		putPort(&inet.Port, addr.Port)
		inet.Scope_id = addr.ZoneId
		inet.Addr = addr.Addr
		return raw, unix.SizeofSockaddrInet6, nil
	case *unix.SockaddrUnix:
		path := (*unix.RawSockaddrUnix)(unsafe.Pointer(raw))
		if len(addr.Name) >= len(path.Path) {
			return nil, 0, errors.New("unix socket path too long", errors.WithMeta(errMetaPkgKey, errMetaPkgVal))
		}
		path.Family = unix.AF_UNIX
		for i := 0; i < len(addr.Name); i++ {
			path.Path[i] = int8(addr.Name[i])
		}
		length := uint32(unsafe.Offsetof(path.Path)) + uint32(len(addr.Name)) + 1
		if len(addr.Name) > 0 && addr.Name[0] == '@' {
			path.Path[0] = 0
			length--
		}
		return raw, length, nil
	default:
		return nil, 0, errors.From(ErrUnsupported, errors.WithMeta(errMetaPkgKey, errMetaPkgVal))
	}
}

// putPort
// stores port in network byte order.
func putPort(dst *uint16, port int) {
	p := (*[2]byte)(unsafe.Pointer(dst))
	p[0] = byte(port >> 8)
	p[1] = byte(port)
}
