//go:build linux

package transport

import (
	"net"
	"net/netip"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/joshuafuller/httpu/internal/errors"
)

// localSockAddr asks the kernel for the address conn is bound to.
//
// unix.Getsockname drops sin6_flowinfo, so the raw sockaddr is fetched and
// decoded here to keep flow info alongside the scope id.
func localSockAddr(conn *net.UDPConn) (SockAddr, error) {
	rc, err := conn.SyscallConn()
	if err != nil {
		return SockAddr{}, &errors.NetworkError{Operation: "local address", Err: err}
	}

	var (
		rsa     unix.RawSockaddrAny
		sockErr error
	)
	err = rc.Control(func(fd uintptr) {
		n := uint32(unix.SizeofSockaddrAny)
		_, _, errno := unix.Syscall(unix.SYS_GETSOCKNAME, fd,
			uintptr(unsafe.Pointer(&rsa)), uintptr(unsafe.Pointer(&n)))
		if errno != 0 {
			sockErr = os.NewSyscallError("getsockname", errno)
		}
	})
	if err == nil {
		err = sockErr
	}
	if err != nil {
		return SockAddr{}, &errors.NetworkError{Operation: "local address", Err: err}
	}
	return decodeRawSockaddr(&rsa)
}

// decodeRawSockaddr converts a kernel sockaddr. Ports arrive in network byte
// order; flow info is kept exactly as the kernel reported it.
func decodeRawSockaddr(rsa *unix.RawSockaddrAny) (SockAddr, error) {
	switch rsa.Addr.Family {
	case unix.AF_INET:
		pp := (*unix.RawSockaddrInet4)(unsafe.Pointer(rsa))
		p := (*[2]byte)(unsafe.Pointer(&pp.Port))
		return SockAddr{
			Addr: netip.AddrFrom4(pp.Addr),
			Port: uint16(p[0])<<8 | uint16(p[1]),
		}, nil
	case unix.AF_INET6:
		pp := (*unix.RawSockaddrInet6)(unsafe.Pointer(rsa))
		p := (*[2]byte)(unsafe.Pointer(&pp.Port))
		return SockAddr{
			Addr:     netip.AddrFrom16(pp.Addr),
			Port:     uint16(p[0])<<8 | uint16(p[1]),
			FlowInfo: pp.Flowinfo,
			ScopeID:  pp.Scope_id,
		}, nil
	}
	return SockAddr{}, &errors.NetworkError{
		Operation: "local address",
		Err:       os.NewSyscallError("getsockname", unix.EAFNOSUPPORT),
	}
}
