//go:build !linux

package transport

import (
	"net"
	"syscall"

	"github.com/joshuafuller/httpu/internal/errors"
)

// localSockAddr asks the OS for the address conn is bound to. Flow info is
// not exposed by the standard library on these platforms and reads as zero.
func localSockAddr(conn *net.UDPConn) (SockAddr, error) {
	ua, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || ua == nil {
		return SockAddr{}, &errors.NetworkError{Operation: "local address", Err: syscall.EINVAL}
	}
	sa, err := SockAddrFromUDPAddr(ua)
	if err != nil {
		return SockAddr{}, &errors.NetworkError{Operation: "local address", Err: err}
	}
	return sa, nil
}
