package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"github.com/joshuafuller/httpu/internal/errors"
)

// BindReuse resolves src and binds a UDP socket to it with address reuse
// enabled, and port reuse enabled where the platform supports it.
//
// Reuse is unconditional: SSDP listeners routinely share port 1900 with other
// processes on the same host (media servers, other control points), and a
// socket bound without SO_REUSEADDR/SO_REUSEPORT would make that impossible.
//
// Resolution failures are invalid-input errors. Bind failures (address in
// use, permission denied, address not available) come back as
// *errors.NetworkError with the OS error reachable through errors.Is.
func BindReuse(src AddrSource) (*net.UDPConn, error) {
	local, err := ResolveAddr(src)
	if err != nil {
		return nil, err
	}
	return bindReuse(local)
}

// PortReuseSupported reports whether BindReuse sets SO_REUSEPORT on this
// platform.
func PortReuseSupported() bool {
	return portReuseSupported
}

func bindReuse(local SockAddr) (*net.UDPConn, error) {
	network := IPVersionV4Only.Network()
	if local.Is6() {
		network = IPVersionV6Only.Network()
	}

	lc := net.ListenConfig{Control: reuseControl}
	pc, err := lc.ListenPacket(context.Background(), network, local.UDPAddr().String())
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "bind",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind %s", local),
		}
	}
	return pc.(*net.UDPConn), nil
}

// reuseControl runs before bind(2) and applies setSocketOptions to the raw
// descriptor.
func reuseControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = setSocketOptions(fd)
	}); err != nil {
		return err
	}
	return sockErr
}

// setSocketOptions enables SO_REUSEADDR, then SO_REUSEPORT when
// portReuseSupported is set for the build target.
func setSocketOptions(fd uintptr) error {
	// Allow wildcard and specific binds on the same port to coexist.
	if err := setReuseAddr(fd); err != nil {
		return err
	}
	if !portReuseSupported {
		return nil
	}
	// Allow multiple listeners on the same port.
	return setReusePort(fd)
}
