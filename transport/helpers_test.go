package transport

import (
	"net"
	"testing"
)

// requireIPv6Loopback skips the test when ::1 cannot be bound (IPv6 disabled
// in the kernel or the container).
func requireIPv6Loopback(t *testing.T) {
	t.Helper()
	conn, err := net.ListenUDP("udp6", &net.UDPAddr{IP: net.IPv6loopback})
	if err != nil {
		t.Skipf("IPv6 loopback unavailable: %v", err)
	}
	_ = conn.Close()
}

// newConnector creates a connector on addr and closes it when the test ends.
func newConnector(t *testing.T, addr string, opts ...Option) *UDPConnector {
	t.Helper()
	c, err := NewUDPConnector(HostPort(addr), opts...)
	if err != nil {
		t.Fatalf("NewUDPConnector(%q) error = %v", addr, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// newPeer binds a plain UDP socket to act as the far end.
func newPeer(t *testing.T, network string, ip net.IP) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP(network, &net.UDPAddr{IP: ip})
	if err != nil {
		t.Fatalf("ListenUDP(%s) error = %v", network, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
