//go:build linux

package transport

import (
	"net/netip"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/joshuafuller/httpu/internal/errors"
)

// Port 1900 is 0x076C; the kernel stores it big-endian.
var port1900 = [2]byte{0x07, 0x6C}

func TestDecodeRawSockaddr_IPv4(t *testing.T) {
	var rsa unix.RawSockaddrAny
	sa := (*unix.RawSockaddrInet4)(unsafe.Pointer(&rsa))
	sa.Family = unix.AF_INET
	*(*[2]byte)(unsafe.Pointer(&sa.Port)) = port1900
	sa.Addr = [4]byte{239, 255, 255, 250}

	got, err := decodeRawSockaddr(&rsa)
	if err != nil {
		t.Fatalf("decodeRawSockaddr() error = %v", err)
	}
	want := SockAddr{Addr: SSDPGroupV4, Port: 1900}
	if got != want {
		t.Errorf("decodeRawSockaddr() = %+v, want %+v", got, want)
	}
}

func TestDecodeRawSockaddr_IPv6(t *testing.T) {
	var rsa unix.RawSockaddrAny
	sa := (*unix.RawSockaddrInet6)(unsafe.Pointer(&rsa))
	sa.Family = unix.AF_INET6
	*(*[2]byte)(unsafe.Pointer(&sa.Port)) = port1900
	sa.Addr = netip.MustParseAddr("fe80::1").As16()
	sa.Flowinfo = 0x12345
	sa.Scope_id = 3

	got, err := decodeRawSockaddr(&rsa)
	if err != nil {
		t.Fatalf("decodeRawSockaddr() error = %v", err)
	}
	want := SockAddr{Addr: netip.MustParseAddr("fe80::1"), Port: 1900, FlowInfo: 0x12345, ScopeID: 3}
	if got != want {
		t.Errorf("decodeRawSockaddr() = %+v, want %+v", got, want)
	}
}

func TestDecodeRawSockaddr_UnknownFamily(t *testing.T) {
	var rsa unix.RawSockaddrAny
	rsa.Addr.Family = unix.AF_UNIX

	_, err := decodeRawSockaddr(&rsa)
	if !errors.IsNetworkError(err) {
		t.Errorf("decodeRawSockaddr(AF_UNIX) error = %v, want *errors.NetworkError", err)
	}
}

func TestLocalSockAddr_IPv6Scope(t *testing.T) {
	requireIPv6Loopback(t)

	c := newConnector(t, "[::1]:0")
	got, err := c.LocalAddr()
	if err != nil {
		t.Fatalf("LocalAddr() error = %v", err)
	}
	if got.Addr != netip.IPv6Loopback() || got.Port == 0 {
		t.Errorf("LocalAddr() = %+v, want [::1]:<port>", got)
	}
	if got.ScopeID != 0 {
		t.Errorf("LocalAddr().ScopeID = %d, want 0 for loopback", got.ScopeID)
	}
}
