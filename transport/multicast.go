package transport

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/joshuafuller/httpu/internal/errors"
)

// SSDP multicast endpoints (UPnP Device Architecture 2.0, section 1).
var (
	// SSDPGroupV4 is the IPv4 SSDP multicast group.
	SSDPGroupV4 = netip.MustParseAddr("239.255.255.250")
	// SSDPGroupV6LinkLocal is the link-local IPv6 SSDP group.
	SSDPGroupV6LinkLocal = netip.MustParseAddr("ff02::c")
	// SSDPGroupV6SiteLocal is the site-local IPv6 SSDP group.
	SSDPGroupV6SiteLocal = netip.MustParseAddr("ff05::c")
)

// SSDPPort is the UDP port SSDP listens on.
const SSDPPort = 1900

// JoinMulticast joins group on conn, using iface to pick the interface.
//
// iface and group must be the same family. For IPv4 the interface is named by
// its address (ip_mreq); for IPv6 it is named by iface.ScopeID (ipv6_mreq),
// and iface.Addr is ignored. A family mismatch is an invalid-input error
// returned before any system call.
func JoinMulticast(conn *net.UDPConn, iface SockAddr, group netip.Addr) error {
	return changeMembership(conn, true, iface, group)
}

// LeaveMulticast leaves group on conn. Same rules as JoinMulticast.
func LeaveMulticast(conn *net.UDPConn, iface SockAddr, group netip.Addr) error {
	return changeMembership(conn, false, iface, group)
}

func changeMembership(conn *net.UDPConn, join bool, iface SockAddr, group netip.Addr) error {
	op := "leave multicast"
	if join {
		op = "join multicast"
	}

	group = group.WithZone("")
	if !iface.IsValid() || !group.IsValid() || iface.Is4() != group.Is4() {
		return &errors.ValidationError{
			Field:   "multicast group",
			Value:   fmt.Sprintf("%s on %s", group, iface),
			Message: "multicast and interface addresses are not the same version",
		}
	}

	if conn == nil {
		return &errors.NetworkError{Operation: op, Err: net.ErrClosed}
	}
	rc, err := conn.SyscallConn()
	if err != nil {
		return &errors.NetworkError{Operation: op, Err: err}
	}

	var sockErr error
	if err := rc.Control(func(fd uintptr) {
		sockErr = setMembership(fd, join, iface, group)
	}); err != nil {
		return &errors.NetworkError{Operation: op, Err: err}
	}
	if sockErr != nil {
		return &errors.NetworkError{
			Operation: op,
			Err:       sockErr,
			Details:   fmt.Sprintf("group %s on %s", group, iface),
		}
	}
	return nil
}
