//go:build windows

package transport

import (
	"net/netip"
	"os"

	"golang.org/x/sys/windows"
)

func setMembership(fd uintptr, join bool, iface SockAddr, group netip.Addr) error {
	h := windows.Handle(fd)
	if group.Is4() {
		mreq := &windows.IPMreq{Multiaddr: group.As4(), Interface: iface.Addr.As4()}
		opt, name := windows.IP_ADD_MEMBERSHIP, "setsockopt IP_ADD_MEMBERSHIP"
		if !join {
			opt, name = windows.IP_DROP_MEMBERSHIP, "setsockopt IP_DROP_MEMBERSHIP"
		}
		return os.NewSyscallError(name, windows.SetsockoptIPMreq(h, windows.IPPROTO_IP, opt, mreq))
	}

	mreq := &windows.IPv6Mreq{Multiaddr: group.As16(), Interface: iface.ScopeID}
	opt, name := windows.IPV6_JOIN_GROUP, "setsockopt IPV6_JOIN_GROUP"
	if !join {
		opt, name = windows.IPV6_LEAVE_GROUP, "setsockopt IPV6_LEAVE_GROUP"
	}
	return os.NewSyscallError(name, windows.SetsockoptIPv6Mreq(h, windows.IPPROTO_IPV6, opt, mreq))
}
