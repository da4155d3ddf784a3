//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package transport

import (
	"net/netip"
	"os"

	"golang.org/x/sys/unix"
)

func setMembership(fd uintptr, join bool, iface SockAddr, group netip.Addr) error {
	if group.Is4() {
		mreq := &unix.IPMreq{Multiaddr: group.As4(), Interface: iface.Addr.As4()}
		opt, name := unix.IP_ADD_MEMBERSHIP, "setsockopt IP_ADD_MEMBERSHIP"
		if !join {
			opt, name = unix.IP_DROP_MEMBERSHIP, "setsockopt IP_DROP_MEMBERSHIP"
		}
		return os.NewSyscallError(name, unix.SetsockoptIPMreq(int(fd), unix.IPPROTO_IP, opt, mreq))
	}

	mreq := &unix.IPv6Mreq{Multiaddr: group.As16(), Interface: iface.ScopeID}
	opt, name := unix.IPV6_JOIN_GROUP, "setsockopt IPV6_JOIN_GROUP"
	if !join {
		opt, name = unix.IPV6_LEAVE_GROUP, "setsockopt IPV6_LEAVE_GROUP"
	}
	return os.NewSyscallError(name, unix.SetsockoptIPv6Mreq(int(fd), unix.IPPROTO_IPV6, opt, mreq))
}
