package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/joshuafuller/httpu/internal/errors"
)

// SockAddr is a fully resolved UDP socket address.
//
// Addr never carries a zone. For IPv6 the scope lives in ScopeID, next to
// FlowInfo, mirroring the sockaddr_in6 layout the kernel hands back from
// getsockname. Both are zero for IPv4.
//
// A SockAddr is a plain value: once resolved it has exactly one family and is
// never mutated in place.
type SockAddr struct {
	Addr     netip.Addr
	Port     uint16
	FlowInfo uint32
	ScopeID  uint32
}

// Is4 reports whether a is an IPv4 socket address.
func (a SockAddr) Is4() bool { return a.Addr.Is4() }

// Is6 reports whether a is an IPv6 socket address (including IPv4-mapped).
func (a SockAddr) Is6() bool { return a.Addr.Is6() }

// IsValid reports whether a holds an address.
func (a SockAddr) IsValid() bool { return a.Addr.IsValid() }

// String renders a as "ip:port" or "[ip%scope]:port".
func (a SockAddr) String() string {
	if !a.IsValid() {
		return "invalid SockAddr"
	}
	if a.Is6() && a.ScopeID != 0 {
		host := a.Addr.String() + "%" + strconv.FormatUint(uint64(a.ScopeID), 10)
		return net.JoinHostPort(host, strconv.Itoa(int(a.Port)))
	}
	return netip.AddrPortFrom(a.Addr, a.Port).String()
}

// AddrPort returns a as a netip.AddrPort. A non-zero scope id becomes a
// numeric zone. Flow info has no netip representation and is dropped.
func (a SockAddr) AddrPort() netip.AddrPort {
	addr := a.Addr
	if a.Is6() && a.ScopeID != 0 {
		addr = addr.WithZone(strconv.FormatUint(uint64(a.ScopeID), 10))
	}
	return netip.AddrPortFrom(addr, a.Port)
}

// UDPAddr returns a as a *net.UDPAddr suitable for WriteTo and Listen calls.
func (a SockAddr) UDPAddr() *net.UDPAddr {
	ua := &net.UDPAddr{IP: a.Addr.AsSlice(), Port: int(a.Port)}
	if a.Is6() && a.ScopeID != 0 {
		ua.Zone = strconv.FormatUint(uint64(a.ScopeID), 10)
	}
	return ua
}

// SockAddrs implements AddrSource, so a resolved address can be passed
// anywhere an address-like input is accepted.
func (a SockAddr) SockAddrs() ([]SockAddr, error) {
	if !a.IsValid() {
		return nil, &errors.ValidationError{
			Field:   "address",
			Value:   a,
			Message: "zero socket address",
		}
	}
	return []SockAddr{a}, nil
}

// SockAddrFromUDPAddr converts a *net.UDPAddr. The zone may be numeric or an
// interface name; names are mapped to their interface index.
func SockAddrFromUDPAddr(ua *net.UDPAddr) (SockAddr, error) {
	if ua == nil {
		return SockAddr{}, &errors.ValidationError{Field: "address", Value: ua, Message: "nil UDP address"}
	}
	ip, ok := netip.AddrFromSlice(ua.IP)
	if !ok {
		return SockAddr{}, &errors.ValidationError{Field: "address", Value: ua, Message: "malformed IP"}
	}
	if ua.Port < 0 || ua.Port > 65535 {
		return SockAddr{}, &errors.ValidationError{Field: "port", Value: ua.Port, Message: "out of range"}
	}
	return fromAddrPort(ip.Unmap().WithZone(ua.Zone), uint16(ua.Port))
}

// fromAddrPort strips the zone off ip and turns it into a scope id.
func fromAddrPort(ip netip.Addr, port uint16) (SockAddr, error) {
	sa := SockAddr{Addr: ip.WithZone(""), Port: port}
	if zone := ip.Zone(); zone != "" && sa.Is6() {
		scope, err := zoneToScopeID(zone)
		if err != nil {
			return SockAddr{}, &errors.ValidationError{
				Field:   "zone",
				Value:   zone,
				Message: "unknown scope",
				Err:     err,
			}
		}
		sa.ScopeID = scope
	}
	return sa, nil
}

func zoneToScopeID(zone string) (uint32, error) {
	if n, err := strconv.ParseUint(zone, 10, 32); err == nil {
		return uint32(n), nil
	}
	ifi, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, err
	}
	return uint32(ifi.Index), nil
}

// AddrSource is anything that can produce candidate socket addresses: a
// literal, a host name to look up, an already resolved address or a list of
// them. It may produce zero, one or many candidates.
type AddrSource interface {
	SockAddrs() ([]SockAddr, error)
}

// HostPort is a textual "host:port" address. The host may be an IPv4
// literal, a bracketed IPv6 literal (optionally zoned, "[fe80::1%eth0]") or a
// name resolved through the system resolver. The port may be numeric or a
// UDP service name. An empty host means the IPv4 wildcard address.
type HostPort string

// SockAddrs implements AddrSource.
func (h HostPort) SockAddrs() ([]SockAddr, error) {
	host, portText, err := net.SplitHostPort(string(h))
	if err != nil {
		return nil, err
	}
	port, err := parsePort(portText)
	if err != nil {
		return nil, err
	}

	if host == "" {
		return []SockAddr{{Addr: netip.IPv4Unspecified(), Port: port}}, nil
	}

	if ip, err := netip.ParseAddr(host); err == nil {
		sa, err := fromAddrPort(ip.Unmap(), port)
		if err != nil {
			return nil, err
		}
		return []SockAddr{sa}, nil
	}

	ips, err := net.DefaultResolver.LookupNetIP(context.Background(), "ip", host)
	if err != nil {
		return nil, err
	}
	addrs := make([]SockAddr, 0, len(ips))
	for _, ip := range ips {
		sa, err := fromAddrPort(ip.Unmap(), port)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, sa)
	}
	return addrs, nil
}

func parsePort(text string) (uint16, error) {
	if n, err := strconv.ParseUint(text, 10, 16); err == nil {
		return uint16(n), nil
	}
	n, err := net.LookupPort("udp", text)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}

// SockAddrList is a multi-valued address input. Order is significant: the
// first entry wins.
type SockAddrList []SockAddr

// SockAddrs implements AddrSource.
func (l SockAddrList) SockAddrs() ([]SockAddr, error) {
	return append([]SockAddr(nil), l...), nil
}

// UDPAddrs adapts standard library addresses into an AddrSource.
type UDPAddrs []*net.UDPAddr

// SockAddrs implements AddrSource.
func (u UDPAddrs) SockAddrs() ([]SockAddr, error) {
	addrs := make([]SockAddr, 0, len(u))
	for _, ua := range u {
		sa, err := SockAddrFromUDPAddr(ua)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, sa)
	}
	return addrs, nil
}

// ResolveAddr returns the first candidate address src produces.
//
// Every failure is reported as an invalid-input *errors.ValidationError: a
// malformed literal, a missing port, a failed name lookup, or a source that
// produced no candidates at all. The underlying cause (a *net.AddrError, a
// *net.DNSError, ...) is kept in the error's Err field.
//
// First match wins. Later candidates are never consulted, even when the
// first one turns out to be unusable for the caller.
func ResolveAddr(src AddrSource) (SockAddr, error) {
	if src == nil {
		return SockAddr{}, &errors.ValidationError{Field: "address", Value: src, Message: "no address given"}
	}

	addrs, err := src.SockAddrs()
	if err != nil {
		var valErr *errors.ValidationError
		if stderrors.As(err, &valErr) {
			return SockAddr{}, err
		}
		return SockAddr{}, &errors.ValidationError{
			Field:   "address",
			Value:   src,
			Message: "failed to resolve socket address",
			Err:     err,
		}
	}

	if len(addrs) == 0 {
		return SockAddr{}, &errors.ValidationError{
			Field:   "address",
			Value:   src,
			Message: "resolved to no addresses",
		}
	}
	return addrs[0], nil
}

// IPVersionMode selects which address family a socket works with.
type IPVersionMode int

const (
	// IPVersionAny accepts either family. It is never derived from an
	// address; callers pick it explicitly (for example from configuration).
	IPVersionAny IPVersionMode = iota
	// IPVersionV4Only restricts to IPv4.
	IPVersionV4Only
	// IPVersionV6Only restricts to IPv6.
	IPVersionV6Only
)

// IPVersionModeFromAddr resolves src and classifies the first candidate.
// The result is always V4Only or V6Only.
func IPVersionModeFromAddr(src AddrSource) (IPVersionMode, error) {
	addr, err := ResolveAddr(src)
	if err != nil {
		return IPVersionAny, err
	}
	if addr.Is4() {
		return IPVersionV4Only, nil
	}
	return IPVersionV6Only, nil
}

// ParseIPVersionMode parses "v4", "ipv4", "v4only", "v6", "ipv6", "v6only"
// and "any". The empty string is "any".
func ParseIPVersionMode(s string) (IPVersionMode, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return IPVersionAny, nil
	case "v4", "ipv4", "v4only":
		return IPVersionV4Only, nil
	case "v6", "ipv6", "v6only":
		return IPVersionV6Only, nil
	}
	return IPVersionAny, &errors.ValidationError{
		Field:   "ip version",
		Value:   s,
		Message: "must be v4, v6 or any",
	}
}

// String implements fmt.Stringer.
func (m IPVersionMode) String() string {
	switch m {
	case IPVersionAny:
		return "any"
	case IPVersionV4Only:
		return "v4only"
	case IPVersionV6Only:
		return "v6only"
	}
	return fmt.Sprintf("IPVersionMode(%d)", int(m))
}

// Network returns the Go network name for the mode: "udp4", "udp6" or "udp".
func (m IPVersionMode) Network() string {
	switch m {
	case IPVersionV4Only:
		return "udp4"
	case IPVersionV6Only:
		return "udp6"
	}
	return "udp"
}

// Matches reports whether addr belongs to the mode's family.
func (m IPVersionMode) Matches(addr SockAddr) bool {
	switch m {
	case IPVersionV4Only:
		return addr.Is4()
	case IPVersionV6Only:
		return addr.Is6()
	}
	return addr.IsValid()
}
