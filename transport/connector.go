package transport

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/joshuafuller/httpu/internal/errors"
	"github.com/joshuafuller/httpu/internal/logging"
	"github.com/joshuafuller/httpu/internal/metrics"
)

// UDPConnector hands out destination-bound senders that all share one bound
// UDP socket, so HTTP messages can be written over UDP the way they would be
// over a TCP connection.
//
// Each Connect duplicates the socket descriptor. The sender owns its
// duplicate and closes it independently; the connector keeps the original.
// Connect and LocalAddr only read connector state and are safe for
// concurrent use.
type UDPConnector struct {
	conn atomic.Pointer[net.UDPConn]

	logger  *slog.Logger
	metrics *metrics.Metrics

	multicastTTL    uint32
	hasMulticastTTL bool
}

var _ NetworkConnector[*UDPSender] = (*UDPConnector)(nil)

// NewUDPConnector resolves local and binds a reusable UDP socket to it (see
// BindReuse).
//
// Example:
//
//	c, err := transport.NewUDPConnector(transport.HostPort("[::]:0"))
func NewUDPConnector(local AddrSource, opts ...Option) (*UDPConnector, error) {
	c := &UDPConnector{logger: logging.NopLogger()}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	addr, err := ResolveAddr(local)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("binding udp connector", logging.KeyLocalAddr, addr.String())
	conn, err := bindReuse(addr)
	if err != nil {
		return nil, err
	}
	c.conn.Store(conn)

	if c.hasMulticastTTL {
		c.logger.Debug("multicast ttl recorded but not applied",
			logging.KeyTTL, c.multicastTTL)
	}
	return c, nil
}

// MulticastTTL returns the TTL passed to WithMulticastTTL, if any. The value
// is informational only; see WithMulticastTTL.
func (c *UDPConnector) MulticastTTL() (uint32, bool) {
	return c.multicastTTL, c.hasMulticastTTL
}

// LocalAddr returns the address the socket is actually bound to, as reported
// by the OS (port 0 binds come back with the chosen port).
func (c *UDPConnector) LocalAddr() (SockAddr, error) {
	conn := c.conn.Load()
	if conn == nil {
		return SockAddr{}, errDeconstructed("local address")
	}
	return localSockAddr(conn)
}

// Connect returns a sender that writes to host:port from the connector's
// socket. Nothing is transmitted until the sender is flushed.
//
// The destination family follows the local socket, not the host text:
//
//   - IPv4 socket: host must be an IPv4 literal. Names are not resolved.
//   - IPv6 socket: host is an IPv6 literal, bare ("::1") or bracketed
//     ("[::1]"). Its flow info and scope id are replaced by the local
//     socket's, because scope is link-local and must name the interface the
//     socket actually uses.
//
// Malformed hosts are invalid-input errors carrying the parse error. Failure
// to duplicate the socket or query its address is a NetworkError.
func (c *UDPConnector) Connect(host string, port uint16) (*UDPSender, error) {
	conn := c.conn.Load()
	if conn == nil {
		c.metrics.RecordConnectError("os")
		return nil, errDeconstructed("connect")
	}

	dup, err := dupConn(conn)
	if err != nil {
		c.metrics.RecordConnectError("os")
		return nil, err
	}

	local, err := localSockAddr(conn)
	if err != nil {
		_ = dup.Close()
		c.metrics.RecordConnectError("os")
		return nil, err
	}

	dest, err := destinationAddr(local, host, port)
	if err != nil {
		_ = dup.Close()
		c.metrics.RecordConnectError("invalid_input")
		return nil, err
	}

	c.metrics.RecordConnect()
	return newUDPSender(dup, dest, c.metrics), nil
}

// Deconstruct gives up the socket and returns it to the caller, who becomes
// responsible for closing it. The connector is spent afterwards: Connect and
// LocalAddr fail with an error wrapping net.ErrClosed, and a second
// Deconstruct returns nil. Senders already handed out keep working.
func (c *UDPConnector) Deconstruct() *net.UDPConn {
	conn := c.conn.Swap(nil)
	if conn != nil {
		c.logger.Debug("udp connector deconstructed")
	}
	return conn
}

// Close releases the socket unless it was already given away by Deconstruct.
func (c *UDPConnector) Close() error {
	conn := c.conn.Swap(nil)
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return &errors.NetworkError{
			Operation: "close socket",
			Err:       err,
			Details:   "failed to close UDP connector",
		}
	}
	return nil
}

func errDeconstructed(op string) error {
	return &errors.NetworkError{
		Operation: op,
		Err:       net.ErrClosed,
		Details:   "connector no longer owns a socket",
	}
}

// destinationAddr builds the address Connect sends to. local selects the
// construction rules; see Connect.
func destinationAddr(local SockAddr, host string, port uint16) (SockAddr, error) {
	if local.Is4() {
		ip, err := netip.ParseAddr(host)
		if err == nil && !ip.Is4() {
			err = fmt.Errorf("%q is not an IPv4 address", host)
		}
		if err != nil {
			return SockAddr{}, invalidHost(host, err)
		}
		return SockAddr{Addr: ip, Port: port}, nil
	}

	text := host
	if !strings.HasPrefix(host, "[") || !strings.HasSuffix(host, "]") {
		text = "[" + host + "]"
	}
	ap, err := netip.ParseAddrPort(text + ":" + strconv.Itoa(int(port)))
	if err == nil && !ap.Addr().Is6() {
		err = fmt.Errorf("%q is not an IPv6 address", host)
	}
	if err != nil {
		return SockAddr{}, invalidHost(host, err)
	}

	return SockAddr{
		Addr:     ap.Addr().WithZone(""),
		Port:     ap.Port(),
		FlowInfo: local.FlowInfo,
		ScopeID:  local.ScopeID,
	}, nil
}

func invalidHost(host string, err error) error {
	return &errors.ValidationError{
		Field:   "host",
		Value:   host,
		Message: "failed to parse destination address",
		Err:     err,
	}
}
