package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/joshuafuller/httpu/internal/errors"
	"github.com/joshuafuller/httpu/internal/metrics"
)

// UDPSender implements NetworkStream over a UDP socket and a fixed
// destination.
//
// This implementation:
//   - buffers Write calls and sends the buffer as one datagram on Flush
//   - serves Read from received datagrams, pulling the next one when the
//     current one is used up
//   - reports the receiving interface index from IP_PKTINFO / IPV6_PKTINFO
//     control messages (ReadPacket), so a caller can answer on the interface
//     a request arrived on
//
// The sender owns its socket. When it comes from UDPConnector.Connect that
// socket is a duplicate of the connector's; it shares the bound port and the
// receive queue, so any datagram arriving on the port may be read here.
//
// A UDPSender is not safe for concurrent use.
type UDPSender struct {
	conn     net.PacketConn   // Owned socket
	ipv4Conn *ipv4.PacketConn // Control message access, IPv4 destinations
	ipv6Conn *ipv6.PacketConn // Control message access, IPv6 destinations
	dest     SockAddr
	destUDP  *net.UDPAddr

	wbuf    bytes.Buffer // Written, not yet flushed
	pending []byte       // Unread remainder of the last datagram

	metrics *metrics.Metrics
}

var _ NetworkStream = (*UDPSender)(nil)

// NewUDPSender creates a sender over conn that writes to dest. The sender
// takes ownership of conn and closes it in Close.
func NewUDPSender(conn net.PacketConn, dest SockAddr) *UDPSender {
	return newUDPSender(conn, dest, nil)
}

func newUDPSender(conn net.PacketConn, dest SockAddr, m *metrics.Metrics) *UDPSender {
	s := &UDPSender{
		conn:    conn,
		dest:    dest,
		destUDP: dest.UDPAddr(),
		metrics: m,
	}

	// Enable interface index in control messages. This fails on platforms
	// without IP_PKTINFO/IP_RECVIF support; receives then report interface
	// index 0, meaning unknown.
	if dest.Is4() {
		s.ipv4Conn = ipv4.NewPacketConn(conn)
		_ = s.ipv4Conn.SetControlMessage(ipv4.FlagInterface, true)
	} else {
		s.ipv6Conn = ipv6.NewPacketConn(conn)
		_ = s.ipv6Conn.SetControlMessage(ipv6.FlagInterface, true)
	}
	return s
}

// Write appends p to the outgoing datagram. It never fails; size limits are
// enforced by the OS at Flush.
func (s *UDPSender) Write(p []byte) (int, error) {
	return s.wbuf.Write(p)
}

// Flush sends everything written since the last Flush as a single datagram
// to the destination. Flushing an empty buffer sends nothing. The buffer is
// cleared whether or not the send succeeds; UDP has nothing to resume.
func (s *UDPSender) Flush() error {
	if s.wbuf.Len() == 0 {
		return nil
	}
	defer s.wbuf.Reset()

	payload := s.wbuf.Bytes()
	n, err := s.conn.WriteTo(payload, s.destUDP)
	if err != nil {
		s.metrics.RecordSendError()
		return &errors.NetworkError{
			Operation: "send datagram",
			Err:       err,
			Details:   fmt.Sprintf("failed to send %d bytes to %s", len(payload), s.dest),
		}
	}

	// Verify full datagram was sent
	if n != len(payload) {
		s.metrics.RecordSendError()
		return &errors.NetworkError{
			Operation: "send datagram",
			Err:       fmt.Errorf("partial write: %d/%d bytes", n, len(payload)),
			Details:   "incomplete transmission",
		}
	}

	s.metrics.RecordSent(n)
	return nil
}

// Read copies bytes of the current datagram into p. When the current
// datagram is used up, Read blocks for the next one. Datagram boundaries are
// not preserved; use ReadPacket for that. An empty datagram reads as (0, nil).
func (s *UDPSender) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		datagram, _, _, err := s.readDatagram()
		if err != nil {
			return 0, err
		}
		s.pending = datagram
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// ReadPacket waits for one datagram, respecting ctx cancellation and
// deadline.
//
// Returns:
//   - packet: the datagram payload (a copy the caller owns)
//   - srcAddr: the sender of the datagram
//   - interfaceIndex: OS index of the receiving interface, 0 when unknown
//   - error: NetworkError on cancellation, timeout or receive failure
//
// A deadline taken from ctx is cleared again before ReadPacket returns.
func (s *UDPSender) ReadPacket(ctx context.Context) ([]byte, net.Addr, int, error) {
	// Check context cancellation before receive
	select {
	case <-ctx.Done():
		return nil, nil, 0, &errors.NetworkError{
			Operation: "receive datagram",
			Err:       ctx.Err(),
			Details:   "context canceled before receive",
		}
	default:
	}

	// Propagate context deadline to socket
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return nil, nil, 0, &errors.NetworkError{
				Operation: "set read deadline",
				Err:       err,
				Details:   fmt.Sprintf("failed to set deadline %v", deadline),
			}
		}
		defer func() { _ = s.conn.SetReadDeadline(time.Time{}) }()
	}

	return s.readDatagram()
}

func (s *UDPSender) readDatagram() ([]byte, net.Addr, int, error) {
	bufPtr := getBuffer()
	defer putBuffer(bufPtr)
	buffer := *bufPtr

	var (
		n              int
		srcAddr        net.Addr
		interfaceIndex int
		err            error
	)
	if s.ipv4Conn != nil {
		var cm *ipv4.ControlMessage
		n, cm, srcAddr, err = s.ipv4Conn.ReadFrom(buffer)
		if cm != nil {
			interfaceIndex = cm.IfIndex
		}
	} else {
		var cm *ipv6.ControlMessage
		n, cm, srcAddr, err = s.ipv6Conn.ReadFrom(buffer)
		if cm != nil {
			interfaceIndex = cm.IfIndex
		}
	}
	if err != nil {
		s.metrics.RecordReceiveError()
		details := "failed to read from socket"
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			details = "timeout"
		}
		return nil, nil, 0, &errors.NetworkError{
			Operation: "receive datagram",
			Err:       err,
			Details:   details,
		}
	}

	s.metrics.RecordReceived(n)

	// Pool owns buffer, caller owns result
	result := make([]byte, n)
	copy(result, buffer[:n])
	return result, srcAddr, interfaceIndex, nil
}

// PeerAddr returns the destination. It never fails.
func (s *UDPSender) PeerAddr() (SockAddr, error) {
	return s.dest, nil
}

// LocalAddr returns the local address of the underlying socket.
func (s *UDPSender) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// SetReadDeadline sets the deadline for Read and ReadPacket. A zero value
// disables it.
func (s *UDPSender) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// Close releases the sender's socket. Unflushed data is discarded.
func (s *UDPSender) Close() error {
	if s.conn == nil {
		return nil
	}

	if err := s.conn.Close(); err != nil {
		return &errors.NetworkError{
			Operation: "close socket",
			Err:       err,
			Details:   "failed to close UDP sender",
		}
	}
	return nil
}
