// Package transport provides a dual-stack UDP transport that presents the
// stream contract an HTTP message layer expects over TCP.
//
// SSDP (UPnP discovery) speaks HTTP over UDP: unicast "HTTPU" and multicast
// "HTTPMU". The message layer writes a request into a stream and flushes it;
// this package turns that into one datagram sent from a shared, port-reusing
// socket. It covers four jobs:
//
//   - resolving address-like input to one concrete SockAddr (ResolveAddr)
//   - binding with SO_REUSEADDR/SO_REUSEPORT so listeners can share 1900
//     (BindReuse)
//   - joining and leaving multicast groups per family (JoinMulticast,
//     LeaveMulticast)
//   - handing out destination-bound senders from a single bound socket
//     without re-binding (UDPConnector)
//
// Nothing in this package retries, times out or logs errors. Every failure is
// returned to the caller: *errors.ValidationError for bad input,
// *errors.NetworkError for OS failures.
//
// Example:
//
//	c, err := transport.NewUDPConnector(transport.HostPort("0.0.0.0:0"))
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = c.Close() }()
//
//	s, err := c.Connect("239.255.255.250", transport.SSDPPort)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = s.Close() }()
//
//	err = transport.Send(s, transport.NewPacketBuffer(msearch))
package transport

import (
	"io"
)

// NetworkStream is a byte stream to a single peer.
//
// Write may buffer; Flush pushes whatever was written to the peer. Over UDP
// one flush is one datagram.
type NetworkStream interface {
	io.Reader
	io.Writer

	// Flush transmits buffered data.
	Flush() error

	// PeerAddr returns the address the stream writes to.
	PeerAddr() (SockAddr, error)
}

// Send writes the packet's bytes to s and flushes. It returns the first error
// from either step; a short write without an error is io.ErrShortWrite.
func Send(s NetworkStream, p Packet) error {
	buf := p.Bytes()
	n, err := s.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return s.Flush()
}

// NetworkConnector creates streams to host:port.
//
// S is the concrete stream type the connector hands out. Callers that do not
// care about it use ConnectStream.
type NetworkConnector[S NetworkStream] interface {
	Connect(host string, port uint16) (S, error)
}

// AsNetworkStream erases the concrete type of s. It is the single conversion
// from any stream implementation to the uniform NetworkStream handle.
func AsNetworkStream[S NetworkStream](s S) NetworkStream {
	return s
}

// ConnectStream connects through c and returns the stream behind the uniform
// NetworkStream handle.
func ConnectStream[S NetworkStream](c NetworkConnector[S], host string, port uint16) (NetworkStream, error) {
	s, err := c.Connect(host, port)
	if err != nil {
		return nil, err
	}
	return AsNetworkStream(s), nil
}
