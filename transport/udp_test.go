package transport

import (
	"bytes"
	"context"
	stderrors "errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/joshuafuller/httpu/internal/errors"
)

// newSenderPair returns a sender on 127.0.0.1 aimed at a peer socket.
func newSenderPair(t *testing.T) (*UDPSender, *net.UDPConn) {
	t.Helper()
	peer := newPeer(t, "udp4", net.IPv4(127, 0, 0, 1))
	peerAddr := peer.LocalAddr().(*net.UDPAddr)

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	dest := SockAddr{Addr: netip.MustParseAddr("127.0.0.1"), Port: uint16(peerAddr.Port)}
	s := NewUDPSender(conn, dest)
	t.Cleanup(func() { _ = s.Close() })
	return s, peer
}

func TestUDPSender_WriteBuffersUntilFlush(t *testing.T) {
	s, peer := newSenderPair(t)

	if _, err := s.Write([]byte("M-SEARCH * HTTP/1.1\r\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := s.Write([]byte("\r\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// Nothing leaves before Flush.
	_ = peer.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 256)
	if _, _, err := peer.ReadFromUDP(buf); err == nil {
		t.Fatal("peer received a datagram before Flush")
	}

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	_ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := peer.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("peer ReadFromUDP() error = %v", err)
	}
	if want := "M-SEARCH * HTTP/1.1\r\n\r\n"; string(buf[:n]) != want {
		t.Errorf("peer received %q, want one datagram %q", buf[:n], want)
	}
}

func TestUDPSender_EmptyFlushSendsNothing(t *testing.T) {
	s, peer := newSenderPair(t)

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	_ = peer.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 16)
	if _, _, err := peer.ReadFromUDP(buf); err == nil {
		t.Fatal("empty Flush sent a datagram")
	}
}

func TestUDPSender_ReadSpansCalls(t *testing.T) {
	s, peer := newSenderPair(t)
	senderAddr := s.LocalAddr().(*net.UDPAddr)

	if _, err := peer.WriteToUDP([]byte("abcdef"), senderAddr); err != nil {
		t.Fatalf("WriteToUDP() error = %v", err)
	}
	if _, err := peer.WriteToUDP([]byte("gh"), senderAddr); err != nil {
		t.Fatalf("WriteToUDP() error = %v", err)
	}

	_ = s.SetReadDeadline(time.Now().Add(2 * time.Second))

	var got bytes.Buffer
	small := make([]byte, 4)
	for got.Len() < 8 {
		n, err := s.Read(small)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		got.Write(small[:n])
	}
	if got.String() != "abcdefgh" {
		t.Errorf("Read() stream = %q, want abcdefgh", got.String())
	}
}

func TestUDPSender_ReadPacket(t *testing.T) {
	s, peer := newSenderPair(t)
	senderAddr := s.LocalAddr().(*net.UDPAddr)
	peerAddr := peer.LocalAddr().(*net.UDPAddr)

	if _, err := peer.WriteToUDP([]byte("HTTP/1.1 200 OK\r\n\r\n"), senderAddr); err != nil {
		t.Fatalf("WriteToUDP() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	packet, src, ifIndex, err := s.ReadPacket(ctx)
	if err != nil {
		t.Fatalf("ReadPacket() error = %v", err)
	}
	if string(packet) != "HTTP/1.1 200 OK\r\n\r\n" {
		t.Errorf("packet = %q", packet)
	}
	if udpSrc, ok := src.(*net.UDPAddr); !ok || udpSrc.Port != peerAddr.Port {
		t.Errorf("src = %v, want peer port %d", src, peerAddr.Port)
	}
	if ifIndex < 0 {
		t.Errorf("interfaceIndex = %d, want >= 0", ifIndex)
	}
}

func TestUDPSender_ReadPacketCanceled(t *testing.T) {
	s, _ := newSenderPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err := s.ReadPacket(ctx)
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("ReadPacket() error = %v, want context.Canceled", err)
	}
	if !errors.IsNetworkError(err) {
		t.Errorf("error type = %T, want *errors.NetworkError", err)
	}
}

func TestUDPSender_ReadPacketTimeout(t *testing.T) {
	s, _ := newSenderPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, _, err := s.ReadPacket(ctx)
	var netErr net.Error
	if !stderrors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("ReadPacket() error = %v, want timeout", err)
	}

	// The deadline from ctx must not linger on the socket.
	peer := newPeer(t, "udp4", net.IPv4(127, 0, 0, 1))
	senderAddr := s.LocalAddr().(*net.UDPAddr)
	go func() {
		time.Sleep(100 * time.Millisecond)
		_, _ = peer.WriteToUDP([]byte("late"), senderAddr)
	}()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	packet, _, _, err := s.ReadPacket(ctx2)
	if err != nil {
		t.Fatalf("ReadPacket() after timeout error = %v", err)
	}
	if string(packet) != "late" {
		t.Errorf("packet = %q, want late", packet)
	}
}

func TestUDPSender_PeerAddr(t *testing.T) {
	dest := SockAddr{Addr: netip.MustParseAddr("fe80::1"), Port: SSDPPort, FlowInfo: 1, ScopeID: 2}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	s := NewUDPSender(conn, dest)
	defer func() { _ = s.Close() }()

	got, err := s.PeerAddr()
	if err != nil {
		t.Fatalf("PeerAddr() error = %v", err)
	}
	if got != dest {
		t.Errorf("PeerAddr() = %+v, want %+v", got, dest)
	}
}

func TestUDPSender_SendAfterClose(t *testing.T) {
	s, _ := newSenderPair(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := Send(s, NewPacketBuffer([]byte("x")))
	if !errors.IsNetworkError(err) {
		t.Fatalf("Send() after Close error = %v, want *errors.NetworkError", err)
	}
	if !stderrors.Is(err, net.ErrClosed) {
		t.Errorf("Send() after Close error = %v, want net.ErrClosed", err)
	}
}
