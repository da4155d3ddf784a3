package transport

// Packet is anything that exposes an encoded message as bytes.
type Packet interface {
	Bytes() []byte
}

// PacketBuffer is an encoded message ready to be sent.
type PacketBuffer struct {
	Buffer []byte
}

// NewPacketBuffer wraps b without copying.
func NewPacketBuffer(b []byte) PacketBuffer {
	return PacketBuffer{Buffer: b}
}

// Bytes implements Packet.
func (p PacketBuffer) Bytes() []byte {
	return p.Buffer
}

// Len returns the number of bytes in the buffer.
func (p PacketBuffer) Len() int {
	return len(p.Buffer)
}
