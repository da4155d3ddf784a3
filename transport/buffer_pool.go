package transport

import "sync"

// maxDatagramSize is the largest UDP payload: 65535 minus the 8-byte UDP
// header. IPv4 further subtracts its own header, so this is an upper bound.
const maxDatagramSize = 65535 - 8

// bufferPool holds receive buffers so each datagram read does not allocate
// a 64 KiB slice. Callers receive a copy sized to the datagram.
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, maxDatagramSize)
		return &buf
	},
}

// getBuffer returns a receive buffer from the pool.
func getBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// putBuffer returns a buffer to the pool.
func putBuffer(buf *[]byte) {
	bufferPool.Put(buf)
}
