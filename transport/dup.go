package transport

import (
	"net"

	"github.com/joshuafuller/httpu/internal/errors"
)

// dupConn duplicates the descriptor behind conn.
//
// The result refers to the same bound socket (same port, same membership,
// same receive queue) but is a separate descriptor: closing either side leaves
// the other usable. File() performs one dup(2), FilePacketConn another; the
// intermediate *os.File is closed before returning.
//
// Platforms without descriptor duplication for sockets (Windows) fail here
// and the OS error is returned as-is inside a NetworkError.
func dupConn(conn *net.UDPConn) (net.PacketConn, error) {
	f, err := conn.File()
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "dup socket",
			Err:       err,
			Details:   "failed to duplicate socket handle",
		}
	}
	defer func() { _ = f.Close() }()

	pc, err := net.FilePacketConn(f)
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "dup socket",
			Err:       err,
			Details:   "failed to wrap duplicated handle",
		}
	}
	return pc, nil
}
