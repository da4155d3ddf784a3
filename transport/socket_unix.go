//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package transport

import (
	"os"

	"golang.org/x/sys/unix"
)

// portReuseSupported is true on BSD-derived and Linux kernels, where
// SO_REUSEPORT lets several sockets bind the same address and port.
const portReuseSupported = true

func setReuseAddr(fd uintptr) error {
	return os.NewSyscallError("setsockopt SO_REUSEADDR",
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1))
}

func setReusePort(fd uintptr) error {
	return os.NewSyscallError("setsockopt SO_REUSEPORT",
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1))
}
