//go:build windows

package transport

import (
	stderrors "errors"
	"os"

	"golang.org/x/sys/windows"
)

// portReuseSupported is false on Windows. There is no SO_REUSEPORT, and
// SO_REUSEADDR alone already permits several sockets on one port.
const portReuseSupported = false

func setReuseAddr(fd uintptr) error {
	return os.NewSyscallError("setsockopt SO_REUSEADDR",
		windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1))
}

func setReusePort(uintptr) error {
	return stderrors.ErrUnsupported
}
