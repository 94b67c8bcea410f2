//go:build linux || darwin || freebsd || netbsd || openbsd

package broker

import (
	"net"

	"golang.org/x/sys/unix"
)

// peekResult classifies the outcome of a non-blocking zero-copy peek at a
// socket's read buffer.
type peekResult int

const (
	peekWouldBlock peekResult = iota // alive, nothing pending
	peekData                         // at least one byte pending
	peekClosed                       // the peer closed the connection
)

// peekByte performs a non-blocking MSG_PEEK read of a single byte without
// consuming it, so the liveness sweep can tell a dead connection from an
// idle one without disturbing bytes the drain step still needs to see.
func peekByte(conn *net.TCPConn) (peekResult, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return peekClosed, err
	}

	buf := make([]byte, 1)
	var n int
	var operr error
	if ctlErr := raw.Read(func(fd uintptr) bool {
		n, _, operr = unix.Recvfrom(int(fd), buf, unix.MSG_PEEK|unix.MSG_DONTWAIT)
		return true
	}); ctlErr != nil {
		return peekClosed, ctlErr
	}

	if operr == nil {
		if n == 0 {
			return peekClosed, nil
		}
		return peekData, nil
	}
	if errno, ok := operr.(unix.Errno); ok && (errno == unix.EAGAIN || errno == unix.EWOULDBLOCK) {
		return peekWouldBlock, nil
	}
	return peekClosed, operr
}
