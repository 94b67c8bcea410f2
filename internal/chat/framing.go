// Package chat implements the wire protocol and the two-activity session
// that runs it once a socket has been obtained, independent of how that
// socket was obtained (dialed, accepted, or handed off by the daemon).
package chat

import (
	"errors"
	"io"
)

// eot is the End-of-Transmission byte that terminates every frame.
const eot byte = 0x04

// SendFrame writes payload followed by a single eot byte. It never mutates
// the caller's slice.
func SendFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, len(payload)+1)
	copy(buf, payload)
	buf[len(payload)] = eot
	_, err := w.Write(buf)
	return err
}

// RecvFrame reads one byte at a time until it sees eot, returning the
// accumulated payload. A read that yields zero bytes (including a clean
// io.EOF) means the peer closed the connection and is reported as
// io.ErrUnexpectedEOF, per the framing contract: a message boundary must be
// signalled by eot, not by connection close.
func RecvFrame(r io.Reader) ([]byte, error) {
	var buf []byte
	one := make([]byte, 1)
	for {
		n, err := r.Read(one)
		if n == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if one[0] == eot {
			return buf, nil
		}
		buf = append(buf, one[0])
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}
}
