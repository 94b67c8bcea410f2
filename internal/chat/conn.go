package chat

import (
	"bytes"
	"io"
	"net"
)

// PendingConn wraps a TCP connection obtained from the daemon so that bytes
// the daemon had already buffered for this connection (drained ahead of
// the handoff) are replayed before the connection's own bytes are read.
// Write, CloseRead, and CloseWrite pass through to the underlying socket
// unchanged.
type PendingConn struct {
	*net.TCPConn
	r io.Reader
}

// NewPendingConn returns conn wrapped so Read yields pending first, then
// falls through to conn's own bytes once pending is exhausted. pending may
// be empty or nil.
func NewPendingConn(conn *net.TCPConn, pending []byte) *PendingConn {
	return &PendingConn{TCPConn: conn, r: io.MultiReader(bytes.NewReader(pending), conn)}
}

func (p *PendingConn) Read(b []byte) (int, error) {
	return p.r.Read(b)
}
