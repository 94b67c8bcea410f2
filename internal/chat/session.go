package chat

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rufus173/vanillachat/internal/tty"
)

// ttyController is the subset of *tty.Controller the session needs. Taking
// an interface here lets tests exercise readLoop/writeLoop without a real
// terminal.
type ttyController interface {
	Println(line string) error
	Input(prompt string) (string, error)
	Interrupt()
}

// exitCommand typed at the prompt ends the session cleanly.
const exitCommand = "/exit"

// UnknownPeerName is substituted when the peer does not answer the
// handshake name exchange in time.
const UnknownPeerName = "name unknown"

// halfCloser is the subset of net.Conn that lets the Writer activity
// shut down both halves of the socket independently, waking a Reader
// blocked in a pending Read without fully closing the file descriptor out
// from under it. *net.TCPConn and *net.UnixConn both satisfy this.
type halfCloser interface {
	net.Conn
	CloseRead() error
	CloseWrite() error
}

// Session runs the Reader and Writer activities bound to one socket, after
// a socket has been obtained (dialed, accepted, or handed off by the
// daemon) and the display-name handshake has completed.
type Session struct {
	conn     halfCloser
	tty      ttyController
	selfName string
	peerName string

	terminating atomic.Bool
}

// New returns a Session ready to Run. The handshake must already have
// completed; peerName is whatever it yielded.
func New(conn halfCloser, ctrl *tty.Controller, selfName, peerName string) *Session {
	return &Session{conn: conn, tty: ctrl, selfName: selfName, peerName: peerName}
}

// Handshake sends selfName as one framed message and reads the peer's name
// as one framed message in reply. Both the initiator and the acceptor run
// this identically immediately after the connection is established.
func Handshake(conn net.Conn, selfName string) (peerName string, err error) {
	if err := SendFrame(conn, []byte(selfName)); err != nil {
		return "", fmt.Errorf("chat: send name: %w", err)
	}
	payload, err := RecvFrame(conn)
	if err != nil {
		return "", fmt.Errorf("chat: receive peer name: %w", err)
	}
	return string(payload), nil
}

// Run starts the Reader and Writer activities and blocks until both have
// exited, which happens once either side requests termination.
func (s *Session) Run() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readLoop()
	}()
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()
	wg.Wait()
}

// readLoop receives framed messages and prints them above the live prompt
// until the connection fails, at which point it marks termination and
// interrupts any pending Input call so the Writer can observe it.
func (s *Session) readLoop() {
	for {
		payload, err := RecvFrame(s.conn)
		if err != nil {
			if !s.terminating.Load() {
				_ = s.tty.Println(fmt.Sprintf("Connection error: %v", err))
			}
			s.terminating.Store(true)
			s.tty.Interrupt()
			return
		}
		_ = s.tty.Println(fmt.Sprintf("(%s) %s", s.peerName, payload))
	}
}

// writeLoop reads a line of input at a time, echoing it locally and sending
// it to the peer, until the user types /exit or an I/O error occurs.
func (s *Session) writeLoop() {
	for {
		line, err := s.tty.Input(">>> ")
		if err != nil {
			if errors.Is(err, tty.ErrInterrupted) {
				return
			}
			_ = s.tty.Println(fmt.Sprintf("input error: %v", err))
			s.terminating.Store(true)
			return
		}

		if line == exitCommand {
			s.terminating.Store(true)
			s.shutdown()
			return
		}

		if err := SendFrame(s.conn, []byte(line)); err != nil {
			_ = s.tty.Println(fmt.Sprintf("send error: %v", err))
			s.terminating.Store(true)
			return
		}
		_ = s.tty.Println(fmt.Sprintf("(%s) %s", s.selfName, line))
	}
}

// shutdown half-closes the socket in both directions so the Reader's
// pending RecvFrame unblocks with an error instead of hanging forever.
func (s *Session) shutdown() {
	_ = s.conn.CloseRead()
	_ = s.conn.CloseWrite()
}
