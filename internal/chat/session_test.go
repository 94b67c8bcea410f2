package chat

import (
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rufus173/vanillachat/internal/tty"
)

// fakeConn implements halfCloser over in-memory pipes so Session can be
// exercised without a real socket.
type fakeConn struct {
	net.Conn
	r          io.ReadCloser
	w          io.WriteCloser
	closeRead  bool
	closeWrite bool
	mu         sync.Mutex
}

func newFakeConnPair() (*fakeConn, *fakeConn) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a := &fakeConn{r: ar, w: aw}
	b := &fakeConn{r: br, w: bw}
	return a, b
}

func (f *fakeConn) Read(p []byte) (int, error) {
	f.mu.Lock()
	closed := f.closeRead
	f.mu.Unlock()
	if closed {
		return 0, io.EOF
	}
	return f.r.Read(p)
}

func (f *fakeConn) Write(p []byte) (int, error) {
	f.mu.Lock()
	closed := f.closeWrite
	f.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}
	return f.w.Write(p)
}

func (f *fakeConn) Close() error {
	f.r.Close()
	return f.w.Close()
}

func (f *fakeConn) CloseRead() error {
	f.mu.Lock()
	f.closeRead = true
	f.mu.Unlock()
	return f.r.Close()
}

func (f *fakeConn) CloseWrite() error {
	f.mu.Lock()
	f.closeWrite = true
	f.mu.Unlock()
	return f.w.Close()
}

// fakeTTY drives writeLoop with a scripted sequence of lines and records
// every Println call.
type fakeTTY struct {
	mu        sync.Mutex
	lines     []string
	idx       int
	printed   []string
	interrupt chan struct{}
}

func newFakeTTY(lines ...string) *fakeTTY {
	return &fakeTTY{lines: lines, interrupt: make(chan struct{}, 1)}
}

func (f *fakeTTY) Println(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.printed = append(f.printed, line)
	return nil
}

func (f *fakeTTY) Input(prompt string) (string, error) {
	f.mu.Lock()
	if f.idx < len(f.lines) {
		line := f.lines[f.idx]
		f.idx++
		f.mu.Unlock()
		return line, nil
	}
	f.mu.Unlock()

	select {
	case <-f.interrupt:
		return "", tty.ErrInterrupted
	case <-time.After(time.Second):
		return "", tty.ErrInterrupted
	}
}

func (f *fakeTTY) Interrupt() {
	select {
	case f.interrupt <- struct{}{}:
	default:
	}
}

func (f *fakeTTY) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.printed...)
}

func TestSessionExitCommandShutsDownCleanly(t *testing.T) {
	a, b := newFakeConnPair()
	defer a.Close()
	defer b.Close()

	ft := newFakeTTY("/exit")
	s := &Session{conn: a, tty: ft, selfName: "alice", peerName: "bob"}

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after /exit")
	}

	// The peer's next read observes the close.
	_, err := RecvFrame(b)
	if err == nil {
		t.Errorf("expected peer RecvFrame to fail after /exit shutdown")
	}
}

func TestSessionEchoesOwnMessage(t *testing.T) {
	a, b := newFakeConnPair()
	defer a.Close()
	defer b.Close()

	ft := newFakeTTY("hello", "/exit")
	s := &Session{conn: a, tty: ft, selfName: "alice", peerName: "bob"}

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	payload, err := RecvFrame(b)
	if err != nil {
		t.Fatalf("RecvFrame() error = %v", err)
	}
	if string(payload) != "hello" {
		t.Fatalf("peer received %q, want %q", payload, "hello")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
	}

	printed := ft.snapshot()
	want := fmt.Sprintf("(%s) %s", "alice", "hello")
	found := false
	for _, line := range printed {
		if line == want {
			found = true
		}
	}
	if !found {
		t.Errorf("printed lines = %v, want echo line %q", printed, want)
	}
}

func TestSessionPeerCloseInterruptsWriter(t *testing.T) {
	a, b := newFakeConnPair()
	defer a.Close()

	ft := newFakeTTY() // never supplies a line; writeLoop blocks on Input
	s := &Session{conn: a, tty: ft, selfName: "alice", peerName: "bob"}

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	// Peer closes its end; Reader's RecvFrame should fail and interrupt Input.
	b.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after peer closed")
	}

	printed := ft.snapshot()
	if len(printed) == 0 {
		t.Errorf("expected a connection error line to be printed")
	}
}
