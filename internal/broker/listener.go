package broker

import (
	"bytes"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rufus173/vanillachat/internal/chat"
)

// enrolTimeout bounds how long the daemon waits for a freshly accepted
// peer to answer the display-name handshake before it falls back to
// chat.UnknownPeerName.
const enrolTimeout = 5 * time.Second

// closedSweepThreshold is how many consecutive liveness sweeps must observe
// a closed socket before the daemon prunes it, so a single spurious EOF
// reading doesn't drop a connection that is still good.
const closedSweepThreshold = 2

const eot = 0x04

// Server runs the daemon's main loop: it accepts inbound peers into a Pool,
// serves handoff requests on a local rendezvous socket, drains buffered
// pool traffic, and prunes dead connections.
type Server struct {
	tcp        *net.TCPListener
	rendezvous *net.UnixListener
	pool       *Pool
	notifier   Notifier
	selfName   string
	sweep      time.Duration
	startedAt  time.Time
	poolSize   atomic.Int32

	// mu guards notifier and sweep, which a config-reload watcher may
	// change concurrently with Run's loop.
	mu sync.Mutex
}

// NewServer wires together the listeners, pool, and notifier for one daemon
// run. sweepInterval is the initial per-iteration sleep; Run reads the
// current value on every iteration, so SetSweepInterval (used by config
// hot-reload) takes effect without restarting Run.
func NewServer(tcp *net.TCPListener, rendezvous *net.UnixListener, notifier Notifier, selfName string, sweepInterval time.Duration) *Server {
	return &Server{
		tcp:        tcp,
		rendezvous: rendezvous,
		pool:       &Pool{},
		notifier:   notifier,
		selfName:   selfName,
		sweep:      sweepInterval,
		startedAt:  time.Now(),
	}
}

// Pool exposes the underlying pool. Status queries do not go through it;
// they read the snapshot reported by Status.
func (s *Server) Pool() *Pool { return s.pool }

// Status reports the pool size and daemon uptime for the --status command
// socket. poolSize is a snapshot the main loop updates every iteration, so
// a concurrent status query never touches the pool itself.
func (s *Server) Status() (poolSize int, uptime time.Duration) {
	return int(s.poolSize.Load()), time.Since(s.startedAt)
}

// SetSweepInterval changes the main loop's per-iteration sleep, e.g. in
// response to a config file reload. Takes effect on the next iteration.
func (s *Server) SetSweepInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep = d
}

func (s *Server) sweepInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweep
}

// SetNotifier swaps the desktop notifier, e.g. when a config reload flips
// notify_enabled.
func (s *Server) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *Server) currentNotifier() Notifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifier
}

// Run drives the non-blocking main loop until stop is closed.
func (s *Server) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		s.acceptInbound()
		s.acceptHandoff()
		s.drainPool()
		s.sweepPool()
		s.poolSize.Store(int32(s.pool.Len()))

		time.Sleep(s.sweepInterval())
	}
}

// acceptInbound accepts at most one new TCP connection per iteration,
// enrolls its display name, and adds it to the pool.
func (s *Server) acceptInbound() {
	_ = s.tcp.SetDeadline(time.Now())
	conn, err := s.tcp.Accept()
	if err != nil {
		return
	}

	tcpConn := conn.(*net.TCPConn)
	remoteName := s.enrol(tcpConn)

	s.pool.Add(&Connection{
		Conn:       tcpConn,
		RemoteAddr: tcpConn.RemoteAddr().(*net.TCPAddr),
		RemoteName: remoteName,
		Arrival:    time.Now(),
	})
	slog.Info("peer enrolled", "remote", tcpConn.RemoteAddr(), "name", remoteName)
}

// enrol performs the handshake for a freshly accepted connection, falling
// back to chat.UnknownPeerName if the peer doesn't answer within
// enrolTimeout.
func (s *Server) enrol(conn *net.TCPConn) string {
	if err := conn.SetDeadline(time.Now().Add(enrolTimeout)); err != nil {
		return chat.UnknownPeerName
	}
	peerName, err := chat.Handshake(conn, s.selfName)
	_ = conn.SetDeadline(time.Time{})
	if err != nil {
		slog.Warn("enrolment handshake failed, using fallback name", "remote", conn.RemoteAddr(), "error", err)
		return chat.UnknownPeerName
	}
	return peerName
}

// acceptHandoff accepts at most one rendezvous connection per iteration and
// serves the handoff protocol on it synchronously, since ServeHandoff
// mutates the pool and the pool is documented as single-goroutine-owned.
func (s *Server) acceptHandoff() {
	_ = s.rendezvous.SetDeadline(time.Now())
	conn, err := s.rendezvous.Accept()
	if err != nil {
		return
	}
	unixConn := conn.(*net.UnixConn)
	if err := ServeHandoff(unixConn, s.pool); err != nil {
		slog.Warn("handoff request failed", "error", err)
	}
}

// drainPool performs a non-blocking read on every pooled connection,
// accumulating bytes into each entry's partial buffer and raising one
// notification per complete framed message observed.
func (s *Server) drainPool() {
	buf := make([]byte, 4096)
	for _, entry := range s.pool.All() {
		for {
			_ = entry.Conn.SetReadDeadline(time.Now())
			n, err := entry.Conn.Read(buf)
			if n > 0 {
				entry.partial = append(entry.partial, buf[:n]...)
			}
			if err != nil {
				break
			}
			if n == 0 {
				break
			}
		}
		_ = entry.Conn.SetReadDeadline(time.Time{})
		s.flushCompleteMessages(entry)
	}
}

// flushCompleteMessages splits entry.partial on EOT delimiters, notifies
// once per complete message found, and leaves any trailing partial message
// buffered for the next pass or for handoff.
func (s *Server) flushCompleteMessages(entry *Connection) {
	for {
		idx := bytes.IndexByte(entry.partial, eot)
		if idx < 0 {
			return
		}
		payload := entry.partial[:idx]
		entry.partial = entry.partial[idx+1:]
		if n := s.currentNotifier(); n != nil {
			n.Notify(entry.RemoteAddr.String(), string(payload))
		}
	}
}

// sweepPool peeks every pooled connection without consuming data and prunes
// entries that have shown a closed socket on closedSweepThreshold
// consecutive sweeps.
func (s *Server) sweepPool() {
	i := 0
	for i < s.pool.Len() {
		entry := s.pool.At(i)
		result, err := peekByte(entry.Conn)
		if err != nil {
			slog.Debug("liveness peek failed", "remote", entry.RemoteAddr, "error", err)
		}

		if result == peekClosed {
			entry.missedSweeps++
		} else {
			entry.missedSweeps = 0
		}

		if entry.missedSweeps >= closedSweepThreshold {
			s.pool.RemoveSwap(i)
			_ = entry.Conn.Close()
			slog.Info("pruned dead connection", "remote", entry.RemoteAddr, "name", entry.RemoteName)
			continue
		}
		i++
	}
}
