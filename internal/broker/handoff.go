package broker

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rufus173/vanillachat/internal/chat"
)

// entrySnapshot is what gets sent to the client for each pooled entry
// before it chooses one: arrival timestamp and display name.
type entrySnapshot struct {
	Arrival time.Time
	Name    string
}

// ServeHandoff runs the daemon's half of the handoff protocol over one
// accepted rendezvous connection: advertise the pool, accept a chosen
// index, drain that entry's buffered bytes to the client, then transfer
// the socket's file descriptor via SCM_RIGHTS and forget it.
func ServeHandoff(conn *net.UnixConn, pool *Pool) error {
	defer conn.Close()

	n := pool.Len()
	if err := writeUint32(conn, uint32(n)); err != nil {
		return fmt.Errorf("broker: write pool count: %w", err)
	}
	for i := 0; i < n; i++ {
		entry := pool.At(i)
		if err := writeUint64(conn, uint64(entry.Arrival.Unix())); err != nil {
			return fmt.Errorf("broker: write arrival timestamp: %w", err)
		}
		if err := chat.SendFrame(conn, []byte(entry.RemoteName)); err != nil {
			return fmt.Errorf("broker: write entry name: %w", err)
		}
	}
	if n == 0 {
		return nil
	}

	index, err := readUint32(conn)
	if err != nil {
		return fmt.Errorf("broker: read chosen index: %w", err)
	}
	if int(index) >= n {
		return fmt.Errorf("broker: chosen index %d out of range (pool has %d entries)", index, n)
	}
	entry := pool.At(int(index))

	// Drain whatever partial message this entry had buffered so the
	// client can prepend it to the bytes it reads from the handed-off
	// socket — otherwise it would be silently lost (see the Design Notes
	// open question on partial messages across handoff).
	if err := chat.SendFrame(conn, entry.partial); err != nil {
		return fmt.Errorf("broker: write pending bytes: %w", err)
	}

	f, err := entry.Conn.File()
	if err != nil {
		return fmt.Errorf("broker: dup socket for handoff: %w", err)
	}
	oob := unix.UnixRights(int(f.Fd()))
	if _, _, err := conn.WriteMsgUnix([]byte("Ok"), oob, nil); err != nil {
		f.Close()
		return fmt.Errorf("broker: send fd: %w", err)
	}
	f.Close()

	// Ownership has transferred: forget the entry without reading from or
	// closing its socket.
	pool.RemoveSwap(int(index))
	return nil
}

// RequestHandoff is the client's half of the protocol: connect to the
// rendezvous socket, read the advertised pool, choose an entry (always
// index 0 — selection UI is out of scope), and reconstruct a TCP
// connection from the fd received via SCM_RIGHTS.
func RequestHandoff(socketPath string) (conn *net.TCPConn, peerName string, arrival time.Time, pending []byte, err error) {
	unixConn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, "", time.Time{}, nil, fmt.Errorf("broker: dial rendezvous socket: %w", err)
	}
	uc := unixConn.(*net.UnixConn)
	defer uc.Close()

	n, err := readUint32(uc)
	if err != nil {
		return nil, "", time.Time{}, nil, fmt.Errorf("broker: read pool count: %w", err)
	}
	if n == 0 {
		return nil, "", time.Time{}, nil, fmt.Errorf("broker: no sockets available")
	}

	entries := make([]entrySnapshot, n)
	for i := uint32(0); i < n; i++ {
		ts, err := readUint64(uc)
		if err != nil {
			return nil, "", time.Time{}, nil, fmt.Errorf("broker: read entry timestamp: %w", err)
		}
		name, err := chat.RecvFrame(uc)
		if err != nil {
			return nil, "", time.Time{}, nil, fmt.Errorf("broker: read entry name: %w", err)
		}
		entries[i] = entrySnapshot{Arrival: time.Unix(int64(ts), 0), Name: string(name)}
	}

	const chosen = 0
	if err := writeUint32(uc, chosen); err != nil {
		return nil, "", time.Time{}, nil, fmt.Errorf("broker: write chosen index: %w", err)
	}

	pending, err = chat.RecvFrame(uc)
	if err != nil {
		return nil, "", time.Time{}, nil, fmt.Errorf("broker: read pending bytes: %w", err)
	}

	fd, err := recvFd(uc)
	if err != nil {
		return nil, "", time.Time{}, nil, fmt.Errorf("broker: receive fd: %w", err)
	}

	f := os.NewFile(uintptr(fd), "vanillachatd-handoff")
	defer f.Close()
	rawConn, err := net.FileConn(f)
	if err != nil {
		return nil, "", time.Time{}, nil, fmt.Errorf("broker: reconstruct connection from fd: %w", err)
	}
	tcpConn, ok := rawConn.(*net.TCPConn)
	if !ok {
		rawConn.Close()
		return nil, "", time.Time{}, nil, fmt.Errorf("broker: handed-off fd is not a TCP socket")
	}

	chosenEntry := entries[chosen]
	return tcpConn, chosenEntry.Name, chosenEntry.Arrival, pending, nil
}

// recvFd reads the short "Ok" payload plus ancillary data from conn and extracts
// the single file descriptor carried via SCM_RIGHTS.
func recvFd(conn *net.UnixConn) (int, error) {
	buf := make([]byte, 2)
	oob := make([]byte, unix.CmsgSpace(4))
	_, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return 0, err
	}
	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return 0, fmt.Errorf("parse control message: %w", err)
	}
	if len(scms) == 0 {
		return 0, fmt.Errorf("no control message received")
	}
	fds, err := unix.ParseUnixRights(&scms[0])
	if err != nil {
		return 0, fmt.Errorf("parse unix rights: %w", err)
	}
	if len(fds) == 0 {
		return 0, fmt.Errorf("no file descriptor received")
	}
	return fds[0], nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
