package broker

import (
	"bufio"
	"fmt"
	"net"
	"time"
)

// ServeStatus answers one query on the daemon's status command socket with
// a single line reporting the pool size and uptime, then closes the
// connection. This is a separate, line-oriented socket from the rendezvous
// socket; it does not participate in the handoff protocol.
func ServeStatus(conn net.Conn, srv *Server) error {
	defer conn.Close()
	poolSize, uptime := srv.Status()
	_, err := fmt.Fprintf(conn, "pool=%d uptime=%s\n", poolSize, uptime.Round(time.Second))
	return err
}

// QueryStatus dials the daemon's status socket and returns its one-line
// reply.
func QueryStatus(socketPath string) (string, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return "", fmt.Errorf("broker: dial status socket: %w", err)
	}
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("broker: read status reply: %w", err)
	}
	return line, nil
}
