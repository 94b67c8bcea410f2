// Package broker implements the daemon side of vanillachat: a pool of
// accepted-but-unclaimed inbound TCP connections, handed off to a local
// client over a Unix-domain rendezvous socket via SCM_RIGHTS.
package broker

import (
	"net"
	"time"
)

// Connection is one accepted inbound peer held in the pool.
type Connection struct {
	Conn       *net.TCPConn
	RemoteAddr *net.TCPAddr
	RemoteName string
	Arrival    time.Time

	// partial holds bytes read from the socket that have not yet formed a
	// complete message, so a message arriving while pooled is not split or
	// lost across a later handoff.
	partial []byte

	missedSweeps int
}

// Pool holds accepted-but-unclaimed connections. It is mutated only from
// the daemon's single main loop, so it needs no locking of its own.
type Pool struct {
	conns []*Connection
}

// Len reports how many connections are currently pooled.
func (p *Pool) Len() int { return len(p.conns) }

// Add enrolls a new connection at the end of the pool.
func (p *Pool) Add(c *Connection) { p.conns = append(p.conns, c) }

// At returns the entry at index i in current pool order. Order is not
// stable across removals: see RemoveSwap.
func (p *Pool) At(i int) *Connection { return p.conns[i] }

// RemoveSwap removes the entry at index i by swapping it with the last
// entry, matching the daemon's swap-remove pruning and handoff semantics.
// It returns the removed entry.
func (p *Pool) RemoveSwap(i int) *Connection {
	c := p.conns[i]
	last := len(p.conns) - 1
	p.conns[i] = p.conns[last]
	p.conns[last] = nil
	p.conns = p.conns[:last]
	return c
}

// All returns the pool's entries in current order. Callers must not retain
// the slice across a mutation of the pool.
func (p *Pool) All() []*Connection { return p.conns }
