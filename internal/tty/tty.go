// Package tty turns a line-oriented terminal into a primitive that is safe
// to call concurrently from two goroutines: one asynchronously printing
// lines, one reading a line of interactive input. It is the one piece of
// shared state between the chat session's Reader and Writer activities.
package tty

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

// pollInterval bounds how long a pending Input() read blocks before
// re-checking the interrupt flag, so another goroutine can unblock it.
const pollInterval = 50 * time.Millisecond

// ErrInterrupted is returned by Input when another goroutine raised the
// interrupt flag (typically because the peer connection died) while a
// keystroke read was pending. It is a cooperative signal, not a fault.
var ErrInterrupted = errors.New("tty: input interrupted")

// Controller owns the terminal for the lifetime of a chat session. Construct
// it once at startup and Close it on every exit path, including panics, to
// restore the terminal's original mode.
type Controller struct {
	fd       int
	oldState *term.State
	stdin    *os.File

	outputMu sync.Mutex // serialises all writes to stdout

	accumulatorMu sync.Mutex // held for the duration of one Input call
	accumulator   []rune

	promptMu sync.Mutex // guards the live prompt rendering
	prompt   string

	interrupted atomic.Bool
}

// New saves the current terminal attributes for stdin and switches it to
// raw mode: canonical mode and echo off, VMIN=1, VTIME=0.
func New() (*Controller, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("tty: enter raw mode: %w", err)
	}
	return &Controller{fd: fd, oldState: oldState, stdin: os.Stdin}, nil
}

// Close restores the terminal attributes captured by New. It is safe, and
// required, to call on every exit path including a recovered panic.
func (c *Controller) Close() error {
	if err := term.Restore(c.fd, c.oldState); err != nil {
		return fmt.Errorf("tty: restore terminal: %w", err)
	}
	return nil
}

// Interrupt breaks a pending Input() call out of its wait on stdin. Used by
// the Reader activity when it detects the peer connection has died, so the
// Writer activity (blocked in Input) can observe termination promptly.
func (c *Controller) Interrupt() {
	c.interrupted.Store(true)
}

// Println prints an asynchronously-arriving line above the live prompt
// without corrupting it: erase the current line, print the new line, then
// redraw whatever prompt text the user was mid-typing.
func (c *Controller) Println(line string) error {
	c.outputMu.Lock()
	defer c.outputMu.Unlock()

	prompt := c.currentPrompt()
	_, err := fmt.Fprintf(os.Stdout, "\r\x1b[2K%s\n%s", line, prompt)
	return err
}

// Input renders prompt+accumulator and reads keystrokes one byte at a time
// until Enter, returning the composed line. Only one Input call may run at
// a time; the accumulator lock enforces this for the call's whole lifetime.
func (c *Controller) Input(prompt string) (string, error) {
	c.accumulatorMu.Lock()
	defer c.accumulatorMu.Unlock()

	c.interrupted.Store(false)
	c.accumulator = c.accumulator[:0]

	if err := c.redraw(prompt); err != nil {
		return "", err
	}

	buf := make([]byte, 1)
readLoop:
	for {
		if err := c.stdin.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return "", fmt.Errorf("tty: set read deadline: %w", err)
		}
		n, err := c.stdin.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if c.interrupted.Load() {
					return "", ErrInterrupted
				}
				continue
			}
			return "", err
		}
		if n == 0 {
			continue
		}

		done, changed := applyKeystroke(&c.accumulator, buf[0])
		if done {
			break readLoop
		}
		if changed {
			if err := c.redraw(prompt); err != nil {
				return "", err
			}
		}
	}

	message := string(c.accumulator)
	c.accumulator = c.accumulator[:0]
	c.setPrompt("")
	_ = c.stdin.SetReadDeadline(time.Time{})
	return message, nil
}

// applyKeystroke interprets one input byte against the in-progress
// accumulator per the boundary rules: line feed ends the line, DEL removes
// the last character (no-op if empty), printable ASCII appends, everything
// else is ignored. It reports whether the line is complete and whether the
// accumulator changed (so callers can skip a redundant redraw).
func applyKeystroke(acc *[]rune, b byte) (done, changed bool) {
	switch {
	case b == 0x0A:
		return true, false
	case b == 0x7F:
		if len(*acc) == 0 {
			return false, false
		}
		*acc = (*acc)[:len(*acc)-1]
		return false, true
	case b >= 0x20 && b <= 0x7E:
		*acc = append(*acc, rune(b))
		return false, true
	default:
		return false, false
	}
}

// redraw recomputes the prompt rendering from prompt+accumulator, stores it
// as the current prompt state, and rewrites the live line.
func (c *Controller) redraw(prompt string) error {
	rendered := c.setPrompt(prompt + string(c.accumulator))

	c.outputMu.Lock()
	defer c.outputMu.Unlock()
	_, err := fmt.Fprintf(os.Stdout, "\r\x1b[2K%s", rendered)
	return err
}

func (c *Controller) setPrompt(s string) string {
	c.promptMu.Lock()
	defer c.promptMu.Unlock()
	c.prompt = s
	return s
}

func (c *Controller) currentPrompt() string {
	c.promptMu.Lock()
	defer c.promptMu.Unlock()
	return c.prompt
}
