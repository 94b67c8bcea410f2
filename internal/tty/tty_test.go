package tty

import (
	"io"
	"os"
	"strings"
	"testing"
)

func TestApplyKeystroke(t *testing.T) {
	tests := []struct {
		name      string
		acc       []rune
		b         byte
		wantAcc   string
		wantDone  bool
		wantChang bool
	}{
		{"line feed ends line", []rune("hi"), 0x0A, "hi", true, false},
		{"backspace removes last char", []rune("hi"), 0x7F, "h", false, true},
		{"backspace on empty is no-op", nil, 0x7F, "", false, false},
		{"printable char appended", []rune("h"), 'i', "hi", false, true},
		{"space is printable", nil, 0x20, " ", false, true},
		{"tilde is printable", nil, 0x7E, "~", false, true},
		{"control byte below space ignored", []rune("hi"), 0x01, "hi", false, false},
		{"DEL byte 0x7F is backspace, not printable", []rune("hi"), 0x7F, "h", false, true},
		{"newline-adjacent 0x0B ignored", []rune("hi"), 0x0B, "hi", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := append([]rune{}, tt.acc...)
			done, changed := applyKeystroke(&acc, tt.b)
			if done != tt.wantDone {
				t.Errorf("done = %v, want %v", done, tt.wantDone)
			}
			if changed != tt.wantChang {
				t.Errorf("changed = %v, want %v", changed, tt.wantChang)
			}
			if string(acc) != tt.wantAcc {
				t.Errorf("acc = %q, want %q", string(acc), tt.wantAcc)
			}
		})
	}
}

// captureStdout redirects os.Stdout to a pipe for the duration of fn and
// returns everything written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return string(out)
}

func TestPrintlnPreservesPrompt(t *testing.T) {
	c := &Controller{}
	c.setPrompt(">>> hello")

	out := captureStdout(t, func() {
		if err := c.Println("(peer) hi"); err != nil {
			t.Fatalf("Println() error = %v", err)
		}
	})

	want := "\r\x1b[2K(peer) hi\n>>> hello"
	if out != want {
		t.Errorf("Println output = %q, want %q", out, want)
	}
}

func TestRedrawRendersPromptPlusAccumulator(t *testing.T) {
	c := &Controller{accumulator: []rune("abc")}

	out := captureStdout(t, func() {
		if err := c.redraw(">>> "); err != nil {
			t.Fatalf("redraw() error = %v", err)
		}
	})

	want := "\r\x1b[2K>>> abc"
	if out != want {
		t.Errorf("redraw output = %q, want %q", out, want)
	}
	if got := c.currentPrompt(); got != ">>> abc" {
		t.Errorf("currentPrompt() = %q, want %q", got, ">>> abc")
	}
}

func TestConcurrentPrintlnNeverInterleaves(t *testing.T) {
	c := &Controller{}
	c.setPrompt(">>> ")

	done := make(chan struct{}, 2)
	out := captureStdout(t, func() {
		go func() { _ = c.Println("X"); done <- struct{}{} }()
		go func() { _ = c.Println("Y"); done <- struct{}{} }()
		<-done
		<-done
	})

	// Each call writes one atomic chunk; the two outcomes below are the
	// only ones the output-mutex serialisation invariant permits.
	xFirst := "\r\x1b[2KX\n>>> \r\x1b[2KY\n>>> "
	yFirst := "\r\x1b[2KY\n>>> \r\x1b[2KX\n>>> "
	if out != xFirst && out != yFirst {
		t.Errorf("interleaved output: %q", out)
	}
	if !strings.Contains(out, ">>> ") {
		t.Errorf("output missing prompt: %q", out)
	}
}
