package chat

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestSendRecvRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"simple word", "hello"},
		{"empty payload", ""},
		{"with spaces", "hello world"},
		{"punctuation", "/exit is not this message!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := SendFrame(&buf, []byte(tt.payload)); err != nil {
				t.Fatalf("SendFrame() error = %v", err)
			}
			got, err := RecvFrame(&buf)
			if err != nil {
				t.Fatalf("RecvFrame() error = %v", err)
			}
			if string(got) != tt.payload {
				t.Errorf("RecvFrame() = %q, want %q", got, tt.payload)
			}
		})
	}
}

func TestRecvMsgTwoFramesInSequence(t *testing.T) {
	var buf bytes.Buffer
	SendFrame(&buf, []byte("first"))
	SendFrame(&buf, []byte("second"))

	first, err := RecvFrame(&buf)
	if err != nil || string(first) != "first" {
		t.Fatalf("first frame = %q, err = %v", first, err)
	}
	second, err := RecvFrame(&buf)
	if err != nil || string(second) != "second" {
		t.Fatalf("second frame = %q, err = %v", second, err)
	}
}

func TestRecvMsgOnImmediatelyClosedSocket(t *testing.T) {
	r := bytes.NewReader(nil) // yields (0, io.EOF) immediately
	_, err := RecvFrame(r)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("RecvFrame() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestSendMsgDoesNotMutateCaller(t *testing.T) {
	payload := []byte("hello")
	orig := append([]byte{}, payload...)
	var buf bytes.Buffer
	if err := SendFrame(&buf, payload); err != nil {
		t.Fatalf("SendFrame() error = %v", err)
	}
	if !bytes.Equal(payload, orig) {
		t.Errorf("SendFrame mutated caller slice: got %q, want %q", payload, orig)
	}
}
