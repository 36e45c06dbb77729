// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport_test

import (
	"bytes"
	"io"
	"testing"

	"code.hybscloud.com/comform/internal/transport"
)

func TestStreamRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("hello"),
		bytes.Repeat([]byte("x"), 253),
		bytes.Repeat([]byte("y"), 254),
		bytes.Repeat([]byte("z"), 70000),
	}
	for _, payload := range cases {
		var buf bytes.Buffer
		w := transport.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			t.Fatalf("write %d bytes: %v", len(payload), err)
		}
		r := transport.NewReader(&buf)
		got := make([]byte, len(payload)+16)
		n, err := r.Read(got)
		if err != nil {
			t.Fatalf("read %d bytes: %v", len(payload), err)
		}
		if !bytes.Equal(got[:n], payload) {
			t.Fatalf("round trip mismatch: got %d bytes, want %d", n, len(payload))
		}
	}
}

func TestStreamReadLimitRejectsOversizedMessage(t *testing.T) {
	var buf bytes.Buffer
	w := transport.NewWriter(&buf)
	payload := bytes.Repeat([]byte("a"), 100)
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := transport.NewReader(&buf, transport.WithReadLimit(10))
	_, err := r.Read(make([]byte, 100))
	if err != transport.ErrTooLong {
		t.Fatalf("got %v, want ErrTooLong", err)
	}
}

func TestPacketModePassesThroughOneMessagePerCall(t *testing.T) {
	r, w := transport.NewPipe(transport.WithProtocol(transport.SeqPacket))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = w.Write([]byte("packet-one"))
	}()
	got := make([]byte, 64)
	n, err := r.Read(got)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got[:n]) != "packet-one" {
		t.Fatalf("got %q", got[:n])
	}
	<-done
}

func TestNewReaderNilSourceIsInvalidArgument(t *testing.T) {
	r := transport.NewReader(nil)
	if _, err := r.Read(make([]byte, 1)); err != transport.ErrInvalidArgument {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}

func TestReadStreamTruncatedYieldsUnexpectedEOF(t *testing.T) {
	// A header announcing 10 bytes followed by only 3 bytes of payload.
	src := bytes.NewReader([]byte{10, 'a', 'b', 'c'})
	r := transport.NewReader(src)
	_, err := r.Read(make([]byte, 32))
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("got %v, want io.ErrUnexpectedEOF", err)
	}
}
