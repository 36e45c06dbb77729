// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package form_test

import (
	"net"
	"reflect"
	"testing"
	"time"

	"code.hybscloud.com/comform/appendix"
	"code.hybscloud.com/comform/form"
	"code.hybscloud.com/comform/stream"
)

func pipeEnds(t *testing.T) (*stream.Adapter, *stream.Adapter, func()) {
	t.Helper()
	c, s := net.Pipe()
	return stream.New(c), stream.New(s), func() { c.Close(); s.Close() }
}

func TestSendReceiveRoundTrip(t *testing.T) {
	clientS, serverS, closeBoth := pipeEnds(t)
	defer closeBoth()

	sender, err := form.NewSender(clientS, "$separation$", time.Second, true)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	receiver, err := form.NewReceiver(serverS, "$separation$", time.Second, 1024, appendix.Textual)
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}

	value := map[string]any{"pos_args": []any{"abc"}, "kw_args": map[string]any{}}
	f, err := form.New("COMMAND", "command:upper\nreturn_mode:reply", value, appendix.Textual)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sender.Send(f) }()

	got, err := receiver.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.Title != "COMMAND" {
		t.Fatalf("title = %q", got.Title)
	}
	if got.Body != "command:upper\nreturn_mode:reply" {
		t.Fatalf("body = %q", got.Body)
	}
	gotAppendix, err := got.Appendix()
	if err != nil {
		t.Fatalf("Appendix: %v", err)
	}
	if !reflect.DeepEqual(gotAppendix, value) {
		t.Fatalf("appendix = %#v, want %#v", gotAppendix, value)
	}
}

func TestBodyCollisionAdjusted(t *testing.T) {
	clientS, serverS, closeBoth := pipeEnds(t)
	defer closeBoth()

	sender, _ := form.NewSender(clientS, "$separation$", time.Second, true)
	receiver, _ := form.NewReceiver(serverS, "$separation$", time.Second, 1024, appendix.Textual)

	f, err := form.New("TITLE", "$separation$123\nnormal", []any{}, appendix.Textual)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sender.Send(f) }()

	got, err := receiver.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	want := " $separation$123\nnormal"
	if got.Body != want {
		t.Fatalf("body = %q, want %q", got.Body, want)
	}
}

func TestBodyCollisionRejectedWithoutAdjust(t *testing.T) {
	clientS, _, closeBoth := pipeEnds(t)
	defer closeBoth()

	sender, _ := form.NewSender(clientS, "$separation$", time.Second, false)
	f, _ := form.New("TITLE", "$separation$123", []any{}, appendix.Textual)

	if err := sender.Send(f); err != form.ErrBodyCollision {
		t.Fatalf("got %v, want ErrBodyCollision", err)
	}
}

func TestEmptyBodyNonEmptyAppendix(t *testing.T) {
	clientS, serverS, closeBoth := pipeEnds(t)
	defer closeBoth()

	sender, _ := form.NewSender(clientS, "$separation$", time.Second, true)
	receiver, _ := form.NewReceiver(serverS, "$separation$", time.Second, 1024, appendix.Textual)

	f, err := form.New("RETURN", "", "ABC", appendix.Textual)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sender.Send(f) }()

	got, err := receiver.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Body != "" {
		t.Fatalf("body = %q, want empty", got.Body)
	}
	v, err := got.Appendix()
	if err != nil || v != "ABC" {
		t.Fatalf("appendix = %#v, %v", v, err)
	}
}

func TestZeroLengthAppendix(t *testing.T) {
	clientS, serverS, closeBoth := pipeEnds(t)
	defer closeBoth()

	sender, _ := form.NewSender(clientS, "$separation$", time.Second, true)
	receiver, _ := form.NewReceiver(serverS, "$separation$", time.Second, 1024, appendix.Textual)

	f, err := form.NewEmpty("ERROR", "name:Boom\nmessage:bad")
	if err != nil {
		t.Fatalf("NewEmpty: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sender.Send(f) }()

	got, err := receiver.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(got.AppendixBytes()) != 0 {
		t.Fatalf("appendix bytes = %q, want empty", got.AppendixBytes())
	}
	v, err := got.Appendix()
	if err != nil {
		t.Fatalf("Appendix: %v", err)
	}
	seq, ok := v.([]any)
	if !ok || len(seq) != 0 {
		t.Fatalf("Appendix() = %#v, want empty sequence", v)
	}
}

func TestPerLineOverflowAbortsReceive(t *testing.T) {
	clientS, serverS, closeBoth := pipeEnds(t)
	defer closeBoth()

	sender, _ := form.NewSender(clientS, "$separation$", time.Second, true)
	receiver, _ := form.NewReceiver(serverS, "$separation$", time.Second, 8, appendix.Textual)

	f, _ := form.New("TITLE", "this line is much longer than eight bytes", []any{}, appendix.Textual)

	go func() { _ = sender.Send(f) }()

	_, err := receiver.Receive()
	if err != stream.ErrFrameOverflow {
		t.Fatalf("got %v, want ErrFrameOverflow", err)
	}
}

func TestInvalidSeparationRejected(t *testing.T) {
	clientS, _, closeBoth := pipeEnds(t)
	defer closeBoth()
	if _, err := form.NewSender(clientS, "", time.Second, true); err != form.ErrInvalidSeparation {
		t.Fatalf("got %v, want ErrInvalidSeparation", err)
	}
	if _, err := form.NewSender(clientS, "a\nb", time.Second, true); err != form.ErrInvalidSeparation {
		t.Fatalf("got %v, want ErrInvalidSeparation", err)
	}
}
