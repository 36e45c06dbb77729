// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream_test

import (
	"net"
	"testing"
	"time"

	"code.hybscloud.com/comform/stream"
)

func TestSendRecvExact(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cs := stream.New(client)
	ss := stream.New(server)

	done := make(chan error, 1)
	go func() {
		done <- cs.Send([]byte("hello world"))
	}()

	got, err := ss.RecvExact(11, time.Second)
	if err != nil {
		t.Fatalf("RecvExact: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q", got)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestRecvLineLeavesRemainderForNextRead(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ss := stream.New(server)
	go func() {
		_ = stream.New(client).Send([]byte("first\nsecond"))
	}()

	line, err := ss.RecvLine(1024, time.Second)
	if err != nil {
		t.Fatalf("RecvLine: %v", err)
	}
	if string(line) != "first" {
		t.Fatalf("got %q", line)
	}
	rest, err := ss.RecvExact(6, time.Second)
	if err != nil {
		t.Fatalf("RecvExact: %v", err)
	}
	if string(rest) != "second" {
		t.Fatalf("got %q", rest)
	}
}

func TestRecvUntilFrameOverflow(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ss := stream.New(server)
	go func() {
		_ = stream.New(client).Send([]byte("this line has no newline within the limit"))
	}()

	_, err := ss.RecvLine(8, time.Second)
	if err != stream.ErrFrameOverflow {
		t.Fatalf("got %v, want ErrFrameOverflow", err)
	}
}

func TestRecvExactTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ss := stream.New(server)
	_, err := ss.RecvExact(4, 20*time.Millisecond)
	if err != stream.ErrTimeout {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestRecvExactEndOfStreamOnClose(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	ss := stream.New(server)
	_ = client.Close()

	_, err := ss.RecvExact(4, time.Second)
	if err != stream.ErrEndOfStream {
		t.Fatalf("got %v, want ErrEndOfStream", err)
	}
}

func TestCloseUnblocksPendingRead(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	ss := stream.New(server)
	errCh := make(chan error, 1)
	go func() {
		_, err := ss.RecvExact(4, 5*time.Second)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := ss.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-errCh:
		if err != stream.ErrEndOfStream {
			t.Fatalf("got %v, want ErrEndOfStream", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock RecvExact")
	}
}
