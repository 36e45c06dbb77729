// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package comform_test

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"code.hybscloud.com/comform"
	"code.hybscloud.com/comform/internal/transport"
)

func pipePair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { _ = a.Close(); _ = b.Close() })
	return a, b
}

func newClientHandler(t *testing.T, registry *comform.Registry, opts ...comform.Option) (*comform.Client, *comform.Handler) {
	t.Helper()
	clientConn, handlerConn := pipePair(t)
	allOpts := append([]comform.Option{comform.WithTimeout(2 * time.Second)}, opts...)

	handlerOpts := append(append([]comform.Option{}, allOpts...), comform.WithRegistry(registry))
	handler, err := comform.NewHandler(handlerConn, handlerOpts...)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	client, err := comform.NewClient(clientConn, allOpts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	go func() { _ = handler.Serve() }()
	go func() { _ = client.Run() }()

	t.Cleanup(func() {
		_ = client.Close()
		_ = handler.Close()
	})
	return client, handler
}

func TestCallRoundTrip(t *testing.T) {
	reg := comform.NewRegistry()
	reg.Register("upper", func(_ *comform.CommandContext, pos []any, _ map[string]any) (any, error) {
		s, _ := pos[0].(string)
		out := make([]byte, len(s))
		for i := range s {
			c := s[i]
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			out[i] = c
		}
		return string(out), nil
	})

	client, _ := newClientHandler(t, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	value, err := client.Execute(ctx, "upper", []any{"abc"}, nil, 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if value != "ABC" {
		t.Fatalf("value = %#v, want ABC", value)
	}
}

func TestBuiltinTimeCommand(t *testing.T) {
	client, _ := newClientHandler(t, comform.NewRegistry())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	value, err := client.Execute(ctx, "time", nil, nil, 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := value.(float64); !ok {
		t.Fatalf("value = %#v, want float64", value)
	}
}

func TestUnknownCommandReturnsError(t *testing.T) {
	client, _ := newClientHandler(t, comform.NewRegistry())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.Execute(ctx, "does_not_exist", nil, nil, 1)
	if err == nil {
		t.Fatal("Execute: want error for unknown command")
	}
}

func TestCommandErrorPropagates(t *testing.T) {
	reg := comform.NewRegistry()
	wantErr := errors.New("zero divisor")
	reg.Register("divide", func(_ *comform.CommandContext, _ []any, _ map[string]any) (any, error) {
		return nil, wantErr
	})

	client, _ := newClientHandler(t, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.Execute(ctx, "divide", nil, nil, 1)
	if err == nil || !strings.Contains(err.Error(), wantErr.Error()) {
		t.Fatalf("err = %v, want message containing %q", err, wantErr.Error())
	}
}

func TestCommandPanicBecomesError(t *testing.T) {
	reg := comform.NewRegistry()
	reg.Register("boom", func(_ *comform.CommandContext, _ []any, _ map[string]any) (any, error) {
		panic("kaboom")
	})

	client, _ := newClientHandler(t, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.Execute(ctx, "boom", nil, nil, 1)
	if err == nil {
		t.Fatal("Execute: want error for a panicking command")
	}
}

func TestTypedKwArgsDecoding(t *testing.T) {
	type addArgs struct {
		A int `comform:"a"`
		B int `comform:"b"`
	}
	reg := comform.NewRegistry()
	comform.RegisterTyped(reg, "add", func(_ *comform.CommandContext, _ []any, args addArgs) (any, error) {
		return args.A + args.B, nil
	})

	client, _ := newClientHandler(t, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	value, err := client.Execute(ctx, "add", nil, map[string]any{"a": 2, "b": 3}, 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	n, ok := value.(float64)
	if !ok || n != 5 {
		t.Fatalf("value = %#v, want 5", value)
	}
}

func TestExecuteAsyncThenWaitResponse(t *testing.T) {
	reg := comform.NewRegistry()
	reg.Register("slow", func(_ *comform.CommandContext, _ []any, _ map[string]any) (any, error) {
		return "done", nil
	})

	client, _ := newClientHandler(t, reg)

	id, err := client.ExecuteAsync("slow", nil, nil, 1)
	if err != nil {
		t.Fatalf("ExecuteAsync: %v", err)
	}
	value, err := client.WaitResponse(id, time.Now().Add(2*time.Second))
	if err != nil {
		t.Fatalf("WaitResponse: %v", err)
	}
	if value != "done" {
		t.Fatalf("value = %#v, want done", value)
	}
}

func TestHandshakeMismatchIsIncompatible(t *testing.T) {
	clientConn, handlerConn := pipePair(t)

	handler, err := comform.NewHandler(handlerConn, comform.WithTimeout(2*time.Second), comform.WithContextID("server/1"))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	client, err := comform.NewClient(clientConn, comform.WithTimeout(2*time.Second), comform.WithContextID("client/1"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	go func() { _ = handler.Serve() }()
	runDone := make(chan error, 1)
	go func() { runDone <- client.Run() }()
	<-runDone

	if !errors.Is(client.Err(), comform.ErrIncompatible) {
		t.Fatalf("client.Err() = %v, want ErrIncompatible", client.Err())
	}
}

func TestIdleKeepaliveKeepsSessionAlive(t *testing.T) {
	reg := comform.NewRegistry()
	client, _ := newClientHandler(t, reg, comform.WithPoller(comform.ConstantInterval(20*time.Millisecond)))

	// Stay idle long enough for several keepalive cycles to run, then make
	// sure a real call still goes through cleanly afterward.
	time.Sleep(150 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	value, err := client.Execute(ctx, "time", nil, nil, 1)
	if err != nil {
		t.Fatalf("Execute after idle keepalive period: %v", err)
	}
	if _, ok := value.(float64); !ok {
		t.Fatalf("value = %#v, want float64", value)
	}
}

func TestExecuteAfterCloseReturnsSessionClosed(t *testing.T) {
	reg := comform.NewRegistry()
	client, _ := newClientHandler(t, reg)

	// Give the handshake time to complete so Close tears down a live session.
	time.Sleep(50 * time.Millisecond)
	_ = client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.Execute(ctx, "time", nil, nil, 1)
	if !errors.Is(err, comform.ErrSessionClosed) {
		t.Fatalf("err = %v, want ErrSessionClosed", err)
	}
}

// TestPacketTransportWiring exercises WithPacketTransport, the path that
// routes a boundary-preserving conn through internal/transport's
// pass-through mode before handing it to the stream adapter.
func TestPacketTransportWiring(t *testing.T) {
	clientConn, handlerConn := pipePair(t)
	packetOpt := comform.WithPacketTransport(transport.WithProtocol(transport.SeqPacket))

	reg := comform.NewRegistry()
	handler, err := comform.NewHandler(handlerConn, comform.WithTimeout(2*time.Second), comform.WithRegistry(reg), packetOpt)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	client, err := comform.NewClient(clientConn, comform.WithTimeout(2*time.Second), packetOpt)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	go func() { _ = handler.Serve() }()
	go func() { _ = client.Run() }()
	t.Cleanup(func() {
		_ = client.Close()
		_ = handler.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	value, err := client.Execute(ctx, "time", nil, nil, 1)
	if err != nil {
		t.Fatalf("Execute over packet transport: %v", err)
	}
	if _, ok := value.(float64); !ok {
		t.Fatalf("value = %#v, want float64", value)
	}
}
