// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package stream wraps an ordered, reliable byte stream with the two read
// shapes the framing layer needs: read-exactly-n and read-until-sentinel,
// each bounded by an overall (not per-byte) deadline.
//
// An Adapter is built over anything that can read, write, and set a read
// deadline — typically a net.Conn. Packet-oriented transports (UDP, SCTP,
// WebSocket) are adapted into the same ordered-byte-feed contract by
// wrapping them first with internal/transport's pass-through mode; see
// NewPacket.
//
// An Adapter is not safe for concurrent use: exactly one goroutine drives
// reads and one drives writes for a given session, matching the
// single-reader/single-writer worker model described for the session engine.
package stream

import (
	"bytes"
	"io"
	"net"
	"time"

	pkgerrors "github.com/pkg/errors"

	"code.hybscloud.com/comform/internal/transport"
)

// Deadliner is the subset of net.Conn needed to bound a blocking read by an
// overall wall-clock deadline.
type Deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Adapter implements the stream adapter operations over an underlying
// io.ReadWriter plus an optional deadline setter and closer.
type Adapter struct {
	rw       io.ReadWriter
	deadline Deadliner
	closer   io.Closer

	leftover []byte // bytes already read off rw but not yet consumed by a caller
}

// New wraps conn directly: a true byte-stream transport (TCP, Unix stream,
// in-process net.Pipe) needs no adaptation.
func New(conn net.Conn) *Adapter {
	return &Adapter{rw: conn, deadline: conn, closer: conn}
}

// NewOverTransport wraps an arbitrary io.ReadWriter, using deadline (if
// non-nil) to bound blocking reads and closer (if non-nil) for Close. This is
// the path used when rw is, e.g., an internal/transport pass-through adapter
// layered over a packet-oriented net.Conn — the packet conn itself still
// supplies SetReadDeadline and Close.
func NewOverTransport(rw io.ReadWriter, deadline Deadliner, closer io.Closer) *Adapter {
	return &Adapter{rw: rw, deadline: deadline, closer: closer}
}

// NewPacket adapts a boundary-preserving net.Conn (UDP, SCTP, WebSocket) into
// the stream adapter's ordered-byte-feed contract by layering
// internal/transport's pass-through mode over it: each underlying packet
// becomes one logical chunk of the byte feed. Deadlines and Close still go
// straight to conn.
func NewPacket(conn net.Conn, opts ...transport.Option) *Adapter {
	all := append([]transport.Option{transport.WithProtocol(transport.SeqPacket)}, opts...)
	rw := transport.NewReadWriter(conn, conn, all...)
	return NewOverTransport(rw, conn, conn)
}

// Close forcibly closes the underlying stream, if it is closeable. Per the
// shutdown model, this is the only reliable way to unblock a goroutine
// parked in RecvLine or RecvExact.
func (a *Adapter) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Send writes all of b, or fails with ErrNotConnected or ErrTransport.
func (a *Adapter) Send(b []byte) error {
	off := 0
	for off < len(b) {
		n, err := a.rw.Write(b[off:])
		off += n
		if err != nil {
			return translateWriteErr(err)
		}
	}
	return nil
}

// RecvExact returns exactly n bytes or fails with ErrEndOfStream or
// ErrTimeout. The deadline is overall, start-to-completion.
func (a *Adapter) RecvExact(n int, timeout time.Duration) ([]byte, error) {
	if n < 0 {
		return nil, ErrTransport
	}
	if err := a.armDeadline(timeout); err != nil {
		return nil, translateReadErr(err)
	}
	buf := make([]byte, n)
	got := 0
	if len(a.leftover) > 0 {
		got = copy(buf, a.leftover)
		a.leftover = a.leftover[got:]
	}
	for got < n {
		rn, err := a.rw.Read(buf[got:])
		got += rn
		if err != nil {
			if got == n {
				break
			}
			return nil, translateReadErr(err)
		}
	}
	return buf, nil
}

// RecvUntil returns the bytes read before the first occurrence of sentinel
// (including it if includeSentinel is set). It fails with ErrFrameOverflow
// if maxBytes elapse without seeing the sentinel.
func (a *Adapter) RecvUntil(sentinel byte, maxBytes int, timeout time.Duration, includeSentinel bool) ([]byte, error) {
	if err := a.armDeadline(timeout); err != nil {
		return nil, translateReadErr(err)
	}
	var out []byte
	for {
		if len(a.leftover) > 0 {
			if idx := bytes.IndexByte(a.leftover, sentinel); idx >= 0 {
				end := idx
				if includeSentinel {
					end = idx + 1
				}
				if len(out)+end > maxBytes {
					return nil, ErrFrameOverflow
				}
				out = append(out, a.leftover[:end]...)
				a.leftover = a.leftover[idx+1:]
				return out, nil
			}
			if len(out)+len(a.leftover) > maxBytes {
				return nil, ErrFrameOverflow
			}
			out = append(out, a.leftover...)
			a.leftover = nil
		}

		scratch := make([]byte, 512)
		n, err := a.rw.Read(scratch)
		if n > 0 {
			chunk := scratch[:n]
			if idx := bytes.IndexByte(chunk, sentinel); idx >= 0 {
				end := idx
				if includeSentinel {
					end = idx + 1
				}
				if len(out)+end > maxBytes {
					return nil, ErrFrameOverflow
				}
				out = append(out, chunk[:end]...)
				a.leftover = append(a.leftover, chunk[idx+1:]...)
				return out, nil
			}
			if len(out)+len(chunk) > maxBytes {
				return nil, ErrFrameOverflow
			}
			out = append(out, chunk...)
		}
		if err != nil {
			return nil, translateReadErr(err)
		}
	}
}

// RecvLine is RecvUntil('\n', maxBytes, timeout, false).
func (a *Adapter) RecvLine(maxBytes int, timeout time.Duration) ([]byte, error) {
	return a.RecvUntil('\n', maxBytes, timeout, false)
}

func (a *Adapter) armDeadline(timeout time.Duration) error {
	if a.deadline == nil {
		return nil
	}
	if timeout <= 0 {
		return a.deadline.SetReadDeadline(time.Time{})
	}
	return a.deadline.SetReadDeadline(time.Now().Add(timeout))
}

func translateReadErr(err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF || err == io.ErrClosedPipe {
		return ErrEndOfStream
	}
	if pkgerrors.Is(err, net.ErrClosed) {
		return ErrEndOfStream
	}
	var ne net.Error
	if e, ok := err.(net.Error); ok {
		ne = e
		if ne.Timeout() {
			return ErrTimeout
		}
	}
	return pkgerrors.Wrap(ErrTransport, err.Error())
}

func translateWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.Is(err, net.ErrClosed) || err == io.ErrClosedPipe {
		return ErrNotConnected
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return ErrTimeout
	}
	return pkgerrors.Wrap(ErrTransport, err.Error())
}
