// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package comform implements the session engine that drives a commanding
// exchange over a form.Sender/form.Receiver pair: a Client that queues and
// issues calls, and a Handler that serves them.
package comform

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"code.hybscloud.com/comform/appendix"
	"code.hybscloud.com/comform/commanding"
	"code.hybscloud.com/comform/form"
	"code.hybscloud.com/comform/stream"
)

const idleTick = 20 * time.Millisecond

// Client drives the caller side of a commanding session: it queues calls by
// priority, sends them one at a time over the wire, and makes their results
// available either synchronously (Execute) or through a response table
// (ExecuteAsync plus TryResponse/WaitResponse).
type Client struct {
	adapter      *stream.Adapter
	sender       *form.Sender
	receiver     *form.Receiver
	codec        appendix.Codec
	separation   string
	timeout      time.Duration
	maxLineBytes int
	contextID    string
	log          *logrus.Entry

	mu      sync.Mutex
	queue   *callQueue
	seq     int64
	notify  chan struct{}

	responses *responseTable
	poller    *poller
	lastCall  time.Time

	stopCh    chan struct{}
	closeOnce sync.Once
	runErr    error
	runErrMu  sync.Mutex
}

// NewClient builds a Client bound to conn. The caller must run Client.Run in
// its own goroutine before issuing calls.
func NewClient(conn net.Conn, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	adapter := newAdapter(conn, o)
	sender, err := form.NewSender(adapter, o.separation, o.timeout, true)
	if err != nil {
		return nil, err
	}
	receiver, err := form.NewReceiver(adapter, o.separation, o.timeout, o.maxLineBytes, o.codec)
	if err != nil {
		return nil, err
	}
	stopCh := make(chan struct{})
	return &Client{
		adapter:      adapter,
		sender:       sender,
		receiver:     receiver,
		codec:        o.codec,
		separation:   o.separation,
		timeout:      o.timeout,
		maxLineBytes: o.maxLineBytes,
		contextID:    o.contextID,
		log:          logEntry(o.log),
		queue:        newCallQueue(o.queueSize),
		notify:       make(chan struct{}, 1),
		responses:    newResponseTable(stopCh),
		poller:       newPoller(o.poll),
		stopCh:       stopCh,
		lastCall:     time.Now(),
	}, nil
}

// Close tears the session down: it unblocks Run and any blocked
// WaitResponse/Execute callers with ErrSessionClosed, and closes the
// underlying connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		_ = c.adapter.Close()
	})
	return nil
}

// Run performs the handshake and then drives the client loop: dequeue and
// send calls, or issue an idle keepalive once the poller's interval is
// reached. Run returns when Close is called or a framing-layer error tears
// the session down; the latter is also recorded and returned by Err.
func (c *Client) Run() error {
	if err := c.handshake(); err != nil {
		c.fail(err)
		return err
	}

	ticker := time.NewTicker(idleTick)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return nil
		default:
		}

		if rec, ok := c.dequeue(); ok {
			if err := c.performCall(rec); err != nil {
				c.fail(err)
				return err
			}
			continue
		}

		if c.poller != nil {
			idle := time.Since(c.lastCall)
			if reached, _ := c.poller.isIntervalReached(idle); reached {
				if err := c.performKeepalive(); err != nil {
					c.fail(err)
					return err
				}
				c.poller.advance()
				continue
			}
		}

		select {
		case <-c.stopCh:
			return nil
		case <-c.notify:
		case <-ticker.C:
		}
	}
}

// Err returns the error that ended Run, if any.
func (c *Client) Err() error {
	c.runErrMu.Lock()
	defer c.runErrMu.Unlock()
	return c.runErr
}

func (c *Client) fail(err error) {
	c.runErrMu.Lock()
	c.runErr = err
	c.runErrMu.Unlock()
	c.log.WithError(err).Debug("comform: client session ending")
	c.closeOnce.Do(func() {
		close(c.stopCh)
		_ = c.adapter.Close()
	})
}

// handshake exchanges the command-context identifier: the client reads the
// handler's line first, then sends its own. A mismatch closes the
// connection and reports ErrIncompatible.
func (c *Client) handshake() error {
	line, err := c.adapter.RecvLine(c.maxLineBytes, c.timeout)
	if err != nil {
		return err
	}
	if err := c.adapter.Send([]byte(c.contextID + "\n")); err != nil {
		return err
	}
	if string(line) != c.contextID {
		_ = c.adapter.Close()
		return ErrIncompatible
	}
	return nil
}

// Execute enqueues a call and blocks until it completes, ctx is cancelled,
// or the session closes.
func (c *Client) Execute(ctx context.Context, name string, pos []any, kw map[string]any, priority int) (any, error) {
	id, err := c.enqueue(name, pos, kw, priority)
	if err != nil {
		return nil, err
	}
	return c.waitWithContext(ctx, id)
}

// ExecuteAsync enqueues a call and returns its id immediately, without
// waiting for completion. Use TryResponse or WaitResponse to retrieve it.
func (c *Client) ExecuteAsync(name string, pos []any, kw map[string]any, priority int) (string, error) {
	return c.enqueue(name, pos, kw, priority)
}

// TryResponse returns the result of call id if it is already available,
// without blocking. ok is false if the call is unknown or still pending.
func (c *Client) TryResponse(id string) (value any, err error, ok bool) {
	resp, ok := c.responses.tryTake(id)
	if !ok {
		return nil, nil, false
	}
	return resp.value, resp.err, true
}

// WaitResponse blocks until call id completes or deadline passes (a zero
// deadline means no timeout).
func (c *Client) WaitResponse(id string, deadline time.Time) (any, error) {
	resp, err := c.responses.waitTake(id, deadline)
	if err != nil {
		return nil, err
	}
	return resp.value, resp.err
}

// waitWithContext blocks on the response table, additionally racing ctx's
// cancellation when ctx carries a deadline or cancel func.
func (c *Client) waitWithContext(ctx context.Context, id string) (any, error) {
	if ctx == nil || ctx.Done() == nil {
		resp, err := c.responses.waitTake(id, time.Time{})
		if err != nil {
			return nil, err
		}
		return resp.value, resp.err
	}
	deadline, _ := ctx.Deadline()
	type outcome struct {
		resp response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := c.responses.waitTake(id, deadline)
		done <- outcome{resp, err}
	}()
	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		return o.resp.value, o.resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) enqueue(name string, pos []any, kw map[string]any, priority int) (string, error) {
	select {
	case <-c.stopCh:
		return "", ErrSessionClosed
	default:
	}
	id := uuid.NewString()
	c.responses.register(id)

	c.mu.Lock()
	if c.queue.full() {
		c.mu.Unlock()
		return "", pkgerrors.New("comform: call queue full")
	}
	c.seq++
	c.queue.push(&callRecord{
		id: id, priority: priority, seq: c.seq,
		commandName: name, returnMode: commanding.ModeReply, errorMode: commanding.ModeReply,
		posArgs: pos, kwArgs: kw,
	})
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return id, nil
}

func (c *Client) dequeue() (*callRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.pop()
}

// performCall runs the request/ack preamble and then one full form exchange
// for rec, delivering its outcome to the response table.
func (c *Client) performCall(rec *callRecord) error {
	call, err := commanding.NewCall(rec.commandName, rec.returnMode, rec.errorMode, rec.posArgs, rec.kwArgs, c.codec)
	if err != nil {
		c.responses.deliver(rec.id, response{err: err})
		return nil
	}

	if err := c.requestPreamble(); err != nil {
		return err
	}
	if err := c.sender.Send(call.Form()); err != nil {
		return err
	}

	reply, err := c.receiver.Receive()
	if err != nil {
		return err
	}
	c.lastCall = time.Now()

	switch reply.Title {
	case commanding.TitleReturn:
		rf, perr := commanding.ParseResult(reply)
		if perr != nil {
			c.responses.deliver(rec.id, response{err: perr})
			return nil
		}
		c.responses.deliver(rec.id, response{value: rf.Value})
	case commanding.TitleError:
		ef, perr := commanding.ParseError(reply)
		if perr != nil {
			c.responses.deliver(rec.id, response{err: perr})
			return nil
		}
		c.responses.deliver(rec.id, response{err: ef.Err})
	default:
		c.responses.deliver(rec.id, response{err: ErrMalformedForm})
	}
	return nil
}

// performKeepalive issues the built-in "time" command to keep the session
// alive through an otherwise idle period, discarding its result.
func (c *Client) performKeepalive() error {
	if err := c.requestPreamble(); err != nil {
		return err
	}
	call, err := commanding.NewCall("time", commanding.ModeReply, commanding.ModeReply, nil, nil, c.codec)
	if err != nil {
		return err
	}
	if err := c.sender.Send(call.Form()); err != nil {
		return err
	}
	if _, err := c.receiver.Receive(); err != nil {
		return err
	}
	c.lastCall = time.Now()
	return nil
}

// requestPreamble sends the literal line "request" and requires the literal
// line "ack" in response, the session-level signal that precedes every form
// exchange (distinct from form.Sender/Receiver's own per-step 3-byte acks).
func (c *Client) requestPreamble() error {
	if err := c.adapter.Send([]byte("request\n")); err != nil {
		return err
	}
	// The ack wait is unbounded, matching the original's send_request
	// (wait_line with no deadline): the handler is expected to already be
	// parked in its own indefinite wait for "request", so this is a
	// same-session round trip, not a peer-paced one worth timing out on.
	line, err := c.adapter.RecvLine(c.maxLineBytes, 0)
	if err != nil {
		return err
	}
	if string(line) != "ack" {
		return form.ErrProtocolViolation
	}
	return nil
}
