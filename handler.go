// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package comform

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"code.hybscloud.com/comform/appendix"
	"code.hybscloud.com/comform/commanding"
	"code.hybscloud.com/comform/form"
	"code.hybscloud.com/comform/stream"
)

// Handler serves the callee side of a commanding session: it performs the
// handshake, then loops reading one call at a time, dispatching it against a
// Registry, and replying with a result or an error form.
type Handler struct {
	adapter   *stream.Adapter
	sender    *form.Sender
	receiver  *form.Receiver
	codec     appendix.Codec

	separation   string
	timeout      time.Duration
	maxLineBytes int
	contextID    string
	registry     *Registry
	log          *logrus.Entry

	closeOnce sync.Once
}

// NewHandler builds a Handler bound to conn.
func NewHandler(conn net.Conn, opts ...Option) (*Handler, error) {
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
	return &Handler{
		adapter:      adapter,
		sender:       sender,
		receiver:     receiver,
		codec:        o.codec,
		separation:   o.separation,
		timeout:      o.timeout,
		maxLineBytes: o.maxLineBytes,
		contextID:    o.contextID,
		registry:     o.registry,
		log:          logEntry(o.log),
	}, nil
}

// Close forcibly tears down the underlying connection, unblocking a Serve
// call parked in a read.
func (h *Handler) Close() error {
	h.closeOnce.Do(func() { _ = h.adapter.Close() })
	return nil
}

// Serve performs the handshake and then serves calls until a framing-layer
// error (including the peer closing the connection) ends the loop. A call
// that fails to parse, names an unregistered command, or whose
// implementation returns an error is replied to with an error form; none of
// those end the loop.
func (h *Handler) Serve() error {
	if err := h.handshake(); err != nil {
		h.log.WithError(err).Debug("comform: handshake failed")
		return err
	}

	for {
		// The wait for the next "request" token is unbounded: an idle
		// session with polling disabled must sit here indefinitely (spec
		// §4.E.2), matching the original's wait_request
		// (wait_string_until_character with no deadline). A forced
		// Close of the underlying stream is the only way to wake it.
		line, err := h.adapter.RecvLine(h.maxLineBytes, 0)
		if err != nil {
			h.log.WithError(err).Debug("comform: handler session ending")
			return err
		}
		if string(line) != "request" {
			return form.ErrProtocolViolation
		}
		if err := h.adapter.Send([]byte("ack\n")); err != nil {
			return err
		}

		f, err := h.receiver.Receive()
		if err != nil {
			h.log.WithError(err).Debug("comform: handler session ending")
			return err
		}

		reply := h.dispatch(f)
		if err := h.sender.Send(reply); err != nil {
			h.log.WithError(err).Debug("comform: handler session ending")
			return err
		}
	}
}

// handshake exchanges the command-context identifier: the handler sends its
// line first, then reads the client's. A mismatch closes the connection and
// reports ErrIncompatible.
func (h *Handler) handshake() error {
	if err := h.adapter.Send([]byte(h.contextID + "\n")); err != nil {
		return err
	}
	line, err := h.adapter.RecvLine(h.maxLineBytes, h.timeout)
	if err != nil {
		return err
	}
	if string(line) != h.contextID {
		_ = h.adapter.Close()
		return ErrIncompatible
	}
	return nil
}

// dispatch parses f as a call, looks up and invokes its command, and
// returns the reply form: a ResultForm on success, an ErrorForm for any
// failure along the way (parse, lookup, or command execution).
func (h *Handler) dispatch(f *form.Form) *form.Form {
	call, err := commanding.ParseCall(f)
	if err != nil {
		h.log.WithError(err).Debug("comform: malformed call")
		return h.errorReply(err)
	}

	fn, err := h.registry.Lookup(call.CommandName)
	if err != nil {
		h.log.WithField("command", call.CommandName).Debug("comform: unknown command")
		return h.errorReply(err)
	}

	ctx := &CommandContext{contextID: h.contextID}
	result, err := h.invoke(fn, ctx, call)
	if err != nil {
		h.log.WithError(err).WithField("command", call.CommandName).Debug("comform: command failed")
		return h.errorReply(err)
	}

	rf, err := commanding.NewResult(result, h.codec)
	if err != nil {
		h.log.WithError(err).Debug("comform: result encoding failed")
		return h.errorReply(err)
	}
	return rf.Form()
}

// invoke calls fn, converting a panic inside the command body into an error
// reply rather than letting it escape and tear down the whole session.
func (h *Handler) invoke(fn CommandFunc, ctx *CommandContext, call *commanding.CallForm) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in command %q: %v", call.CommandName, r)
		}
	}()
	return fn(ctx, call.PosArgs, call.KwArgs)
}

func (h *Handler) errorReply(cause error) *form.Form {
	ef, err := commanding.NewError(cause, h.separation, h.codec)
	if err != nil {
		ef, err = commanding.NewError(errors.New("comform: failed to encode error reply"), h.separation, h.codec)
		if err != nil {
			// Only reachable if the codec's CanEncode accepts the error
			// value but its Encode then fails on it.
			panic(err)
		}
	}
	return ef.Form()
}
