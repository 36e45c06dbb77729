// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package comform

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"code.hybscloud.com/comform/appendix"
	"code.hybscloud.com/comform/internal/transport"
	"code.hybscloud.com/comform/stream"
)

const (
	defaultSeparation   = "$separation$"
	defaultTimeout      = 10 * time.Second
	defaultQueueSize    = 10
	defaultMaxLineBytes = 1024
	defaultContextID    = "comform/1"
)

// options collects the tunables shared by Client and Handler. Build one with
// the With* functions and pass it to NewClient/NewHandler.
type options struct {
	separation   string
	timeout      time.Duration
	queueSize    int
	maxLineBytes int
	contextID    string
	codec        appendix.Codec
	registry     *Registry
	poll         IntervalGenerator
	log          *logrus.Entry
	packet       bool
	packetOpts   []transport.Option
}

func defaultOptions() *options {
	return &options{
		separation:   defaultSeparation,
		timeout:      defaultTimeout,
		queueSize:    defaultQueueSize,
		maxLineBytes: defaultMaxLineBytes,
		contextID:    defaultContextID,
		codec:        appendix.Textual,
		registry:     NewRegistry(),
	}
}

// Option configures a Client or Handler.
type Option func(*options)

// WithSeparation overrides the marker separation string (default "$separation$").
func WithSeparation(s string) Option { return func(o *options) { o.separation = s } }

// WithTimeout overrides the per-step I/O deadline (default 10s).
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithQueueSize overrides the client's bounded call queue capacity (default
// 10). A non-positive value means unbounded.
func WithQueueSize(n int) Option { return func(o *options) { o.queueSize = n } }

// WithMaxLineBytes overrides the per-line ceiling enforced while receiving a
// form (default 1024).
func WithMaxLineBytes(n int) Option { return func(o *options) { o.maxLineBytes = n } }

// WithContextID overrides the command-context identifier exchanged at
// handshake time (default "comform/1"). Both peers must agree on this value.
func WithContextID(id string) Option { return func(o *options) { o.contextID = id } }

// WithCodec overrides the appendix codec (default appendix.Textual).
func WithCodec(c appendix.Codec) Option { return func(o *options) { o.codec = c } }

// WithRegistry overrides the command registry a Handler dispatches against
// (default NewRegistry(), the built-in "time" command only). Unused by
// Client.
func WithRegistry(r *Registry) Option { return func(o *options) { o.registry = r } }

// WithPoller enables idle-keepalive polling on a Client using gen to produce
// successive wait intervals. Unused by Handler. Disabled by default.
func WithPoller(gen IntervalGenerator) Option { return func(o *options) { o.poll = gen } }

// WithLogger overrides the structured logger (default: discards all output).
func WithLogger(l *logrus.Entry) Option { return func(o *options) { o.log = l } }

// WithPacketTransport marks the underlying net.Conn as boundary-preserving
// (UDP, SCTP, WebSocket) rather than a true byte stream, so NewClient and
// NewHandler route it through internal/transport's pass-through mode before
// handing it to the stream adapter (see stream.NewPacket). opts configure
// the per-network protocol/byte-order defaults (transport.WithProtocol,
// transport.WithReadByteOrder, and so on); the default is
// transport.SeqPacket, which fits SCTP and WebSocket conns. A true stream
// transport (TCP, Unix stream, net.Pipe) does not need this option; over
// such a conn the pass-through mode forwards each Read and Write unchanged.
func WithPacketTransport(opts ...transport.Option) Option {
	return func(o *options) {
		o.packet = true
		o.packetOpts = opts
	}
}

// newAdapter builds the stream.Adapter NewClient/NewHandler bind to: a
// boundary-preserving conn (WithPacketTransport) is routed through
// internal/transport's pass-through mode first; a true byte-stream conn
// wraps conn directly.
func newAdapter(conn net.Conn, o *options) *stream.Adapter {
	if o.packet {
		return stream.NewPacket(conn, o.packetOpts...)
	}
	return stream.New(conn)
}
