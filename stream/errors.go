// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream

import "errors"

var (
	// ErrNotConnected means a send was attempted on an already-closed stream.
	ErrNotConnected = errors.New("stream: not connected")

	// ErrTransport reports a lower-layer I/O failure that is neither a clean
	// close nor a deadline expiry.
	ErrTransport = errors.New("stream: transport error")

	// ErrEndOfStream means the stream closed before the requested bytes arrived.
	ErrEndOfStream = errors.New("stream: end of stream")

	// ErrTimeout means the overall deadline for a blocking read elapsed.
	ErrTimeout = errors.New("stream: timeout")

	// ErrFrameOverflow means a RecvUntil scan exceeded its byte ceiling
	// without finding the sentinel.
	ErrFrameOverflow = errors.New("stream: frame overflow")
)
