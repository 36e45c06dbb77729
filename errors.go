// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package comform

import (
	"errors"

	"code.hybscloud.com/comform/commanding"
	"code.hybscloud.com/comform/form"
	"code.hybscloud.com/comform/stream"
)

var (
	// ErrIncompatible reports a handshake command-context identifier mismatch.
	ErrIncompatible = errors.New("comform: incompatible command context")

	// ErrUnknownCommand reports a call whose command name is not registered.
	ErrUnknownCommand = errors.New("comform: unknown command")

	// ErrSessionClosed reports that a caller-initiated shutdown reached a
	// blocked caller.
	ErrSessionClosed = errors.New("comform: session closed")
)

// These are re-exported so a caller that only imports the root package can
// still match the full error taxonomy with errors.Is, without reaching into
// the lower-layer packages directly.
var (
	ErrTransport         = stream.ErrTransport
	ErrEndOfStream       = stream.ErrEndOfStream
	ErrTimeout           = stream.ErrTimeout
	ErrFrameOverflow     = stream.ErrFrameOverflow
	ErrNotConnected      = stream.ErrNotConnected
	ErrBodyCollision     = form.ErrBodyCollision
	ErrProtocolViolation = form.ErrProtocolViolation
	ErrMalformedForm     = commanding.ErrMalformedForm
)
