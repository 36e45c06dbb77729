// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package form

import "errors"

var (
	// ErrInvalidForm reports a form with no non-whitespace title, or a title
	// spanning more than one line. New also returns it for a nil codec, and
	// Sender.Send for a form whose body and encoded appendix are both empty.
	ErrInvalidForm = errors.New("form: invalid form")

	// ErrBodyCollision reports a body line that begins with the separation
	// string while the sender was constructed with adjustBody disabled.
	ErrBodyCollision = errors.New("form: body collides with separation string")

	// ErrInvalidSeparation reports a separation string that is empty or
	// spans more than one line.
	ErrInvalidSeparation = errors.New("form: invalid separation string")

	// ErrProtocolViolation reports that the peer's per-step acknowledgement
	// was not the literal three-byte token "ack". The session engine also
	// returns it when a "request" or "ack" control line is not as expected.
	ErrProtocolViolation = errors.New("form: protocol violation")
)
