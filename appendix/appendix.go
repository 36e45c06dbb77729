// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package appendix implements the pluggable appendix codec: encode/decode an
// arbitrary structured value to a byte blob, and advertise up front whether a
// given value is encodable at all.
//
// Two implementations are provided. Textual is a portable, UTF-8 structured
// format that supports the universal set of primitive, sequence, and mapping
// values but never encodes Go error values. Binary is a rich, language-native
// format that can encode anything the runtime can reflect over, including
// errors, at the cost of only round-tripping between Go peers.
package appendix

import "errors"

var (
	// ErrEncode reports that a value could not be encoded by the chosen codec.
	ErrEncode = errors.New("appendix: encode error")

	// ErrDecode reports that a byte blob could not be decoded by the chosen codec.
	ErrDecode = errors.New("appendix: decode error")
)

// Codec encodes and decodes appendix values. Implementations are stateless
// and safe for concurrent use.
type Codec interface {
	// Encode turns v into its wire representation.
	Encode(v any) ([]byte, error)

	// Decode turns a wire representation back into a value. By convention an
	// empty or whitespace-only input decodes to an empty ordered sequence.
	Decode(b []byte) (any, error)

	// CanEncode reports whether v is a value this codec can round-trip.
	CanEncode(v any) bool
}
