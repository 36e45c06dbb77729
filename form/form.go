// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package form implements the framed message ("Form") that all commanding
// traffic rides on: a title line, zero or more body lines, and a
// length-delimited appendix, sent with a per-step acknowledgement.
package form

import (
	"strings"

	"code.hybscloud.com/comform/appendix"
)

// Form is the unit of framed transport: a title, a body (joined with '\n'),
// and an appendix value carried alongside its immutable encoded bytes.
//
// A Form constructed by New has its value already encoded and decoded; a
// Form constructed by NewRaw (the receive path) decodes its appendix lazily,
// on first call to Appendix.
type Form struct {
	Title string
	Body  string

	codec   appendix.Codec
	encoded []byte
	value   any
	decoded bool
}

// New constructs a form from a title, a body, and a rich appendix value,
// encoding the value immediately. title must be non-empty after trimming
// whitespace and must not contain a newline.
func New(title, body string, value any, codec appendix.Codec) (*Form, error) {
	if strings.TrimSpace(title) == "" || strings.Contains(title, "\n") {
		return nil, ErrInvalidForm
	}
	if codec == nil {
		return nil, ErrInvalidForm
	}
	encoded, err := codec.Encode(value)
	if err != nil {
		return nil, err
	}
	return &Form{Title: title, Body: body, codec: codec, encoded: encoded, value: value, decoded: true}, nil
}

// NewEmpty constructs a form with no appendix at all (zero encoded bytes).
func NewEmpty(title, body string) (*Form, error) {
	if strings.TrimSpace(title) == "" || strings.Contains(title, "\n") {
		return nil, ErrInvalidForm
	}
	return &Form{Title: title, Body: body}, nil
}

// NewRaw constructs a form from a title, joined body, and the encoded
// appendix bytes exactly as received off the wire. The appendix is decoded
// lazily on first call to Appendix.
func NewRaw(title, body string, encoded []byte, codec appendix.Codec) *Form {
	return &Form{Title: title, Body: body, codec: codec, encoded: encoded}
}

// Appendix decodes (once) and returns the appendix value.
func (f *Form) Appendix() (any, error) {
	if f.decoded {
		return f.value, nil
	}
	if f.codec == nil {
		f.value, f.decoded = []any{}, true
		return f.value, nil
	}
	v, err := f.codec.Decode(f.encoded)
	if err != nil {
		return nil, err
	}
	f.value, f.decoded = v, true
	return v, nil
}

// AppendixBytes returns the immutable encoded appendix.
func (f *Form) AppendixBytes() []byte {
	return f.encoded
}

// Valid reports whether the form's title has at least one non-whitespace
// character and at least one of body or encoded appendix is non-empty.
func (f *Form) Valid() bool {
	if strings.TrimSpace(f.Title) == "" {
		return false
	}
	return f.Body != "" || len(f.encoded) > 0
}

// Lines splits Body on the line terminator. An empty body yields no lines.
func (f *Form) Lines() []string {
	if f.Body == "" {
		return nil
	}
	return strings.Split(f.Body, "\n")
}
