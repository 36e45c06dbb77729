// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package appendix

import (
	"bytes"
	"encoding/gob"
	"reflect"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Binary is the rich binary codec: a language-native format that can encode
// anything the runtime can reflect over, grounded on the role the reference
// implementation's pickle-based encoder plays (the one codec that can carry
// an exception value itself rather than just its name and message).
//
// Because gob needs every concrete type flowing through an interface field
// registered ahead of time, callers that encode their own types through
// Binary must call Register once per process for each such type.
var Binary Codec = binaryCodec{}

type binaryCodec struct{}

// envelope carries the encoded value through gob's interface-field
// requirement: the dynamic type of V must have been registered.
type envelope struct {
	V any
}

// wireError is the concrete, registered stand-in for an arbitrary Go error
// value: gob cannot encode most error implementations directly since their
// concrete types are commonly unexported, so Binary normalizes an error
// passed to Encode, or held directly as a value of a map[string]any passed
// to Encode, into this shape before encoding.
type wireError struct {
	Kind    string
	Message string
}

func (e wireError) Error() string { return e.Message }

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(wireError{})
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(string(""))
	gob.Register(bool(false))
}

// Register makes a custom concrete type usable as (or inside) a Binary
// appendix value. It must be called once per process per type before any
// Encode/Decode call that carries a value of that type.
func Register(value any) {
	gob.Register(value)
}

func (binaryCodec) Encode(v any) ([]byte, error) {
	if err, ok := v.(error); ok {
		if _, isWire := v.(wireError); !isWire {
			v = wireError{Kind: reflect.TypeOf(err).String(), Message: err.Error()}
		}
	}
	if m, ok := v.(map[string]any); ok {
		nm := make(map[string]any, len(m))
		for k, e := range m {
			if err, isErr := e.(error); isErr {
				if _, isWire := e.(wireError); !isWire {
					e = wireError{Kind: reflect.TypeOf(err).String(), Message: err.Error()}
				}
			}
			nm[k] = e
		}
		v = nm
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&envelope{V: v}); err != nil {
		return nil, pkgerrors.Wrap(ErrEncode, err.Error())
	}
	return buf.Bytes(), nil
}

func (binaryCodec) Decode(b []byte) (any, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return []any{}, nil
	}
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&env); err != nil {
		return nil, pkgerrors.Wrap(ErrDecode, err.Error())
	}
	return env.V, nil
}

func (binaryCodec) CanEncode(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return false
	default:
		return true
	}
}
