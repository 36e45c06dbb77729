// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package appendix

import (
	"encoding/json"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Textual is the portable textual codec: structured text over UTF-8,
// grounded on the JSON encoding the reference implementation itself uses for
// its portable appendix format. It supports the universal set of primitive,
// sequence, and mapping values and deliberately cannot encode Go error
// values — CanEncode reports false for them so the error form falls back to
// carrying name+message only.
var Textual Codec = textualCodec{}

type textualCodec struct{}

func (textualCodec) Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, pkgerrors.Wrap(ErrEncode, err.Error())
	}
	return b, nil
}

func (textualCodec) Decode(b []byte) (any, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return []any{}, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, pkgerrors.Wrap(ErrDecode, err.Error())
	}
	return v, nil
}

func (textualCodec) CanEncode(v any) bool {
	if _, ok := v.(error); ok {
		return false
	}
	_, err := json.Marshal(v)
	return err == nil
}
