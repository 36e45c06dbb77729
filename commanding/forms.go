// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package commanding implements the three typed views over a raw form that
// the request/response exchange is built from: a call (command name plus
// positional and keyword arguments), a result, and an error.
package commanding

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"code.hybscloud.com/comform/appendix"
	"code.hybscloud.com/comform/form"
)

// Form titles that identify the three commanding form kinds.
const (
	TitleCommand = "COMMAND"
	TitleReturn  = "RETURN"
	TitleError   = "ERROR"
)

// Handling hints recognized for return_mode/error_mode. "reply" is the only
// defined value.
const ModeReply = "reply"

// CallForm is a command invocation.
type CallForm struct {
	CommandName string
	ReturnMode  string
	ErrorMode   string
	PosArgs     []any
	KwArgs      map[string]any

	raw *form.Form
}

// NewCall synthesizes a call form from a rich command invocation.
func NewCall(name, returnMode, errorMode string, pos []any, kw map[string]any, codec appendix.Codec) (*CallForm, error) {
	if pos == nil {
		pos = []any{}
	}
	if kw == nil {
		kw = map[string]any{}
	}
	body := strings.Join([]string{
		"command:" + name,
		"return_mode:" + returnMode,
		"error_mode:" + errorMode,
	}, "\n")
	value := map[string]any{"pos_args": pos, "kw_args": kw}
	f, err := form.New(TitleCommand, body, value, codec)
	if err != nil {
		return nil, err
	}
	return &CallForm{CommandName: name, ReturnMode: returnMode, ErrorMode: errorMode, PosArgs: pos, KwArgs: kw, raw: f}, nil
}

// ParseCall parses a received raw form as a call form.
func ParseCall(f *form.Form) (*CallForm, error) {
	if f.Title != TitleCommand {
		return nil, ErrMalformedForm
	}
	fields, err := parseBodyFields(f.Body)
	if err != nil {
		return nil, err
	}
	name, ok := fields["command"]
	if !ok {
		return nil, ErrMalformedForm
	}
	returnMode, ok := fields["return_mode"]
	if !ok {
		return nil, ErrMalformedForm
	}
	errorMode, ok := fields["error_mode"]
	if !ok {
		return nil, ErrMalformedForm
	}

	av, err := f.Appendix()
	if err != nil {
		return nil, err
	}
	m, ok := av.(map[string]any)
	if !ok {
		return nil, ErrMalformedForm
	}
	posRaw, ok := m["pos_args"]
	if !ok {
		return nil, ErrMalformedForm
	}
	pos, ok := posRaw.([]any)
	if !ok {
		return nil, ErrMalformedForm
	}
	kwRaw, ok := m["kw_args"]
	if !ok {
		return nil, ErrMalformedForm
	}
	kw, ok := kwRaw.(map[string]any)
	if !ok {
		return nil, ErrMalformedForm
	}

	return &CallForm{
		CommandName: strings.TrimSpace(name),
		ReturnMode:  returnMode,
		ErrorMode:   errorMode,
		PosArgs:     pos,
		KwArgs:      kw,
		raw:         f,
	}, nil
}

// Form returns the underlying raw form, ready to hand to a form.Sender.
func (c *CallForm) Form() *form.Form { return c.raw }

// ResultForm is a successful command reply.
type ResultForm struct {
	TypeTag string
	Value   any

	raw *form.Form
}

// NewResult synthesizes a result form carrying value.
func NewResult(value any, codec appendix.Codec) (*ResultForm, error) {
	tag := typeTag(value)
	body := "type:" + tag
	f, err := form.New(TitleReturn, body, map[string]any{"return": value}, codec)
	if err != nil {
		return nil, err
	}
	return &ResultForm{TypeTag: tag, Value: value, raw: f}, nil
}

// ParseResult parses a received raw form as a result form.
func ParseResult(f *form.Form) (*ResultForm, error) {
	if f.Title != TitleReturn {
		return nil, ErrMalformedForm
	}
	av, err := f.Appendix()
	if err != nil {
		return nil, err
	}
	m, ok := av.(map[string]any)
	if !ok {
		return nil, ErrMalformedForm
	}
	v, ok := m["return"]
	if !ok {
		return nil, ErrMalformedForm
	}
	fields, _ := parseBodyFields(f.Body)
	return &ResultForm{TypeTag: fields["type"], Value: v, raw: f}, nil
}

// Form returns the underlying raw form.
func (r *ResultForm) Form() *form.Form { return r.raw }

func typeTag(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}

// ErrorForm is a failed command reply.
type ErrorForm struct {
	Kind    string
	Message string
	Err     error

	raw *form.Form
}

// NewError synthesizes an error form from err. The message has ':' replaced
// with ';' and '\n' replaced with a space before sending; a sanitized
// message that would still be confused with the separation marker (i.e. it
// begins with separation followed only by digits) is rejected with
// ErrMalformedForm rather than silently transmitted.
func NewError(err error, separation string, codec appendix.Codec) (*ErrorForm, error) {
	if err == nil {
		return nil, ErrMalformedForm
	}
	kind := errorKind(err)
	message := sanitizeMessage(err.Error())
	if looksLikeMarker(message, separation) {
		return nil, ErrMalformedForm
	}
	body := "name:" + kind + "\n" + "message:" + message

	var f *form.Form
	var ferr error
	if codec != nil && codec.CanEncode(err) {
		f, ferr = form.New(TitleError, body, map[string]any{"error": err}, codec)
	} else {
		f, ferr = form.NewEmpty(TitleError, body)
	}
	if ferr != nil {
		return nil, ferr
	}
	return &ErrorForm{Kind: kind, Message: message, Err: err, raw: f}, nil
}

// ParseError parses a received raw form as an error form. If the appendix
// carries the original error it is reconstituted directly; otherwise a new
// error is synthesized from name and message via Synthesize.
func ParseError(f *form.Form) (*ErrorForm, error) {
	if f.Title != TitleError {
		return nil, ErrMalformedForm
	}
	fields, err := parseBodyFields(f.Body)
	if err != nil {
		return nil, err
	}
	name, ok := fields["name"]
	if !ok {
		return nil, ErrMalformedForm
	}
	message, ok := fields["message"]
	if !ok {
		return nil, ErrMalformedForm
	}

	var reconstructed error
	if len(f.AppendixBytes()) > 0 {
		av, derr := f.Appendix()
		if derr != nil {
			return nil, derr
		}
		m, ok := av.(map[string]any)
		if !ok {
			return nil, ErrMalformedForm
		}
		carried, ok := m["error"]
		if !ok {
			return nil, ErrMalformedForm
		}
		if e, ok := carried.(error); ok {
			reconstructed = e
		} else {
			reconstructed = Synthesize(name, message)
		}
	} else {
		reconstructed = Synthesize(name, message)
	}
	return &ErrorForm{Kind: name, Message: message, Err: reconstructed, raw: f}, nil
}

// Form returns the underlying raw form.
func (e *ErrorForm) Form() *form.Form { return e.raw }

func sanitizeMessage(s string) string {
	s = strings.ReplaceAll(s, ":", ";")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

func looksLikeMarker(message, separation string) bool {
	if separation == "" || !strings.HasPrefix(message, separation) {
		return false
	}
	suffix := message[len(separation):]
	if suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseBodyFields(body string) (map[string]string, error) {
	fields := map[string]string{}
	if body == "" {
		return fields, nil
	}
	for _, line := range strings.Split(body, "\n") {
		if strings.Count(line, ":") != 1 {
			return nil, ErrMalformedForm
		}
		idx := strings.IndexByte(line, ':')
		fields[line[:idx]] = line[idx+1:]
	}
	return fields, nil
}

// Equal reports whether two raw forms are structurally equal: same title,
// the same set of body lines (order-independent), and deep-equal decoded
// appendix values.
func Equal(a, b *form.Form) (bool, error) {
	if a.Title != b.Title {
		return false, nil
	}
	la := append([]string(nil), a.Lines()...)
	lb := append([]string(nil), b.Lines()...)
	sort.Strings(la)
	sort.Strings(lb)
	if !reflect.DeepEqual(la, lb) {
		return false, nil
	}
	va, err := a.Appendix()
	if err != nil {
		return false, err
	}
	vb, err := b.Appendix()
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(va, vb), nil
}
