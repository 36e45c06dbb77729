// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package commanding

import (
	"reflect"
	"strings"
	"sync"
)

// Kinded lets a user-defined error report its own exception kind string
// instead of falling back to its reflected type name.
type Kinded interface {
	Kind() string
}

// NamedError is the error synthesized on receipt of an error form whose
// appendix does not carry the original exception and whose kind is not
// registered: it preserves name and message without attempting to recreate
// the original type.
type NamedError struct {
	Kind    string
	Message string
}

func (e *NamedError) Error() string { return e.Kind + ": " + e.Message }

var (
	exceptionKindsMu sync.RWMutex
	exceptionKinds   = map[string]func(message string) error{}
)

// RegisterErrorKind binds a kind string (as carried on the wire in an error
// form's "name" field) to a constructor, so a received error form of that
// kind reconstructs into a caller-meaningful Go error type rather than the
// generic NamedError. This is the explicit allow-list the handshake's
// command-context identifier presumes both peers share.
func RegisterErrorKind(kind string, make func(message string) error) {
	exceptionKindsMu.Lock()
	defer exceptionKindsMu.Unlock()
	exceptionKinds[kind] = make
}

// Synthesize reconstructs an error from a kind+message pair, consulting the
// registry first and falling back to NamedError.
func Synthesize(kind, message string) error {
	exceptionKindsMu.RLock()
	make, ok := exceptionKinds[kind]
	exceptionKindsMu.RUnlock()
	if ok {
		return make(message)
	}
	return &NamedError{Kind: kind, Message: message}
}

// errorKind derives the wire "name" field for an error value: a Kinded
// error reports its own kind, otherwise the reflected type name is used
// (with any pointer indirection and package path stripped).
func errorKind(err error) string {
	if k, ok := err.(Kinded); ok {
		return k.Kind()
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return "Error"
	}
	name := t.Name()
	if name == "" {
		return "Error"
	}
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}
