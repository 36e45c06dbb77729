// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package comform

import (
	"time"

	"github.com/mitchellh/mapstructure"
	pkgerrors "github.com/pkg/errors"
)

// CommandContext is the handle a dispatched command receives; it exposes
// whatever the handler's environment needs a command to see without letting
// the command reach into Handler internals directly.
type CommandContext struct {
	contextID string
}

// ContextID returns the command-context identifier the session negotiated at
// handshake time.
func (c *CommandContext) ContextID() string { return c.contextID }

// Now returns the current time as a Unix timestamp with sub-second
// precision, the shape the wire protocol's "time" appendix value travels as.
func (c *CommandContext) Now() float64 { return float64(time.Now().UnixNano()) / 1e9 }

// CommandFunc is a registered command's implementation: pos and kw are the
// call's positional and keyword arguments, decoded off the wire exactly as
// the appendix codec produced them (so kw's values are the codec's own
// primitive types, not yet coerced to anything Go-specific).
type CommandFunc func(ctx *CommandContext, pos []any, kw map[string]any) (any, error)

// Registry maps command names to implementations. The zero value is not
// usable; construct with NewRegistry.
type Registry struct {
	commands map[string]CommandFunc
}

// NewRegistry returns a Registry pre-populated with the built-in "time"
// command, which every session exposes for keepalive polling and as a
// trivial reachability probe.
func NewRegistry() *Registry {
	r := &Registry{commands: map[string]CommandFunc{}}
	r.Register("time", func(ctx *CommandContext, _ []any, _ map[string]any) (any, error) {
		return ctx.Now(), nil
	})
	return r
}

// Register binds name to fn, replacing any existing binding.
func (r *Registry) Register(name string, fn CommandFunc) {
	r.commands[name] = fn
}

// RegisterTyped binds name to a command implementation whose keyword
// arguments are decoded from the call's kw_args map into a caller-defined
// struct via mapstructure, so command bodies can work with typed fields
// instead of a raw map[string]any.
func RegisterTyped[T any](r *Registry, name string, fn func(ctx *CommandContext, pos []any, args T) (any, error)) {
	r.Register(name, func(ctx *CommandContext, pos []any, kw map[string]any) (any, error) {
		var args T
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &args,
			WeaklyTypedInput: true,
			TagName:          "comform",
		})
		if err != nil {
			return nil, pkgerrors.Wrap(err, "build kw_args decoder")
		}
		if err := dec.Decode(kw); err != nil {
			return nil, pkgerrors.Wrap(err, "decode kw_args")
		}
		return fn(ctx, pos, args)
	})
}

// Lookup returns the command bound to name, or ErrUnknownCommand.
func (r *Registry) Lookup(name string) (CommandFunc, error) {
	fn, ok := r.commands[name]
	if !ok {
		return nil, ErrUnknownCommand
	}
	return fn, nil
}
