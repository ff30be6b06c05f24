// Package dispatch implements call_function/icall_function: invoking a
// registered function by handle with a heterogeneous,
// intent-string-described argument vector.
package dispatch

import (
	"fmt"
	"unicode"

	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/registry"
	"github.com/sarchlab/concom/window"
)

// Kind is one argument's calling role.
type Kind int

const (
	In Kind = iota
	Out
	InOut
	BoundSelf
)

// Token is one parsed intent-string entry: a kind plus whether the
// argument is optional (null is accepted and forwarded as null).
//
// In-out gets its own single character, 'x', so every argument costs
// exactly one rune and parsing needs no lookahead; see DESIGN.md for
// the full encoding rationale.
const (
	charIn        = 'i'
	charOut       = 'o'
	charInOut     = 'x'
	charBoundSelf = 'b'
)

type Token struct {
	Kind     Kind
	Optional bool
}

// ParseIntent parses a window.Function's Intent string into one Token
// per argument.
func ParseIntent(intent string) ([]Token, error) {
	tokens := make([]Token, 0, len(intent))
	for _, r := range intent {
		optional := unicode.IsUpper(r)
		c := unicode.ToLower(r)
		var kind Kind
		switch c {
		case charIn:
			kind = In
		case charOut:
			kind = Out
		case charInOut:
			kind = InOut
		case charBoundSelf:
			kind = BoundSelf
		default:
			return nil, errs.New(errs.InvalidArgument, "dispatch.parse_intent", fmt.Sprintf("unknown intent char %q", r))
		}
		tokens = append(tokens, Token{Kind: kind, Optional: optional})
	}
	return tokens, nil
}

// RequestID is returned by ICallFunction. The current contract is that
// async dispatch is semantically identical to the blocking call, so
// this is always 0.
type RequestID int

// Dispatcher resolves function handles against a registry and invokes
// them, wrapping every call with the registry's profiling bookkeeping.
type Dispatcher struct {
	reg *registry.Registry
}

// New creates a dispatcher bound to reg.
func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// CallFunction invokes the function named by handle. args has one
// element per non-bound-self argument in the function's intent string;
// a bound-self argument is resolved from the function record's Self
// data item and prepended automatically, so callers never pass it.
// lengths, if non-nil, gives the byte length of each string-view
// argument for languages that pass strings by reference.
func (d *Dispatcher) CallFunction(handle int, args []any, lengths []int) error {
	op := "dispatch.call_function"

	windowName, funcName, ok := d.reg.ResolveFunctionHandle(handle)
	if !ok {
		return errs.New(errs.NotFound, op, "stale or unknown function handle")
	}

	w, err := d.reg.GetWindow(windowName)
	if err != nil {
		return errs.Wrap(op, err)
	}
	f, err := w.GetFunction(funcName)
	if err != nil {
		return errs.Wrap(op, err)
	}

	tokens, err := ParseIntent(f.Intent)
	if err != nil {
		return errs.Wrap(op, err)
	}

	callArgs, err := d.buildArgs(op, f, tokens, args)
	if err != nil {
		return err
	}

	key := windowName + "." + funcName
	return d.reg.Call(key, func() error { return f.Entry(callArgs) })
}

func (d *Dispatcher) buildArgs(op string, f *window.Function, tokens []Token, args []any) ([]any, error) {
	callArgs := make([]any, 0, len(tokens))
	argIdx := 0
	for _, t := range tokens {
		if t.Kind == BoundSelf {
			if f.Self == nil {
				return nil, errs.New(errs.InvalidArgument, op, "function has no bound self data item")
			}
			callArgs = append(callArgs, f.Self)
			continue
		}
		if argIdx >= len(args) {
			if t.Optional {
				callArgs = append(callArgs, nil)
				continue
			}
			return nil, errs.New(errs.InvalidArgument, op, "too few arguments for intent string")
		}
		a := args[argIdx]
		argIdx++
		if a == nil && !t.Optional {
			return nil, errs.New(errs.InvalidArgument, op, "null passed for a non-optional argument")
		}
		callArgs = append(callArgs, a)
	}
	return callArgs, nil
}

// ICallFunction reserves a request id for a planned asynchronous mode.
// The current contract is that it behaves exactly like CallFunction;
// Wait and Test below are immediate.
func (d *Dispatcher) ICallFunction(handle int, args []any, lengths []int) (RequestID, error) {
	err := d.CallFunction(handle, args, lengths)
	return RequestID(0), err
}

// Wait blocks until id completes. Since ICallFunction is synchronous,
// this always returns immediately.
func (d *Dispatcher) Wait(id RequestID) error {
	return nil
}

// Test reports whether id has completed. Always true, for the same
// reason as Wait.
func (d *Dispatcher) Test(id RequestID) (bool, error) {
	return true, nil
}
