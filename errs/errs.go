// Package errs defines the typed error taxonomy shared by every concom
// package. Every public operation in the registry, data item, pane,
// window, dispatcher, pane communicator, overlay and transfer packages
// returns errors built with Wrap, so that a failure carries the chain of
// window.dataitem / operation names that produced it.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the taxonomy of error kinds the runtime reports. It names a
// class of failure, not a specific message.
type Kind int

const (
	// NotFound covers an unknown window, data item, function or pane id.
	NotFound Kind = iota
	// NameInUse covers double-registration of a name.
	NameInUse
	// NotInitialized covers a data item whose size was never set, or a
	// read against a null buffer.
	NotInitialized
	// AlreadyInitialized covers reinitializing a non-parent view.
	AlreadyInitialized
	// InvalidSize covers ghost > items, a negative count, or shrinking
	// below the real item count.
	InvalidSize
	// InvalidCapacity covers items > capacity once a window is done
	// initializing.
	InvalidCapacity
	// InvalidArgument covers a wrong location/type/component count or a
	// mismatched intent string.
	InvalidArgument
	// IncompatibleTypes covers copy/inherit across types that do not
	// share representation.
	IncompatibleTypes
	// PaneNotExist covers use of pane 0 where only non-dummy panes are
	// allowed, or a deleted pane id.
	PaneNotExist
	// DataItemNotExist covers a deleted or never-registered data item id.
	DataItemNotExist
	// ConstViolation covers a write to a const-marked data item.
	ConstViolation
	// AllocStructured covers an attempt to allocate connectivity on a
	// structured mesh.
	AllocStructured
	// GhostLayers covers a structured inherit requested without ghost
	// layers when the source has them.
	GhostLayers
	// OverlayDivergence covers an overlay phase that walks off the
	// surface or fails to close.
	OverlayDivergence
	// TransferDivergence covers a conjugate-gradient solve that exceeded
	// its iteration cap.
	TransferDivergence
	// ConnectionFailure covers a pane communicator port that could not
	// accept an outgoing ghost update or shared-node contribution
	// because its transport buffer was full.
	ConnectionFailure
)

var kindNames = [...]string{
	"NotFound", "NameInUse", "NotInitialized", "AlreadyInitialized",
	"InvalidSize", "InvalidCapacity", "InvalidArgument", "IncompatibleTypes",
	"PaneNotExist", "DataItemNotExist", "ConstViolation", "AllocStructured",
	"GhostLayers", "OverlayDivergence", "TransferDivergence", "ConnectionFailure",
}

// String returns the kind's name.
func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error is a typed, traceable error. Op is the dotted operation name
// (e.g. "W.field.set_size") that was being performed when the failure
// was first detected or rewrapped.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap exposes the wrapped error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new error of the given kind for the given operation.
func New(kind Kind, op string, msg string) error {
	var err error
	if msg != "" {
		err = errors.New(msg)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrap attaches an operation name to an existing error, preserving its
// kind if it is already a *Error; otherwise it is wrapped with Kind
// NotFound, keeping the original error visible via Unwrap.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return &Error{Kind: ce.Kind, Op: op + " > " + ce.Op, Err: ce.Err}
	}
	return &Error{Kind: NotFound, Op: op, Err: err}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// Trace renders the full operation chain that produced err, for
// get_last_error in error-code mode and for the exception payload in
// exception mode.
func Trace(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
