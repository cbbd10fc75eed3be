// Package simerr defines the substrate's fixed error taxonomy.
//
// Fatal kinds (HashMismatch, SchemaVersionUnsupported, SchemaInvalid,
// DuplicateModule, ConflictingTaskRegistration, RunawayEventFanout) abort the
// current operation without partial mutation. InvalidCommand/InvalidEvent are
// rejected deterministically at ingest with no mutation. NotApplicable is a
// semantic rejection a rule module raises itself; the substrate never returns
// it directly.
package simerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds named in the spec's error handling design.
type Kind string

const (
	HashMismatch                Kind = "HashMismatch"
	SchemaVersionUnsupported    Kind = "SchemaVersionUnsupported"
	SchemaInvalid                Kind = "SchemaInvalid"
	DuplicateModule              Kind = "DuplicateModule"
	ConflictingTaskRegistration  Kind = "ConflictingTaskRegistration"
	RunawayEventFanout           Kind = "RunawayEventFanout"
	InvalidCommand                Kind = "InvalidCommand"
	InvalidEvent                  Kind = "InvalidEvent"
	NotApplicable                 Kind = "NotApplicable"
)

// Error wraps a Kind with context. Use simerr.Is(err, simerr.HashMismatch)
// or errors.As to recover the Kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err (or anything it wraps) carries this Kind. It lets
// callers write errors.Is(err, simerr.New(simerr.HashMismatch, "")) style
// checks, but the idiomatic form is simerr.Is(err, simerr.HashMismatch).
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Kind == e.Kind
}

// New constructs an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an *Error of the given kind wrapping err.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is a *Error of the given kind, anywhere in its chain.
func Is(err error, kind Kind) bool {
	var se *Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind == kind
}
