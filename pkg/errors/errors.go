// Package errors provides structured errors with a stable error code
// taxonomy and attachable key/value fields. Every error produced by this
// library carries exactly one Code so callers can branch on failure class
// without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Code classifies a failure.
type Code int

const (
	// Validation indicates bad caller input: malformed arguments, an
	// unknown tool name, a schema mismatch.
	Validation Code = iota

	// Config indicates a setup or deployment mistake: a duplicate
	// descriptor, a missing constructor. Fail fast at startup.
	Config

	// Provider indicates an external generation or embedding service
	// failed or timed out. Transient; callers may retry.
	Provider

	// Execution indicates a tool's own logic raised a domain error.
	Execution

	// Unexpected is anything uncategorized. Treated as a bug.
	Unexpected
)

// String returns the canonical name of the code.
func (c Code) String() string {
	switch c {
	case Validation:
		return "validation"
	case Config:
		return "config"
	case Provider:
		return "provider"
	case Execution:
		return "execution"
	default:
		return "unexpected"
	}
}

// Fields holds structured context attached to an error.
type Fields map[string]any

// Error is the concrete error type used throughout the library.
type Error struct {
	code   Code
	msg    string
	fields Fields
	cause  error
}

// New creates an Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates an existing error with a code and message. A nil err
// returns nil.
func Wrap(err error, code Code, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{code: code, msg: msg, cause: err}
}

// WithFields attaches structured fields to err. If err is not an *Error it
// is wrapped as Unexpected first.
func WithFields(err error, fields Fields) *Error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if !ok {
		e = Wrap(err, Unexpected, err.Error())
	}
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Error{code: e.code, msg: e.msg, fields: merged, cause: e.cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.msg)
	if len(e.fields) > 0 {
		keys := make([]string, 0, len(e.fields))
		for k := range e.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.fields[k])
		}
		b.WriteString(")")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Code returns the error's classification.
func (e *Error) Code() Code { return e.code }

// Message returns the message without fields or cause.
func (e *Error) Message() string { return e.msg }

// Fields returns the structured fields attached to the error.
func (e *Error) Fields() Fields { return e.fields }

// CodeOf extracts the Code from err, walking the wrap chain. Errors that do
// not carry a code report Unexpected.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.code
	}
	return Unexpected
}

// Is reports whether any error in err's chain carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.code == code
	}
	return false
}
