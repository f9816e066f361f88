// Package wfderr defines the error taxonomy shared across the source's
// components: a small, closed set of causes that every component-level
// operation reduces its failures to, so callers at any boundary (RTSP
// status lines, operator D-Bus replies, log fields) can switch on one
// type instead of parsing error strings.
package wfderr

import (
	"errors"
	"fmt"
)

// Code is one of the fixed failure categories a component operation can
// report. The zero value, CodeNone, is not an error.
type Code uint8

const (
	CodeNone Code = iota
	CodeFailed
	CodeAlready
	CodeParamInvalid
	CodeInvalidState
	CodeNotConnected
	CodeNotReady
	CodeInProgress
	CodeTimeout
	CodeRemoteClosedConnection
)

func (c Code) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeFailed:
		return "failed"
	case CodeAlready:
		return "already"
	case CodeParamInvalid:
		return "param_invalid"
	case CodeInvalidState:
		return "invalid_state"
	case CodeNotConnected:
		return "not_connected"
	case CodeNotReady:
		return "not_ready"
	case CodeInProgress:
		return "in_progress"
	case CodeTimeout:
		return "timeout"
	case CodeRemoteClosedConnection:
		return "remote_closed_connection"
	default:
		return fmt.Sprintf("wfderr.Code(%d)", uint8(c))
	}
}

// Error pairs a Code with an optional wrapped cause and, for the RTSP
// boundary, an RTSP status code a session can write back on the wire.
type Error struct {
	Code        Code
	Op          string
	RTSPStatus  int
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

// codeEquals backs the package-level Is helper below; Code itself does
// not implement error, so errors.Is cannot compare against a Code.
func (e *Error) codeEquals(c Code) bool { return e.Code == c }

// New builds an *Error for the given code and op, optionally wrapping
// cause. RTSPStatus is always set from the code's default mapping (500
// for codes without a narrower one), whether or not the error ever
// crosses the RTSP boundary.
func New(code Code, op string, cause error) *Error {
	return &Error{Code: code, Op: op, RTSPStatus: rtspStatusFor(code), Cause: cause}
}

// WithStatus overrides the default RTSP status mapping, for the few
// operations that need a more specific status than the code's default.
func (e *Error) WithStatus(status int) *Error {
	e.RTSPStatus = status
	return e
}

// Is reports whether err carries the given Code, unwrapping as needed.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.codeEquals(code)
	}
	return false
}

// CodeOf extracts the Code carried by err, or CodeFailed if err is not
// a *Error (a defensive default — every component boundary is expected
// to only ever return *Error, so this only triggers on a programming
// mistake elsewhere).
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if err == nil {
		return CodeNone
	}
	return CodeFailed
}

// rtspStatusFor gives each code its default RTSP status line per the
// usual WFD source profile. Individual call sites override via
// WithStatus when a narrower status applies.
func rtspStatusFor(code Code) int {
	switch code {
	case CodeNone:
		return 200
	case CodeParamInvalid:
		return 400
	case CodeInvalidState, CodeNotReady:
		return 455
	case CodeNotConnected, CodeRemoteClosedConnection:
		return 454
	case CodeTimeout:
		return 504
	case CodeAlready, CodeInProgress:
		return 400
	default:
		return 500
	}
}
