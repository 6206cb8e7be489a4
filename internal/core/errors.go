package core

import (
	"errors"
	"fmt"
)

// Code classifies a ledger failure. Every failure path maps to exactly one
// code; codes are never coerced into one another.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeInvalidSpec       Code = "INVALID_SPEC"
	CodeBidTooLow         Code = "BID_TOO_LOW"
	CodeIncrementTooSmall Code = "INCREMENT_TOO_SMALL"
	CodeSoldOut           Code = "SOLD_OUT"
	CodeNoTicketsSold     Code = "NO_TICKETS_SOLD"
	CodeConflict          Code = "CONFLICT"
)

// Error is the error type returned by ledger and store operations.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Errf builds an Error with a formatted message.
func Errf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying cause.
func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// CodeOf returns the code carried by err, or the empty code when err does
// not originate from a ledger operation.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
