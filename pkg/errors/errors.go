package errors

import (
	"fmt"
)

// Error is a client-facing proxy failure: status code, reason phrase, a
// longer explanation, and the offending cause.
type Error struct {
	Code  int
	Short string
	Long  string
	cause string
}

func New(code int, short, long string) *Error {
	return &Error{
		Code:  code,
		Short: short,
		Long:  long,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("error: code = %d short = %s cause = %s", e.Code, e.Short, e.cause)
}

func (e *Error) WithCause(cause string) *Error {
	e.cause = cause
	return e
}

func (e *Error) Cause() string {
	return e.cause
}
