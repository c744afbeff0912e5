package rest

import (
	"errors"
	"fmt"
)

// Sentinel errors for broad classification. Every *Error matches exactly one
// of them through errors.Is.
var (
	ErrConfiguration         = errors.New("invalid client configuration")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrTransportConstruction = errors.New("cannot construct transport request")
	ErrExecution             = errors.New("request execution failed")
)

// ErrorKind is a coarse-grained categorization for errors.
type ErrorKind string

const (
	KindConfiguration         ErrorKind = "configuration"
	KindInvalidRequest        ErrorKind = "invalid_request"
	KindTransportConstruction ErrorKind = "transport_construction"
	KindExecution             ErrorKind = "execution"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindTransportConstruction:
		return ErrTransportConstruction
	case KindExecution:
		return ErrExecution
	}
	return nil
}

// Error wraps an underlying error with operation context and a kind.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func newError(op string, kind ErrorKind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is the sentinel matching the error kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// IsKind helps callers classify errors without inspecting messages.
func IsKind(err error, kind ErrorKind) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}
