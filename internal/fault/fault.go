// Package fault holds the error taxonomy shared by the checkout flow.
package fault

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure.
type Kind int

const (
	// KindNetwork is a transport failure talking to an upstream.
	KindNetwork Kind = iota
	// KindAuth is a failure obtaining a payment provider access token.
	KindAuth
	// KindSession is a failure creating a hosted payment session.
	KindSession
	// KindValidation is a missing or malformed input caught before any network call.
	KindValidation
	// KindUpstream is a back-office response with an unexpected status or shape.
	KindUpstream
	// KindNotification is a failed staff notification. Never surfaced to the customer.
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindSession:
		return "session"
	case KindValidation:
		return "validation"
	case KindUpstream:
		return "upstream"
	case KindNotification:
		return "notification"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the concrete error type. Op names the failing operation (or the
// offending field for validation errors), StatusCode carries the upstream
// HTTP status when one was received.
type Error struct {
	Kind       Kind
	Op         string
	Message    string
	StatusCode int
	Cause      error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrAuth         = &Error{Kind: KindAuth}
	ErrSession      = &Error{Kind: KindSession}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrUpstream     = &Error{Kind: KindUpstream}
	ErrNotification = &Error{Kind: KindNotification}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Cause == nil && t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// Wrap builds an error of the given kind around cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// WithStatus records the upstream HTTP status on e and returns it.
func (e *Error) WithStatus(code int) *Error {
	e.StatusCode = code
	return e
}

// Validation reports a missing or malformed field.
func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Op: field, Message: msg}
}

// KindOf extracts the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}
