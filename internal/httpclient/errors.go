package httpclient

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindTransport: the request never produced an HTTP response.
	KindTransport Kind = "transport"
	// KindTimeout: the per-call deadline expired.
	KindTimeout Kind = "timeout"
	// KindApplication: the server answered with a non-2xx status.
	KindApplication Kind = "application"
	// KindDecode: a response declared JSON but could not be parsed.
	KindDecode Kind = "decode"
	// KindValidation: the request was rejected locally before being sent.
	KindValidation Kind = "validation"
)

// Error is the single error type returned across the HTTP boundary.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error (status=%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(err error) *Error {
	return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
}

// KindOf returns the kind of err, or "" when err did not come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
