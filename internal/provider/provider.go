package provider

import "errors"

var (
	ErrMissingTokens = errors.New("response is missing tokens")
	ErrMissingUser   = errors.New("response is missing user")
	ErrUnexpected    = errors.New("unexpected response status")
)
