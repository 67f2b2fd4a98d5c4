package apperrors

import "errors"

var (
	ErrInvalidSpec       = errors.New("invalid entity spec")
	ErrMissingContext    = errors.New("linked context unavailable")
	ErrMalformedResponse = errors.New("malformed generation response")
)
