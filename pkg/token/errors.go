package token

import "errors"

var (
	// ErrMissingSecret indicates the codec was built without a signing secret.
	// Treat it as fatal at startup.
	ErrMissingSecret = errors.New("token.missing_secret")

	// ErrTokenInvalid covers bad signatures, unexpected algorithms and malformed payloads.
	ErrTokenInvalid = errors.New("token.invalid")

	// ErrTokenExpired indicates a correctly signed token whose exp claim is in the past.
	ErrTokenExpired = errors.New("token.expired")

	// ErrInvalidTTL indicates a non-positive lifetime was requested.
	ErrInvalidTTL = errors.New("token.invalid_ttl")
)
