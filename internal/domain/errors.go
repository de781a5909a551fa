package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
// Anything that wraps none of them is an internal error.
var (
	ErrMissingField       = errors.New("missing field")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrMismatch           = errors.New("code mismatch")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSecurityMismatch   = errors.New("security answer mismatch")
)
