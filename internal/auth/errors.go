package auth

import (
	"errors"
	"time"
)

// Authentication failures. Every one of them is answered with the same
// 401 body; the distinction only reaches the logs.
var (
	ErrMissingCredential   = errors.New("missing credential")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrInvalidSignature    = errors.New("invalid token signature")
	ErrTokenExpired        = errors.New("token expired")
	ErrForbidden           = errors.New("admin privilege required")
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrMalformedHash      = errors.New("malformed password hash")
	ErrPasswordLength     = errors.New("password must be at least 6 characters and at most 72 bytes")
)

type ErrLoginLocked struct {
	Until time.Time
}

func (e ErrLoginLocked) Error() string {
	return "login temporarily locked"
}
