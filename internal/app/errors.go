package app

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrUpstream        = errors.New("upstream failure")
	ErrInvalidInput    = errors.New("invalid input")
	ErrQuotaExceeded   = errors.New("question quota exceeded")
)

// Account errors refine the generic kinds above so callers that only know
// those still classify them.
var (
	ErrUsernameExists    = fmt.Errorf("%w: username already exists", ErrInvalidInput)
	ErrEmailExists       = fmt.Errorf("%w: email already exists", ErrInvalidInput)
	ErrInvalidCredential = fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)
)

// IsClientError reports whether err was caused by the caller rather than a
// collaborator.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrQuotaExceeded)
}
