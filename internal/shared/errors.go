package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a record with the same key already exists.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated indicates no verified identity is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnapproved indicates the account exists but has not been approved yet.
	ErrUnapproved = errors.New("account pending approval")
	// ErrForbidden indicates the account lacks the required grant.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidToken indicates the identity token failed verification.
	ErrInvalidToken = errors.New("invalid identity token")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
