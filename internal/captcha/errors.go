package captcha

import "errors"

var (
	// ErrMissingInput is returned when the entered code is blank after trimming.
	// The challenge is left untouched.
	ErrMissingInput = errors.New("captcha entry is required")

	// ErrMismatch is returned when the entered code does not match. The
	// challenge has already been regenerated when this is returned.
	ErrMismatch = errors.New("captcha does not match")

	// ErrNotFound is returned for unknown or expired challenge IDs.
	ErrNotFound = errors.New("captcha challenge not found")
)
