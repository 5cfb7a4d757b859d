// Package services defines the business logic for the status form and the
// admin application desk. This file centralizes service-level error values
// so they can be returned consistently by service methods and checked by
// callers.
//
// Translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrMissingFields is matched (via errors.Is) by every FieldErrors value.
	ErrMissingFields = errors.New("required fields missing")

	// ErrApplicationNotFound indicates no application has the requested
	// tracking ID.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrDuplicateTrackingID is returned when tracking ID generation keeps
	// colliding with existing rows.
	ErrDuplicateTrackingID = errors.New("tracking id already exists")

	// ErrMirrorUnavailable is returned by SyncLocal when no local store is
	// configured.
	ErrMirrorUnavailable = errors.New("local store not configured")
)

// Field error values.
const (
	FieldRequired = "Required"
	FieldInvalid  = "Invalid"
)

// FieldErrors maps request field names to a problem ("Required", "Invalid").
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + f[k]
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

// Is lets errors.Is(err, ErrMissingFields) match any FieldErrors.
func (f FieldErrors) Is(target error) bool { return target == ErrMissingFields }

// orNil returns f as an error, or nil when empty.
func (f FieldErrors) orNil() error {
	if len(f) == 0 {
		return nil
	}
	return f
}
