package lookup

import (
	"context"
	"time"
)

// RawRecord is a source's match before normalization.
type RawRecord struct {
	Ref        string // source-specific identity passed back to TouchAccess
	TrackingID string
	DOB        string
	Name       string
	Status     string // raw code or free text, e.g. "UP" or "Under Process"
	Date       string // application date, YYYY-MM-DD when known
	ExpiresAt  *time.Time
}

// Source is one backing store the resolver can consult. Find returns
// (nil, nil) when the store has no record for trackingID and dob, and an
// error only when the store could not be queried.
type Source interface {
	Name() string
	Find(ctx context.Context, trackingID, dob string) (*RawRecord, error)
}

// AccessTracker is implemented by sources that record lookups.
type AccessTracker interface {
	TouchAccess(ctx context.Context, ref string) error
}
