// Package domain defines the persistence models for visa applications and
// the bookkeeping rows that support them. These types are mapped with GORM
// and form the core data layer of the tracking backend.
package domain

import "time"

// Stored status values. The lookup layer normalizes these (and the short
// codes some upstream sources return) into its own canonical enum.
const (
	StatusUnderProcess = "Under Process"
	StatusDispatch     = "Dispatch"
	StatusApproved     = "Approved"
	StatusRejected     = "Rejected"
)

// DateLayout is the calendar-date layout used for DOB and application dates.
const DateLayout = "2006-01-02"

// Application is a single visa application as recorded by an operator. The
// tracking ID together with the applicant's date of birth is what the public
// status form looks up.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name / Passport: applicant identity, searchable from the admin listing.
//   - TrackingID: public reference (unique).
//   - DOB / ApplicationDate: calendar dates in YYYY-MM-DD.
//   - Status: one of the Status* constants.
//   - Year: calendar year the record was created, used by reporting.
//   - ExpiresAt: after this instant lookups treat the record as absent.
//   - LastAccessed / AccessCount: best-effort lookup counters.
type Application struct {
	ID              string     `json:"id"                      gorm:"type:char(36);primaryKey"`
	Name            string     `json:"name"                    gorm:"type:varchar(255);not null"`
	Passport        string     `json:"passport"                gorm:"type:varchar(32);not null;index:idx_applications_passport"`
	TrackingID      string     `json:"tracking_id"             gorm:"type:varchar(40);not null;uniqueIndex:ux_applications_tracking_id"`
	DOB             string     `json:"dob"                     gorm:"type:varchar(10);not null"`
	ApplicationDate string     `json:"application_date"        gorm:"type:varchar(10);not null"`
	Status          string     `json:"status"                  gorm:"type:varchar(32);not null;default:'Under Process'"`
	Year            int        `json:"year"                    gorm:"not null;index:idx_applications_year"`
	CreatedAt       time.Time  `json:"created_at"              gorm:"index:idx_applications_created"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"    gorm:"index"`
	LastAccessed    *time.Time `json:"last_accessed,omitempty"`
	AccessCount     int        `json:"access_count"            gorm:"not null;default:0"`
}

// TableName returns the database table name for Application.
func (Application) TableName() string { return "applications" }

// Expired reports whether the record's lifetime ended before now.
func (a Application) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}
