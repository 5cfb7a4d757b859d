// Package lookup resolves the public status of an application from an
// ordered list of sources. Sources are consulted one at a time; the first
// live match wins, failures of individual sources are isolated, and the
// result is normalized into a structured Outcome with a display message.
package lookup

import "strings"

// Status is the canonical application status shown to applicants.
type Status string

const (
	StatusUnderProcess Status = "under_process"
	StatusDispatch     Status = "dispatch"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
)

// Phrase is the wording used inside status messages.
func (s Status) Phrase() string {
	switch s {
	case StatusDispatch:
		return "dispatch"
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	default:
		return "under process"
	}
}

// NormalizeStatus maps the codes and free-text values sources return onto
// Status. Matching ignores case and surrounding whitespace.
//
// "Rejected" and anything unrecognized fall back to StatusUnderProcess; the
// second return value reports whether raw was one of the recognized inputs.
func NormalizeStatus(raw string) (Status, bool) {
	switch strings.ToUpper(strings.Join(strings.Fields(raw), " ")) {
	case "UP", "UNDER PROCESS":
		return StatusUnderProcess, true
	case "DP", "DISPATCH":
		return StatusDispatch, true
	case "APPROVED":
		return StatusApproved, true
	default:
		return StatusUnderProcess, false
	}
}
