package lookup

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"
)

const (
	isoDate     = "2006-01-02"
	displayDate = "2006/01/02"

	trackingInfix  = "INCDTKT"
	trackingDigits = 5
)

// DisplayDate picks the date shown in a status message: the source's date,
// else the entered date of birth, else today. YYYY-MM-DD values (including
// the date part of timestamps) are shown as YYYY/MM/DD; other non-empty
// values only have their dashes replaced.
func DisplayDate(sourceDate, dob string, now time.Time) string {
	for _, v := range []string{sourceDate, dob} {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if len(v) >= len(isoDate) {
			if t, err := time.Parse(isoDate, v[:len(isoDate)]); err == nil {
				return t.Format(displayDate)
			}
		}
		return strings.ReplaceAll(v, "-", "/")
	}
	return now.Format(displayDate)
}

// FormatTrackingID strips everything but letters and digits and uppercases
// the rest, so pasted IDs with spaces or dashes still match.
func FormatTrackingID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Intn is the randomness NewTrackingID needs; *math/rand/v2.Rand has it.
type Intn interface{ IntN(n int) int }

// NewTrackingID builds a public tracking ID for an application filed on
// date: YYYYMMDD, the fixed infix, then five random digits. A nil r uses the
// global source.
func NewTrackingID(date time.Time, r Intn) string {
	var n int
	if r != nil {
		n = r.IntN(100000)
	} else {
		n = rand.IntN(100000)
	}
	return fmt.Sprintf("%s%s%0*d", date.Format("20060102"), trackingInfix, trackingDigits, n)
}

// Message renders the applicant-facing sentence for a found application.
func Message(trackingID string, status Status, office, date string) string {
	return fmt.Sprintf("Your application, tracking ID No.%s has been received and is %s at the %s on %s",
		trackingID, status.Phrase(), office, date)
}

// NotFoundMessage is shown when no source has a live record.
const NotFoundMessage = "No application found for the provided tracking ID and date of birth."
