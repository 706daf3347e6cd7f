package patient

import (
	"strings"
	"time"
)

// StaleAfterDays is the number of days after which a patient is due again.
// Exactly StaleAfterDays is not yet due.
const StaleAfterDays = 60

const dateLayout = "2006-01-02"

var dateLayouts = []string{dateLayout, time.RFC3339, "2006-01-02 15:04:05", "01/02/2006"}

// ParseDate accepts YYYY-MM-DD, RFC 3339, "YYYY-MM-DD HH:MM:SS" and MM/DD/YYYY
// and returns the calendar date at UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders t as YYYY-MM-DD in t's location.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// DaysSinceSeen returns the whole days between dateLastSeen and now's calendar
// date. ok is false when the date is absent or unparseable.
func DaysSinceSeen(dateLastSeen *string, now time.Time) (days int, ok bool) {
	if dateLastSeen == nil || strings.TrimSpace(*dateLastSeen) == "" {
		return 0, false
	}
	seen, ok := ParseDate(*dateLastSeen)
	if !ok {
		return 0, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(today.Sub(seen) / (24 * time.Hour)), true
}

// IsDue reports whether a patient last seen on dateLastSeen must be seen
// again at now. Missing or unreadable dates are always due.
func IsDue(dateLastSeen *string, now time.Time) bool {
	days, ok := DaysSinceSeen(dateLastSeen, now)
	if !ok {
		return true
	}
	return days > StaleAfterDays
}
