package journal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateRe = regexp.MustCompile(`^(\d{2,4})-(\d{1,2})-(\d{1,2})$`)

// CanonicalDate parses a loosely formatted journal date (2-4 digit year,
// 1-2 digit month and day) and returns the zero-padded YYYY-MM-DD form.
// Dates that do not name a real calendar day are rejected.
func CanonicalDate(s string) (string, bool) {
	m := dateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	// time.Date normalizes overflow (e.g. Feb 30 → Mar 2); a real date
	// round-trips unchanged.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// Today returns the current date in canonical storage form.
func Today() string {
	return time.Now().Format("2006-01-02")
}
