package prayer

import (
	"fmt"
	"time"
)

const dateKeyLayout = "2006-01-02"

// DateKey returns the zero-padded YYYY-MM-DD key for t's calendar date in
// t's own location.
func DateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

// ParseDateKey parses a YYYY-MM-DD key into midnight of that date in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(dateKeyLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: must be YYYY-MM-DD", key)
	}
	return t, nil
}

// DaysIn returns the number of days in year (365 or 366).
func DaysIn(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}
