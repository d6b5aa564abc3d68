// Package prayer defines the daily prayer schedule types shared by the
// calculator, the cache and every consumer.
package prayer

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies one of the six daily times, in chronological order.
type Kind int

const (
	Fajr Kind = iota
	Sunrise
	Dhuhr
	Asr
	Maghrib
	Isha
)

// Count is the number of entries in a DayPrayers.
const Count = 6

// Kinds lists every Kind in canonical order.
var Kinds = [Count]Kind{Fajr, Sunrise, Dhuhr, Asr, Maghrib, Isha}

// Labels are the canonical Arabic names stored in PrayerTime.Name.
var Labels = [Count]string{
	"الفجر",
	"الشروق",
	"الظهر",
	"العصر",
	"المغرب",
	"العشاء",
}

// EnglishNames are the transliterated names used by the terminal output and
// the `query` command.
var EnglishNames = [Count]string{"Fajr", "Sunrise", "Dhuhr", "Asr", "Maghrib", "Isha"}

// ShortNames maps English prayer names to single-character abbreviations.
var ShortNames = map[string]string{
	"Fajr":    "F",
	"Sunrise": "S",
	"Dhuhr":   "D",
	"Asr":     "A",
	"Maghrib": "M",
	"Isha":    "I",
}

// Label returns the canonical Arabic label for k.
func (k Kind) Label() string {
	if k < 0 || int(k) >= Count {
		return ""
	}
	return Labels[k]
}

// String returns the English name for k.
func (k Kind) String() string {
	if k < 0 || int(k) >= Count {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return EnglishNames[k]
}

// ParseKind resolves an English name (case-insensitive) or an Arabic label.
func ParseKind(name string) (Kind, error) {
	name = strings.TrimSpace(name)
	for i := range Count {
		if strings.EqualFold(EnglishNames[i], name) || Labels[i] == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown prayer %q; valid names: %s", name, strings.Join(EnglishNames[:], ", "))
}

// PrayerTime is one computed prayer for one date at one location.
type PrayerTime struct {
	Name      string `json:"name"`
	Time      string `json:"time"`      // HH:mm, 24h
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// At returns the prayer instant in loc.
func (p PrayerTime) At(loc *time.Location) time.Time {
	return time.UnixMilli(p.Timestamp).In(loc)
}

// NewPrayerTime builds a PrayerTime for kind k at instant t, formatting the
// clock time in loc.
func NewPrayerTime(k Kind, t time.Time, loc *time.Location) PrayerTime {
	return PrayerTime{
		Name:      k.Label(),
		Time:      t.In(loc).Format("15:04"),
		Timestamp: t.UnixMilli(),
	}
}

// DayPrayers is the ordered schedule of one calendar date. A valid value has
// exactly Count entries in canonical order.
type DayPrayers []PrayerTime

// Validate reports whether d has the canonical shape and strictly increasing
// timestamps.
func (d DayPrayers) Validate() error {
	if len(d) != Count {
		return fmt.Errorf("expected %d prayers, got %d", Count, len(d))
	}
	for i, p := range d {
		if p.Name != Labels[i] {
			return fmt.Errorf("prayer %d is %q, want %q", i, p.Name, Labels[i])
		}
		if i > 0 && p.Timestamp <= d[i-1].Timestamp {
			return fmt.Errorf("%s (%s) is not after %s (%s)", EnglishNames[i], p.Time, EnglishNames[i-1], d[i-1].Time)
		}
	}
	return nil
}

// Get returns the entry for k, or false if d is short.
func (d DayPrayers) Get(k Kind) (PrayerTime, bool) {
	if k < 0 || int(k) >= len(d) {
		return PrayerTime{}, false
	}
	return d[k], true
}

// NextPrayer returns the first prayer whose timestamp is after now.
// It returns nil when every prayer of the day has passed; the caller should
// look at tomorrow's Fajr.
func NextPrayer(d DayPrayers, now time.Time) *PrayerTime {
	ms := now.UnixMilli()
	for i := range d {
		if d[i].Timestamp > ms {
			return &d[i]
		}
	}
	return nil
}

// CurrentPrayer returns the most recent prayer whose time has arrived, or nil
// before Fajr.
func CurrentPrayer(d DayPrayers, now time.Time) *PrayerTime {
	ms := now.UnixMilli()
	var cur *PrayerTime
	for i := range d {
		if d[i].Timestamp <= ms {
			cur = &d[i]
		}
	}
	return cur
}

// TimeRemaining returns the duration until p.
func TimeRemaining(p PrayerTime, now time.Time) time.Duration {
	return time.UnixMilli(p.Timestamp).Sub(now)
}

// FormatRemaining formats a duration as "Xh Ym" or "Ym" if less than an hour.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		return "0m"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// EnglishName maps a stored Arabic label back to its English name.
// Unknown labels are returned unchanged.
func EnglishName(label string) string {
	for i, l := range Labels {
		if l == label {
			return EnglishNames[i]
		}
	}
	return label
}
