package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
)

// Response represents the top-level Al Adhan API response.
type Response struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   Data   `json:"data"`
}

// Data holds the prayer timings, date info, and metadata.
type Data struct {
	Timings Timings  `json:"timings"`
	Date    DateInfo `json:"date"`
	Meta    Meta     `json:"meta"`
}

// Timings contains the prayer times as HH:MM strings.
// The API may include a timezone suffix like " (BST)" which Clock strips.
type Timings struct {
	Fajr    string `json:"Fajr"`
	Sunrise string `json:"Sunrise"`
	Dhuhr   string `json:"Dhuhr"`
	Asr     string `json:"Asr"`
	Maghrib string `json:"Maghrib"`
	Isha    string `json:"Isha"`
}

// Clock returns the HH:MM time of k without any zone suffix.
func (t Timings) Clock(k prayer.Kind) string {
	var s string
	switch k {
	case prayer.Fajr:
		s = t.Fajr
	case prayer.Sunrise:
		s = t.Sunrise
	case prayer.Dhuhr:
		s = t.Dhuhr
	case prayer.Asr:
		s = t.Asr
	case prayer.Maghrib:
		s = t.Maghrib
	case prayer.Isha:
		s = t.Isha
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	return s
}

// DateInfo contains date representations.
type DateInfo struct {
	Readable string    `json:"readable"`
	Hijri    HijriDate `json:"hijri"`
}

// HijriDate represents the Hijri (Islamic) date from the API response.
type HijriDate struct {
	Date        string           `json:"date"` // e.g. "10-08-1447"
	Day         string           `json:"day"`
	Month       HijriMonth       `json:"month"`
	Year        string           `json:"year"`
	Designation HijriDesignation `json:"designation"`
}

// HijriMonth represents the month in the Hijri calendar.
type HijriMonth struct {
	Number int    `json:"number"`
	En     string `json:"en"`
	Ar     string `json:"ar"`
}

// HijriDesignation contains the calendar designation labels.
type HijriDesignation struct {
	Abbreviated string `json:"abbreviated"` // "AH"
}

// Format returns the Hijri date as "DD MonthName YYYY AH".
func (h HijriDate) Format() string {
	if h.Day == "" || h.Month.En == "" || h.Year == "" {
		return ""
	}
	abbr := h.Designation.Abbreviated
	if abbr == "" {
		abbr = "AH"
	}
	return h.Day + " " + h.Month.En + " " + h.Year + " " + abbr
}

// Meta contains request metadata returned by the API.
type Meta struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Timezone  string     `json:"timezone"`
	Method    MethodInfo `json:"method"`
}

// MethodInfo identifies the calculation method used.
type MethodInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Difference is one prayer compared between the local schedule and the API.
type Difference struct {
	Prayer prayer.Kind   `json:"prayer"`
	Local  string        `json:"local"`
	Remote string        `json:"remote"`
	Delta  time.Duration `json:"delta"` // local minus remote
}

// Compare matches each prayer of local against remote. Clock strings are
// compared as minutes of the day, so a delta crossing midnight is taken the
// short way round.
func Compare(local prayer.DayPrayers, remote Timings) ([]Difference, error) {
	if len(local) != prayer.Count {
		return nil, fmt.Errorf("expected %d local prayers, got %d", prayer.Count, len(local))
	}
	out := make([]Difference, 0, prayer.Count)
	for _, k := range prayer.Kinds {
		l, r := local[k].Time, remote.Clock(k)
		lm, err := minuteOfDay(l)
		if err != nil {
			return nil, fmt.Errorf("local %s: %w", k, err)
		}
		rm, err := minuteOfDay(r)
		if err != nil {
			return nil, fmt.Errorf("remote %s: %w", k, err)
		}
		delta := lm - rm
		switch {
		case delta > 12*60:
			delta -= 24 * 60
		case delta < -12*60:
			delta += 24 * 60
		}
		out = append(out, Difference{Prayer: k, Local: l, Remote: r, Delta: time.Duration(delta) * time.Minute})
	}
	return out, nil
}

// MaxDelta returns the largest absolute delta in diffs.
func MaxDelta(diffs []Difference) time.Duration {
	var worst time.Duration
	for _, d := range diffs {
		a := d.Delta
		if a < 0 {
			a = -a
		}
		if a > worst {
			worst = a
		}
	}
	return worst
}

func minuteOfDay(clock string) (int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", clock)
	}
	return t.Hour()*60 + t.Minute(), nil
}
