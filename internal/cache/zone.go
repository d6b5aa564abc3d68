package cache

import (
	"fmt"
	"math"
	"time"
)

// MaxZoneSkew is how far a zone's clock may run from mean solar time at a
// longitude before a day's prayers stop fitting inside one calendar day.
const MaxZoneSkew = 3*time.Hour + 30*time.Minute

// solarOffset is the mean solar time of lng relative to UTC.
func solarOffset(lng float64) time.Duration {
	return time.Duration(lng / 15 * float64(time.Hour))
}

// zoneShift compares loc's UTC offset at t with mean solar time at lng. It
// returns the whole days loc's calendar runs ahead of the solar one (zones
// on the far side of the date line) and whether the remaining skew is within
// MaxZoneSkew.
func zoneShift(loc *time.Location, lng float64, t time.Time) (days int, fits bool) {
	_, off := t.In(loc).Zone()
	skew := time.Duration(off)*time.Second - solarOffset(lng)
	days = int(math.Round(skew.Hours() / 24))
	rest := skew - time.Duration(days)*24*time.Hour
	return days, rest.Abs() <= MaxZoneSkew
}

// SolarZone returns a fixed zone at the whole hour nearest to mean solar
// time at lng, named like "UTC+07:00".
func SolarZone(lng float64) *time.Location {
	h := int(math.Round(lng / 15))
	return time.FixedZone(fmt.Sprintf("UTC%+03d:00", h), h*60*60)
}

// FitZone returns loc when its calendar days line up with the solar days at
// lng around t, and SolarZone(lng) otherwise. The bool reports whether loc
// was kept.
func FitZone(loc *time.Location, lng float64, t time.Time) (*time.Location, bool) {
	if loc == nil {
		loc = time.Local
	}
	if _, ok := zoneShift(loc, lng, t); ok {
		return loc, true
	}
	return SolarZone(lng), false
}
