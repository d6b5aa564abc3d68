// Package astro computes the six daily prayer instants from the sun's
// position for a coordinate and a calendar date.
//
// The calculation follows the standard hour-angle method: the sun's
// declination and the equation of time give solar noon, and the hour angle
// at which the sun reaches a given altitude gives the other times. Results
// are absolute instants, rounded to the nearest minute.
package astro

import (
	"math"
	"time"
)

// Coordinates is a geographic position in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Times holds the six computed instants for one date.
type Times struct {
	Fajr    time.Time
	Sunrise time.Time
	Dhuhr   time.Time
	Asr     time.Time
	Maghrib time.Time
	Isha    time.Time
}

// Ordered returns the instants in canonical order.
func (t Times) Ordered() [6]time.Time {
	return [6]time.Time{t.Fajr, t.Sunrise, t.Dhuhr, t.Asr, t.Maghrib, t.Isha}
}

// Calculator turns a coordinate and a date into prayer instants.
// The calendar day is taken from date in date.Location().
type Calculator interface {
	Compute(c Coordinates, date time.Time) Times
}

// CalculatorFunc adapts a function to the Calculator interface.
type CalculatorFunc func(c Coordinates, date time.Time) Times

// Compute calls f.
func (f CalculatorFunc) Compute(c Coordinates, date time.Time) Times {
	return f(c, date)
}

// Params are the angles and adjustments of a calculation convention.
type Params struct {
	Name        string
	FajrAngle   float64       // sun depression at dawn, degrees
	IshaAngle   float64       // sun depression at nightfall, degrees
	AsrFactor   float64       // shadow length factor: 1 Shafi, 2 Hanafi
	DhuhrOffset time.Duration // added to solar noon
}

// MuslimWorldLeague returns the Muslim World League convention.
func MuslimWorldLeague() Params {
	return Params{
		Name:        "Muslim World League",
		FajrAngle:   18,
		IshaAngle:   17,
		AsrFactor:   1,
		DhuhrOffset: time.Minute,
	}
}

// riseSetAngle is the apparent altitude of the sun's upper limb at sunrise
// and sunset, including refraction.
const riseSetAngle = 0.833

// Method is a Calculator for a fixed set of Params.
type Method struct {
	params Params
}

// New returns a Method for p.
func New(p Params) *Method {
	return &Method{params: p}
}

// MWL returns the Muslim World League calculator.
func MWL() *Method {
	return New(MuslimWorldLeague())
}

// Params returns the convention used by m.
func (m *Method) Params() Params {
	return m.params
}

// Compute returns the prayer instants for the calendar date of date.
func (m *Method) Compute(c Coordinates, date time.Time) Times {
	y, mo, d := date.Date()
	s := solver{
		lat: c.Latitude,
		jd:  julianDay(y, int(mo), d) - c.Longitude/(15*24),
	}

	// Day portions seed the sun position; one refinement pass is enough at
	// minute resolution.
	h := s.hours([6]float64{5, 6, 12, 13, 18, 18}, m.params)
	h = s.hours(h, m.params)
	h = adjustHighLatitudes(h)

	base := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	at := func(hours float64) time.Time {
		utc := hours - c.Longitude/15
		return base.Add(time.Duration(utc * float64(time.Hour))).Round(time.Minute)
	}

	return Times{
		Fajr:    at(h[0]),
		Sunrise: at(h[1]),
		Dhuhr:   at(h[2]).Add(m.params.DhuhrOffset),
		Asr:     at(h[3]),
		Maghrib: at(h[4]),
		Isha:    at(h[5]),
	}
}

// solver evaluates sun-position formulas for one date and latitude.
type solver struct {
	lat float64
	jd  float64
}

// hours computes local solar hours for each prayer, using prev as the
// fractional-day seed for the sun position.
func (s solver) hours(prev [6]float64, p Params) [6]float64 {
	var out [6]float64
	out[0] = s.sunAngleTime(p.FajrAngle, prev[0]/24, true, false)
	out[1] = s.sunAngleTime(riseSetAngle, prev[1]/24, true, true)
	out[2] = s.midDay(prev[2] / 24)
	out[3] = s.asrTime(p.AsrFactor, prev[3]/24)
	out[4] = s.sunAngleTime(riseSetAngle, prev[4]/24, false, true)
	out[5] = s.sunAngleTime(p.IshaAngle, prev[5]/24, false, false)
	return out
}

// sunPosition returns the declination (degrees) and equation of time (hours).
func sunPosition(jd float64) (decl, eqt float64) {
	d := jd - 2451545.0
	g := fixAngle(357.529 + 0.98560028*d)
	q := fixAngle(280.459 + 0.98564736*d)
	l := fixAngle(q + 1.915*dsin(g) + 0.020*dsin(2*g))
	e := 23.439 - 0.00000036*d

	ra := darctan2(dcos(e)*dsin(l), dcos(l)) / 15
	eqt = q/15 - fixHour(ra)
	decl = darcsin(dsin(e) * dsin(l))
	return decl, eqt
}

func (s solver) midDay(t float64) float64 {
	_, eqt := sunPosition(s.jd + t)
	return fixHour(12 - eqt)
}

// sunAngleTime returns the time at which the sun is angle degrees below the
// horizon, before noon when ccw is set. Undefined cases return NaN unless
// clamp is set, in which case the nearest reachable altitude is used.
func (s solver) sunAngleTime(angle, t float64, ccw, clamp bool) float64 {
	decl, _ := sunPosition(s.jd + t)
	noon := s.midDay(t)
	arg := (-dsin(angle) - dsin(decl)*dsin(s.lat)) / (dcos(decl) * dcos(s.lat))
	if clamp {
		arg = math.Max(-1, math.Min(1, arg))
	}
	span := darccos(arg) / 15
	if ccw {
		return noon - span
	}
	return noon + span
}

func (s solver) asrTime(factor, t float64) float64 {
	decl, _ := sunPosition(s.jd + t)
	angle := -darccot(factor + dtan(math.Abs(s.lat-decl)))
	return s.sunAngleTime(angle, t, false, true)
}

// adjustHighLatitudes applies the middle-of-the-night rule: Fajr is no
// earlier than half the night before sunrise and Isha no later than half the
// night after sunset.
func adjustHighLatitudes(h [6]float64) [6]float64 {
	sunrise, sunset := h[1], h[4]
	night := fixHour(sunrise - sunset)
	portion := night / 2

	if math.IsNaN(h[0]) || fixHour(sunrise-h[0]) > portion {
		h[0] = sunrise - portion
	}
	if math.IsNaN(h[5]) || fixHour(h[5]-sunset) > portion {
		h[5] = sunset + portion
	}
	return h
}

// julianDay returns the Julian day number at 0h UT of the given date.
func julianDay(year, month, day int) float64 {
	if month <= 2 {
		year--
		month += 12
	}
	a := math.Floor(float64(year) / 100)
	b := 2 - a + math.Floor(a/4)
	return math.Floor(365.25*float64(year+4716)) + math.Floor(30.6001*float64(month+1)) + float64(day) + b - 1524.5
}

func dtr(d float64) float64 { return d * math.Pi / 180 }
func rtd(r float64) float64 { return r * 180 / math.Pi }

func dsin(d float64) float64 { return math.Sin(dtr(d)) }
func dcos(d float64) float64 { return math.Cos(dtr(d)) }
func dtan(d float64) float64 { return math.Tan(dtr(d)) }

func darcsin(x float64) float64     { return rtd(math.Asin(x)) }
func darccos(x float64) float64     { return rtd(math.Acos(x)) }
func darctan2(y, x float64) float64 { return rtd(math.Atan2(y, x)) }
func darccot(x float64) float64     { return rtd(math.Atan(1 / x)) }

func fixAngle(a float64) float64 { return fix(a, 360) }
func fixHour(a float64) float64  { return fix(a, 24) }

func fix(a, b float64) float64 {
	a -= b * math.Floor(a/b)
	if a < 0 {
		a += b
	}
	return a
}
