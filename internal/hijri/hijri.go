// Package hijri converts Gregorian dates to the tabular Islamic calendar and
// formats them in Arabic.
package hijri

import (
	"fmt"
	"time"
)

// MonthNames are the Arabic Hijri month names, Muharram first.
var MonthNames = [12]string{
	"محرم",
	"صفر",
	"ربيع الأول",
	"ربيع الثاني",
	"جمادى الأولى",
	"جمادى الآخرة",
	"رجب",
	"شعبان",
	"رمضان",
	"شوال",
	"ذو القعدة",
	"ذو الحجة",
}

// DayNames are the Arabic weekday names indexed by time.Weekday.
var DayNames = [7]string{
	"الأحد",
	"الإثنين",
	"الثلاثاء",
	"الأربعاء",
	"الخميس",
	"الجمعة",
	"السبت",
}

// GregorianMonthNames are the Arabic Gregorian month names, January first.
var GregorianMonthNames = [12]string{
	"يناير",
	"فبراير",
	"مارس",
	"أبريل",
	"مايو",
	"يونيو",
	"يوليو",
	"أغسطس",
	"سبتمبر",
	"أكتوبر",
	"نوفمبر",
	"ديسمبر",
}

// Date is a Hijri calendar date.
type Date struct {
	Year  int
	Month int // 1..12
	Day   int
}

// MonthName returns the Arabic month name, or "" for an invalid month.
func (d Date) MonthName() string {
	if d.Month < 1 || d.Month > 12 {
		return ""
	}
	return MonthNames[d.Month-1]
}

// String formats d as "D MonthName YYYYهـ".
func (d Date) String() string {
	return fmt.Sprintf("%d %s %dهـ", d.Day, d.MonthName(), d.Year)
}

// FromGregorian converts the calendar date of t (in t's location) using the
// 30-year arithmetic cycle. It can differ from sighting-based calendars by
// a day.
func FromGregorian(t time.Time) Date {
	year, month, day := t.Date()
	jd := julianDayNumber(year, int(month), day)

	l := jd - 1948440 + 10632
	n := floorDiv(l-1, 10631)
	l = l - 10631*n + 354
	j := floorDiv(10985-l, 5316)*floorDiv(50*l, 17719) + floorDiv(l, 5670)*floorDiv(43*l, 15238)
	l = l - floorDiv(30-j, 15)*floorDiv(17719*j, 50) - floorDiv(j, 16)*floorDiv(15238*j, 43) + 29

	m := floorDiv(24*l, 709)
	return Date{
		Year:  30*n + j - 30,
		Month: m,
		Day:   l - floorDiv(709*m, 24),
	}
}

// julianDayNumber returns the integer Julian day of a Gregorian date.
func julianDayNumber(year, month, day int) int {
	a := floorDiv(14-month, 12)
	y := year + 4800 - a
	m := month + 12*a - 3
	return day + floorDiv(153*m+2, 5) + 365*y + floorDiv(y, 4) - floorDiv(y, 100) + floorDiv(y, 400) - 32045
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Format returns the Hijri date of t, e.g. "1 رمضان 1445هـ".
func Format(t time.Time) string {
	return FromGregorian(t).String()
}

// DayName returns the Arabic weekday of t.
func DayName(t time.Time) string {
	return DayNames[t.Weekday()]
}

// FullDate is a date rendered in both calendars.
type FullDate struct {
	Gregorian  string `json:"gregorian"`
	Hijri      string `json:"hijri"`
	DayName    string `json:"dayName"`
	IsToday    bool   `json:"isToday"`
	IsTomorrow bool   `json:"isTomorrow"`
}

// FormatFull renders t relative to now; both are compared as calendar days
// in t's location.
func FormatFull(t, now time.Time) FullDate {
	now = now.In(t.Location())
	y, m, d := t.Date()
	ny, nm, nd := now.Date()
	ty, tm, td := now.AddDate(0, 0, 1).Date()

	return FullDate{
		Gregorian:  fmt.Sprintf("%s، %d %s %d", DayName(t), d, GregorianMonthNames[m-1], y),
		Hijri:      Format(t),
		DayName:    DayName(t),
		IsToday:    y == ny && m == nm && d == nd,
		IsTomorrow: y == ty && m == tm && d == td,
	}
}
