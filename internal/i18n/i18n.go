// Package i18n holds the user-facing strings. Arabic is the default.
package i18n

import (
	"fmt"
	"strings"
	"time"

	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
)

// Messages is one language's string table.
type Messages struct {
	Lang string

	// Errors surfaced by the prayer tracker.
	LocationPermission  string
	LocationUnavailable string
	LoadFailed          string

	Title      string
	NextPrayer string
	Loading    string
	Locating   string
	Offline    string
	Today      string
	Tomorrow   string
	Location   string
	Qibla      string
	Distance   string

	// Table headers.
	PrayerHeader string
	TimeHeader   string
	DateHeader   string

	// Remaining-time pieces: "<After> 2 <Hours> <And> 15 <Minutes>".
	After   string
	Hours   string
	Minutes string
	And     string

	PrayerNames [prayer.Count]string
}

// Arabic returns the Arabic strings.
func Arabic() Messages {
	return Messages{
		Lang:                "ar",
		LocationPermission:  "يرجى السماح بالوصول إلى الموقع",
		LocationUnavailable: "تعذر الحصول على الموقع. يرجى التأكد من تفعيل خدمات الموقع",
		LoadFailed:          "فشل في تحميل مواقيت الصلاة. يرجى المحاولة لاحقاً",
		Title:               "مواقيت الصلاة",
		NextPrayer:          "الصلاة القادمة",
		Loading:             "جاري تحميل مواقيت الصلاة...",
		Locating:            "جاري تحديد الموقع...",
		Offline:             "غير متصل",
		Today:               "اليوم",
		Tomorrow:            "غداً",
		Location:            "الموقع",
		Qibla:               "اتجاه القبلة",
		Distance:            "المسافة",
		PrayerHeader:        "الصلاة",
		TimeHeader:          "الوقت",
		DateHeader:          "التاريخ",
		After:               "بعد",
		Hours:               "ساعة",
		Minutes:             "دقيقة",
		And:                 "و",
		PrayerNames:         prayer.Labels,
	}
}

// English returns the English strings.
func English() Messages {
	return Messages{
		Lang:                "en",
		LocationPermission:  "Please allow access to your location",
		LocationUnavailable: "Could not get your location. Make sure location services are enabled",
		LoadFailed:          "Failed to load prayer times. Please try again later",
		Title:               "Prayer Times",
		NextPrayer:          "Next prayer",
		Loading:             "Loading prayer times...",
		Locating:            "Locating...",
		Offline:             "offline",
		Today:               "Today",
		Tomorrow:            "Tomorrow",
		Location:            "Location",
		Qibla:               "Qibla direction",
		Distance:            "Distance",
		PrayerHeader:        "Prayer",
		TimeHeader:          "Time",
		DateHeader:          "Date",
		After:               "in",
		Hours:               "h",
		Minutes:             "m",
		And:                 "",
		PrayerNames:         prayer.EnglishNames,
	}
}

// Languages lists the supported language codes.
var Languages = []string{"ar", "en"}

// For returns the table for lang ("ar" or "en", case-insensitive; empty
// means Arabic).
func For(lang string) (Messages, error) {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "ar":
		return Arabic(), nil
	case "en":
		return English(), nil
	default:
		return Messages{}, fmt.Errorf("unsupported language %q; valid: %s", lang, strings.Join(Languages, ", "))
	}
}

// PrayerName returns the localised name of k.
func (m Messages) PrayerName(k prayer.Kind) string {
	if k < 0 || int(k) >= prayer.Count {
		return ""
	}
	return m.PrayerNames[k]
}

// Name localises a stored prayer label.
func (m Messages) Name(p prayer.PrayerTime) string {
	k, err := prayer.ParseKind(p.Name)
	if err != nil {
		return p.Name
	}
	return m.PrayerName(k)
}

// Remaining renders a countdown such as "بعد 2 ساعة و 15 دقيقة" or "in 2h 15m".
func (m Messages) Remaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60

	if m.Lang != "ar" {
		return m.After + " " + prayer.FormatRemaining(d)
	}
	if h == 0 {
		return fmt.Sprintf("%s %d %s", m.After, mins, m.Minutes)
	}
	if mins == 0 {
		return fmt.Sprintf("%s %d %s", m.After, h, m.Hours)
	}
	return fmt.Sprintf("%s %d %s %s %d %s", m.After, h, m.Hours, m.And, mins, m.Minutes)
}
