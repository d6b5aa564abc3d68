package prayer

import (
	"strings"
	"testing"
	"time"
)

// sampleDay builds a DayPrayers for 2026-02-28 in UTC.
func sampleDay(t *testing.T) DayPrayers {
	t.Helper()
	clock := [][2]int{{5, 17}, {6, 48}, {12, 13}, {15, 2}, {17, 39}, {19, 10}}
	day := make(DayPrayers, 0, Count)
	for i, hm := range clock {
		at := time.Date(2026, 2, 28, hm[0], hm[1], 0, 0, time.UTC)
		day = append(day, NewPrayerTime(Kind(i), at, time.UTC))
	}
	return day
}

// ---------------------------------------------------------------------------
// Kind
// ---------------------------------------------------------------------------

func TestKind_LabelAndString(t *testing.T) {
	if Fajr.Label() != "الفجر" {
		t.Errorf("Fajr.Label() = %q", Fajr.Label())
	}
	if Isha.String() != "Isha" {
		t.Errorf("Isha.String() = %q", Isha.String())
	}
	if Kind(9).Label() != "" {
		t.Errorf("out-of-range Label() should be empty")
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"fajr", Fajr, false},
		{"MAGHRIB", Maghrib, false},
		{" Asr ", Asr, false},
		{"العشاء", Isha, false},
		{"Midnight", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseKind(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKind(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// PrayerTime / DayPrayers
// ---------------------------------------------------------------------------

func TestNewPrayerTime_FormatsInLocation(t *testing.T) {
	cairo := time.FixedZone("EET", 2*60*60)
	at := time.Date(2026, 2, 28, 3, 5, 0, 0, time.UTC)

	p := NewPrayerTime(Fajr, at, cairo)
	if p.Time != "05:05" {
		t.Errorf("Time = %q, want %q", p.Time, "05:05")
	}
	if p.Timestamp != at.UnixMilli() {
		t.Errorf("Timestamp = %d, want %d", p.Timestamp, at.UnixMilli())
	}
	if p.Name != "الفجر" {
		t.Errorf("Name = %q", p.Name)
	}
}

func TestDayPrayers_Validate(t *testing.T) {
	day := sampleDay(t)
	if err := day.Validate(); err != nil {
		t.Fatalf("Validate() on sample day: %v", err)
	}

	short := day[:5]
	if err := short.Validate(); err == nil {
		t.Error("expected error for 5 entries")
	}

	swapped := append(DayPrayers(nil), day...)
	swapped[2], swapped[3] = swapped[3], swapped[2]
	if err := swapped.Validate(); err == nil {
		t.Error("expected error for out-of-order labels")
	}

	equal := append(DayPrayers(nil), day...)
	equal[4].Timestamp = equal[3].Timestamp
	err := equal.Validate()
	if err == nil || !strings.Contains(err.Error(), "Maghrib") {
		t.Errorf("expected ordering error naming Maghrib, got %v", err)
	}
}

func TestDayPrayers_Get(t *testing.T) {
	day := sampleDay(t)
	p, ok := day.Get(Dhuhr)
	if !ok || p.Time != "12:13" {
		t.Errorf("Get(Dhuhr) = %+v, %v", p, ok)
	}
	if _, ok := DayPrayers(nil).Get(Fajr); ok {
		t.Error("Get on empty day should fail")
	}
}

// ---------------------------------------------------------------------------
// NextPrayer / CurrentPrayer
// ---------------------------------------------------------------------------

func TestNextPrayer_MiddleOfDay(t *testing.T) {
	day := sampleDay(t)
	now := time.Date(2026, 2, 28, 13, 0, 0, 0, time.UTC)

	next := NextPrayer(day, now)
	if next == nil {
		t.Fatal("NextPrayer returned nil")
	}
	if EnglishName(next.Name) != "Asr" {
		t.Errorf("next = %s, want Asr", EnglishName(next.Name))
	}
}

func TestNextPrayer_BeforeFirstPrayer(t *testing.T) {
	day := sampleDay(t)
	now := time.Date(2026, 2, 28, 1, 0, 0, 0, time.UTC)

	next := NextPrayer(day, now)
	if next == nil || next.Name != Fajr.Label() {
		t.Errorf("next = %v, want Fajr", next)
	}
}

func TestNextPrayer_AfterAllPrayers(t *testing.T) {
	day := sampleDay(t)
	now := time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC)

	if next := NextPrayer(day, now); next != nil {
		t.Errorf("expected nil after Isha, got %s", next.Name)
	}
}

func TestNextPrayer_ExactTime(t *testing.T) {
	day := sampleDay(t)
	// At exactly Dhuhr, Dhuhr is not "next": the first strictly later one is.
	now := time.Date(2026, 2, 28, 12, 13, 0, 0, time.UTC)

	next := NextPrayer(day, now)
	if next == nil || EnglishName(next.Name) != "Asr" {
		t.Errorf("next at exact Dhuhr = %v, want Asr", next)
	}
}

func TestNextPrayer_EmptyList(t *testing.T) {
	if NextPrayer(nil, time.Now()) != nil {
		t.Error("expected nil for empty day")
	}
}

func TestCurrentPrayer(t *testing.T) {
	day := sampleDay(t)

	if cur := CurrentPrayer(day, time.Date(2026, 2, 28, 4, 0, 0, 0, time.UTC)); cur != nil {
		t.Errorf("before Fajr current = %s, want nil", cur.Name)
	}
	cur := CurrentPrayer(day, time.Date(2026, 2, 28, 16, 0, 0, 0, time.UTC))
	if cur == nil || EnglishName(cur.Name) != "Asr" {
		t.Errorf("current at 16:00 = %v, want Asr", cur)
	}
	cur = CurrentPrayer(day, time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC))
	if cur == nil || EnglishName(cur.Name) != "Isha" {
		t.Errorf("current at 23:59 = %v, want Isha", cur)
	}
}

// ---------------------------------------------------------------------------
// TimeRemaining / FormatRemaining
// ---------------------------------------------------------------------------

func TestTimeRemaining(t *testing.T) {
	day := sampleDay(t)
	now := time.Date(2026, 2, 28, 12, 47, 0, 0, time.UTC)

	got := TimeRemaining(day[Asr], now)
	want := 2*time.Hour + 15*time.Minute
	if got != want {
		t.Errorf("TimeRemaining = %v, want %v", got, want)
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{2*time.Hour + 15*time.Minute, "2h 15m"},
		{45 * time.Minute, "45m"},
		{0, "0m"},
		{-5 * time.Minute, "0m"},
		{10 * time.Hour, "10h 0m"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.d); got != tt.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestEnglishName(t *testing.T) {
	for i, label := range Labels {
		if got := EnglishName(label); got != EnglishNames[i] {
			t.Errorf("EnglishName(%q) = %q, want %q", label, got, EnglishNames[i])
		}
	}
	if got := EnglishName("unknown"); got != "unknown" {
		t.Errorf("EnglishName(unknown) = %q", got)
	}
}

func TestShortNames_AllPrayers(t *testing.T) {
	for _, name := range EnglishNames {
		if _, ok := ShortNames[name]; !ok {
			t.Errorf("ShortNames missing %q", name)
		}
	}
}
