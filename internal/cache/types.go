package cache

import (
	"strconv"
	"strings"

	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
)

// Store keys and the payload schema version.
const (
	KeyPrefix     = "prayer_times_"
	LocationKey   = "last_location"
	SchemaVersion = 2
)

// CachedLocation is a remembered position. Timezone names the zone its
// clock follows (an IANA name, or a fixed zone for a computed year); it is
// empty when unknown.
type CachedLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Timezone  string  `json:"timezone,omitempty"`
	Timestamp int64   `json:"timestamp"` // epoch milliseconds
}

// YearlyCache holds every day of one calendar year for one location.
type YearlyCache struct {
	Version     int                          `json:"version"`
	Year        int                          `json:"year"`
	Location    CachedLocation               `json:"location"`
	Days        map[string]prayer.DayPrayers `json:"days"`
	LastUpdated int64                        `json:"lastUpdated"` // epoch milliseconds
}

// Info summarises the cached years.
type Info struct {
	Years     []int `json:"years"`
	TotalSize int   `json:"totalSize"`
}

// YearKey returns the store key for year.
func YearKey(year int) string {
	return KeyPrefix + strconv.Itoa(year)
}

// parseYearKey extracts the year from a store key.
func parseYearKey(key string) (int, bool) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return 0, false
	}
	year, err := strconv.Atoi(strings.TrimPrefix(key, KeyPrefix))
	if err != nil {
		return 0, false
	}
	return year, true
}
