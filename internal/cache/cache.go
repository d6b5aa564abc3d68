// Package cache keeps a year of computed prayer times per location in a
// durable store and serves single days from it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/smokyabdulrahman/mawaqit/internal/astro"
	"github.com/smokyabdulrahman/mawaqit/internal/geo"
	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
	"github.com/smokyabdulrahman/mawaqit/internal/store"
)

// Checker reports network reachability.
type Checker interface {
	Online(ctx context.Context) bool
}

// Service computes, persists and serves prayer times. The store is the only
// state; nothing is kept in memory between calls.
type Service struct {
	store    store.Store
	calc     astro.Calculator
	loc      *time.Location
	geocoder geo.Geocoder
	checker  Checker
	now      func() time.Time
	log      zerolog.Logger
	metrics  *Metrics

	group singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithCalculator replaces the Muslim World League calculator.
func WithCalculator(c astro.Calculator) Option { return func(s *Service) { s.calc = c } }

// WithLocation sets the zone in which dates and clock times are expressed.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

// WithGeocoder sets the reverse geocoder used by GetLocationName.
func WithGeocoder(g geo.Geocoder) Option { return func(s *Service) { s.geocoder = g } }

// WithChecker sets the connectivity check behind IsOnline.
func WithChecker(p Checker) Option { return func(s *Service) { s.checker = p } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// WithMetrics records cache activity on m.
func WithMetrics(m *Metrics) Option { return func(s *Service) { s.metrics = m } }

// New creates a Service backed by st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store: st,
		calc:  astro.MWL(),
		loc:   time.Local,
		now:   time.Now,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	return s
}

// Location returns the service time zone.
func (s *Service) Location() *time.Location { return s.loc }

// Now returns the current time in the service zone.
func (s *Service) Now() time.Time { return s.now().In(s.loc) }

// ZoneFor returns the zone days are keyed in at longitude lng: the service
// zone when its calendar days line up with the solar days there, otherwise
// SolarZone(lng).
func (s *Service) ZoneFor(lng float64) *time.Location {
	zone, _ := FitZone(s.loc, lng, s.now())
	return zone
}

// GetPrayersForDate returns the six prayers of date's calendar day at the
// given coordinates, in the zone ZoneFor(lng) picks. A cached year is used
// when it belongs to the same location and zone and holds the day;
// otherwise the whole year is recomputed and stored first. A failed store
// write is logged and the computed day is still returned, so the only error
// is ctx being done.
func (s *Service) GetPrayersForDate(ctx context.Context, date time.Time, lat, lng float64, name string) (prayer.DayPrayers, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	zone := s.ZoneFor(lng)
	date = date.In(zone)
	year := date.Year()
	key := prayer.DateKey(date)

	cached, reason := s.loadYear(ctx, year)
	if cached != nil {
		switch {
		case !SameLocation(cached.Location.Latitude, cached.Location.Longitude, lat, lng):
			reason = missLocation
		case cached.Location.Timezone != zone.String():
			reason = missZone
		default:
			if day, ok := cached.Days[key]; ok {
				s.metrics.hit()
				return day, nil
			}
			reason = missDate
		}
	}
	s.metrics.miss(reason)
	s.log.Debug().Int("year", year).Str("date", key).Str("reason", reason).Msg("prayer cache miss")

	fresh, err := s.CacheYearPrayers(ctx, lat, lng, year, name)
	if fresh == nil {
		return nil, err
	}
	if err != nil {
		s.log.Warn().Err(err).Int("year", year).Msg("serving computed prayers without persisting them")
	}
	return fresh.Days[key], nil
}

// CacheYearPrayers computes every day of year at the coordinates, replaces
// the stored bucket and returns it. Concurrent calls for the same year,
// coordinates and zone share one computation, which runs to completion even
// when the caller that started it gives up; each caller stops waiting when
// its own ctx is done.
//
// When only the store write fails, the computed cache is returned together
// with the error.
func (s *Service) CacheYearPrayers(ctx context.Context, lat, lng float64, year int, name string) (*YearlyCache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	zone := s.ZoneFor(lng)
	flight := fmt.Sprintf("%d|%.6f|%.6f|%s", year, lat, lng, zone)
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flight, func() (any, error) {
		if zone != s.loc {
			s.log.Warn().Str("zone", s.loc.String()).Float64("lng", lng).Str("using", zone.String()).
				Msg("time zone does not match the solar day at this longitude")
		}
		yc := s.computeYear(lat, lng, year, name, zone)
		if err := s.putJSON(detached, YearKey(year), yc); err != nil {
			s.metrics.storeError("write")
			return yc, fmt.Errorf("failed to store %d prayer times: %w", year, err)
		}
		s.log.Info().Int("year", year).Float64("lat", lat).Float64("lng", lng).Str("name", name).
			Str("zone", zone.String()).Int("days", len(yc.Days)).Msg("cached year of prayer times")
		return yc, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		yc, _ := res.Val.(*YearlyCache)
		return yc, res.Err
	}
}

// computeYear fills every calendar day of year in zone. Zones across the
// date line run a whole day ahead of (or behind) the solar calendar, so the
// solar day computed for each key is shifted to match.
func (s *Service) computeYear(lat, lng float64, year int, name string, zone *time.Location) *YearlyCache {
	start := time.Now()
	coords := astro.Coordinates{Latitude: lat, Longitude: lng}
	days := make(map[string]prayer.DayPrayers, prayer.DaysIn(year))
	first := time.Date(year, time.January, 1, 0, 0, 0, 0, zone)
	shift, _ := zoneShift(zone, lng, first)

	invalid := 0
	for d := first; d.Year() == year; d = d.AddDate(0, 0, 1) {
		day := dayPrayers(s.calc.Compute(coords, d.AddDate(0, 0, -shift)), zone)
		if day.Validate() != nil {
			invalid++
		}
		days[prayer.DateKey(d)] = day
	}
	if invalid > 0 {
		s.log.Warn().Int("year", year).Int("days", invalid).Float64("lat", lat).
			Msg("prayer times out of order; latitude may be outside the supported range")
	}

	s.metrics.recomputed(time.Since(start))
	now := s.now().UnixMilli()
	return &YearlyCache{
		Version: SchemaVersion,
		Year:    year,
		Location: CachedLocation{
			Latitude:  lat,
			Longitude: lng,
			Name:      name,
			Timezone:  zone.String(),
			Timestamp: now,
		},
		Days:        days,
		LastUpdated: now,
	}
}

func dayPrayers(t astro.Times, loc *time.Location) prayer.DayPrayers {
	ordered := t.Ordered()
	day := make(prayer.DayPrayers, prayer.Count)
	for i, k := range prayer.Kinds {
		day[i] = prayer.NewPrayerTime(k, ordered[i], loc)
	}
	return day
}

// LoadYear returns the stored bucket for year, or nil when it is absent or
// unusable.
func (s *Service) LoadYear(ctx context.Context, year int) *YearlyCache {
	yc, _ := s.loadYear(ctx, year)
	return yc
}

// loadYear returns the bucket or the miss reason.
func (s *Service) loadYear(ctx context.Context, year int) (*YearlyCache, string) {
	var yc YearlyCache
	found, err := s.getJSON(ctx, YearKey(year), &yc)
	switch {
	case errors.Is(err, errCorrupt):
		s.log.Warn().Err(err).Int("year", year).Msg("discarding corrupt prayer cache")
		return nil, missCorrupt
	case err != nil:
		s.metrics.storeError("read")
		s.log.Warn().Err(err).Int("year", year).Msg("prayer cache read failed")
		return nil, missRead
	case !found:
		return nil, missAbsent
	case yc.Version != SchemaVersion:
		s.log.Info().Int("year", year).Int("version", yc.Version).Int("want", SchemaVersion).
			Msg("prayer cache schema changed")
		return nil, missVersion
	case yc.Year != year || yc.Days == nil:
		s.log.Warn().Int("year", year).Int("stored_year", yc.Year).Msg("discarding mislabelled prayer cache")
		return nil, missCorrupt
	}
	return &yc, ""
}

// ClearCache removes every stored year and returns how many were removed.
// The last-known location is kept.
func (s *Service) ClearCache(ctx context.Context) (int, error) {
	n, err := s.store.RemovePrefix(ctx, KeyPrefix)
	if err != nil {
		return n, fmt.Errorf("failed to clear prayer cache: %w", err)
	}
	s.log.Info().Int("removed", n).Msg("prayer cache cleared")
	return n, nil
}

// CacheInfo lists the cached years in ascending order.
func (s *Service) CacheInfo(ctx context.Context) (Info, error) {
	keys, err := s.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return Info{}, fmt.Errorf("failed to list prayer cache: %w", err)
	}
	info := Info{Years: []int{}, TotalSize: len(keys)}
	for _, k := range keys {
		if year, ok := parseYearKey(k); ok {
			info.Years = append(info.Years, year)
		}
	}
	sort.Ints(info.Years)
	return info, nil
}

// IsOnline is a best-effort connectivity signal. Without a checker the
// service reports offline.
func (s *Service) IsOnline(ctx context.Context) bool {
	if s.checker == nil {
		return false
	}
	return s.checker.Online(ctx)
}

var errCorrupt = errors.New("corrupt cache entry")

// getJSON decodes key into v. A missing key is (false, nil).
func (s *Service) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", errCorrupt, key, err)
	}
	return true, nil
}

func (s *Service) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.store.Set(ctx, key, data)
}
