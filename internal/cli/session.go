package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smokyabdulrahman/mawaqit/internal/cache"
	"github.com/smokyabdulrahman/mawaqit/internal/geo"
	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
	"github.com/smokyabdulrahman/mawaqit/internal/store"
	"github.com/smokyabdulrahman/mawaqit/internal/tracker"
)

// session is an open cache service plus the zone it renders in.
type session struct {
	svc  *cache.Service
	tz   *time.Location
	st   store.Store
	opts []cache.Option
}

func (s *session) Close() {
	_ = s.st.Close()
}

// open connects the configured store and builds the cache service in the
// configured (or local) zone. settle moves it to the location's zone.
func (a *app) open(ctx context.Context, opts ...cache.Option) (*session, error) {
	tz, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, a.cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", a.cfg.Store, err)
	}
	a.log.Debug().Str("store", a.cfg.Store).Str("timezone", tz.String()).Msg("opened cache")

	base := []cache.Option{
		cache.WithClock(a.now),
		cache.WithLogger(a.log),
		cache.WithGeocoder(a.geocoderOrDefault()),
		cache.WithChecker(a.checkerOrDefault()),
	}
	s := &session{tz: tz, st: st, opts: append(base, opts...)}
	s.svc = s.service(tz)
	return s, nil
}

func (s *session) service(tz *time.Location) *cache.Service {
	opts := append([]cache.Option{cache.WithLocation(tz)}, s.opts...)
	return cache.New(s.st, opts...)
}

// zoneFor picks the clock for loc: the configured timezone, else the zone
// remembered with loc, else the local zone. A zone whose calendar days do
// not line up with the solar days at loc is replaced by cache.SolarZone.
func (a *app) zoneFor(base *time.Location, loc cache.CachedLocation) *time.Location {
	zone := base
	if a.cfg.Timezone == "" && loc.Timezone != "" {
		if z, err := time.LoadLocation(loc.Timezone); err == nil {
			zone = z
		} else {
			a.log.Debug().Err(err).Str("timezone", loc.Timezone).Msg("ignoring remembered time zone")
		}
	}
	fit, ok := cache.FitZone(zone, loc.Longitude, a.now())
	if !ok {
		a.log.Warn().Str("timezone", zone.String()).Float64("longitude", loc.Longitude).Str("using", fit.String()).
			Msg("time zone is too far from solar time at this location, using solar time")
	}
	return fit
}

// settle switches s to the zone chosen for loc.
func (a *app) settle(s *session, loc cache.CachedLocation) {
	tz := a.zoneFor(s.tz, loc)
	if tz == s.tz {
		return
	}
	a.log.Debug().Str("timezone", tz.String()).Msg("using location time zone")
	s.tz = tz
	s.svc = s.service(tz)
}

func (a *app) geocoderOrDefault() geo.Geocoder {
	if a.geocoder != nil {
		return a.geocoder
	}
	return geo.NewNominatim(a.cfg.Lang)
}

func (a *app) checkerOrDefault() cache.Checker {
	if a.checker != nil {
		return a.checker
	}
	return geo.NewHTTPChecker()
}

func (a *app) locatorOrDefault() geo.Provider {
	if a.locator != nil {
		return a.locator
	}
	return geo.NewIPLocator(a.cfg.AutoLocateEnabled())
}

// errNoLocation is returned when no position is configured, remembered or
// detectable.
var errNoLocation = errors.New("no location: run `mawaqit location set <lat> <lng>` or pass --latitude and --longitude")

// source says where a resolved location came from.
type source string

const (
	sourceConfig source = "config"
	sourceCache  source = "cache"
	sourceDetect source = "detected"
)

// resolveLocation picks the position to compute for: configured coordinates,
// then the remembered last location, then IP geolocation when auto_locate is
// on. A detected position is remembered for next time.
func (a *app) resolveLocation(ctx context.Context, svc *cache.Service) (cache.CachedLocation, source, error) {
	if a.cfg.HasCoordinates() {
		name := a.cfg.LocationName
		if name == "" {
			name = cache.CoordinateName(a.cfg.Latitude, a.cfg.Longitude)
		}
		return cache.CachedLocation{
			Latitude:  a.cfg.Latitude,
			Longitude: a.cfg.Longitude,
			Name:      name,
			Timestamp: a.now().UnixMilli(),
		}, sourceConfig, nil
	}

	last, err := svc.GetLastLocation(ctx)
	if err != nil {
		return cache.CachedLocation{}, "", err
	}
	if last != nil {
		return *last, sourceCache, nil
	}

	if !a.cfg.AutoLocateEnabled() {
		return cache.CachedLocation{}, "", errNoLocation
	}
	loc, err := a.detect(ctx, svc)
	if err != nil {
		return cache.CachedLocation{}, "", err
	}
	return loc, sourceDetect, nil
}

// detect asks the locator for a fix and remembers it.
func (a *app) detect(ctx context.Context, svc *cache.Service) (cache.CachedLocation, error) {
	p := a.locatorOrDefault()
	granted, err := p.RequestPermission(ctx)
	if err != nil || !granted {
		a.log.Debug().Err(err).Msg("location permission not granted")
		return cache.CachedLocation{}, errNoLocation
	}

	fixCtx, cancel := context.WithTimeout(ctx, tracker.DefaultFixTimeout)
	defer cancel()
	fix, err := p.CurrentLocation(fixCtx)
	if err != nil {
		return cache.CachedLocation{}, fmt.Errorf("%s: %w", a.msgs.LocationUnavailable, err)
	}

	loc := cache.CachedLocation{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Name:      placeName(fix),
		Timezone:  fix.Timezone,
		Timestamp: a.now().UnixMilli(),
	}
	if loc.Name == "" {
		loc.Name = svc.GetLocationName(ctx, fix.Latitude, fix.Longitude)
	}
	if err := svc.SaveLastLocation(ctx, loc); err != nil {
		a.log.Warn().Err(err).Msg("could not remember location")
	}
	a.log.Info().Str("name", loc.Name).Msg("detected location")
	return loc, nil
}

// placeName joins the city and country reported with an IP fix.
func placeName(l *geo.Location) string {
	var parts []string
	for _, s := range []string{l.City, l.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// day is one resolved schedule.
type day struct {
	session  *session
	location cache.CachedLocation
	source   source
	date     time.Time
	prayers  prayer.DayPrayers
}

// locate opens the cache, resolves the location and settles the session in
// its zone. The caller closes the returned session.
func (a *app) locate(ctx context.Context, opts ...cache.Option) (*session, cache.CachedLocation, source, error) {
	s, err := a.open(ctx, opts...)
	if err != nil {
		return nil, cache.CachedLocation{}, "", err
	}
	loc, src, err := a.resolveLocation(ctx, s.svc)
	if err != nil {
		s.Close()
		return nil, cache.CachedLocation{}, "", err
	}
	a.settle(s, loc)
	return s, loc, src, nil
}

// prayersFor locates and loads date's prayers; date receives the current
// time in the location's zone. The caller closes the returned session.
func (a *app) prayersFor(ctx context.Context, date func(now time.Time) time.Time) (*day, error) {
	s, loc, src, err := a.locate(ctx)
	if err != nil {
		return nil, err
	}
	d := date(s.svc.Now())
	prayers, err := s.svc.GetPrayersForDate(ctx, d, loc.Latitude, loc.Longitude, loc.Name)
	if err != nil {
		s.Close()
		return nil, err
	}
	return &day{session: s, location: loc, source: src, date: d, prayers: prayers}, nil
}

func today(now time.Time) time.Time { return now }

// onDate returns a date picker for a YYYY-MM-DD key, read in the zone of
// the location it is used for.
func onDate(key string) (func(now time.Time) time.Time, error) {
	if _, err := prayer.ParseDateKey(key, time.UTC); err != nil {
		return nil, err
	}
	return func(now time.Time) time.Time {
		t, _ := prayer.ParseDateKey(key, now.Location())
		return t
	}, nil
}

// more loads the n-1 days following d.date, in order.
func (d *day) more(ctx context.Context, n int) ([]prayer.DayPrayers, error) {
	days := []prayer.DayPrayers{d.prayers}
	for i := 1; i < n; i++ {
		p, err := d.session.svc.GetPrayersForDate(ctx, d.date.AddDate(0, 0, i), d.location.Latitude, d.location.Longitude, d.location.Name)
		if err != nil {
			return nil, err
		}
		days = append(days, p)
	}
	return days, nil
}

// nextPrayer returns the next prayer after now, looking at tomorrow's Fajr
// once today's Isha has passed.
func (d *day) nextPrayer(ctx context.Context, now time.Time) (*prayer.PrayerTime, bool, error) {
	if next := prayer.NextPrayer(d.prayers, now); next != nil {
		return next, false, nil
	}
	tomorrow, err := d.session.svc.GetPrayersForDate(ctx, now.AddDate(0, 0, 1), d.location.Latitude, d.location.Longitude, d.location.Name)
	if err != nil {
		return nil, false, err
	}
	fajr, ok := tomorrow.Get(prayer.Fajr)
	if !ok {
		return nil, false, errors.New("next prayer unavailable")
	}
	return &fajr, true, nil
}
