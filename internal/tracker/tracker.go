// Package tracker keeps today's prayer schedule current for a long-running
// consumer: it renders from the cache instantly, reconciles with a live
// location fix, and refreshes at local midnight.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/mawaqit/internal/cache"
	"github.com/smokyabdulrahman/mawaqit/internal/geo"
	"github.com/smokyabdulrahman/mawaqit/internal/i18n"
	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
)

// Source is the part of cache.Service the tracker depends on.
type Source interface {
	GetPrayersForDate(ctx context.Context, date time.Time, lat, lng float64, name string) (prayer.DayPrayers, error)
	CacheYearPrayers(ctx context.Context, lat, lng float64, year int, name string) (*cache.YearlyCache, error)
	GetLastLocation(ctx context.Context) (*cache.CachedLocation, error)
	SaveLastLocation(ctx context.Context, loc cache.CachedLocation) error
	HasLocationChanged(oldLat, oldLng, newLat, newLng float64) bool
	GetLocationName(ctx context.Context, lat, lng float64) string
	IsOnline(ctx context.Context) bool
}

var _ Source = (*cache.Service)(nil)

// State is what a consumer renders.
type State struct {
	Prayers  prayer.DayPrayers `json:"prayers"`
	Loading  bool              `json:"loading"`
	Err      string            `json:"error,omitempty"`
	Location string            `json:"location,omitempty"`
	Offline  bool              `json:"offline"`
}

// Default timings.
const (
	DefaultFixTimeout = 10 * time.Second
	DefaultWarmDelay  = time.Second
)

// Tracker owns the current prayer State.
type Tracker struct {
	src        Source
	provider   geo.Provider
	msgs       i18n.Messages
	loc        *time.Location
	now        func() time.Time
	log        zerolog.Logger
	fixTimeout time.Duration
	warmDelay  time.Duration

	mu      sync.Mutex
	state   State
	current *cache.CachedLocation
	subs    map[int]func(State)
	nextSub int

	refreshMu sync.Mutex
	cron      *cron.Cron
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMessages sets the language of the error strings in State.
func WithMessages(m i18n.Messages) Option { return func(t *Tracker) { t.msgs = m } }

// WithLocation sets the zone that defines "today" and midnight.
func WithLocation(loc *time.Location) Option { return func(t *Tracker) { t.loc = loc } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(t *Tracker) { t.log = l } }

// WithFixTimeout bounds each location fix.
func WithFixTimeout(d time.Duration) Option { return func(t *Tracker) { t.fixTimeout = d } }

// WithWarmDelay sets the pause between a cached render and the live refresh.
func WithWarmDelay(d time.Duration) Option { return func(t *Tracker) { t.warmDelay = d } }

// New creates a Tracker. It does nothing until Start or Refresh is called.
func New(src Source, provider geo.Provider, opts ...Option) *Tracker {
	t := &Tracker{
		src:        src,
		provider:   provider,
		msgs:       i18n.Arabic(),
		loc:        time.Local,
		now:        time.Now,
		log:        zerolog.Nop(),
		fixTimeout: DefaultFixTimeout,
		warmDelay:  DefaultWarmDelay,
		state:      State{Loading: true},
		subs:       make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start renders from the cache when possible, then reconciles with a live
// fix: in the background after a short delay if the cache was usable,
// otherwise before returning. A refresh is scheduled at every local
// midnight until Stop.
func (t *Tracker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	c := cron.New(cron.WithLocation(t.loc))
	if _, err := c.AddFunc("@midnight", func() {
		t.log.Info().Msg("midnight refresh")
		t.refresh(ctx, false)
	}); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule midnight refresh: %w", err)
	}

	if t.fromCache(ctx) {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.warmDelay):
			}
			t.refresh(ctx, false)
		}()
	} else {
		t.refresh(ctx, true)
	}

	c.Start()
	t.mu.Lock()
	t.cron = c
	t.mu.Unlock()
	return nil
}

// Stop cancels scheduled and background work and waits for it to finish.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel, c := t.cancel, t.cron
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}
	t.wg.Wait()
}

// Refresh re-acquires the location and reloads today's prayers without
// showing the loading state.
func (t *Tracker) Refresh(ctx context.Context) {
	t.refresh(ctx, false)
}

// State returns a snapshot of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state
	s.Prayers = append(prayer.DayPrayers(nil), t.state.Prayers...)
	return s
}

// CurrentLocation returns the location the prayers belong to, or nil.
func (t *Tracker) CurrentLocation() *cache.CachedLocation {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	loc := *t.current
	return &loc
}

// Subscribe registers fn to receive every state change. The returned
// function removes it.
func (t *Tracker) Subscribe(fn func(State)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// PrayersByDate returns the schedule of date at the current location, or
// the current prayers when no location is known or the lookup fails.
func (t *Tracker) PrayersByDate(ctx context.Context, date time.Time) prayer.DayPrayers {
	cur := t.CurrentLocation()
	if cur == nil {
		return t.State().Prayers
	}
	day, err := t.src.GetPrayersForDate(ctx, date, cur.Latitude, cur.Longitude, cur.Name)
	if err != nil {
		t.log.Warn().Err(err).Time("date", date).Msg("prayers by date failed")
		return t.State().Prayers
	}
	return day
}

func (t *Tracker) update(fn func(s *State)) {
	t.mu.Lock()
	fn(&t.state)
	snap := t.state
	snap.Prayers = append(prayer.DayPrayers(nil), t.state.Prayers...)
	subs := make([]func(State), 0, len(t.subs))
	for _, s := range t.subs {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		s(snap)
	}
}

// fromCache renders today's prayers for the last known location.
func (t *Tracker) fromCache(ctx context.Context) bool {
	last, err := t.src.GetLastLocation(ctx)
	if err != nil || last == nil {
		return false
	}
	t.mu.Lock()
	t.current = last
	t.mu.Unlock()
	t.update(func(s *State) { s.Location = last.Name })

	day, err := t.src.GetPrayersForDate(ctx, t.now().In(t.loc), last.Latitude, last.Longitude, last.Name)
	if err != nil || len(day) == 0 {
		t.log.Warn().Err(err).Msg("cached prayers unavailable")
		return false
	}
	t.update(func(s *State) {
		s.Prayers = day
		s.Loading = false
		s.Offline = true
	})
	return true
}

// fail falls back to the cache, or surfaces msg when there is none.
func (t *Tracker) fail(ctx context.Context, msg string) {
	ok := t.fromCache(ctx)
	t.update(func(s *State) {
		if ok {
			s.Offline = true
		} else {
			s.Err = msg
		}
		s.Loading = false
	})
}

func (t *Tracker) refresh(ctx context.Context, showLoading bool) {
	t.refreshMu.Lock()
	defer t.refreshMu.Unlock()

	t.update(func(s *State) {
		if showLoading {
			s.Loading = true
		}
		s.Err = ""
	})

	online := t.src.IsOnline(ctx)
	t.update(func(s *State) { s.Offline = !online })

	granted, err := t.provider.RequestPermission(ctx)
	if err != nil || !granted {
		t.log.Info().Err(err).Msg("location permission not granted")
		ok := t.fromCache(ctx)
		t.update(func(s *State) {
			if !ok {
				s.Err = t.msgs.LocationPermission
			}
			s.Loading = false
		})
		return
	}

	fixCtx, cancel := context.WithTimeout(ctx, t.fixTimeout)
	fix, err := t.provider.CurrentLocation(fixCtx)
	cancel()
	if err != nil {
		t.log.Warn().Err(err).Msg("location fix failed")
		t.fail(ctx, t.msgs.LocationUnavailable)
		return
	}

	prev := t.CurrentLocation()
	changed := prev == nil || t.src.HasLocationChanged(prev.Latitude, prev.Longitude, fix.Latitude, fix.Longitude)

	name := t.src.GetLocationName(ctx, fix.Latitude, fix.Longitude)
	now := t.now().In(t.loc)
	loc := cache.CachedLocation{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Name:      name,
		Timezone:  fix.Timezone,
		Timestamp: now.UnixMilli(),
	}
	t.mu.Lock()
	t.current = &loc
	t.mu.Unlock()
	t.update(func(s *State) { s.Location = name })

	if err := t.src.SaveLastLocation(ctx, loc); err != nil {
		t.log.Warn().Err(err).Msg("could not remember location")
	}

	day, err := t.src.GetPrayersForDate(ctx, now, loc.Latitude, loc.Longitude, name)
	if err != nil {
		t.log.Error().Err(err).Msg("loading prayer times failed")
		t.fail(ctx, t.msgs.LoadFailed)
		return
	}
	t.update(func(s *State) {
		s.Prayers = day
		s.Loading = false
	})

	if changed && online {
		next := now.Year() + 1
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			if _, err := t.src.CacheYearPrayers(ctx, loc.Latitude, loc.Longitude, next, name); err != nil {
				t.log.Warn().Err(err).Int("year", next).Msg("background prefetch failed")
				return
			}
			t.log.Debug().Int("year", next).Msg("prefetched next year")
		}()
	}
}
