package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokyabdulrahman/mawaqit/internal/astro"
	"github.com/smokyabdulrahman/mawaqit/internal/geo"
	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
	"github.com/smokyabdulrahman/mawaqit/internal/store"
)

var riyadh = time.FixedZone("AST", 3*60*60)

const (
	riyadhLat = 24.7136
	riyadhLng = 46.6753
)

// countingCalc wraps the MWL calculator and counts invocations.
type countingCalc struct {
	calls atomic.Int64
	inner astro.Calculator
}

func newCountingCalc() *countingCalc { return &countingCalc{inner: astro.MWL()} }

func (c *countingCalc) Compute(co astro.Coordinates, date time.Time) astro.Times {
	c.calls.Add(1)
	return c.inner.Compute(co, date)
}

// spyStore counts writes and can be told to fail them.
type spyStore struct {
	store.Store
	writes   atomic.Int64
	failSets bool
}

func (s *spyStore) Set(ctx context.Context, key string, value []byte) error {
	s.writes.Add(1)
	if s.failSets {
		return errors.New("disk full")
	}
	return s.Store.Set(ctx, key, value)
}

type fixture struct {
	svc   *Service
	calc  *countingCalc
	store *spyStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{calc: newCountingCalc(), store: &spyStore{Store: store.NewMemory()}}
	base := []Option{
		WithCalculator(f.calc),
		WithLocation(riyadh),
		WithClock(func() time.Time { return time.Date(2025, 1, 15, 9, 0, 0, 0, riyadh) }),
	}
	f.svc = New(f.store, append(base, opts...)...)
	return f
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, riyadh)
}

// ---------------------------------------------------------------------------
// GetPrayersForDate
// ---------------------------------------------------------------------------

func TestGetPrayersForDate_ColdComputesWholeYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.GetPrayersForDate(ctx, day(2024, 3, 10), riyadhLat, riyadhLng, "Riyadh")
	require.NoError(t, err)
	require.NoError(t, got.Validate())
	assert.EqualValues(t, 366, f.calc.calls.Load())
	assert.EqualValues(t, 1, f.store.writes.Load())

	yc := f.svc.LoadYear(ctx, 2024)
	require.NotNil(t, yc)
	assert.Equal(t, SchemaVersion, yc.Version)
	assert.Equal(t, 2024, yc.Year)
	assert.Len(t, yc.Days, 366)
	assert.Equal(t, "Riyadh", yc.Location.Name)
	assert.Equal(t, got, yc.Days["2024-03-10"])
}

func TestGetPrayersForDate_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.GetPrayersForDate(ctx, day(2025, 6, 1), riyadhLat, riyadhLng, "Riyadh")
	require.NoError(t, err)
	writes := f.store.writes.Load()

	second, err := f.svc.GetPrayersForDate(ctx, day(2025, 6, 1), riyadhLat, riyadhLng, "Riyadh")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, writes, f.store.writes.Load(), "second call must not write")
}

func TestGetPrayersForDate_WarmCacheSkipsCalculator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CacheYearPrayers(ctx, riyadhLat, riyadhLng, 2025, "Riyadh")
	require.NoError(t, err)
	f.calc.calls.Store(0)

	got, err := f.svc.GetPrayersForDate(ctx, day(2025, 1, 15), riyadhLat, riyadhLng, "Riyadh")
	require.NoError(t, err)
	assert.Len(t, got, prayer.Count)
	assert.Zero(t, f.calc.calls.Load())
}

func TestGetPrayersForDate_WithinToleranceIsHit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CacheYearPrayers(ctx, riyadhLat, riyadhLng, 2025, "Riyadh")
	require.NoError(t, err)
	f.calc.calls.Store(0)

	_, err = f.svc.GetPrayersForDate(ctx, day(2025, 2, 2), riyadhLat+0.009, riyadhLng-0.009, "Riyadh")
	require.NoError(t, err)
	assert.Zero(t, f.calc.calls.Load())
}

func TestGetPrayersForDate_FiftyKilometreMoveRecomputes(t *testing.T) {
	tests := []struct {
		year int
		want int64
	}{
		{2025, 365},
		{2024, 366},
	}
	for _, tt := range tests {
		f := newFixture(t)
		ctx := context.Background()

		_, err := f.svc.CacheYearPrayers(ctx, riyadhLat, riyadhLng, tt.year, "Riyadh")
		require.NoError(t, err)
		f.calc.calls.Store(0)

		// 0.45° of latitude is about 50 km.
		_, err = f.svc.GetPrayersForDate(ctx, day(tt.year, 8, 20), riyadhLat+0.45, riyadhLng, "")
		require.NoError(t, err)
		assert.Equal(t, tt.want, f.calc.calls.Load(), "year %d", tt.year)
	}
}

func TestGetPrayersForDate_ReplacesWholeYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const bLat, bLng = 21.4225, 39.8262

	_, err := f.svc.GetPrayersForDate(ctx, day(2024, 1, 10), riyadhLat, riyadhLng, "A")
	require.NoError(t, err)
	_, err = f.svc.GetPrayersForDate(ctx, day(2024, 1, 10), bLat, bLng, "B")
	require.NoError(t, err)

	yc := f.svc.LoadYear(ctx, 2024)
	require.NotNil(t, yc)
	assert.Equal(t, "B", yc.Location.Name)
	require.Len(t, yc.Days, 366)

	// Every day, including ones never requested, carries B's times.
	ref := newFixture(t)
	want, err := ref.svc.CacheYearPrayers(ctx, bLat, bLng, 2024, "B")
	require.NoError(t, err)
	for key, d := range want.Days {
		assert.Equal(t, d, yc.Days[key], key)
	}
}

func TestGetPrayersForDate_DateKeyInServiceZone(t *testing.T) {
	f := newFixture(t)
	// 22:30 UTC on Dec 31 is already Jan 1 in Riyadh.
	at := time.Date(2024, 12, 31, 22, 30, 0, 0, time.UTC)

	got, err := f.svc.GetPrayersForDate(context.Background(), at, riyadhLat, riyadhLng, "")
	require.NoError(t, err)

	assert.NotNil(t, f.svc.LoadYear(context.Background(), 2025))
	assert.Nil(t, f.svc.LoadYear(context.Background(), 2024))
	fajr := got[prayer.Fajr].At(riyadh)
	assert.Equal(t, "2025-01-01", prayer.DateKey(fajr))
}

func TestGetPrayersForDate_OrderingAcrossYear(t *testing.T) {
	f := newFixture(t)
	yc, err := f.svc.CacheYearPrayers(context.Background(), riyadhLat, riyadhLng, 2025, "")
	require.NoError(t, err)
	for key, d := range yc.Days {
		assert.NoError(t, d.Validate(), key)
		for _, p := range d {
			assert.Equal(t, key, prayer.DateKey(p.At(riyadh)), "%s %s", key, p.Name)
		}
	}
}

func TestGetPrayersForDate_VersionMismatchIsMiss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	yc, err := f.svc.CacheYearPrayers(ctx, riyadhLat, riyadhLng, 2025, "Riyadh")
	require.NoError(t, err)
	yc.Version = 1
	data, err := json.Marshal(yc)
	require.NoError(t, err)
	require.NoError(t, f.store.Store.Set(ctx, YearKey(2025), data))
	f.calc.calls.Store(0)

	_, err = f.svc.GetPrayersForDate(ctx, day(2025, 5, 5), riyadhLat, riyadhLng, "Riyadh")
	require.NoError(t, err)
	assert.EqualValues(t, 365, f.calc.calls.Load())
	assert.Equal(t, SchemaVersion, f.svc.LoadYear(ctx, 2025).Version)
}

func TestGetPrayersForDate_CorruptDataIsMiss(t *testing.T) {
	payloads := map[string]string{
		"not json":     `{"version":2,"year":`,
		"wrong year":   `{"version":2,"year":1999,"location":{},"days":{}}`,
		"missing days": `{"version":2,"year":2025,"location":{"latitude":24.7136,"longitude":46.6753}}`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			require.NoError(t, f.store.Store.Set(ctx, YearKey(2025), []byte(payload)))

			got, err := f.svc.GetPrayersForDate(ctx, day(2025, 5, 5), riyadhLat, riyadhLng, "")
			require.NoError(t, err)
			assert.Len(t, got, prayer.Count)
			assert.EqualValues(t, 365, f.calc.calls.Load())
		})
	}
}

func TestGetPrayersForDate_WriteFailureStillReturnsDay(t *testing.T) {
	f := newFixture(t)
	f.store.failSets = true

	got, err := f.svc.GetPrayersForDate(context.Background(), day(2025, 3, 3), riyadhLat, riyadhLng, "")
	require.NoError(t, err)
	assert.NoError(t, got.Validate())
	assert.Nil(t, f.svc.LoadYear(context.Background(), 2025))
}

func TestGetPrayersForDate_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.GetPrayersForDate(ctx, day(2025, 3, 3), riyadhLat, riyadhLng, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.calc.calls.Load())
}

// ---------------------------------------------------------------------------
// CacheYearPrayers
// ---------------------------------------------------------------------------

func TestCacheYearPrayers_ReturnsWriteError(t *testing.T) {
	f := newFixture(t)
	f.store.failSets = true

	yc, err := f.svc.CacheYearPrayers(context.Background(), riyadhLat, riyadhLng, 2025, "")
	assert.ErrorContains(t, err, "disk full")
	require.NotNil(t, yc)
	assert.Len(t, yc.Days, 365)
}

func TestCacheYearPrayers_ConcurrentCallsShareWork(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	var calls atomic.Int64
	calc := astro.CalculatorFunc(func(c astro.Coordinates, d time.Time) astro.Times {
		once.Do(func() {
			close(entered)
			<-gate
		})
		calls.Add(1)
		return astro.MWL().Compute(c, d)
	})
	svc := New(store.NewMemory(), WithCalculator(calc), WithLocation(riyadh))
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*YearlyCache, 6)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = svc.CacheYearPrayers(ctx, riyadhLat, riyadhLng, 2025, "")
	}()
	<-entered
	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.CacheYearPrayers(ctx, riyadhLat, riyadhLng, 2025, "")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.EqualValues(t, 365, calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestCacheYearPrayers_CancelledCallerDoesNotFailOthers(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	calc := astro.CalculatorFunc(func(c astro.Coordinates, d time.Time) astro.Times {
		once.Do(func() {
			close(entered)
			<-gate
		})
		return astro.MWL().Compute(c, d)
	})
	svc := New(store.NewMemory(), WithCalculator(calc), WithLocation(riyadh))

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.CacheYearPrayers(ctxA, riyadhLat, riyadhLng, 2025, "")
		errA <- err
	}()
	<-entered

	type result struct {
		yc  *YearlyCache
		err error
	}
	resB := make(chan result, 1)
	go func() {
		yc, err := svc.CacheYearPrayers(context.Background(), riyadhLat, riyadhLng, 2025, "")
		resB <- result{yc, err}
	}()

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller kept waiting for the computation")
	}

	close(gate)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		require.NotNil(t, r.yc)
		assert.Len(t, r.yc.Days, 365)
	case <-time.After(10 * time.Second):
		t.Fatal("second caller never got the year")
	}
	assert.NotNil(t, svc.LoadYear(context.Background(), 2025))
}

// ---------------------------------------------------------------------------
// Location tolerance
// ---------------------------------------------------------------------------

func TestLocationTolerance(t *testing.T) {
	tests := []struct {
		name        string
		dLat, dLng  float64
		wantChanged bool
		wantSame    bool
	}{
		{"identical", 0, 0, false, true},
		{"0.009 lat", 0.009, 0, false, true},
		{"0.009 lng", 0, -0.009, false, true},
		// Exactly on the boundary neither check holds: not strictly within
		// and not strictly beyond.
		{"exactly 0.01 lat", 0.01, 0, false, false},
		{"0.011 lat", 0.011, 0, true, false},
		{"0.011 lng", 0, 0.011, true, false},
		{"50 km", 0.45, 0, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := HasLocationChanged(0, 0, tt.dLat, tt.dLng)
			same := SameLocation(0, 0, tt.dLat, tt.dLng)
			assert.Equal(t, tt.wantChanged, changed, "HasLocationChanged")
			assert.Equal(t, tt.wantSame, same, "SameLocation")
			// Never both: a changed location is never a cache hit.
			assert.False(t, changed && same)
		})
	}
}

func TestLocationTolerance_NominalStep(t *testing.T) {
	// 24.7236-24.7136 is slightly above 0.01 in float64: changed and no hit.
	assert.True(t, HasLocationChanged(24.7136, 46.6753, 24.7236, 46.6753))
	assert.False(t, SameLocation(24.7136, 46.6753, 24.7236, 46.6753))

	assert.False(t, HasLocationChanged(24.7136, 46.6753, 24.7226, 46.6753))
	assert.True(t, SameLocation(24.7136, 46.6753, 24.7226, 46.6753))
}

func TestLocationTolerance_BoundaryIsCacheMiss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CacheYearPrayers(ctx, 0, 30, 2025, "")
	require.NoError(t, err)
	f.calc.calls.Store(0)

	_, err = f.svc.GetPrayersForDate(ctx, day(2025, 4, 4), 0.01, 30, "")
	require.NoError(t, err)
	assert.EqualValues(t, 365, f.calc.calls.Load())
	assert.False(t, f.svc.HasLocationChanged(0, 30, 0.01, 30))
	assert.False(t, f.svc.SameLocation(0, 30, 0.01, 30))
}

// ---------------------------------------------------------------------------
// Last location
// ---------------------------------------------------------------------------

func TestLastLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.GetLastLocation(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := CachedLocation{Latitude: riyadhLat, Longitude: riyadhLng, Name: "الرياض, السعودية", Timestamp: 1736920800000}
	require.NoError(t, f.svc.SaveLastLocation(ctx, want))

	got, err = f.svc.GetLastLocation(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	raw, err := f.store.Get(ctx, LocationKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"latitude":24.7136,"longitude":46.6753,"name":"الرياض, السعودية","timestamp":1736920800000}`, string(raw))
}

func TestLastLocation_Corrupt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Store.Set(ctx, LocationKey, []byte("{")))

	got, err := f.svc.GetLastLocation(ctx)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestLastLocation_SaveFailure(t *testing.T) {
	f := newFixture(t)
	f.store.failSets = true
	err := f.svc.SaveLastLocation(context.Background(), CachedLocation{})
	assert.ErrorContains(t, err, "last location")
}

// ---------------------------------------------------------------------------
// GetLocationName
// ---------------------------------------------------------------------------

type fakeGeocoder struct {
	places []geo.Place
	err    error
}

func (g fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) ([]geo.Place, error) {
	return g.places, g.err
}

func TestGetLocationName(t *testing.T) {
	tests := []struct {
		name string
		geo  geo.Geocoder
		want string
	}{
		{"city and country", fakeGeocoder{places: []geo.Place{{City: "Riyadh", Region: "Riyadh Province", Country: "Saudi Arabia"}}}, "Riyadh, Saudi Arabia"},
		{"subregion fallback", fakeGeocoder{places: []geo.Place{{Subregion: "Al Kharj", Region: "Riyadh Province", Country: "Saudi Arabia"}}}, "Al Kharj, Saudi Arabia"},
		{"region fallback", fakeGeocoder{places: []geo.Place{{Region: "Riyadh Province"}}}, "Riyadh Province"},
		{"country only", fakeGeocoder{places: []geo.Place{{Country: "Saudi Arabia"}}}, "Saudi Arabia"},
		{"empty place", fakeGeocoder{places: []geo.Place{{}}}, "24.7136°, 46.6753°"},
		{"no results", fakeGeocoder{}, "24.7136°, 46.6753°"},
		{"error", fakeGeocoder{err: errors.New("offline")}, "24.7136°, 46.6753°"},
		{"no geocoder", nil, "24.7136°, 46.6753°"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.geo != nil {
				opts = append(opts, WithGeocoder(tt.geo))
			}
			f := newFixture(t, opts...)
			assert.Equal(t, tt.want, f.svc.GetLocationName(context.Background(), riyadhLat, riyadhLng))
		})
	}
}

func TestCoordinateName_Negative(t *testing.T) {
	assert.Equal(t, "-33.9249°, 18.4241°", CoordinateName(-33.92487, 18.42406))
}

// ---------------------------------------------------------------------------
// ClearCache / CacheInfo
// ---------------------------------------------------------------------------

func TestClearCacheAndInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	info, err := f.svc.CacheInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, Info{Years: []int{}, TotalSize: 0}, info)

	for _, y := range []int{2026, 2024, 2025} {
		_, err := f.svc.CacheYearPrayers(ctx, riyadhLat, riyadhLng, y, "")
		require.NoError(t, err)
	}
	require.NoError(t, f.svc.SaveLastLocation(ctx, CachedLocation{Latitude: 1}))

	info, err = f.svc.CacheInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2025, 2026}, info.Years)
	assert.Equal(t, 3, info.TotalSize)

	n, err := f.svc.ClearCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	info, err = f.svc.CacheInfo(ctx)
	require.NoError(t, err)
	assert.Empty(t, info.Years)

	loc, err := f.svc.GetLastLocation(ctx)
	require.NoError(t, err)
	assert.NotNil(t, loc, "last location survives ClearCache")
}

// ---------------------------------------------------------------------------
// IsOnline / metrics
// ---------------------------------------------------------------------------

type fakeChecker bool

func (p fakeChecker) Online(ctx context.Context) bool { return bool(p) }

func TestIsOnline(t *testing.T) {
	assert.False(t, newFixture(t).svc.IsOnline(context.Background()))
	assert.True(t, newFixture(t, WithChecker(fakeChecker(true))).svc.IsOnline(context.Background()))
	assert.False(t, newFixture(t, WithChecker(fakeChecker(false))).svc.IsOnline(context.Background()))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	f := newFixture(t, WithMetrics(m))
	ctx := context.Background()

	_, err := f.svc.GetPrayersForDate(ctx, day(2025, 1, 1), riyadhLat, riyadhLng, "")
	require.NoError(t, err)
	_, err = f.svc.GetPrayersForDate(ctx, day(2025, 1, 2), riyadhLat, riyadhLng, "")
	require.NoError(t, err)
	_, err = f.svc.GetPrayersForDate(ctx, day(2025, 1, 2), 0, 0, "")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Misses.WithLabelValues("absent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Misses.WithLabelValues("location")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Recomputes))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	m.hit()
	m.miss("absent")
	m.recomputed(time.Second)
	m.storeError("write")
}
