// Package httpapi serves the current prayer schedule over a local JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/mawaqit/internal/cache"
	"github.com/smokyabdulrahman/mawaqit/internal/hijri"
	"github.com/smokyabdulrahman/mawaqit/internal/i18n"
	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
	"github.com/smokyabdulrahman/mawaqit/internal/qibla"
	"github.com/smokyabdulrahman/mawaqit/internal/tracker"
)

// Server wires the cache service and the tracker to HTTP handlers.
type Server struct {
	svc      *cache.Service
	tr       *tracker.Tracker
	msgs     i18n.Messages
	log      zerolog.Logger
	gatherer prometheus.Gatherer
	requests *prometheus.CounterVec
}

// Option configures a Server.
type Option func(*Server)

// WithMessages sets the language of names and error strings.
func WithMessages(m i18n.Messages) Option { return func(s *Server) { s.msgs = m } }

// WithLogger sets the request logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(s *Server) { s.log = l } }

// WithRegistry registers the request counter on reg and serves reg on
// /metrics. Without it /metrics is not mounted.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.gatherer = reg
		reg.MustRegister(s.requests)
	}
}

// NewServer creates a Server.
func NewServer(svc *cache.Service, tr *tracker.Tracker, opts ...Option) *Server {
	s := &Server{
		svc:  svc,
		tr:   tr,
		msgs: i18n.Arabic(),
		log:  zerolog.Nop(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mawaqit_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/prayers/today", s.handleToday)
		r.Get("/prayers/{date}", s.handleDate)
		r.Get("/next", s.handleNext)
		r.Get("/location", s.handleLocation)
		r.Get("/qibla", s.handleQibla)
		r.Get("/cache", s.handleCache)
		r.Post("/refresh", s.handleRefresh)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observe logs and counts each request by its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.requests.WithLabelValues(route, r.Method, strconv.Itoa(rw.status)).Inc()
		s.log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rw.status).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var errNoLocation = errors.New("location not known yet")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dayResponse is one schedule with its dates.
type dayResponse struct {
	Date     string            `json:"date"`
	Hijri    hijri.FullDate    `json:"hijri"`
	Location string            `json:"location,omitempty"`
	Prayers  prayer.DayPrayers `json:"prayers"`
}

type todayResponse struct {
	tracker.State
	Date  string         `json:"date"`
	Hijri hijri.FullDate `json:"hijri"`
}

// now is the current time in the zone the current location's days are
// keyed in.
func (s *Server) now() time.Time {
	now := s.svc.Now()
	if cur := s.tr.CurrentLocation(); cur != nil {
		now = now.In(s.svc.ZoneFor(cur.Longitude))
	}
	return now
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	writeJSON(w, http.StatusOK, todayResponse{
		State: s.tr.State(),
		Date:  prayer.DateKey(now),
		Hijri: hijri.FormatFull(now, now),
	})
}

func (s *Server) handleDate(w http.ResponseWriter, r *http.Request) {
	cur := s.tr.CurrentLocation()
	zone := s.svc.Location()
	if cur != nil {
		zone = s.svc.ZoneFor(cur.Longitude)
	}
	date, err := prayer.ParseDateKey(chi.URLParam(r, "date"), zone)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if cur == nil {
		writeError(w, http.StatusServiceUnavailable, errNoLocation.Error())
		return
	}
	day, err := s.svc.GetPrayersForDate(r.Context(), date, cur.Latitude, cur.Longitude, cur.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, s.msgs.LoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, dayResponse{
		Date:     prayer.DateKey(date),
		Hijri:    hijri.FormatFull(date, s.now()),
		Location: cur.Name,
		Prayers:  day,
	})
}

type nextResponse struct {
	Prayer    prayer.PrayerTime  `json:"prayer"`
	English   string             `json:"english"`
	Tomorrow  bool               `json:"tomorrow"`
	Remaining string             `json:"remaining"`
	Seconds   int64              `json:"seconds"`
	Current   *prayer.PrayerTime `json:"current,omitempty"`
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	today := s.tr.State().Prayers
	if len(today) == 0 {
		writeError(w, http.StatusServiceUnavailable, errNoLocation.Error())
		return
	}

	next, tomorrow := prayer.NextPrayer(today, now), false
	if next == nil {
		day := s.tr.PrayersByDate(r.Context(), now.AddDate(0, 0, 1))
		if p, ok := day.Get(prayer.Fajr); ok && p.Timestamp > now.UnixMilli() {
			next, tomorrow = &p, true
		}
	}
	if next == nil {
		writeError(w, http.StatusServiceUnavailable, "next prayer unavailable")
		return
	}

	d := prayer.TimeRemaining(*next, now)
	writeJSON(w, http.StatusOK, nextResponse{
		Prayer:    *next,
		English:   prayer.EnglishName(next.Name),
		Tomorrow:  tomorrow,
		Remaining: s.msgs.Remaining(d),
		Seconds:   int64(d / time.Second),
		Current:   prayer.CurrentPrayer(today, now),
	})
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	cur := s.tr.CurrentLocation()
	if cur == nil {
		writeError(w, http.StatusNotFound, errNoLocation.Error())
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

type qiblaResponse struct {
	Bearing    float64 `json:"bearing"`
	Cardinal   string  `json:"cardinal"`
	DistanceKM float64 `json:"distanceKm"`
}

func (s *Server) handleQibla(w http.ResponseWriter, r *http.Request) {
	cur := s.tr.CurrentLocation()
	if cur == nil {
		writeError(w, http.StatusNotFound, errNoLocation.Error())
		return
	}
	b := qibla.Bearing(cur.Latitude, cur.Longitude)
	writeJSON(w, http.StatusOK, qiblaResponse{
		Bearing:    b,
		Cardinal:   qibla.Cardinal(b),
		DistanceKM: qibla.Distance(cur.Latitude, cur.Longitude),
	})
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.CacheInfo(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("cache info failed")
		writeError(w, http.StatusInternalServerError, "failed to read cache")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// Background prefetch started by the refresh outlives the request.
	s.tr.Refresh(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, s.tr.State())
}
