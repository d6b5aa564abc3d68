package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smokyabdulrahman/mawaqit/internal/api"
	"github.com/smokyabdulrahman/mawaqit/internal/cache"
	"github.com/smokyabdulrahman/mawaqit/internal/prayer"
	"github.com/smokyabdulrahman/mawaqit/internal/store"
)

// aladhan serves the locally computed Riyadh schedule with Fajr moved by
// shift, in the shape of the Al Adhan timings endpoint.
func aladhan(t *testing.T, shift time.Duration) *httptest.Server {
	t.Helper()
	svc := cache.New(store.NewMemory(), cache.WithLocation(riyadhTZ))
	day, err := svc.GetPrayersForDate(context.Background(), time.Date(2025, 1, 15, 12, 0, 0, 0, riyadhTZ), 24.7136, 46.6753, "")
	if err != nil {
		t.Fatal(err)
	}
	clock := func(k prayer.Kind) string { return day[k].Time }
	fajr := day[prayer.Fajr].At(riyadhTZ).Add(shift).Format("15:04")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/timings/15-01-2025") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("timezonestring"); got != "Asia/Riyadh" {
			t.Errorf("timezonestring = %q", got)
		}
		resp := api.Response{Code: 200, Status: "OK", Data: api.Data{Timings: api.Timings{
			Fajr:    fajr + " (+03)",
			Sunrise: clock(prayer.Sunrise),
			Dhuhr:   clock(prayer.Dhuhr),
			Asr:     clock(prayer.Asr),
			Maghrib: clock(prayer.Maghrib),
			Isha:    clock(prayer.Isha),
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func remote(url string) *api.Client {
	c := api.NewClient()
	c.BaseURL = url
	return c
}

func TestVerify_Match(t *testing.T) {
	h := newHarness(t)
	h.opts = append(h.opts, WithAPIClient(remote(aladhan(t, 0).URL)))

	out := h.mustRun(append([]string{"verify", "--json"}, riyadhArgs...)...)
	got := decode[verifyJSON](t, out)
	if !got.OK || got.MaxDelta != "0s" || len(got.Differences) != prayer.Count {
		t.Errorf("verify = %+v", got)
	}
}

func TestVerify_Mismatch(t *testing.T) {
	h := newHarness(t)
	h.opts = append(h.opts, WithAPIClient(remote(aladhan(t, -5*time.Minute).URL)))

	out, err := h.run(append([]string{"verify", "--lang", "en"}, riyadhArgs...)...)
	if err == nil || !strings.Contains(err.Error(), "5m0s") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out, "+5m") || !strings.Contains(out, "MISMATCH") {
		t.Errorf("output:\n%s", out)
	}

	// A wider tolerance accepts the same difference.
	if _, err := h.run(append([]string{"verify", "--tolerance", "5m"}, riyadhArgs...)...); err != nil {
		t.Errorf("--tolerance 5m: %v", err)
	}
}

func TestVerify_Date(t *testing.T) {
	h := newHarness(t)
	h.now = time.Date(2025, 3, 1, 9, 0, 0, 0, riyadhTZ)
	h.opts = append(h.opts, WithAPIClient(remote(aladhan(t, 0).URL)))

	if _, err := h.run(append([]string{"verify", "--date", "2025-01-15"}, riyadhArgs...)...); err != nil {
		t.Errorf("verify --date: %v", err)
	}
	if _, err := h.run(append([]string{"verify", "--date", "15/01/2025"}, riyadhArgs...)...); err == nil {
		t.Error("bad --date should fail")
	}
}
