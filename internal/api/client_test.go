package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// sampleResponse returns a valid Al Adhan API response for testing.
func sampleResponse() Response {
	return Response{
		Code:   200,
		Status: "OK",
		Data: Data{
			Timings: Timings{
				Fajr:    "05:17 (AST)",
				Sunrise: "06:48",
				Dhuhr:   "12:13",
				Asr:     "15:02",
				Maghrib: "17:39",
				Isha:    "19:10",
			},
			Date: DateInfo{
				Readable: "28 Feb 2026",
				Hijri: HijriDate{
					Day:         "10",
					Month:       HijriMonth{Number: 9, En: "Ramaḍān"},
					Year:        "1447",
					Designation: HijriDesignation{Abbreviated: "AH"},
				},
			},
			Meta: Meta{
				Latitude:  21.4225,
				Longitude: 39.8262,
				Timezone:  "Asia/Riyadh",
				Method:    MethodInfo{ID: 3, Name: "Muslim World League"},
			},
		},
	}
}

func TestNewClient(t *testing.T) {
	c := NewClient()
	if c == nil {
		t.Fatal("NewClient returned nil")
	}
	if c.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL, DefaultBaseURL)
	}
	if c.HTTPClient == nil || c.HTTPClient.Timeout != 10*time.Second {
		t.Error("NewClient should set a 10s timeout")
	}
}

func TestFetchByCoordinates_Success(t *testing.T) {
	resp := sampleResponse()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify the request path contains /timings/ and date format DD-MM-YYYY.
		if !strings.Contains(r.URL.Path, "/timings/28-02-2026") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("latitude") != "21.422500" {
			t.Errorf("latitude = %q", q.Get("latitude"))
		}
		if q.Get("longitude") != "39.826200" {
			t.Errorf("longitude = %q", q.Get("longitude"))
		}
		if q.Get("method") != "3" {
			t.Errorf("method = %q, want %q", q.Get("method"), "3")
		}
		if q.Get("timezonestring") != "UTC" {
			t.Errorf("timezonestring = %q, want UTC", q.Get("timezonestring"))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := NewClient()
	c.BaseURL = server.URL

	date := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	got, err := c.FetchByCoordinates(context.Background(), date, 21.4225, 39.8262, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Data.Timings.Asr != "15:02" {
		t.Errorf("Asr = %q, want %q", got.Data.Timings.Asr, "15:02")
	}
	if got.Data.Meta.Method.ID != MethodMWL {
		t.Errorf("Method.ID = %d", got.Data.Meta.Method.ID)
	}
}

func TestFetchByCoordinates_LocalZoneOmitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("timezonestring") {
			t.Errorf("timezonestring should be omitted for time.Local")
		}
		json.NewEncoder(w).Encode(sampleResponse())
	}))
	defer server.Close()

	c := NewClient()
	c.BaseURL = server.URL

	if _, err := c.FetchByCoordinates(context.Background(), time.Now(), 0, 0, time.Local); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetchByCoordinates_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient()
	c.BaseURL = server.URL

	date := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	_, err := c.FetchByCoordinates(context.Background(), date, 51.5, -0.1, nil)
	if err == nil {
		t.Fatal("expected error for HTTP 503, got nil")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error should mention 503, got: %v", err)
	}
}

func TestFetchByCoordinates_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	c := NewClient()
	c.BaseURL = server.URL

	date := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	_, err := c.FetchByCoordinates(context.Background(), date, 51.5, -0.1, nil)
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
	if !strings.Contains(err.Error(), "decode") {
		t.Errorf("error should mention decode, got: %v", err)
	}
}

func TestFetchByCoordinates_APIErrorCode(t *testing.T) {
	resp := Response{Code: 400, Status: "Bad Request"}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := NewClient()
	c.BaseURL = server.URL

	date := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	_, err := c.FetchByCoordinates(context.Background(), date, 51.5, -0.1, nil)
	if err == nil {
		t.Fatal("expected error for API code 400, got nil")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error should mention 400, got: %v", err)
	}
}

func TestFetchByCoordinates_ConnectionRefused(t *testing.T) {
	c := NewClient()
	c.BaseURL = "http://127.0.0.1:1" // nothing listening

	date := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	_, err := c.FetchByCoordinates(context.Background(), date, 51.5, -0.1, nil)
	if err == nil {
		t.Fatal("expected error for connection refused, got nil")
	}
}

func TestFetchByCoordinates_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	c := NewClient()
	c.BaseURL = server.URL

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.FetchByCoordinates(ctx, time.Now(), 0, 0, nil); err == nil {
		t.Fatal("expected error for cancelled request, got nil")
	}
}

func TestFetchByCoordinates_DateFormat(t *testing.T) {
	var capturedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sampleResponse())
	}))
	defer server.Close()

	c := NewClient()
	c.BaseURL = server.URL

	// Test that the date is formatted as DD-MM-YYYY.
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	_, err := c.FetchByCoordinates(context.Background(), date, 0, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(capturedPath, "/timings/05-03-2026") {
		t.Errorf("date format wrong in path: %s (expected DD-MM-YYYY)", capturedPath)
	}
}
