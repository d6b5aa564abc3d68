package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ipAPIResponse maps the response from ip-api.com.
type ipAPIResponse struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	City     string  `json:"city"`
	Country  string  `json:"country"`
	Timezone string  `json:"timezone"`
}

// DefaultIPAPIURL is the ip-api.com endpoint. It requires no API key.
const DefaultIPAPIURL = "http://ip-api.com/json/?fields=status,message,lat,lon,city,country,timezone"

// IPLocator determines the location from the public IP address.
type IPLocator struct {
	URL        string
	HTTPClient *http.Client
	// Disabled makes RequestPermission deny access, mirroring a user who
	// turned auto-location off.
	Disabled bool
}

// NewIPLocator creates an IPLocator with a 5 second client timeout.
func NewIPLocator(enabled bool) *IPLocator {
	return &IPLocator{
		URL:        DefaultIPAPIURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		Disabled:   !enabled,
	}
}

// RequestPermission grants access unless the locator is disabled.
func (l *IPLocator) RequestPermission(ctx context.Context) (bool, error) {
	return !l.Disabled, nil
}

// CurrentLocation queries the geolocation API.
func (l *IPLocator) CurrentLocation(ctx context.Context) (*Location, error) {
	if l.Disabled {
		return nil, ErrPermissionDenied
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation API returned status %d", resp.StatusCode)
	}

	var result ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode geolocation response: %w", err)
	}

	if result.Status != "success" {
		return nil, fmt.Errorf("geolocation failed: %s", result.Message)
	}

	return &Location{
		Latitude:  result.Lat,
		Longitude: result.Lon,
		City:      result.City,
		Country:   result.Country,
		Timezone:  result.Timezone,
	}, nil
}
