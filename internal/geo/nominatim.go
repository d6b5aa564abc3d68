package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// Nominatim reverse-geocodes through the Nominatim JSON API.
type Nominatim struct {
	BaseURL    string
	Language   string // accept-language, e.g. "ar"
	UserAgent  string
	HTTPClient *http.Client
}

// NewNominatim creates a Nominatim client with a 10 second timeout.
func NewNominatim(lang string) *Nominatim {
	return &Nominatim{
		BaseURL:    DefaultNominatimURL,
		Language:   lang,
		UserAgent:  "mawaqit/1.0 (+https://github.com/smokyabdulrahman/mawaqit)",
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type nominatimResponse struct {
	Error   string `json:"error"`
	Address struct {
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		County        string `json:"county"`
		StateDistrict string `json:"state_district"`
		State         string `json:"state"`
		Country       string `json:"country"`
	} `json:"address"`
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

// ReverseGeocode returns at most one place for the coordinates.
func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lng float64) ([]Place, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', 6, 64))
	params.Set("zoom", "10")
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if n.UserAgent != "" {
		req.Header.Set("User-Agent", n.UserAgent)
	}
	if n.Language != "" {
		req.Header.Set("Accept-Language", n.Language)
	}

	client := n.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reverse geocode returned status %d", resp.StatusCode)
	}

	var result nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode reverse geocode response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("reverse geocode failed: %s", result.Error)
	}

	a := result.Address
	p := Place{
		City:      firstNonEmpty(a.City, a.Town, a.Village),
		Subregion: firstNonEmpty(a.County, a.StateDistrict),
		Region:    a.State,
		Country:   a.Country,
	}
	if p == (Place{}) {
		return nil, nil
	}
	return []Place{p}, nil
}
