// Package api fetches reference timings from the Al Adhan service so locally
// computed schedules can be cross-checked.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the public Al Adhan API.
const DefaultBaseURL = "https://api.aladhan.com/v1"

// MethodMWL is Al Adhan's id for the Muslim World League method.
const MethodMWL = 3

// Client communicates with the Al Adhan prayer times API.
type Client struct {
	HTTPClient *http.Client
	// BaseURL is the API base URL. Exported for testing with httptest.
	BaseURL string
}

// NewClient creates a new API client with sensible defaults.
func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		BaseURL: DefaultBaseURL,
	}
}

// FetchByCoordinates fetches the MWL timings of date at the given
// coordinates. When loc names an IANA zone the API answers in that zone.
func (c *Client) FetchByCoordinates(ctx context.Context, date time.Time, lat, lng float64, loc *time.Location) (*Response, error) {
	endpoint := fmt.Sprintf("%s/timings/%s", c.BaseURL, date.Format("02-01-2006"))

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("longitude", strconv.FormatFloat(lng, 'f', 6, 64))
	params.Set("method", strconv.Itoa(MethodMWL))
	if loc != nil && loc != time.Local {
		if _, err := time.LoadLocation(loc.String()); err == nil {
			params.Set("timezonestring", loc.String())
		}
	}

	return c.doRequest(ctx, endpoint, params)
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build API request: %w", err)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp Response
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode API response: %w", err)
	}

	if apiResp.Code != 200 {
		return nil, fmt.Errorf("API error: code=%d status=%s", apiResp.Code, apiResp.Status)
	}

	return &apiResp, nil
}
