package geo

import (
	"context"
	"net/http"
	"time"
)

// DefaultCheckURL answers HEAD requests with 204 and no body.
const DefaultCheckURL = "https://clients3.google.com/generate_204"

// HTTPChecker reports connectivity by issuing a HEAD request.
type HTTPChecker struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// NewHTTPChecker returns a checker for DefaultCheckURL with a 3 second timeout.
func NewHTTPChecker() *HTTPChecker {
	return &HTTPChecker{URL: DefaultCheckURL, Timeout: 3 * time.Second, Client: http.DefaultClient}
}

// Online is true when the check URL answers with a non-5xx status within
// the timeout. Every failure counts as offline.
func (p *HTTPChecker) Online(ctx context.Context) bool {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
