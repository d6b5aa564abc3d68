// Package geo provides device location, reverse geocoding and a
// connectivity check.
package geo

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned when location access is not allowed.
var ErrPermissionDenied = errors.New("location permission denied")

// Location holds geographic coordinates for the device.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`
}

// Provider yields the device position.
type Provider interface {
	// RequestPermission reports whether location access is granted.
	RequestPermission(ctx context.Context) (bool, error)
	// CurrentLocation returns a fix, honouring ctx's deadline.
	CurrentLocation(ctx context.Context) (*Location, error)
}

// Place is one reverse-geocoding candidate. Any field may be empty.
type Place struct {
	City      string
	Subregion string
	Region    string
	Country   string
}

// Geocoder resolves coordinates to places, best match first.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) ([]Place, error)
}

// StaticLocator always returns the same configured position.
type StaticLocator struct {
	Location Location
}

// RequestPermission always grants access.
func (s StaticLocator) RequestPermission(ctx context.Context) (bool, error) { return true, nil }

// CurrentLocation returns the configured position unless ctx is done.
func (s StaticLocator) CurrentLocation(ctx context.Context) (*Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := s.Location
	return &loc, nil
}
