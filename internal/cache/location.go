package cache

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Tolerance is the per-axis distance, in degrees, under which two
// coordinates are the same place (roughly 1 km).
const Tolerance = 0.01

// SameLocation is the cache-hit test: both axes strictly within Tolerance.
func SameLocation(aLat, aLng, bLat, bLng float64) bool {
	return math.Abs(aLat-bLat) < Tolerance && math.Abs(aLng-bLng) < Tolerance
}

// HasLocationChanged reports a move of strictly more than Tolerance on
// either axis. A difference of exactly Tolerance is neither changed nor the
// same location.
func HasLocationChanged(oldLat, oldLng, newLat, newLng float64) bool {
	return math.Abs(oldLat-newLat) > Tolerance || math.Abs(oldLng-newLng) > Tolerance
}

// CoordinateName is the display name used when geocoding yields nothing.
func CoordinateName(lat, lng float64) string {
	return fmt.Sprintf("%.4f°, %.4f°", lat, lng)
}

// SameLocation is the method form of the package function.
func (s *Service) SameLocation(aLat, aLng, bLat, bLng float64) bool {
	return SameLocation(aLat, aLng, bLat, bLng)
}

// HasLocationChanged is the method form of the package function.
func (s *Service) HasLocationChanged(oldLat, oldLng, newLat, newLng float64) bool {
	return HasLocationChanged(oldLat, oldLng, newLat, newLng)
}

// GetLocationName reverse-geocodes the coordinates into "City, Country".
// The locality is the city, else the subregion, else the region. It never
// fails: without a usable result it returns CoordinateName.
func (s *Service) GetLocationName(ctx context.Context, lat, lng float64) string {
	if s.geocoder == nil {
		return CoordinateName(lat, lng)
	}
	places, err := s.geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		s.log.Warn().Err(err).Float64("lat", lat).Float64("lng", lng).Msg("reverse geocode failed")
		return CoordinateName(lat, lng)
	}
	if len(places) == 0 {
		return CoordinateName(lat, lng)
	}

	p := places[0]
	var parts []string
	switch {
	case p.City != "":
		parts = append(parts, p.City)
	case p.Subregion != "":
		parts = append(parts, p.Subregion)
	case p.Region != "":
		parts = append(parts, p.Region)
	}
	if p.Country != "" {
		parts = append(parts, p.Country)
	}
	if len(parts) == 0 {
		return CoordinateName(lat, lng)
	}
	return strings.Join(parts, ", ")
}

// SaveLastLocation replaces the last-known-location slot.
func (s *Service) SaveLastLocation(ctx context.Context, loc CachedLocation) error {
	if err := s.putJSON(ctx, LocationKey, loc); err != nil {
		return fmt.Errorf("failed to save last location: %w", err)
	}
	return nil
}

// GetLastLocation returns the last-known location, or nil when it is absent
// or unreadable. The only error is a done context.
func (s *Service) GetLastLocation(ctx context.Context) (*CachedLocation, error) {
	var loc CachedLocation
	found, err := s.getJSON(ctx, LocationKey, &loc)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("ignoring unreadable last location")
		return nil, nil
	}
	if !found {
		return nil, nil
	}
	return &loc, nil
}
