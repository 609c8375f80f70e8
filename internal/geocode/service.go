// Package geocode resolves postal codes to coordinates through a tiered
// fallback chain: external provider, static table, coarse regional estimate.
package geocode

import (
	"context"

	"leadrouter_backend/internal/geo"
	"leadrouter_backend/platform/logger"

	"golang.org/x/sync/singleflight"
)

// Service is the tiered geocoder. Provider failures are swallowed and
// logged; they advance the chain to the next tier rather than surfacing
// to callers. Only full exhaustion returns ErrNotFound.
type Service struct {
	provider Provider
	static   *StaticTable
	cache    Cache
	group    singleflight.Group
	log      *logger.Logger
}

// NewService creates a geocoder. provider and cache may be nil; static
// must not be (pass NewStaticTable(nil) for the defaults).
func NewService(provider Provider, static *StaticTable, cache Cache, log *logger.Logger) *Service {
	return &Service{
		provider: provider,
		static:   static,
		cache:    cache,
		log:      log,
	}
}

// Resolve cleans the postal code and walks the tiers. Concurrent calls
// for the same ZIP share one provider lookup.
func (s *Service) Resolve(ctx context.Context, postalCode string) (Result, error) {
	cleaned := CleanPostalCode(postalCode)
	if cleaned == "" {
		return Result{}, ErrNotFound
	}
	zip := zip5(cleaned)

	v, err, _ := s.group.Do(zip, func() (interface{}, error) {
		return s.resolve(ctx, zip)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (s *Service) resolve(ctx context.Context, zip string) (Result, error) {
	if s.cache != nil {
		if coords, ok := s.cache.Get(ctx, zip); ok {
			return Result{Coordinates: coords, Source: SourceProvider}, nil
		}
	}

	if s.provider != nil {
		coords, err := s.provider.Lookup(ctx, zip)
		if err == nil {
			if s.cache != nil {
				s.cache.Set(ctx, zip, coords)
			}
			return Result{Coordinates: coords, Source: SourceProvider}, nil
		}
		s.log.Warn("geocode provider lookup failed, falling back", "zip", zip, "error", err)
	}

	if coords, ok := s.static.Lookup(zip); ok {
		return Result{Coordinates: coords, Source: SourceStatic}, nil
	}

	if coords, ok := regionalEstimate(zip); ok {
		return Result{Coordinates: coords, Source: SourceRegional, Estimated: true}, nil
	}

	return Result{}, ErrNotFound
}

// regionCentroids maps the leading ZIP digit to a coarse centroid for
// that national ZIP region.
var regionCentroids = [10]geo.Coordinates{
	{Latitude: 42.60, Longitude: -71.80},  // 0: New England / NJ / PR
	{Latitude: 41.00, Longitude: -75.30},  // 1: NY / PA / DE
	{Latitude: 36.50, Longitude: -78.50},  // 2: DC / VA / Carolinas
	{Latitude: 32.80, Longitude: -84.60},  // 3: Southeast
	{Latitude: 40.40, Longitude: -84.50},  // 4: OH / KY / MI / IN
	{Latitude: 44.90, Longitude: -93.30},  // 5: Upper Midwest
	{Latitude: 39.40, Longitude: -92.30},  // 6: IL / MO / KS / NE
	{Latitude: 31.90, Longitude: -96.60},  // 7: TX / OK / AR / LA
	{Latitude: 39.60, Longitude: -108.50}, // 8: Mountain West
	{Latitude: 37.20, Longitude: -119.70}, // 9: Pacific
}

// regionalEstimate derives a low-confidence coordinate from the leading
// digit's region centroid, nudged by the second digit so distinct ZIP
// prefixes inside a region do not collapse onto one point.
func regionalEstimate(zip string) (geo.Coordinates, bool) {
	if len(zip) != 5 {
		return geo.Coordinates{}, false
	}
	for _, r := range zip {
		if r < '0' || r > '9' {
			return geo.Coordinates{}, false
		}
	}

	// "00000" and similar reserved codes are not deliverable ZIPs.
	if zip == "00000" {
		return geo.Coordinates{}, false
	}

	first := int(zip[0] - '0')
	second := int(zip[1] - '0')

	centroid := regionCentroids[first]
	offset := (float64(second) - 4.5) * 0.25

	return geo.Coordinates{
		Latitude:  centroid.Latitude + offset,
		Longitude: centroid.Longitude - offset,
	}, true
}
