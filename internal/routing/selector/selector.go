// Package selector ranks service locations for a lead by proximity,
// capacity utilization, and suitability score.
package selector

import (
	"context"
	"errors"
	"sort"
	"time"

	"leadrouter_backend/internal/capacity"
	"leadrouter_backend/internal/geo"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	// radiusMiles is the hard service radius. Leads outside it are never
	// silently widened onto a distant location; they go to overflow.
	radiusMiles = 50.0

	// Utilization admission caps by lead value. These are soft thresholds:
	// near-simultaneous assignments may both pass the check and slightly
	// overfill a location, which is accepted.
	highValueUtilizationCap = 0.90
	standardUtilizationCap  = 0.80
	highValueLeadScoreMin   = 80

	// degradeCount is how many nearest candidates survive when every
	// location within radius is over its utilization cap.
	degradeCount = 3
)

// ErrNoCandidates signals that no active location lies within the service
// radius. Callers treat this as the overflow trigger.
var ErrNoCandidates = errors.New("no candidate locations within radius")

// Location is the routable-location view the selector operates on.
type Location struct {
	ID            uuid.UUID
	Name          string
	Coordinates   geo.Coordinates
	DailyCapacity int
	ChannelScores map[string]float64
}

// Candidate is a location annotated with the lead-specific inputs that
// produced its rank.
type Candidate struct {
	Location        Location
	DistanceMiles   float64
	UtilizationRate float64
	Suitability     float64
	// OverThreshold marks candidates admitted through the degrade path
	// despite exceeding the utilization cap for this lead.
	OverThreshold bool
}

// LocationSource lists active locations with valid coordinates.
type LocationSource interface {
	ListActiveRoutable(ctx context.Context) ([]Location, error)
}

// UtilizationSource reads the capacity ledger. Reads must be fresh on
// every selection; the selector never caches utilization between calls.
type UtilizationSource interface {
	GetUtilization(ctx context.Context, locationID uuid.UUID, day time.Time) (capacity.Utilization, error)
}

// Selector produces the ordered candidate list for one lead.
type Selector struct {
	locations LocationSource
	ledger    UtilizationSource
	now       func() time.Time
	log       *logger.Logger
}

// New creates a selector. now may be nil (defaults to time.Now).
func New(locations LocationSource, ledger UtilizationSource, now func() time.Time, log *logger.Logger) *Selector {
	if now == nil {
		now = time.Now
	}
	return &Selector{locations: locations, ledger: ledger, now: now, log: log}
}

// Select returns candidates ordered by suitability (descending), with
// ties broken by smaller distance, then lower utilization.
//
// Zero locations within radius returns ErrNoCandidates. If the
// utilization filter would eliminate everyone, the 3 nearest in-radius
// candidates are returned anyway, flagged OverThreshold, so overflow
// handling still has geographically sensible choices.
func (s *Selector) Select(ctx context.Context, coords geo.Coordinates, leadScore int, source string) ([]Candidate, error) {
	locations, err := s.locations.ListActiveRoutable(ctx)
	if err != nil {
		return nil, err
	}

	day := capacity.Day(s.now())
	utilizationCap := standardUtilizationCap
	if leadScore >= highValueLeadScoreMin {
		utilizationCap = highValueUtilizationCap
	}

	inRadius := make([]Candidate, 0, len(locations))
	for _, loc := range locations {
		if !loc.Coordinates.Valid() {
			continue
		}

		distance := geo.DistanceBetween(coords, loc.Coordinates)
		if distance > radiusMiles {
			continue
		}

		util, err := s.ledger.GetUtilization(ctx, loc.ID, day)
		if err != nil {
			return nil, err
		}

		inRadius = append(inRadius, Candidate{
			Location:        loc,
			DistanceMiles:   distance,
			UtilizationRate: util.Rate,
		})
	}

	if len(inRadius) == 0 {
		return nil, ErrNoCandidates
	}

	withCapacity := make([]Candidate, 0, len(inRadius))
	for _, c := range inRadius {
		if c.UtilizationRate < utilizationCap {
			withCapacity = append(withCapacity, c)
		}
	}

	candidates := withCapacity
	if len(candidates) == 0 {
		// Degrade: keep the nearest few so the lead still lands somewhere
		// geographically sensible, and mark them for the audit trail.
		sort.Slice(inRadius, func(i, j int) bool {
			return inRadius[i].DistanceMiles < inRadius[j].DistanceMiles
		})
		n := degradeCount
		if len(inRadius) < n {
			n = len(inRadius)
		}
		candidates = inRadius[:n]
		for i := range candidates {
			candidates[i].OverThreshold = true
		}
		if s.log != nil {
			s.log.Warn("all in-radius locations over utilization cap, degrading to nearest",
				"kept", len(candidates), "cap", utilizationCap)
		}
	}

	for i := range candidates {
		c := &candidates[i]
		c.Suitability = Suitability(c.DistanceMiles, c.UtilizationRate, leadScore, source,
			c.Location.ChannelScores[facebookChannel])
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Suitability != b.Suitability {
			return a.Suitability > b.Suitability
		}
		if a.DistanceMiles != b.DistanceMiles {
			return a.DistanceMiles < b.DistanceMiles
		}
		return a.UtilizationRate < b.UtilizationRate
	})

	return candidates, nil
}
