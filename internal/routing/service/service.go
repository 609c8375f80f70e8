// Package service implements the routing pipeline: geocode the lead,
// select a location, execute the assignment, and degrade through overflow
// and fallback when the happy path cannot complete.
package service

import (
	"context"
	"time"

	"leadrouter_backend/internal/capacity"
	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/geo"
	"leadrouter_backend/internal/geocode"
	locrepo "leadrouter_backend/internal/locations/repository"
	"leadrouter_backend/internal/outbox"
	"leadrouter_backend/internal/routing/repository"
	"leadrouter_backend/internal/routing/selector"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

// Geocoder resolves postal codes to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, postalCode string) (geocode.Result, error)
}

// CandidateSelector ranks locations for a lead.
type CandidateSelector interface {
	Select(ctx context.Context, coords geo.Coordinates, leadScore int, source string) ([]selector.Candidate, error)
}

// LocationDirectory is the location lookup surface the orchestrator needs
// beyond candidate selection.
type LocationDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (locrepo.Location, error)
	FindOverflow(ctx context.Context) (locrepo.Location, error)
	OldestActive(ctx context.Context) (locrepo.Location, error)
}

// LeadStore persists leads and decisions.
type LeadStore interface {
	CreateAssignment(ctx context.Context, p repository.CreateAssignmentParams) (repository.Lead, repository.RoutingDecision, error)
	Reassign(ctx context.Context, p repository.ReassignParams) (repository.ReassignmentRecord, error)
	GetLead(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	ListDecisions(ctx context.Context, leadID uuid.UUID) ([]repository.RoutingDecision, error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, status string) (repository.Lead, error)
}

// UtilizationReader reads current ledger state, used to record utilization
// in decision snapshots on the overflow and fallback paths.
type UtilizationReader interface {
	GetUtilization(ctx context.Context, locationID uuid.UUID, day time.Time) (capacity.Utilization, error)
}

// OutboxWriter queues side effects for asynchronous delivery.
type OutboxWriter interface {
	Enqueue(ctx context.Context, kind string, payload any) (outbox.Entry, error)
}

// Service orchestrates lead routing.
type Service struct {
	geocoder  Geocoder
	selector  CandidateSelector
	locations LocationDirectory
	store     LeadStore
	ledger    UtilizationReader
	outbox    OutboxWriter
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// New wires the routing service. now may be nil (defaults to time.Now).
func New(
	geocoder Geocoder,
	sel CandidateSelector,
	locations LocationDirectory,
	store LeadStore,
	ledger UtilizationReader,
	ob OutboxWriter,
	bus events.Bus,
	log *logger.Logger,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		geocoder:  geocoder,
		selector:  sel,
		locations: locations,
		store:     store,
		ledger:    ledger,
		outbox:    ob,
		bus:       bus,
		log:       log,
		now:       now,
	}
}

// bestEffort runs a side effect that must never fail the routing call.
// Failures are logged and swallowed; the assignment is already committed.
func (s *Service) bestEffort(effect string, fn func() error) {
	if err := fn(); err != nil {
		s.log.SideEffectFailed(effect, err)
	}
}
