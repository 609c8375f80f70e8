// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadrouter_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Routing Domain Events
// =============================================================================

// LeadRouted is published after any assignment commits, regardless of
// which path (optimal, overflow, fallback) produced it.
type LeadRouted struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	LocationID    uuid.UUID `json:"locationId"`
	LocationName  string    `json:"locationName"`
	Reason        string    `json:"reason"`
	DistanceMiles float64   `json:"distanceMiles"`
	PostalCode    string    `json:"postalCode"`
	Source        string    `json:"source"`
}

func (e LeadRouted) EventName() string { return "routing.lead.routed" }

// RoutingOverflow is published when no location had capacity and the lead
// went to the designated overflow location. Operators should review it.
type RoutingOverflow struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	LocationID uuid.UUID `json:"locationId"`
	PostalCode string    `json:"postalCode"`
	Source     string    `json:"source"`
}

func (e RoutingOverflow) EventName() string { return "routing.lead.overflow" }

// RoutingFallback is published when an error during routing forced the
// lead onto the default location. Carries the original error text.
type RoutingFallback struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	LocationID uuid.UUID `json:"locationId"`
	PostalCode string    `json:"postalCode"`
	Source     string    `json:"source"`
	Error      string    `json:"error"`
}

func (e RoutingFallback) EventName() string { return "routing.lead.fallback" }

// LeadReassigned is published after a manual reassignment commits.
type LeadReassigned struct {
	BaseEvent
	LeadID             uuid.UUID `json:"leadId"`
	PreviousLocationID uuid.UUID `json:"previousLocationId"`
	NewLocationID      uuid.UUID `json:"newLocationId"`
	Reason             string    `json:"reason"`
}

func (e LeadReassigned) EventName() string { return "routing.lead.reassigned" }
