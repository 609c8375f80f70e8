// Package alerts notifies operators about routing conditions that need a
// human: overflow placements and fallback placements. Alerts ride the
// outbox like CRM write-backs, so a slow mail server never slows routing.
package alerts

import (
	"context"
	"fmt"

	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/outbox"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

// Alert types carried in outbox payloads.
const (
	TypeCapacityOverflow = "capacity_overflow"
	TypeRoutingFallback  = "routing_fallback"
)

// Alert is the operator notification payload stored in the outbox.
type Alert struct {
	Type       string    `json:"type"`
	LeadID     uuid.UUID `json:"leadId"`
	LocationID uuid.UUID `json:"locationId"`
	PostalCode string    `json:"postalCode"`
	Source     string    `json:"source"`
	Detail     string    `json:"detail,omitempty"`
}

// Subject renders the email subject line for this alert.
func (a Alert) Subject() string {
	switch a.Type {
	case TypeCapacityOverflow:
		return fmt.Sprintf("Lead %s parked on overflow (ZIP %s)", a.LeadID, a.PostalCode)
	case TypeRoutingFallback:
		return fmt.Sprintf("Lead %s fell back to default location (ZIP %s)", a.LeadID, a.PostalCode)
	default:
		return fmt.Sprintf("Routing alert for lead %s", a.LeadID)
	}
}

// Body renders the plain-text email body.
func (a Alert) Body() string {
	msg := fmt.Sprintf(
		"Lead %s from source %q (ZIP %s) was placed on location %s.\n\nAlert type: %s\n",
		a.LeadID, a.Source, a.PostalCode, a.LocationID, a.Type,
	)
	if a.Detail != "" {
		msg += "Detail: " + a.Detail + "\n"
	}
	msg += "\nReview the lead and redistribute it if appropriate.\n"
	return msg
}

// OutboxWriter queues alerts for asynchronous delivery.
type OutboxWriter interface {
	Enqueue(ctx context.Context, kind string, payload any) (outbox.Entry, error)
}

// Module subscribes to routing events and turns the reviewable ones into
// queued operator alerts.
type Module struct {
	outbox OutboxWriter
	log    *logger.Logger
}

// NewModule creates the alerts module and registers its event handlers.
func NewModule(bus events.Bus, ob OutboxWriter, log *logger.Logger) *Module {
	m := &Module{outbox: ob, log: log}

	bus.Subscribe(events.RoutingOverflow{}.EventName(), events.HandlerFunc(m.onOverflow))
	bus.Subscribe(events.RoutingFallback{}.EventName(), events.HandlerFunc(m.onFallback))
	return m
}

func (m *Module) onOverflow(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.RoutingOverflow)
	if !ok {
		return nil
	}
	return m.enqueue(ctx, Alert{
		Type:       TypeCapacityOverflow,
		LeadID:     evt.LeadID,
		LocationID: evt.LocationID,
		PostalCode: evt.PostalCode,
		Source:     evt.Source,
	})
}

func (m *Module) onFallback(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.RoutingFallback)
	if !ok {
		return nil
	}
	return m.enqueue(ctx, Alert{
		Type:       TypeRoutingFallback,
		LeadID:     evt.LeadID,
		LocationID: evt.LocationID,
		PostalCode: evt.PostalCode,
		Source:     evt.Source,
		Detail:     evt.Error,
	})
}

func (m *Module) enqueue(ctx context.Context, alert Alert) error {
	if _, err := m.outbox.Enqueue(ctx, outbox.KindOperatorAlert, alert); err != nil {
		m.log.SideEffectFailed("operator alert", err)
		return err
	}
	return nil
}
