package alerts

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/outbox"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

type captureOutbox struct {
	mu      sync.Mutex
	kinds   []string
	payload []any
}

func (c *captureOutbox) Enqueue(_ context.Context, kind string, payload any) (outbox.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
	c.payload = append(c.payload, payload)
	return outbox.Entry{ID: uuid.New(), Kind: kind}, nil
}

func TestModule_QueuesAlertOnOverflow(t *testing.T) {
	bus := events.NewInMemoryBus(logger.New("development"))
	ob := &captureOutbox{}
	NewModule(bus, ob, logger.New("development"))

	evt := events.RoutingOverflow{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     uuid.New(),
		LocationID: uuid.New(),
		PostalCode: "10001",
		Source:     "facebook",
	}
	if err := bus.PublishSync(context.Background(), evt); err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	if len(ob.kinds) != 1 || ob.kinds[0] != outbox.KindOperatorAlert {
		t.Fatalf("expected one operator alert, got %v", ob.kinds)
	}

	alert := ob.payload[0].(Alert)
	if alert.Type != TypeCapacityOverflow {
		t.Fatalf("alert type = %q", alert.Type)
	}
	if alert.LeadID != evt.LeadID {
		t.Fatalf("alert lead mismatch")
	}
}

func TestModule_QueuesAlertWithCauseOnFallback(t *testing.T) {
	bus := events.NewInMemoryBus(logger.New("development"))
	ob := &captureOutbox{}
	NewModule(bus, ob, logger.New("development"))

	evt := events.RoutingFallback{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     uuid.New(),
		LocationID: uuid.New(),
		PostalCode: "99999",
		Source:     "web",
		Error:      `geocode "99999": provider timeout`,
	}
	if err := bus.PublishSync(context.Background(), evt); err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	alert := ob.payload[0].(Alert)
	if alert.Type != TypeRoutingFallback {
		t.Fatalf("alert type = %q", alert.Type)
	}
	if !strings.Contains(alert.Detail, "provider timeout") {
		t.Fatalf("alert should carry the routing error, got %q", alert.Detail)
	}
}

func TestAlert_RendersSubjectAndBody(t *testing.T) {
	alert := Alert{
		Type:       TypeCapacityOverflow,
		LeadID:     uuid.New(),
		LocationID: uuid.New(),
		PostalCode: "73301",
		Source:     "google",
	}

	if !strings.Contains(alert.Subject(), "73301") {
		t.Fatalf("subject should mention the ZIP: %q", alert.Subject())
	}
	if !strings.Contains(alert.Body(), alert.LeadID.String()) {
		t.Fatalf("body should mention the lead")
	}
}

func TestAlert_RoundTripsThroughJSON(t *testing.T) {
	in := Alert{
		Type:       TypeRoutingFallback,
		LeadID:     uuid.New(),
		LocationID: uuid.New(),
		PostalCode: "10001",
		Source:     "web",
		Detail:     "selector unavailable",
	}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Alert
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip changed alert: %+v != %+v", out, in)
	}
}
