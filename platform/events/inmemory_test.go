package events

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"leadrouter_backend/platform/logger"
)

type stubEvent struct {
	BaseEvent
	name string
}

func (e stubEvent) EventName() string { return e.name }

func TestPublishSync_RunsHandlersAndJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))

	calls := 0
	bus.Subscribe("lead.test", HandlerFunc(func(ctx context.Context, event Event) error {
		calls++
		return nil
	}))
	bus.Subscribe("lead.test", HandlerFunc(func(ctx context.Context, event Event) error {
		calls++
		return errors.New("smtp down")
	}))

	err := bus.PublishSync(context.Background(), stubEvent{BaseEvent: NewBaseEvent(), name: "lead.test"})
	if calls != 2 {
		t.Fatalf("expected both handlers to run, got %d calls", calls)
	}
	if err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Fatalf("expected joined handler error, got %v", err)
	}
}

func TestPublishSync_IgnoresUnrelatedSubscriptions(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))

	bus.Subscribe("lead.other", HandlerFunc(func(ctx context.Context, event Event) error {
		t.Fatal("handler for a different event name must not run")
		return nil
	}))

	if err := bus.PublishSync(context.Background(), stubEvent{name: "lead.test"}); err != nil {
		t.Fatalf("PublishSync: %v", err)
	}
}

func TestPublish_DispatchesAsynchronouslyAndSurvivesCancel(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))

	done := make(chan struct{})
	bus.Subscribe("lead.test", HandlerFunc(func(ctx context.Context, event Event) error {
		if ctx.Err() != nil {
			t.Errorf("handler context already cancelled: %v", ctx.Err())
		}
		close(done)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, stubEvent{BaseEvent: NewBaseEvent(), name: "lead.test"})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}

func TestPublish_RecoversPanickingHandler(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))

	done := make(chan struct{})
	bus.Subscribe("lead.test", HandlerFunc(func(ctx context.Context, event Event) error {
		panic("handler bug")
	}))
	bus.Subscribe("lead.test", HandlerFunc(func(ctx context.Context, event Event) error {
		close(done)
		return nil
	}))

	bus.Publish(context.Background(), stubEvent{name: "lead.test"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sibling handler never ran after panic")
	}
}

func TestBaseEvent_CarriesOccurredAt(t *testing.T) {
	before := time.Now()
	e := NewBaseEvent()
	after := time.Now()

	if e.OccurredAt().Before(before) || e.OccurredAt().After(after) {
		t.Fatalf("OccurredAt %v outside [%v, %v]", e.OccurredAt(), before, after)
	}
}
