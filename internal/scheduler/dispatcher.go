package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadrouter_backend/internal/outbox"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	dispatchInterval = 5 * time.Second
	dispatchBatch    = 100

	// stuckAge is how long an entry may sit in processing before the
	// dispatcher assumes its worker died and releases it.
	stuckAge = 10 * time.Minute
)

// TaskEnqueuer submits tasks to the queue. Satisfied by *Client.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) error
}

// DispatcherStore is the dispatcher's view of the outbox.
type DispatcherStore interface {
	ClaimPending(ctx context.Context, limit int) ([]outbox.Entry, error)
	MarkFailed(ctx context.Context, id uuid.UUID, cause error, backoff time.Duration) error
	ReleaseStuck(ctx context.Context, age time.Duration) (int64, error)
}

// Dispatcher polls the outbox and turns due entries into asynq tasks. It
// is safe to run several dispatchers; SKIP LOCKED claiming keeps them
// from double-enqueueing.
type Dispatcher struct {
	store  DispatcherStore
	client TaskEnqueuer
	log    *logger.Logger
}

// NewDispatcher creates an outbox dispatcher.
func NewDispatcher(store DispatcherStore, client TaskEnqueuer, log *logger.Logger) *Dispatcher {
	return &Dispatcher{store: store, client: client, log: log}
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick performs one dispatch round: recover stuck rows, claim due ones,
// enqueue a task per row.
func (d *Dispatcher) tick(ctx context.Context) {
	if n, err := d.store.ReleaseStuck(ctx, stuckAge); err != nil {
		d.log.DatabaseError("release stuck outbox entries", err)
	} else if n > 0 {
		d.log.Warn("released stuck outbox entries", "count", n)
	}

	entries, err := d.store.ClaimPending(ctx, dispatchBatch)
	if err != nil {
		d.log.DatabaseError("claim pending outbox entries", err)
		return
	}

	for _, entry := range entries {
		task, err := taskFor(entry)
		if err != nil {
			d.log.Warn("unroutable outbox entry", "entry_id", entry.ID, "kind", entry.Kind, "error", err)
			if markErr := d.store.MarkFailed(ctx, entry.ID, err, retryBackoff); markErr != nil {
				d.log.DatabaseError("mark outbox entry failed", markErr)
			}
			continue
		}

		if err := d.client.Enqueue(task); err != nil {
			// Leave the row in processing; the stuck-release pass will
			// return it to pending if the queue stays unreachable.
			d.log.Warn("enqueue outbox task failed", "entry_id", entry.ID, "error", err)
		}
	}
}

func taskFor(entry outbox.Entry) (*asynq.Task, error) {
	switch entry.Kind {
	case outbox.KindCRMWriteback:
		return NewCRMWritebackTask(entry.ID)
	case outbox.KindOperatorAlert:
		return NewOperatorAlertTask(entry.ID)
	default:
		return nil, fmt.Errorf("unknown outbox kind %q", entry.Kind)
	}
}
