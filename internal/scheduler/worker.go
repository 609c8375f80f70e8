package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadrouter_backend/internal/alerts"
	"leadrouter_backend/internal/crm"
	"leadrouter_backend/internal/outbox"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// retryBackoff is the outbox-level delay applied after a failed delivery.
// Asynq's own retry is disabled for these tasks; the outbox dispatcher
// re-enqueues pending rows, keeping one retry mechanism instead of two.
const retryBackoff = 2 * time.Minute

// OutboxStore is the worker's view of the outbox.
type OutboxStore interface {
	GetEntry(ctx context.Context, id uuid.UUID) (outbox.Entry, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error, backoff time.Duration) error
}

// CRMDeliverer applies one CRM instruction set.
type CRMDeliverer interface {
	Deliver(ctx context.Context, set crm.InstructionSet) error
}

// Worker consumes outbox tasks and performs the external deliveries.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	store  OutboxStore
	crm    CRMDeliverer
	sender alerts.Sender
	log    *logger.Logger
}

// NewWorker wires the asynq server and its handlers.
func NewWorker(cfg config.SchedulerConfig, store OutboxStore, deliverer CRMDeliverer, sender alerts.Sender, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.GetAsynqConcurrency(),
		Queues:      map[string]int{cfg.GetAsynqQueueName(): 1},
		// The outbox owns retries; a failed task must not also be retried
		// by asynq or deliveries would double up.
		RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration { return 0 },
	})

	w := &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		store:  store,
		crm:    deliverer,
		sender: sender,
		log:    log,
	}
	w.mux.HandleFunc(TypeCRMWriteback, w.handleCRMWriteback)
	w.mux.HandleFunc(TypeOperatorAlert, w.handleOperatorAlert)
	return w, nil
}

// Run blocks processing tasks until the server is shut down.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

// Shutdown stops the server gracefully.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleCRMWriteback(ctx context.Context, t *asynq.Task) error {
	entry, err := w.loadEntry(ctx, t)
	if err != nil {
		return err
	}
	if entry.Status != outbox.StatusProcessing {
		// Row already resolved by another worker or released by the
		// dispatcher; nothing to do.
		return nil
	}

	var set crm.InstructionSet
	if err := entry.DecodePayload(&set); err != nil {
		return w.store.MarkFailed(ctx, entry.ID, fmt.Errorf("decode crm payload: %w", err), retryBackoff)
	}

	if err := w.crm.Deliver(ctx, set); err != nil {
		w.log.Warn("crm delivery failed", "entry_id", entry.ID, "error", err)
		return w.store.MarkFailed(ctx, entry.ID, err, retryBackoff)
	}
	return w.store.MarkSucceeded(ctx, entry.ID)
}

func (w *Worker) handleOperatorAlert(ctx context.Context, t *asynq.Task) error {
	entry, err := w.loadEntry(ctx, t)
	if err != nil {
		return err
	}
	if entry.Status != outbox.StatusProcessing {
		return nil
	}

	var alert alerts.Alert
	if err := entry.DecodePayload(&alert); err != nil {
		return w.store.MarkFailed(ctx, entry.ID, fmt.Errorf("decode alert payload: %w", err), retryBackoff)
	}

	if err := w.sender.Send(ctx, alert); err != nil {
		w.log.Warn("alert delivery failed", "entry_id", entry.ID, "error", err)
		return w.store.MarkFailed(ctx, entry.ID, err, retryBackoff)
	}
	return w.store.MarkSucceeded(ctx, entry.ID)
}

func (w *Worker) loadEntry(ctx context.Context, t *asynq.Task) (outbox.Entry, error) {
	payload, err := ParseOutboxTaskPayload(t)
	if err != nil {
		return outbox.Entry{}, err
	}
	return w.store.GetEntry(ctx, payload.EntryID)
}
