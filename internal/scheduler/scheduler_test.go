package scheduler

import (
	"context"
	"testing"
	"time"

	"leadrouter_backend/internal/outbox"
	"leadrouter_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeSchedulerConfig struct {
	redisURL string
}

func (c fakeSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c fakeSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c fakeSchedulerConfig) GetAsynqQueueName() string { return "leadrouter" }
func (c fakeSchedulerConfig) GetAsynqConcurrency() int  { return 2 }

func TestRedisClientOpt(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@localhost:6379/2", false)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.Addr != "localhost:6379" || opt.Password != "secret" || opt.DB != 2 {
		t.Fatalf("unexpected opt: %+v", opt)
	}

	if _, err := redisClientOpt("not a url", false); err == nil {
		t.Fatalf("expected error for malformed url")
	}
}

func TestOutboxTaskPayload_RoundTrip(t *testing.T) {
	id := uuid.New()
	task, err := NewCRMWritebackTask(id)
	if err != nil {
		t.Fatalf("NewCRMWritebackTask: %v", err)
	}
	if task.Type() != TypeCRMWriteback {
		t.Fatalf("task type = %q", task.Type())
	}

	payload, err := ParseOutboxTaskPayload(task)
	if err != nil {
		t.Fatalf("ParseOutboxTaskPayload: %v", err)
	}
	if payload.EntryID != id {
		t.Fatalf("entry id = %v, want %v", payload.EntryID, id)
	}
}

func TestParseOutboxTaskPayload_RejectsGarbage(t *testing.T) {
	if _, err := ParseOutboxTaskPayload(asynq.NewTask(TypeCRMWriteback, []byte("{"))); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
	if _, err := ParseOutboxTaskPayload(asynq.NewTask(TypeCRMWriteback, []byte("{}"))); err == nil {
		t.Fatalf("expected error for missing entry id")
	}
}

func TestClient_EnqueuesAgainstRedis(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(fakeSchedulerConfig{redisURL: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	task, err := NewOperatorAlertTask(uuid.New())
	if err != nil {
		t.Fatalf("NewOperatorAlertTask: %v", err)
	}
	if err := client.Enqueue(task); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// The task must land in the configured queue, not the default one.
	if keys := srv.Keys(); len(keys) == 0 {
		t.Fatalf("no keys written to redis")
	}
	found := false
	for _, k := range srv.Keys() {
		if k == "asynq:{leadrouter}:pending" {
			found = true
		}
	}
	if !found {
		t.Fatalf("task not enqueued on leadrouter queue, keys: %v", srv.Keys())
	}
}

// ---- dispatcher ----

type fakeDispatchStore struct {
	pending  []outbox.Entry
	failed   []uuid.UUID
	released int
}

func (f *fakeDispatchStore) ClaimPending(_ context.Context, limit int) ([]outbox.Entry, error) {
	if len(f.pending) > limit {
		claimed := f.pending[:limit]
		f.pending = f.pending[limit:]
		return claimed, nil
	}
	claimed := f.pending
	f.pending = nil
	return claimed, nil
}

func (f *fakeDispatchStore) MarkFailed(_ context.Context, id uuid.UUID, _ error, _ time.Duration) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeDispatchStore) ReleaseStuck(_ context.Context, _ time.Duration) (int64, error) {
	f.released++
	return 0, nil
}

type captureEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (c *captureEnqueuer) Enqueue(task *asynq.Task, _ ...asynq.Option) error {
	if c.err != nil {
		return c.err
	}
	c.tasks = append(c.tasks, task)
	return nil
}

func TestDispatcher_RoutesEntriesToTasks(t *testing.T) {
	store := &fakeDispatchStore{pending: []outbox.Entry{
		{ID: uuid.New(), Kind: outbox.KindCRMWriteback},
		{ID: uuid.New(), Kind: outbox.KindOperatorAlert},
		{ID: uuid.New(), Kind: "unknown_kind"},
	}}
	enq := &captureEnqueuer{}
	d := NewDispatcher(store, enq, logger.New("development"))

	d.tick(context.Background())

	if len(enq.tasks) != 2 {
		t.Fatalf("expected 2 enqueued tasks, got %d", len(enq.tasks))
	}
	if enq.tasks[0].Type() != TypeCRMWriteback || enq.tasks[1].Type() != TypeOperatorAlert {
		t.Fatalf("unexpected task types: %s, %s", enq.tasks[0].Type(), enq.tasks[1].Type())
	}
	if len(store.failed) != 1 {
		t.Fatalf("unroutable entry should be marked failed, got %d", len(store.failed))
	}
	if store.released != 1 {
		t.Fatalf("tick should attempt a stuck release")
	}
}
