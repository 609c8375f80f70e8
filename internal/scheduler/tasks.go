// Package scheduler moves queued side effects from the outbox onto asynq
// and processes them in the worker binary. The outbox row stays the source
// of truth: a task only marks it succeeded or failed after delivery.
package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names.
const (
	TypeCRMWriteback  = "outbox:crm_writeback"
	TypeOperatorAlert = "outbox:operator_alert"
)

// OutboxTaskPayload points a task at its outbox row. The payload itself
// lives in the row, so requeues after worker restarts see current state.
type OutboxTaskPayload struct {
	EntryID uuid.UUID `json:"entryId"`
}

// NewCRMWritebackTask creates a task to deliver one CRM write-back entry.
func NewCRMWritebackTask(entryID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(OutboxTaskPayload{EntryID: entryID})
	if err != nil {
		return nil, fmt.Errorf("marshal crm writeback payload: %w", err)
	}
	return asynq.NewTask(TypeCRMWriteback, payload), nil
}

// NewOperatorAlertTask creates a task to deliver one operator alert entry.
func NewOperatorAlertTask(entryID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(OutboxTaskPayload{EntryID: entryID})
	if err != nil {
		return nil, fmt.Errorf("marshal operator alert payload: %w", err)
	}
	return asynq.NewTask(TypeOperatorAlert, payload), nil
}

// ParseOutboxTaskPayload decodes a task payload back into its entry pointer.
func ParseOutboxTaskPayload(t *asynq.Task) (OutboxTaskPayload, error) {
	var p OutboxTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return OutboxTaskPayload{}, fmt.Errorf("parse outbox task payload: %w", err)
	}
	if p.EntryID == uuid.Nil {
		return OutboxTaskPayload{}, fmt.Errorf("outbox task payload missing entry id")
	}
	return p, nil
}
