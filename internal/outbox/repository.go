// Package outbox persists pending side effects (CRM write-backs, operator
// alerts) so routing calls never block on external systems. The worker
// claims rows with SKIP LOCKED, so multiple dispatchers can run safely.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Side effect kinds.
const (
	KindCRMWriteback  = "crm_writeback"
	KindOperatorAlert = "operator_alert"
)

// Entry statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

// maxAttempts is how many delivery attempts an entry gets before it is
// parked as failed for manual inspection.
const maxAttempts = 5

// Entry is one queued side effect.
type Entry struct {
	ID        uuid.UUID
	Kind      string
	Payload   []byte
	Status    string
	Attempts  int
	LastError *string
	RunAt     time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DecodePayload unmarshals the entry payload into dst.
func (e Entry) DecodePayload(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}

// Repository is the pgx-backed outbox store.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates an outbox repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `
	id, kind, payload, status, attempts, last_error, run_at, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.Kind, &e.Payload, &e.Status, &e.Attempts,
		&e.LastError, &e.RunAt, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

// Enqueue inserts a pending entry due immediately.
func (r *Repository) Enqueue(ctx context.Context, kind string, payload any) (Entry, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal outbox payload: %w", err)
	}

	return scanEntry(r.pool.QueryRow(ctx, `
		INSERT INTO integration_outbox (kind, payload, status, run_at)
		VALUES ($1, $2, $3, now())
		RETURNING`+entryColumns,
		kind, body, StatusPending,
	))
}

// ClaimPending atomically moves up to limit due entries to processing and
// returns them. SKIP LOCKED keeps concurrent dispatchers from claiming the
// same rows.
func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE integration_outbox
		SET status = $1, updated_at = now()
		WHERE id IN (
			SELECT id FROM integration_outbox
			WHERE status = $2 AND run_at <= now()
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING`+entryColumns,
		StatusProcessing, StatusPending, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetEntry fetches one entry by id.
func (r *Repository) GetEntry(ctx context.Context, id uuid.UUID) (Entry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `
		SELECT`+entryColumns+`
		FROM integration_outbox
		WHERE id = $1
	`, id))
}

// MarkSucceeded finalizes a delivered entry.
func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE integration_outbox
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, StatusSucceeded)
	return err
}

// MarkFailed records a delivery failure. Entries under the attempt budget
// go back to pending with the given backoff; exhausted entries are parked
// as failed.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause error, backoff time.Duration) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE integration_outbox
		SET attempts = attempts + 1,
			last_error = $2,
			status = CASE WHEN attempts + 1 >= $3 THEN $4 ELSE $5 END,
			run_at = now() + $6,
			updated_at = now()
		WHERE id = $1
	`, id, msg, maxAttempts, StatusFailed, StatusPending, backoff)
	return err
}

// ReleaseStuck returns entries stuck in processing longer than age to
// pending. Covers dispatcher crashes between claim and outcome.
func (r *Repository) ReleaseStuck(ctx context.Context, age time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE integration_outbox
		SET status = $1, updated_at = now()
		WHERE status = $2 AND updated_at < now() - $3
	`, StatusPending, StatusProcessing, age)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
