// Package capacity maintains the per-location, per-day ledger of assigned
// leads. Reads never create rows; writes are additive database-side updates
// so concurrent assignments cannot lose increments to each other.
package capacity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx operations the ledger needs. It is
// satisfied by both *pgxpool.Pool and pgx.Tx, so increments can join the
// assignment executor's transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Utilization is the ledger state for one (location, day) pair.
type Utilization struct {
	LocationID uuid.UUID
	Day        time.Time
	Current    int
	Max        int
	Rate       float64
}

// Rate computes current/max, returning 0 for max <= 0.
func Rate(current, max int) float64 {
	if max <= 0 {
		return 0
	}
	return float64(current) / float64(max)
}

// Day truncates a timestamp to its UTC calendar day, the ledger's key
// granularity.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Ledger provides read and write access to capacity entries.
type Ledger struct {
	db Querier
}

// New creates a ledger backed by the given querier, a *pgxpool.Pool in
// production.
func New(db Querier) *Ledger {
	return &Ledger{db: db}
}

// GetUtilization returns the ledger state for (locationID, day). When no
// entry exists yet it returns a zero-valued view backed by the location's
// configured daily capacity; it never creates a row on read.
func (l *Ledger) GetUtilization(ctx context.Context, locationID uuid.UUID, day time.Time) (Utilization, error) {
	day = Day(day)
	u := Utilization{LocationID: locationID, Day: day}

	err := l.db.QueryRow(ctx, `
		SELECT assigned_count, max_capacity
		FROM capacity_ledger
		WHERE location_id = $1 AND day = $2
	`, locationID, day).Scan(&u.Current, &u.Max)

	if errors.Is(err, pgx.ErrNoRows) {
		err = l.db.QueryRow(ctx, `
			SELECT daily_capacity FROM locations WHERE id = $1
		`, locationID).Scan(&u.Max)
		if err != nil {
			return Utilization{}, err
		}
		u.Rate = 0
		return u, nil
	}
	if err != nil {
		return Utilization{}, err
	}

	u.Rate = Rate(u.Current, u.Max)
	return u, nil
}

// Increment applies delta to the (locationID, day) entry, creating it
// lazily on first touch. The update is a single additive SQL statement:
// two concurrent increments both land, regardless of interleaving.
// Negative deltas (reassignment-away) floor the counter at zero.
func (l *Ledger) Increment(ctx context.Context, q Querier, locationID uuid.UUID, day time.Time, delta int) error {
	if q == nil {
		q = l.db
	}

	_, err := q.Exec(ctx, `
		INSERT INTO capacity_ledger (location_id, day, assigned_count, max_capacity)
		VALUES ($1, $2, GREATEST(0, $3),
			(SELECT daily_capacity FROM locations WHERE id = $1))
		ON CONFLICT (location_id, day)
		DO UPDATE SET
			assigned_count = GREATEST(0, capacity_ledger.assigned_count + $3),
			updated_at = now()
	`, locationID, Day(day), delta)
	return err
}
