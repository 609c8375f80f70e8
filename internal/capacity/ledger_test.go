package capacity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type execCall struct {
	sql  string
	args []any
}

// fakeQuerier records Exec statements and answers QueryRow through a
// caller-supplied function keyed on the SQL text.
type fakeQuerier struct {
	execs []execCall
	row   func(sql string, args []any) fakeRow
}

func (f *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, nil
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.row(sql, args)
}

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

func TestRate(t *testing.T) {
	cases := []struct {
		current, max int
		want         float64
	}{
		{0, 10, 0},
		{5, 10, 0.5},
		{10, 10, 1.0},
		{12, 10, 1.2},
		{3, 0, 0},
		{3, -1, 0},
	}

	for _, tc := range cases {
		if got := Rate(tc.current, tc.max); got != tc.want {
			t.Fatalf("Rate(%d, %d) = %f, want %f", tc.current, tc.max, got, tc.want)
		}
	}
}

func TestDay_TruncatesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2026, 3, 14, 2, 30, 0, 0, loc) // 2026-03-13 21:30 UTC

	got := Day(in)
	want := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Day() = %v, want %v", got, want)
	}
	if got.Hour() != 0 || got.Minute() != 0 {
		t.Fatalf("Day() not midnight: %v", got)
	}
}

func TestDay_Idempotent(t *testing.T) {
	d := Day(time.Now())
	if !Day(d).Equal(d) {
		t.Fatalf("Day(Day(t)) != Day(t)")
	}
}

func TestIncrement_IsSingleAdditiveUpsert(t *testing.T) {
	q := &fakeQuerier{}
	ledger := New(nil)
	locationID := uuid.New()
	at := time.Date(2026, 8, 24, 15, 45, 0, 0, time.UTC)

	if err := ledger.Increment(context.Background(), q, locationID, at, 1); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if len(q.execs) != 1 {
		t.Fatalf("expected one statement, got %d", len(q.execs))
	}

	call := q.execs[0]
	// The whole write must be one database-side additive statement, so two
	// concurrent increments both land regardless of interleaving.
	if !strings.Contains(call.sql, "ON CONFLICT (location_id, day)") {
		t.Fatalf("statement is not a (location_id, day) upsert:\n%s", call.sql)
	}
	if !strings.Contains(call.sql, "GREATEST(0, capacity_ledger.assigned_count + $3)") {
		t.Fatalf("statement is not an additive zero-floored update:\n%s", call.sql)
	}

	if got := call.args[0].(uuid.UUID); got != locationID {
		t.Fatalf("location arg = %v, want %v", got, locationID)
	}
	if got := call.args[1].(time.Time); !got.Equal(Day(at)) {
		t.Fatalf("day arg = %v, want truncated %v", got, Day(at))
	}
	if got := call.args[2].(int); got != 1 {
		t.Fatalf("delta arg = %d, want 1", got)
	}
}

func TestIncrement_NegativeDeltaKeepsZeroFloor(t *testing.T) {
	q := &fakeQuerier{}
	ledger := New(nil)

	if err := ledger.Increment(context.Background(), q, uuid.New(), time.Now(), -1); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	call := q.execs[0]
	if got := call.args[2].(int); got != -1 {
		t.Fatalf("delta arg = %d, want -1", got)
	}
	// Reassignment-away must not drive the counter negative; the floor
	// lives in the statement, not in Go.
	if !strings.Contains(call.sql, "GREATEST(0,") {
		t.Fatalf("decrement statement lost its zero floor:\n%s", call.sql)
	}
}

func TestIncrement_NilQuerierUsesLedgerDB(t *testing.T) {
	q := &fakeQuerier{}
	ledger := New(q)

	if err := ledger.Increment(context.Background(), nil, uuid.New(), time.Now(), 1); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if len(q.execs) != 1 {
		t.Fatalf("expected the ledger's own querier to receive the write, got %d calls", len(q.execs))
	}
}

func TestGetUtilization_NoRowFallsBackToLocationCapacity(t *testing.T) {
	q := &fakeQuerier{
		row: func(sql string, args []any) fakeRow {
			if strings.Contains(sql, "FROM capacity_ledger") {
				return fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
			}
			if strings.Contains(sql, "FROM locations") {
				return fakeRow{scan: func(dest ...any) error {
					*dest[0].(*int) = 15
					return nil
				}}
			}
			t.Fatalf("unexpected query: %s", sql)
			return fakeRow{}
		},
	}
	ledger := New(q)

	u, err := ledger.GetUtilization(context.Background(), uuid.New(), time.Now())
	if err != nil {
		t.Fatalf("GetUtilization: %v", err)
	}
	if u.Current != 0 {
		t.Fatalf("Current = %d, want 0 before any assignment", u.Current)
	}
	if u.Max != 15 {
		t.Fatalf("Max = %d, want the location's daily capacity 15", u.Max)
	}
	if u.Rate != 0 {
		t.Fatalf("Rate = %f, want 0", u.Rate)
	}
	if len(q.execs) != 0 {
		t.Fatalf("read created a row: %v", q.execs)
	}
}

func TestGetUtilization_ComputesRateFromLedgerRow(t *testing.T) {
	q := &fakeQuerier{
		row: func(sql string, args []any) fakeRow {
			return fakeRow{scan: func(dest ...any) error {
				*dest[0].(*int) = 9
				*dest[1].(*int) = 10
				return nil
			}}
		},
	}
	ledger := New(q)

	at := time.Date(2026, 8, 24, 23, 59, 0, 0, time.UTC)
	u, err := ledger.GetUtilization(context.Background(), uuid.New(), at)
	if err != nil {
		t.Fatalf("GetUtilization: %v", err)
	}
	if u.Rate != 0.9 {
		t.Fatalf("Rate = %f, want 0.9", u.Rate)
	}
	if !u.Day.Equal(Day(at)) {
		t.Fatalf("Day = %v, want %v", u.Day, Day(at))
	}
}
