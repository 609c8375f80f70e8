// Package repository persists leads and routing decisions. Assignment and
// reassignment are single transactions covering the lead row, the
// append-only decision record, and the capacity ledger, so a failure in
// any one of them leaves no partial state behind.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadrouter_backend/internal/capacity"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reason codes recorded on every routing decision.
const (
	ReasonOptimalMatch       = "optimal_match"
	ReasonCapacityOverflow   = "capacity_overflow"
	ReasonFallbackRouting    = "fallback_routing"
	ReasonManualReassignment = "manual_reassignment"
)

// Lead lifecycle statuses, in progression order.
const (
	StatusNew       = "new"
	StatusAssigned  = "assigned"
	StatusContacted = "contacted"
	StatusQualified = "qualified"
	StatusConverted = "converted"
	StatusLost      = "lost"
)

var (
	ErrNotFound    = errors.New("lead not found")
	ErrNotAssigned = errors.New("lead has no assigned location")
)

// Lead is an inbound contact routed (or awaiting routing) to a location.
type Lead struct {
	ID                 uuid.UUID
	ExternalContactID  string
	FirstName          *string
	LastName           *string
	Email              *string
	Phone              *string
	PostalCode         string
	Source             string
	LeadScore          int
	AssignedLocationID *uuid.UUID
	BackupLocationID   *uuid.UUID
	Status             string
	UTMSource          *string
	UTMCampaign        *string
	UTMMedium          *string
	Metadata           map[string]any
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DecisionSnapshot captures the routing inputs at decision time. It is
// stored as jsonb on the decision row and never recomputed afterwards.
type DecisionSnapshot struct {
	DistanceMiles        float64 `json:"distanceMiles"`
	Suitability          float64 `json:"suitability"`
	UtilizationRate      float64 `json:"utilizationRate"`
	GeocodeSource        string  `json:"geocodeSource,omitempty"`
	EstimatedCoordinates bool    `json:"estimatedCoordinates,omitempty"`
	OverThreshold        bool    `json:"overThreshold,omitempty"`
	Note                 string  `json:"note,omitempty"`
}

// RoutingDecision is one append-only entry in a lead's audit trail.
type RoutingDecision struct {
	ID              uuid.UUID
	LeadID          uuid.UUID
	LocationID      uuid.UUID
	PriorLocationID *uuid.UUID
	Reason          string
	Snapshot        DecisionSnapshot
	CreatedAt       time.Time
}

// CreateAssignmentParams carries everything needed to persist a routed lead.
type CreateAssignmentParams struct {
	ExternalContactID string
	FirstName         *string
	LastName          *string
	Email             *string
	Phone             *string
	PostalCode        string
	Source            string
	LeadScore         int
	UTMSource         *string
	UTMCampaign       *string
	UTMMedium         *string
	Metadata          map[string]any

	LocationID uuid.UUID
	Reason     string
	Snapshot   DecisionSnapshot
	Day        time.Time
}

// ReassignParams moves an already-assigned lead to a new location.
type ReassignParams struct {
	LeadID        uuid.UUID
	NewLocationID uuid.UUID
	Snapshot      DecisionSnapshot
	Day           time.Time
}

// ReassignmentRecord reports the locations involved in a completed move.
type ReassignmentRecord struct {
	Lead               Lead
	PreviousLocationID uuid.UUID
	Decision           RoutingDecision
}

// Repository is the pgx-backed lead store.
type Repository struct {
	pool   *pgxpool.Pool
	ledger *capacity.Ledger
}

// New creates a repository sharing the capacity ledger so ledger writes
// join the assignment transaction.
func New(pool *pgxpool.Pool, ledger *capacity.Ledger) *Repository {
	return &Repository{pool: pool, ledger: ledger}
}

const leadColumns = `
	id, external_contact_id, first_name, last_name, email, phone,
	postal_code, source, lead_score, assigned_location_id,
	backup_location_id, status, utm_source, utm_campaign, utm_medium,
	metadata, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.ExternalContactID, &l.FirstName, &l.LastName, &l.Email,
		&l.Phone, &l.PostalCode, &l.Source, &l.LeadScore,
		&l.AssignedLocationID, &l.BackupLocationID, &l.Status,
		&l.UTMSource, &l.UTMCampaign, &l.UTMMedium, &l.Metadata,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

const decisionColumns = `
	id, lead_id, location_id, prior_location_id, reason, snapshot, created_at`

func scanDecision(row pgx.Row) (RoutingDecision, error) {
	var d RoutingDecision
	err := row.Scan(
		&d.ID, &d.LeadID, &d.LocationID, &d.PriorLocationID,
		&d.Reason, &d.Snapshot, &d.CreatedAt,
	)
	return d, err
}

// CreateAssignment inserts the lead, its first routing decision, and the
// ledger increment in one transaction.
func (r *Repository) CreateAssignment(ctx context.Context, p CreateAssignmentParams) (Lead, RoutingDecision, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, RoutingDecision{}, fmt.Errorf("begin assignment tx: %w", err)
	}
	defer tx.Rollback(ctx)

	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	lead, err := scanLead(tx.QueryRow(ctx, `
		INSERT INTO leads (
			external_contact_id, first_name, last_name, email, phone,
			postal_code, source, lead_score, assigned_location_id, status,
			utm_source, utm_campaign, utm_medium, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING`+leadColumns,
		p.ExternalContactID, p.FirstName, p.LastName, p.Email, p.Phone,
		p.PostalCode, p.Source, p.LeadScore, p.LocationID, StatusAssigned,
		p.UTMSource, p.UTMCampaign, p.UTMMedium, metadata,
	))
	if err != nil {
		return Lead{}, RoutingDecision{}, fmt.Errorf("insert lead: %w", err)
	}

	decision, err := scanDecision(tx.QueryRow(ctx, `
		INSERT INTO routing_decisions (lead_id, location_id, reason, snapshot)
		VALUES ($1, $2, $3, $4)
		RETURNING`+decisionColumns,
		lead.ID, p.LocationID, p.Reason, p.Snapshot,
	))
	if err != nil {
		return Lead{}, RoutingDecision{}, fmt.Errorf("insert routing decision: %w", err)
	}

	if err := r.ledger.Increment(ctx, tx, p.LocationID, p.Day, 1); err != nil {
		return Lead{}, RoutingDecision{}, fmt.Errorf("increment capacity ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, RoutingDecision{}, fmt.Errorf("commit assignment tx: %w", err)
	}
	return lead, decision, nil
}

// Reassign moves a lead to a new location: the previous assignment is kept
// as the backup, a manual-reassignment decision is appended, and the
// ledger is decremented for the old location and incremented for the new
// one, all in one transaction. The lead row is locked for the duration so
// concurrent reassignments serialize.
func (r *Repository) Reassign(ctx context.Context, p ReassignParams) (ReassignmentRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ReassignmentRecord{}, fmt.Errorf("begin reassign tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var previous *uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT assigned_location_id FROM leads WHERE id = $1 FOR UPDATE
	`, p.LeadID).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return ReassignmentRecord{}, ErrNotFound
	}
	if err != nil {
		return ReassignmentRecord{}, fmt.Errorf("lock lead: %w", err)
	}
	if previous == nil {
		return ReassignmentRecord{}, ErrNotAssigned
	}

	lead, err := scanLead(tx.QueryRow(ctx, `
		UPDATE leads
		SET backup_location_id = assigned_location_id,
			assigned_location_id = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING`+leadColumns,
		p.LeadID, p.NewLocationID,
	))
	if err != nil {
		return ReassignmentRecord{}, fmt.Errorf("update lead assignment: %w", err)
	}

	decision, err := scanDecision(tx.QueryRow(ctx, `
		INSERT INTO routing_decisions (lead_id, location_id, prior_location_id, reason, snapshot)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING`+decisionColumns,
		p.LeadID, p.NewLocationID, *previous, ReasonManualReassignment, p.Snapshot,
	))
	if err != nil {
		return ReassignmentRecord{}, fmt.Errorf("insert reassignment decision: %w", err)
	}

	if err := r.ledger.Increment(ctx, tx, *previous, p.Day, -1); err != nil {
		return ReassignmentRecord{}, fmt.Errorf("decrement previous location: %w", err)
	}
	if err := r.ledger.Increment(ctx, tx, p.NewLocationID, p.Day, 1); err != nil {
		return ReassignmentRecord{}, fmt.Errorf("increment new location: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ReassignmentRecord{}, fmt.Errorf("commit reassign tx: %w", err)
	}
	return ReassignmentRecord{Lead: lead, PreviousLocationID: *previous, Decision: decision}, nil
}

// GetLead fetches a lead by id.
func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `SELECT`+leadColumns+` FROM leads WHERE id = $1`, id))
}

// ListDecisions returns a lead's decision trail, oldest first.
func (r *Repository) ListDecisions(ctx context.Context, leadID uuid.UUID) ([]RoutingDecision, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+decisionColumns+`
		FROM routing_decisions
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []RoutingDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// UpdateLeadStatus writes a new lifecycle status. Progression rules are
// enforced by the service, which reads the lead under no lock; a stale
// transition simply overwrites with the same value.
func (r *Repository) UpdateLeadStatus(ctx context.Context, id uuid.UUID, status string) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING`+leadColumns,
		id, status,
	))
}
