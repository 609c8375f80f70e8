// Package repository provides persistence for service locations.
// Locations are created by an onboarding process; the routing core only
// reads them and updates capacity and performance scores.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leadrouter_backend/internal/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("location not found")

// Location is a service point that can receive leads.
type Location struct {
	ID              uuid.UUID
	Name            string
	Address         string
	PostalCode      string
	Latitude        float64
	Longitude       float64
	IsActive        bool
	DailyCapacity   int
	ChannelScores   map[string]float64
	CRMLocationID   *string
	CRMPipelineID   *string
	CRMStageID      *string
	CRMAutomationID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Coordinates returns the location's coordinate pair.
func (l Location) Coordinates() geo.Coordinates {
	return geo.Coordinates{Latitude: l.Latitude, Longitude: l.Longitude}
}

// ChannelScore returns the per-channel performance score, 0 when unset.
func (l Location) ChannelScore(channel string) float64 {
	return l.ChannelScores[channel]
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const locationColumns = `id, name, address, postal_code, latitude, longitude, is_active,
	daily_capacity, channel_scores, crm_location_id, crm_pipeline_id, crm_stage_id, crm_automation_id,
	created_at, updated_at`

func scanLocation(row pgx.Row) (Location, error) {
	var loc Location
	var scores []byte
	err := row.Scan(
		&loc.ID, &loc.Name, &loc.Address, &loc.PostalCode, &loc.Latitude, &loc.Longitude, &loc.IsActive,
		&loc.DailyCapacity, &scores, &loc.CRMLocationID, &loc.CRMPipelineID, &loc.CRMStageID, &loc.CRMAutomationID,
		&loc.CreatedAt, &loc.UpdatedAt,
	)
	if err != nil {
		return Location{}, err
	}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &loc.ChannelScores); err != nil {
			return Location{}, err
		}
	}
	return loc, nil
}

// ListActiveRoutable returns active locations with valid coordinates.
// Coordinate validity is enforced here so the selector never sees a
// location it cannot measure a distance to.
func (r *Repository) ListActiveRoutable(ctx context.Context) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+locationColumns+`
		FROM locations
		WHERE is_active = true
		  AND latitude BETWEEN -90 AND 90
		  AND longitude BETWEEN -180 AND 180
		  AND NOT (latitude = 0 AND longitude = 0)
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := make([]Location, 0)
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// List returns all locations, active or not, for the admin surface.
func (r *Repository) List(ctx context.Context) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+locationColumns+`
		FROM locations
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := make([]Location, 0)
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// GetByID returns one location regardless of its active flag, so that
// historical assignments to deactivated locations stay resolvable.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Location, error) {
	loc, err := scanLocation(r.pool.QueryRow(ctx, `
		SELECT `+locationColumns+`
		FROM locations WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, ErrNotFound
	}
	return loc, err
}

// OldestActive returns the longest-standing active location, used as the
// default destination on the error-fallback path.
func (r *Repository) OldestActive(ctx context.Context) (Location, error) {
	loc, err := scanLocation(r.pool.QueryRow(ctx, `
		SELECT `+locationColumns+`
		FROM locations
		WHERE is_active = true
		ORDER BY created_at ASC
		LIMIT 1
	`))
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, ErrNotFound
	}
	return loc, err
}

// FindOverflow returns the designated catch-all location, identified by
// name convention ("Overflow" or "HQ" in the display name).
func (r *Repository) FindOverflow(ctx context.Context) (Location, error) {
	loc, err := scanLocation(r.pool.QueryRow(ctx, `
		SELECT `+locationColumns+`
		FROM locations
		WHERE is_active = true
		  AND (name ILIKE '%overflow%' OR name ILIKE '%hq%' OR name ILIKE '%headquarters%')
		ORDER BY created_at ASC
		LIMIT 1
	`))
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, ErrNotFound
	}
	return loc, err
}

// UpdateDailyCapacity sets the maximum leads per day for a location.
func (r *Repository) UpdateDailyCapacity(ctx context.Context, id uuid.UUID, capacity int) (Location, error) {
	loc, err := scanLocation(r.pool.QueryRow(ctx, `
		UPDATE locations
		SET daily_capacity = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+locationColumns+`
	`, id, capacity))
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, ErrNotFound
	}
	return loc, err
}

// UpdateChannelScores replaces the per-channel performance scores.
func (r *Repository) UpdateChannelScores(ctx context.Context, id uuid.UUID, scores map[string]float64) (Location, error) {
	payload, err := json.Marshal(scores)
	if err != nil {
		return Location{}, err
	}

	loc, err := scanLocation(r.pool.QueryRow(ctx, `
		UPDATE locations
		SET channel_scores = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+locationColumns+`
	`, id, payload))
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, ErrNotFound
	}
	return loc, err
}

// Deactivate stops a location from receiving new leads. Rows are never
// deleted: existing assignments keep referencing them.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) (Location, error) {
	loc, err := scanLocation(r.pool.QueryRow(ctx, `
		UPDATE locations
		SET is_active = false, updated_at = now()
		WHERE id = $1
		RETURNING `+locationColumns+`
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, ErrNotFound
	}
	return loc, err
}
