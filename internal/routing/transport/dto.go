// Package transport defines request and response shapes for the routing API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// AssignLeadRequest is the inbound payload for routing a single lead.
type AssignLeadRequest struct {
	ExternalContactID string  `json:"externalContactId" validate:"required,min=1,max=100"`
	PostalCode        string  `json:"postalCode" validate:"required,min=3,max=10"`
	Source            string  `json:"source" validate:"required,min=1,max=50"`
	LeadScore         int     `json:"leadScore" validate:"required,min=1,max=100"`
	FirstName         *string `json:"firstName,omitempty" validate:"omitempty,max=100"`
	LastName          *string `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Email             *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone             *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	UTMSource         *string `json:"utmSource,omitempty" validate:"omitempty,max=100"`
	UTMCampaign       *string `json:"utmCampaign,omitempty" validate:"omitempty,max=100"`
	UTMMedium         *string `json:"utmMedium,omitempty" validate:"omitempty,max=100"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// AssignmentResponse reports where a lead landed and why.
type AssignmentResponse struct {
	LeadID        uuid.UUID `json:"leadId"`
	LocationID    uuid.UUID `json:"locationId"`
	LocationName  string    `json:"locationName"`
	Reason        string    `json:"reason"`
	DistanceMiles float64   `json:"distanceMiles"`
	Suitability   float64   `json:"suitability"`
	Utilization   float64   `json:"utilizationRate"`

	// EstimatedCoordinates is true when the lead position came from a
	// regional approximation rather than a real geocode.
	EstimatedCoordinates bool `json:"estimatedCoordinates,omitempty"`
	// OverThreshold marks assignments made past the utilization cap.
	OverThreshold bool `json:"overThreshold,omitempty"`
	// RequiresReview flags fallback assignments an operator should verify.
	RequiresReview bool `json:"requiresReview,omitempty"`
	// RequiresManualReview flags overflow assignments needing manual
	// redistribution.
	RequiresManualReview bool `json:"requiresManualReview,omitempty"`
}

// BatchAssignRequest routes many leads in one call.
type BatchAssignRequest struct {
	Leads []AssignLeadRequest `json:"leads" validate:"required,min=1,max=500,dive"`
}

// BatchItemResult is the per-lead outcome inside a batch response. Exactly
// one of Assignment or Error is set.
type BatchItemResult struct {
	Index      int                 `json:"index"`
	Assignment *AssignmentResponse `json:"assignment,omitempty"`
	Error      *string             `json:"error,omitempty"`
}

// BatchAssignResponse aggregates the per-lead outcomes.
type BatchAssignResponse struct {
	Results     []BatchItemResult `json:"results"`
	Total       int               `json:"total"`
	Succeeded   int               `json:"succeeded"`
	Failed      int               `json:"failed"`
	SuccessRate float64           `json:"successRate"`
}

// ReassignRequest moves a lead to a specific location.
type ReassignRequest struct {
	NewLocationID uuid.UUID `json:"newLocationId" validate:"required"`
	Note          string    `json:"note,omitempty" validate:"omitempty,max=500"`
}

// ReassignResponse confirms the move.
type ReassignResponse struct {
	LeadID             uuid.UUID `json:"leadId"`
	PreviousLocationID uuid.UUID `json:"previousLocationId"`
	NewLocationID      uuid.UUID `json:"newLocationId"`
	NewLocationName    string    `json:"newLocationName"`
	Reason             string    `json:"reason"`
}

// UpdateStatusRequest advances a lead's lifecycle status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new assigned contacted qualified converted lost"`
}

// LeadResponse is the read model for a single lead.
type LeadResponse struct {
	ID                 uuid.UUID      `json:"id"`
	ExternalContactID  string         `json:"externalContactId"`
	FirstName          *string        `json:"firstName,omitempty"`
	LastName           *string        `json:"lastName,omitempty"`
	Email              *string        `json:"email,omitempty"`
	Phone              *string        `json:"phone,omitempty"`
	PostalCode         string         `json:"postalCode"`
	Source             string         `json:"source"`
	LeadScore          int            `json:"leadScore"`
	AssignedLocationID *uuid.UUID     `json:"assignedLocationId,omitempty"`
	BackupLocationID   *uuid.UUID     `json:"backupLocationId,omitempty"`
	Status             string         `json:"status"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          string         `json:"createdAt"`
	UpdatedAt          string         `json:"updatedAt"`
}

// DecisionResponse is one audit-trail entry.
type DecisionResponse struct {
	ID              uuid.UUID  `json:"id"`
	LeadID          uuid.UUID  `json:"leadId"`
	LocationID      uuid.UUID  `json:"locationId"`
	PriorLocationID *uuid.UUID `json:"priorLocationId,omitempty"`
	Reason          string     `json:"reason"`
	DistanceMiles   float64    `json:"distanceMiles"`
	Suitability     float64    `json:"suitability"`
	Utilization     float64    `json:"utilizationRate"`
	Estimated       bool       `json:"estimatedCoordinates,omitempty"`
	OverThreshold   bool       `json:"overThreshold,omitempty"`
	Note            string     `json:"note,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// DecisionListResponse wraps a lead's decision trail.
type DecisionListResponse struct {
	Decisions []DecisionResponse `json:"decisions"`
	Total     int                `json:"total"`
}
