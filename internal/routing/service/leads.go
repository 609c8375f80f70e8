package service

import (
	"context"
	"errors"
	"time"

	"leadrouter_backend/internal/routing/repository"
	"leadrouter_backend/internal/routing/transport"
	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
)

// statusOrder defines the forward-only lead lifecycle. "lost" is terminal
// and reachable from any non-terminal status.
var statusOrder = map[string]int{
	repository.StatusNew:       0,
	repository.StatusAssigned:  1,
	repository.StatusContacted: 2,
	repository.StatusQualified: 3,
	repository.StatusConverted: 4,
}

// GetLead returns the lead read model.
func (s *Service) GetLead(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.store.GetLead(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return toLeadResponse(lead), nil
}

// ListDecisions returns the lead's full audit trail, oldest first.
func (s *Service) ListDecisions(ctx context.Context, leadID uuid.UUID) (transport.DecisionListResponse, error) {
	if _, err := s.store.GetLead(ctx, leadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.DecisionListResponse{}, apperr.NotFound("lead not found")
		}
		return transport.DecisionListResponse{}, err
	}

	decisions, err := s.store.ListDecisions(ctx, leadID)
	if err != nil {
		return transport.DecisionListResponse{}, err
	}

	out := transport.DecisionListResponse{
		Decisions: make([]transport.DecisionResponse, 0, len(decisions)),
		Total:     len(decisions),
	}
	for _, d := range decisions {
		out.Decisions = append(out.Decisions, transport.DecisionResponse{
			ID:              d.ID,
			LeadID:          d.LeadID,
			LocationID:      d.LocationID,
			PriorLocationID: d.PriorLocationID,
			Reason:          d.Reason,
			DistanceMiles:   d.Snapshot.DistanceMiles,
			Suitability:     d.Snapshot.Suitability,
			Utilization:     d.Snapshot.UtilizationRate,
			Estimated:       d.Snapshot.EstimatedCoordinates,
			OverThreshold:   d.Snapshot.OverThreshold,
			Note:            d.Snapshot.Note,
			CreatedAt:       d.CreatedAt,
		})
	}
	return out, nil
}

// AdvanceStatus moves a lead forward through its lifecycle. Backward
// moves are rejected; "lost" is allowed from any non-terminal status.
func (s *Service) AdvanceStatus(ctx context.Context, id uuid.UUID, req transport.UpdateStatusRequest) (transport.LeadResponse, error) {
	lead, err := s.store.GetLead(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.LeadResponse{}, err
	}

	if lead.Status == repository.StatusLost || lead.Status == repository.StatusConverted {
		return transport.LeadResponse{}, apperr.Conflict("lead lifecycle already finished")
	}

	if req.Status != repository.StatusLost {
		from, to := statusOrder[lead.Status], statusOrder[req.Status]
		if to <= from {
			return transport.LeadResponse{}, apperr.Validation("status can only move forward")
		}
	}

	updated, err := s.store.UpdateLeadStatus(ctx, id, req.Status)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return toLeadResponse(updated), nil
}

func toLeadResponse(l repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:                 l.ID,
		ExternalContactID:  l.ExternalContactID,
		FirstName:          l.FirstName,
		LastName:           l.LastName,
		Email:              l.Email,
		Phone:              l.Phone,
		PostalCode:         l.PostalCode,
		Source:             l.Source,
		LeadScore:          l.LeadScore,
		AssignedLocationID: l.AssignedLocationID,
		BackupLocationID:   l.BackupLocationID,
		Status:             l.Status,
		Metadata:           l.Metadata,
		CreatedAt:          l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          l.UpdatedAt.Format(time.RFC3339),
	}
}
