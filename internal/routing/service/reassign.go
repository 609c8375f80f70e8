package service

import (
	"context"
	"errors"
	"strconv"

	"leadrouter_backend/internal/capacity"
	"leadrouter_backend/internal/crm"
	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/geo"
	locrepo "leadrouter_backend/internal/locations/repository"
	"leadrouter_backend/internal/outbox"
	"leadrouter_backend/internal/routing/repository"
	"leadrouter_backend/internal/routing/transport"
	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
)

// Reassign moves a lead to an operator-chosen location. The target must
// be active; the lead must already have an assignment. Capacity moves
// with the lead: the old location's counter is released and the new one's
// consumed in the same transaction.
func (s *Service) Reassign(ctx context.Context, leadID uuid.UUID, req transport.ReassignRequest) (transport.ReassignResponse, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ReassignResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.ReassignResponse{}, err
	}
	if lead.AssignedLocationID == nil {
		return transport.ReassignResponse{}, apperr.Conflict("lead has no assignment to move")
	}
	if *lead.AssignedLocationID == req.NewLocationID {
		return transport.ReassignResponse{}, apperr.Conflict("lead is already assigned to that location")
	}

	loc, err := s.locations.GetByID(ctx, req.NewLocationID)
	if err != nil {
		return transport.ReassignResponse{}, apperr.Validation("target location does not exist")
	}
	if !loc.IsActive {
		return transport.ReassignResponse{}, apperr.Validation("target location is not active")
	}

	snap := s.reassignSnapshot(ctx, lead, loc, req.Note)

	record, err := s.store.Reassign(ctx, repository.ReassignParams{
		LeadID:        leadID,
		NewLocationID: loc.ID,
		Snapshot:      snap,
		Day:           s.now(),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ReassignResponse{}, apperr.NotFound("lead not found")
	}
	if errors.Is(err, repository.ErrNotAssigned) {
		return transport.ReassignResponse{}, apperr.Conflict("lead has no assignment to move")
	}
	if err != nil {
		return transport.ReassignResponse{}, err
	}

	s.log.RoutingDecision(leadID.String(), loc.ID.String(),
		repository.ReasonManualReassignment, snap.DistanceMiles, 0)

	s.bestEffort("crm write-back", func() error {
		set := crm.Build(record.Lead.ExternalContactID, crm.Target{
			LocationID:   loc.ID,
			LocationName: loc.Name,
			PipelineID:   loc.CRMPipelineID,
			StageID:      loc.CRMStageID,
			AutomationID: loc.CRMAutomationID,
		}, repository.ReasonManualReassignment, strconv.FormatFloat(snap.DistanceMiles, 'f', 2, 64))
		_, err := s.outbox.Enqueue(ctx, outbox.KindCRMWriteback, set)
		return err
	})

	s.bus.Publish(ctx, events.LeadReassigned{
		BaseEvent:          events.NewBaseEvent(),
		LeadID:             leadID,
		PreviousLocationID: record.PreviousLocationID,
		NewLocationID:      loc.ID,
		Reason:             repository.ReasonManualReassignment,
	})

	return transport.ReassignResponse{
		LeadID:             leadID,
		PreviousLocationID: record.PreviousLocationID,
		NewLocationID:      loc.ID,
		NewLocationName:    loc.Name,
		Reason:             repository.ReasonManualReassignment,
	}, nil
}

// reassignSnapshot re-derives distance from the lead's stored postal code.
// Geocode failures leave distance at zero; the move is operator-directed,
// so a missing distance never blocks it.
func (s *Service) reassignSnapshot(ctx context.Context, lead repository.Lead, loc locrepo.Location, note string) repository.DecisionSnapshot {
	snap := repository.DecisionSnapshot{Note: note}

	res, err := s.geocoder.Resolve(ctx, lead.PostalCode)
	if err == nil && res.Coordinates.Valid() && loc.Coordinates().Valid() {
		snap.DistanceMiles = geo.DistanceBetween(res.Coordinates, loc.Coordinates())
		snap.GeocodeSource = string(res.Source)
		snap.EstimatedCoordinates = res.Estimated
	}

	if util, err := s.ledger.GetUtilization(ctx, loc.ID, capacity.Day(s.now())); err == nil {
		snap.UtilizationRate = util.Rate
	}
	return snap
}
