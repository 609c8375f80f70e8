package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"leadrouter_backend/internal/capacity"
	"leadrouter_backend/internal/crm"
	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/geo"
	"leadrouter_backend/internal/geocode"
	locrepo "leadrouter_backend/internal/locations/repository"
	"leadrouter_backend/internal/outbox"
	"leadrouter_backend/internal/routing/repository"
	"leadrouter_backend/internal/routing/selector"
	"leadrouter_backend/internal/routing/transport"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/phone"
)

// AssignLead routes one lead end to end. Outcomes, in order of preference:
//
//   - optimal: a candidate within radius and under its utilization cap
//   - overflow: no candidate in radius, lead parked on the overflow location
//   - fallback: any error mid-pipeline, lead parked on the oldest location
//   - failed: fallback itself impossible; nothing is persisted and the
//     error carries both the original and the fallback cause
func (s *Service) AssignLead(ctx context.Context, req transport.AssignLeadRequest) (transport.AssignmentResponse, error) {
	normalizePhone(&req)

	geoRes, err := s.geocoder.Resolve(ctx, req.PostalCode)
	if err != nil {
		return s.routeFallback(ctx, req, nil, fmt.Errorf("geocode %q: %w", req.PostalCode, err))
	}

	candidates, err := s.selector.Select(ctx, geoRes.Coordinates, req.LeadScore, req.Source)
	if errors.Is(err, selector.ErrNoCandidates) {
		return s.routeOverflow(ctx, req, geoRes)
	}
	if err != nil {
		return s.routeFallback(ctx, req, &geoRes, fmt.Errorf("select candidates: %w", err))
	}

	best := candidates[0]
	loc, err := s.locations.GetByID(ctx, best.Location.ID)
	if err != nil {
		return s.routeFallback(ctx, req, &geoRes, fmt.Errorf("load selected location: %w", err))
	}

	snap := repository.DecisionSnapshot{
		DistanceMiles:        best.DistanceMiles,
		Suitability:          best.Suitability,
		UtilizationRate:      best.UtilizationRate,
		GeocodeSource:        string(geoRes.Source),
		EstimatedCoordinates: geoRes.Estimated,
		OverThreshold:        best.OverThreshold,
	}

	resp, err := s.execute(ctx, req, loc, repository.ReasonOptimalMatch, snap)
	if err != nil {
		return s.routeFallback(ctx, req, &geoRes, err)
	}
	return resp, nil
}

// routeOverflow parks a lead on the designated overflow location when no
// regular candidate exists. A missing overflow location degrades further
// into the fallback path rather than failing outright.
func (s *Service) routeOverflow(ctx context.Context, req transport.AssignLeadRequest, geoRes geocode.Result) (transport.AssignmentResponse, error) {
	loc, err := s.locations.FindOverflow(ctx)
	if err != nil {
		return s.routeFallback(ctx, req, &geoRes, fmt.Errorf("find overflow location: %w", err))
	}

	snap := s.parkedSnapshot(ctx, loc, &geoRes, "no candidate location within service radius")

	resp, err := s.execute(ctx, req, loc, repository.ReasonCapacityOverflow, snap)
	if err != nil {
		return s.routeFallback(ctx, req, &geoRes, err)
	}
	resp.RequiresManualReview = true

	s.bus.Publish(ctx, events.RoutingOverflow{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     resp.LeadID,
		LocationID: loc.ID,
		PostalCode: req.PostalCode,
		Source:     req.Source,
	})
	return resp, nil
}

// routeFallback parks a lead on the oldest active location after an error
// anywhere in the pipeline. geoRes is nil when geocoding itself failed.
func (s *Service) routeFallback(ctx context.Context, req transport.AssignLeadRequest, geoRes *geocode.Result, cause error) (transport.AssignmentResponse, error) {
	loc, err := s.locations.OldestActive(ctx)
	if err != nil {
		joined := errors.Join(cause, fmt.Errorf("fallback location: %w", err))
		return transport.AssignmentResponse{},
			apperr.Wrap(apperr.KindInternal, "lead routing failed with no fallback available", joined)
	}

	snap := s.parkedSnapshot(ctx, loc, geoRes, cause.Error())

	resp, execErr := s.execute(ctx, req, loc, repository.ReasonFallbackRouting, snap)
	if execErr != nil {
		joined := errors.Join(cause, execErr)
		return transport.AssignmentResponse{},
			apperr.Wrap(apperr.KindInternal, "lead routing failed", joined)
	}
	resp.RequiresReview = true

	s.bus.Publish(ctx, events.RoutingFallback{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     resp.LeadID,
		LocationID: loc.ID,
		PostalCode: req.PostalCode,
		Source:     req.Source,
		Error:      cause.Error(),
	})
	return resp, nil
}

// parkedSnapshot records what is knowable about an overflow or fallback
// placement. Distance is available only when geocoding succeeded;
// utilization is read best-effort and left zero on error.
func (s *Service) parkedSnapshot(ctx context.Context, loc locrepo.Location, geoRes *geocode.Result, note string) repository.DecisionSnapshot {
	snap := repository.DecisionSnapshot{Note: note}

	if geoRes != nil {
		snap.GeocodeSource = string(geoRes.Source)
		snap.EstimatedCoordinates = geoRes.Estimated
		if geoRes.Coordinates.Valid() && loc.Coordinates().Valid() {
			snap.DistanceMiles = geo.DistanceBetween(geoRes.Coordinates, loc.Coordinates())
		}
	}

	if util, err := s.ledger.GetUtilization(ctx, loc.ID, capacity.Day(s.now())); err == nil {
		snap.UtilizationRate = util.Rate
	}
	return snap
}

// execute persists the assignment atomically, then fires the post-commit
// side effects: the CRM write-back enqueue and the routed event. Side
// effect failures never roll back or fail the assignment.
func (s *Service) execute(ctx context.Context, req transport.AssignLeadRequest, loc locrepo.Location, reason string, snap repository.DecisionSnapshot) (transport.AssignmentResponse, error) {
	lead, _, err := s.store.CreateAssignment(ctx, repository.CreateAssignmentParams{
		ExternalContactID: req.ExternalContactID,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		Phone:             req.Phone,
		PostalCode:        req.PostalCode,
		Source:            req.Source,
		LeadScore:         req.LeadScore,
		UTMSource:         req.UTMSource,
		UTMCampaign:       req.UTMCampaign,
		UTMMedium:         req.UTMMedium,
		Metadata:          req.Metadata,
		LocationID:        loc.ID,
		Reason:            reason,
		Snapshot:          snap,
		Day:               s.now(),
	})
	if err != nil {
		return transport.AssignmentResponse{}, fmt.Errorf("persist assignment: %w", err)
	}

	s.log.RoutingDecision(lead.ID.String(), loc.ID.String(), reason, snap.DistanceMiles, snap.Suitability)

	s.bestEffort("crm write-back", func() error {
		set := crm.Build(lead.ExternalContactID, crm.Target{
			LocationID:   loc.ID,
			LocationName: loc.Name,
			PipelineID:   loc.CRMPipelineID,
			StageID:      loc.CRMStageID,
			AutomationID: loc.CRMAutomationID,
		}, reason, strconv.FormatFloat(snap.DistanceMiles, 'f', 2, 64))
		_, err := s.outbox.Enqueue(ctx, outbox.KindCRMWriteback, set)
		return err
	})

	s.bus.Publish(ctx, events.LeadRouted{
		BaseEvent:     events.NewBaseEvent(),
		LeadID:        lead.ID,
		LocationID:    loc.ID,
		LocationName:  loc.Name,
		Reason:        reason,
		DistanceMiles: snap.DistanceMiles,
		PostalCode:    req.PostalCode,
		Source:        req.Source,
	})

	return transport.AssignmentResponse{
		LeadID:               lead.ID,
		LocationID:           loc.ID,
		LocationName:         loc.Name,
		Reason:               reason,
		DistanceMiles:        snap.DistanceMiles,
		Suitability:          snap.Suitability,
		Utilization:          snap.UtilizationRate,
		EstimatedCoordinates: snap.EstimatedCoordinates,
		OverThreshold:        snap.OverThreshold,
	}, nil
}

// normalizePhone rewrites the phone to E.164 when it parses; unparseable
// numbers are kept verbatim rather than rejected.
func normalizePhone(req *transport.AssignLeadRequest) {
	if req.Phone == nil || *req.Phone == "" {
		return
	}
	normalized := phone.NormalizeE164(*req.Phone)
	req.Phone = &normalized
}
