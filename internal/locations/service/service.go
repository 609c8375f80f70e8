// Package service provides business logic for the location admin surface.
package service

import (
	"context"
	"errors"
	"time"

	"leadrouter_backend/internal/locations/repository"
	"leadrouter_backend/internal/locations/transport"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

type Service struct {
	repo *repository.Repository
	log  *logger.Logger
}

func New(repo *repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// List returns all locations for the admin surface.
func (s *Service) List(ctx context.Context) (transport.LocationListResponse, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return transport.LocationListResponse{}, err
	}

	out := make([]transport.LocationResponse, 0, len(items))
	for _, loc := range items {
		out = append(out, toResponse(loc))
	}
	return transport.LocationListResponse{Items: out, Total: len(out)}, nil
}

// GetByID returns a single location.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LocationResponse, error) {
	loc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.LocationResponse{}, mapErr(err)
	}
	return toResponse(loc), nil
}

// UpdateCapacity sets the daily capacity for a location.
func (s *Service) UpdateCapacity(ctx context.Context, id uuid.UUID, req transport.UpdateCapacityRequest) (transport.LocationResponse, error) {
	loc, err := s.repo.UpdateDailyCapacity(ctx, id, req.DailyCapacity)
	if err != nil {
		return transport.LocationResponse{}, mapErr(err)
	}
	s.log.Info("location capacity updated", "locationId", id, "dailyCapacity", req.DailyCapacity)
	return toResponse(loc), nil
}

// UpdateScores replaces the per-channel performance scores for a location.
func (s *Service) UpdateScores(ctx context.Context, id uuid.UUID, req transport.UpdateScoresRequest) (transport.LocationResponse, error) {
	loc, err := s.repo.UpdateChannelScores(ctx, id, req.ChannelScores)
	if err != nil {
		return transport.LocationResponse{}, mapErr(err)
	}
	return toResponse(loc), nil
}

// Deactivate stops a location from receiving leads.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (transport.LocationResponse, error) {
	loc, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return transport.LocationResponse{}, mapErr(err)
	}
	s.log.Info("location deactivated", "locationId", id, "name", loc.Name)
	return toResponse(loc), nil
}

func mapErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("location not found")
	}
	return err
}

func toResponse(loc repository.Location) transport.LocationResponse {
	return transport.LocationResponse{
		ID:            loc.ID,
		Name:          loc.Name,
		Address:       loc.Address,
		PostalCode:    loc.PostalCode,
		Latitude:      loc.Latitude,
		Longitude:     loc.Longitude,
		IsActive:      loc.IsActive,
		DailyCapacity: loc.DailyCapacity,
		ChannelScores: loc.ChannelScores,
		CreatedAt:     loc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     loc.UpdatedAt.Format(time.RFC3339),
	}
}
