// Package locations provides the service-location bounded context module.
package locations

import (
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/internal/locations/handler"
	"leadrouter_backend/internal/locations/repository"
	"leadrouter_backend/internal/locations/service"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the locations bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
}

// NewModule creates and initializes the locations module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)

	return &Module{
		handler: handler.New(svc, val),
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "locations"
}

// Repository exposes the location store to the routing module.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts location routes. Capacity and score updates are
// an operator surface, so everything lives under the admin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/locations"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
