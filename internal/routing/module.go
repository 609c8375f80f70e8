// Package routing provides the lead-routing bounded context module.
package routing

import (
	"context"
	"time"

	"leadrouter_backend/internal/capacity"
	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/geocode"
	apphttp "leadrouter_backend/internal/http"
	locrepo "leadrouter_backend/internal/locations/repository"
	"leadrouter_backend/internal/outbox"
	"leadrouter_backend/internal/routing/handler"
	"leadrouter_backend/internal/routing/repository"
	"leadrouter_backend/internal/routing/selector"
	"leadrouter_backend/internal/routing/service"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// geocodeCacheTTL is how long resolved ZIPs stay in Redis. ZIP centroids
// do not move; the TTL just bounds staleness of provider data.
const geocodeCacheTTL = 24 * time.Hour

// Module is the routing bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule wires the full routing pipeline: geocoder, selector, ledger,
// repository, and orchestrator. redisClient may be nil (geocode caching
// disabled); the locations repository is shared with the locations module.
func NewModule(
	pool *pgxpool.Pool,
	redisClient *redis.Client,
	cfg *config.Config,
	locations *locrepo.Repository,
	ob *outbox.Repository,
	bus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	var provider geocode.Provider
	if cfg.IsGeocoderEnabled() {
		provider = geocode.NewHTTPProvider(cfg, log)
	}
	var cache geocode.Cache
	if redisClient != nil {
		cache = geocode.NewRedisCache(redisClient, geocodeCacheTTL)
	}
	geocoder := geocode.NewService(provider, geocode.NewStaticTable(nil), cache, log)

	ledger := capacity.New(pool)
	sel := selector.New(locationSource{locations}, ledger, nil, log)
	store := repository.New(pool, ledger)

	svc := service.New(geocoder, sel, locations, store, ledger, ob, bus, log, nil)

	return &Module{
		handler: handler.New(svc, val),
		svc:     svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "routing"
}

// Service exposes the routing service to other composition points.
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes mounts ingestion and lead routes on the protected group
// and the reassignment surface on the admin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/routing"))
	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/routing"))
}

// locationSource adapts the locations repository to the selector's view.
type locationSource struct {
	repo *locrepo.Repository
}

func (s locationSource) ListActiveRoutable(ctx context.Context) ([]selector.Location, error) {
	locations, err := s.repo.ListActiveRoutable(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]selector.Location, 0, len(locations))
	for _, loc := range locations {
		out = append(out, selector.Location{
			ID:            loc.ID,
			Name:          loc.Name,
			Coordinates:   loc.Coordinates(),
			DailyCapacity: loc.DailyCapacity,
			ChannelScores: loc.ChannelScores,
		})
	}
	return out, nil
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
