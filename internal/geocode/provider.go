package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"leadrouter_backend/internal/geo"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"

	"golang.org/x/time/rate"
)

// Provider resolves a 5-digit ZIP to coordinates via an external service.
type Provider interface {
	Lookup(ctx context.Context, zip string) (geo.Coordinates, error)
}

// HTTPProvider queries a zippopotam-style endpoint: GET {base}/{zip}
// returning {"places":[{"latitude":"..","longitude":".."}]}.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewHTTPProvider creates a provider client with a bounded timeout and a
// request rate limiter so a burst of leads cannot hammer the upstream.
func NewHTTPProvider(cfg config.GeocoderConfig, log *logger.Logger) *HTTPProvider {
	perSecond := cfg.GetGeocoderRatePerSecond()
	if perSecond <= 0 {
		perSecond = 1
	}

	return &HTTPProvider{
		baseURL: cfg.GetGeocoderBaseURL(),
		client:  &http.Client{Timeout: cfg.GetGeocoderTimeout()},
		limiter: rate.NewLimiter(rate.Limit(perSecond), 3),
		log:     log,
	}
}

type providerResponse struct {
	Places []struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"places"`
}

// Lookup resolves one ZIP. Any failure is returned to the caller; the
// geocode service decides whether to swallow it and fall through a tier.
func (p *HTTPProvider) Lookup(ctx context.Context, zip string) (geo.Coordinates, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return geo.Coordinates{}, err
	}

	reqURL := fmt.Sprintf("%s/%s", p.baseURL, zip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return geo.Coordinates{}, err
	}
	req.Header.Set("User-Agent", "LeadRouter/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return geo.Coordinates{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return geo.Coordinates{}, fmt.Errorf("geocode upstream status %d", resp.StatusCode)
	}

	var payload providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return geo.Coordinates{}, err
	}
	if len(payload.Places) == 0 {
		return geo.Coordinates{}, fmt.Errorf("geocode upstream returned no places for %s", zip)
	}

	lat, err := strconv.ParseFloat(payload.Places[0].Latitude, 64)
	if err != nil {
		return geo.Coordinates{}, err
	}
	lon, err := strconv.ParseFloat(payload.Places[0].Longitude, 64)
	if err != nil {
		return geo.Coordinates{}, err
	}

	coords := geo.Coordinates{Latitude: lat, Longitude: lon}
	if !coords.Valid() {
		return geo.Coordinates{}, fmt.Errorf("geocode upstream returned invalid coordinates for %s", zip)
	}

	return coords, nil
}
