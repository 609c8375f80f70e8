package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"leadrouter_backend/platform/config"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// tokenRefreshSkew renews tokens this long before their reported expiry.
const tokenRefreshSkew = 60 * time.Second

type cachedToken struct {
	value     string
	expiresAt time.Time
}

func (t cachedToken) valid(now time.Time) bool {
	return t.value != "" && now.Before(t.expiresAt.Add(-tokenRefreshSkew))
}

// TokenSource exchanges agency credentials for per-location access tokens
// and caches them until shortly before expiry. Concurrent requests for the
// same location share one upstream exchange.
type TokenSource struct {
	cfg    config.CRMConfig
	client *http.Client

	mu     sync.RWMutex
	tokens map[uuid.UUID]cachedToken
	group  singleflight.Group

	now func() time.Time
}

// NewTokenSource creates a token source. now may be nil (defaults to
// time.Now).
func NewTokenSource(cfg config.CRMConfig, now func() time.Time) *TokenSource {
	if now == nil {
		now = time.Now
	}
	return &TokenSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.GetCRMTimeout()},
		tokens: make(map[uuid.UUID]cachedToken),
		now:    now,
	}
}

// Token returns a valid access token for the location, fetching a fresh
// one when the cached token is missing or near expiry.
func (s *TokenSource) Token(ctx context.Context, locationID uuid.UUID) (string, error) {
	s.mu.RLock()
	tok := s.tokens[locationID]
	s.mu.RUnlock()
	if tok.valid(s.now()) {
		return tok.value, nil
	}

	v, err, _ := s.group.Do(locationID.String(), func() (any, error) {
		// Re-check under the flight: a racing caller may have refreshed.
		s.mu.RLock()
		tok := s.tokens[locationID]
		s.mu.RUnlock()
		if tok.valid(s.now()) {
			return tok.value, nil
		}

		fresh, err := s.exchange(ctx, locationID)
		if err != nil {
			return "", err
		}

		s.mu.Lock()
		s.tokens[locationID] = fresh
		s.mu.Unlock()
		return fresh.value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token for a location, forcing a fresh
// exchange on the next use. Called by the client on 401 responses.
func (s *TokenSource) Invalidate(locationID uuid.UUID) {
	s.mu.Lock()
	delete(s.tokens, locationID)
	s.mu.Unlock()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (s *TokenSource) exchange(ctx context.Context, locationID uuid.UUID) (cachedToken, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     s.cfg.GetCRMClientID(),
		"client_secret": s.cfg.GetCRMClientSecret(),
		"location_id":   locationID.String(),
	})
	if err != nil {
		return cachedToken{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.GetCRMBaseURL()+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return cachedToken{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return cachedToken{}, fmt.Errorf("crm token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cachedToken{}, fmt.Errorf("crm token exchange: unexpected status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return cachedToken{}, fmt.Errorf("crm token exchange: decode: %w", err)
	}
	if tr.AccessToken == "" {
		return cachedToken{}, fmt.Errorf("crm token exchange: empty access token")
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return cachedToken{value: tr.AccessToken, expiresAt: s.now().Add(ttl)}, nil
}
