package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLocationTag(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Downtown Austin", "downtown-austin"},
		{"St. Louis  West", "st-louis-west"},
		{"HQ / Overflow", "hq-overflow"},
		{"  Leading Space", "leading-space"},
		{"Trailing Space ", "trailing-space"},
		{"UPPER_case_name", "upper-case-name"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := LocationTag(tc.in); got != tc.want {
			t.Fatalf("LocationTag(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuild_IncludesRoutingFields(t *testing.T) {
	pipeline, stage, automation := "pipe-1", "stage-1", "auto-1"
	target := Target{
		LocationID:   uuid.New(),
		LocationName: "Downtown Austin",
		PipelineID:   &pipeline,
		StageID:      &stage,
		AutomationID: &automation,
	}

	set := Build("contact-42", target, "optimal_match", "12.34")

	if set.Fields[FieldLocationName] != "Downtown Austin" {
		t.Fatalf("location name field = %q", set.Fields[FieldLocationName])
	}
	if set.Fields[FieldReasonCode] != "optimal_match" {
		t.Fatalf("reason field = %q", set.Fields[FieldReasonCode])
	}
	if set.Fields[FieldDistance] != "12.34" {
		t.Fatalf("distance field = %q", set.Fields[FieldDistance])
	}
	if set.Tags[0] != "downtown-austin" {
		t.Fatalf("first tag = %q, want sanitized location name", set.Tags[0])
	}
}

type fakeCRMConfig struct {
	baseURL string
}

func (c fakeCRMConfig) GetCRMBaseURL() string        { return c.baseURL }
func (c fakeCRMConfig) GetCRMClientID() string       { return "client" }
func (c fakeCRMConfig) GetCRMClientSecret() string   { return "secret" }
func (c fakeCRMConfig) GetCRMTimeout() time.Duration { return 2 * time.Second }
func (c fakeCRMConfig) IsCRMEnabled() bool           { return true }

func TestTokenSource_DedupesConcurrentExchanges(t *testing.T) {
	var exchanges atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		time.Sleep(20 * time.Millisecond) // widen the race window
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	src := NewTokenSource(fakeCRMConfig{baseURL: srv.URL}, nil)
	locationID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := src.Token(context.Background(), locationID)
			if err != nil {
				t.Errorf("Token: %v", err)
				return
			}
			if tok != "tok-1" {
				t.Errorf("Token = %q", tok)
			}
		}()
	}
	wg.Wait()

	if got := exchanges.Load(); got != 1 {
		t.Fatalf("expected 1 upstream exchange, got %d", got)
	}
}

func TestTokenSource_CachesUntilExpiry(t *testing.T) {
	var exchanges atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	now := time.Now()
	clock := func() time.Time { return now }
	src := NewTokenSource(fakeCRMConfig{baseURL: srv.URL}, clock)
	locationID := uuid.New()

	for i := 0; i < 3; i++ {
		if _, err := src.Token(context.Background(), locationID); err != nil {
			t.Fatalf("Token: %v", err)
		}
	}
	if got := exchanges.Load(); got != 1 {
		t.Fatalf("expected cached token reuse, got %d exchanges", got)
	}

	src.Invalidate(locationID)
	if _, err := src.Token(context.Background(), locationID); err != nil {
		t.Fatalf("Token after invalidate: %v", err)
	}
	if got := exchanges.Load(); got != 2 {
		t.Fatalf("expected re-exchange after invalidate, got %d", got)
	}
}
