package geocode

import (
	"context"
	"errors"
	"testing"

	"leadrouter_backend/internal/geo"
	"leadrouter_backend/platform/logger"
)

type stubProvider struct {
	coords geo.Coordinates
	err    error
	calls  int
}

func (p *stubProvider) Lookup(_ context.Context, _ string) (geo.Coordinates, error) {
	p.calls++
	if p.err != nil {
		return geo.Coordinates{}, p.err
	}
	return p.coords, nil
}

func newTestService(p Provider, entries map[string]geo.Coordinates) *Service {
	return NewService(p, NewStaticTable(entries), nil, logger.New("development"))
}

func TestCleanPostalCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10001", "10001"},
		{" 10001 ", "10001"},
		{"10001-1234", "10001-1234"},
		{"100011234", "10001-1234"},
		{"1 0 0 0 1", "10001"},
		{"ABCDE", ""},
		{"10001-12345678", "10001-1234"},
		{"1234", ""},
		{"zip: 94103!", "94103"},
		{"94103", "94103"},
	}

	for _, tc := range cases {
		if got := CleanPostalCode(tc.in); got != tc.want {
			t.Fatalf("CleanPostalCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolve_ProviderFirst(t *testing.T) {
	p := &stubProvider{coords: geo.Coordinates{Latitude: 40.7505, Longitude: -73.9934}}
	svc := newTestService(p, map[string]geo.Coordinates{})

	res, err := svc.Resolve(context.Background(), "10001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceProvider || res.Estimated {
		t.Fatalf("expected exact provider result, got %+v", res)
	}
	if res.Coordinates.Latitude != 40.7505 {
		t.Fatalf("unexpected coordinates: %+v", res.Coordinates)
	}
}

func TestResolve_ProviderFailureFallsBackToStatic(t *testing.T) {
	p := &stubProvider{err: errors.New("upstream down")}
	svc := newTestService(p, map[string]geo.Coordinates{
		"10001": {Latitude: 40.7505, Longitude: -73.9934},
	})

	res, err := svc.Resolve(context.Background(), "10001")
	if err != nil {
		t.Fatalf("provider failure must not surface: %v", err)
	}
	if res.Source != SourceStatic {
		t.Fatalf("expected static tier, got %s", res.Source)
	}
	if p.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", p.calls)
	}
}

func TestResolve_RegionalEstimateIsMarked(t *testing.T) {
	p := &stubProvider{err: errors.New("upstream down")}
	svc := newTestService(p, map[string]geo.Coordinates{})

	res, err := svc.Resolve(context.Background(), "75999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceRegional || !res.Estimated {
		t.Fatalf("expected estimated regional result, got %+v", res)
	}
	if !res.Coordinates.Valid() {
		t.Fatalf("regional estimate must be valid coordinates: %+v", res.Coordinates)
	}
}

func TestResolve_SecondDigitOffsetsEstimate(t *testing.T) {
	svc := newTestService(nil, map[string]geo.Coordinates{})

	a, err := svc.Resolve(context.Background(), "90210")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := svc.Resolve(context.Background(), "99999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Coordinates == b.Coordinates {
		t.Fatalf("estimates for different second digits must differ: %+v", a.Coordinates)
	}
}

func TestResolve_UnresolvableReturnsNotFound(t *testing.T) {
	svc := newTestService(nil, map[string]geo.Coordinates{})

	for _, code := range []string{"00000", "", "not-a-zip"} {
		_, err := svc.Resolve(context.Background(), code)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Resolve(%q): expected ErrNotFound, got %v", code, err)
		}
	}
}

func TestResolve_NoWriteOnStaticHit(t *testing.T) {
	// Static tier must not require a provider at all.
	svc := newTestService(nil, map[string]geo.Coordinates{
		"60601": {Latitude: 41.8853, Longitude: -87.6216},
	})

	res, err := svc.Resolve(context.Background(), "60601")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceStatic || res.Estimated {
		t.Fatalf("expected exact static result, got %+v", res)
	}
}
