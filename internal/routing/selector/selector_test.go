package selector

import (
	"context"
	"math"
	"testing"
	"time"

	"leadrouter_backend/internal/capacity"
	"leadrouter_backend/internal/geo"

	"github.com/google/uuid"
)

// Manhattan-ish anchor used as the lead position in most tests.
var leadCoords = geo.Coordinates{Latitude: 40.7505, Longitude: -73.9934}

type stubLocations struct {
	locations []Location
}

func (s *stubLocations) ListActiveRoutable(_ context.Context) ([]Location, error) {
	return s.locations, nil
}

type stubLedger struct {
	rates map[uuid.UUID]float64
}

func (s *stubLedger) GetUtilization(_ context.Context, id uuid.UUID, day time.Time) (capacity.Utilization, error) {
	return capacity.Utilization{LocationID: id, Day: day, Rate: s.rates[id]}, nil
}

// nearLocation builds a location offset north of the lead by roughly
// miles (1 degree latitude ~ 69 miles).
func nearLocation(name string, miles float64) Location {
	return Location{
		ID:   uuid.New(),
		Name: name,
		Coordinates: geo.Coordinates{
			Latitude:  leadCoords.Latitude + miles/69.0,
			Longitude: leadCoords.Longitude,
		},
		DailyCapacity: 10,
	}
}

func newSelector(locs []Location, rates map[uuid.UUID]float64) *Selector {
	return New(&stubLocations{locations: locs}, &stubLedger{rates: rates}, nil, nil)
}

func TestSuitability(t *testing.T) {
	cases := []struct {
		name         string
		distance     float64
		utilization  float64
		leadScore    int
		source       string
		channelScore float64
		want         float64
	}{
		{"base formula", 10, 0.5, 50, "web", 0, 100 - 20 - 15},
		{"premium bonus applies", 10, 0.5, 80, "web", 0, 100 - 20 - 15 + 20},
		{"premium denied at high utilization", 10, 0.6, 90, "web", 0, 100 - 20 - 18},
		{"facebook bonus applies", 10, 0.5, 50, "facebook", 0.9, 100 - 20 - 15 + 10},
		{"facebook bonus needs strong channel score", 10, 0.5, 50, "facebook", 0.8, 100 - 20 - 15},
		{"both bonuses stack", 5, 0.1, 95, "facebook", 0.95, 100 - 10 - 3 + 20 + 10},
		{"floored at zero", 49, 1.0, 50, "web", 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Suitability(tc.distance, tc.utilization, tc.leadScore, tc.source, tc.channelScore)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Suitability = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestSelect_NoCandidatesOutsideRadius(t *testing.T) {
	far := Location{
		ID:            uuid.New(),
		Name:          "Los Angeles",
		Coordinates:   geo.Coordinates{Latitude: 34.0522, Longitude: -118.2437},
		DailyCapacity: 10,
	}

	_, err := newSelector([]Location{far}, nil).Select(context.Background(), leadCoords, 50, "web")
	if err != ErrNoCandidates {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestSelect_FiltersByUtilizationCap(t *testing.T) {
	open := nearLocation("Open", 5)
	full := nearLocation("Full", 2)

	got, err := newSelector(
		[]Location{open, full},
		map[uuid.UUID]float64{open.ID: 0.3, full.ID: 0.85},
	).Select(context.Background(), leadCoords, 50, "web")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if len(got) != 1 || got[0].Location.ID != open.ID {
		t.Fatalf("expected only the open location, got %d candidates", len(got))
	}
	if got[0].OverThreshold {
		t.Fatalf("in-capacity candidate flagged over threshold")
	}
}

func TestSelect_HighValueLeadGetsHigherCap(t *testing.T) {
	busy := nearLocation("Busy", 3)
	rates := map[uuid.UUID]float64{busy.ID: 0.85}

	// Standard lead: 0.85 >= 0.80 cap, so only the degrade path admits it.
	got, err := newSelector([]Location{busy}, rates).Select(context.Background(), leadCoords, 50, "web")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !got[0].OverThreshold {
		t.Fatalf("standard lead should see 0.85 utilization as over threshold")
	}

	// High-value lead: 0.85 < 0.90 cap, admitted normally.
	got, err = newSelector([]Location{busy}, rates).Select(context.Background(), leadCoords, 85, "web")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got[0].OverThreshold {
		t.Fatalf("high-value lead should pass the 0.90 cap at 0.85 utilization")
	}
}

func TestSelect_DegradesToNearestThreeWhenAllOverCap(t *testing.T) {
	locs := []Location{
		nearLocation("A", 2),
		nearLocation("B", 8),
		nearLocation("C", 15),
		nearLocation("D", 25),
	}
	rates := make(map[uuid.UUID]float64, len(locs))
	for _, l := range locs {
		rates[l.ID] = 0.95
	}

	got, err := newSelector(locs, rates).Select(context.Background(), leadCoords, 50, "web")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 degraded candidates, got %d", len(got))
	}
	for _, c := range got {
		if !c.OverThreshold {
			t.Fatalf("degraded candidate %s not flagged over threshold", c.Location.Name)
		}
		if c.Location.Name == "D" {
			t.Fatalf("farthest location survived the degrade cut")
		}
	}
}

func TestSelect_OrdersBySuitabilityThenDistance(t *testing.T) {
	near := nearLocation("Near", 2)
	mid := nearLocation("Mid", 10)
	far := nearLocation("Far", 30)

	got, err := newSelector(
		[]Location{far, near, mid},
		map[uuid.UUID]float64{near.ID: 0.1, mid.ID: 0.1, far.ID: 0.1},
	).Select(context.Background(), leadCoords, 50, "web")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Suitability < got[i].Suitability {
			t.Fatalf("candidates not ordered by suitability: %f before %f",
				got[i-1].Suitability, got[i].Suitability)
		}
	}
	if got[0].Location.ID != near.ID {
		t.Fatalf("expected nearest location first at equal utilization, got %s", got[0].Location.Name)
	}
}

func TestSelect_SkipsInvalidCoordinates(t *testing.T) {
	nullIsland := Location{
		ID:            uuid.New(),
		Name:          "Null Island",
		Coordinates:   geo.Coordinates{Latitude: 0, Longitude: 0},
		DailyCapacity: 10,
	}

	_, err := newSelector([]Location{nullIsland}, nil).Select(context.Background(), leadCoords, 50, "web")
	if err != ErrNoCandidates {
		t.Fatalf("expected ErrNoCandidates for invalid-coordinate-only list, got %v", err)
	}
}
