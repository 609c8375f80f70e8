package geo

import (
	"math"
	"testing"
)

func TestDistance_SamePointIsZero(t *testing.T) {
	if d := Distance(40.7505, -73.9934, 40.7505, -73.9934); d != 0 {
		t.Fatalf("expected 0 distance, got %f", d)
	}
}

func TestDistance_Symmetry(t *testing.T) {
	pairs := [][4]float64{
		{40.7505, -73.9934, 34.0522, -118.2437},
		{41.8781, -87.6298, 29.7604, -95.3698},
		{-33.8688, 151.2093, 51.5074, -0.1278},
	}

	for _, p := range pairs {
		ab := Distance(p[0], p[1], p[2], p[3])
		ba := Distance(p[2], p[3], p[0], p[1])
		if ab != ba {
			t.Fatalf("distance not symmetric: %f vs %f", ab, ba)
		}
	}
}

func TestDistance_KnownPair(t *testing.T) {
	// Midtown Manhattan to downtown LA, roughly 2,450 miles.
	d := Distance(40.7505, -73.9934, 34.0522, -118.2437)
	if d < 2400 || d > 2500 {
		t.Fatalf("NYC-LA distance out of range: %f", d)
	}
}

func TestDistance_RoundedToTwoDecimals(t *testing.T) {
	d := Distance(40.7505, -73.9934, 40.7614, -73.9776)
	if got := math.Round(d*100) / 100; got != d {
		t.Fatalf("distance not rounded to 2 decimals: %f", d)
	}
}

func TestCoordinatesValid(t *testing.T) {
	cases := []struct {
		name string
		c    Coordinates
		want bool
	}{
		{"manhattan", Coordinates{40.7505, -73.9934}, true},
		{"lat too high", Coordinates{91, 0.5}, false},
		{"lon too low", Coordinates{10, -181}, false},
		{"null island", Coordinates{0, 0}, false},
		{"boundary", Coordinates{-90, 180}, true},
	}

	for _, tc := range cases {
		if got := tc.c.Valid(); got != tc.want {
			t.Fatalf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
