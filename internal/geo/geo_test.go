package geo

import (
	"math"
	"testing"
)

func TestHaversineKm_SanFrancisco(t *testing.T) {
	// Two points ~0.01 degrees apart in downtown San Francisco.
	a := Point{Latitude: 37.78, Longitude: -122.42}
	b := Point{Latitude: 37.77, Longitude: -122.41}

	d := HaversineKm(a, b)
	if d < 1.3 || d > 1.5 {
		t.Errorf("expected ~1.4 km, got %f", d)
	}
}

func TestHaversineKm_ZeroDistance(t *testing.T) {
	p := Point{Latitude: 51.5, Longitude: -0.12}
	if d := HaversineKm(p, p); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestHaversineKm_Antipodes(t *testing.T) {
	a := Point{Latitude: 0, Longitude: 0}
	b := Point{Latitude: 0, Longitude: 180}

	d := HaversineKm(a, b)
	half := math.Pi * earthRadiusKm
	if math.Abs(d-half) > 1 {
		t.Errorf("expected half circumference ~%f, got %f", half, d)
	}
}

func TestHaversineKm_AntimeridianNeighbors(t *testing.T) {
	// 179.9E and 179.9W are ~22 km apart at the equator, not ~39,000 km.
	a := Point{Latitude: 0, Longitude: 179.9}
	b := Point{Latitude: 0, Longitude: -179.9}

	d := HaversineKm(a, b)
	if d > 30 {
		t.Errorf("antimeridian crossing computed as %f km", d)
	}
}

func TestPoint_Valid(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"ok", Point{37.77, -122.41}, true},
		{"lat high", Point{90.1, 0}, false},
		{"lat low", Point{-90.1, 0}, false},
		{"lon high", Point{0, 180.1}, false},
		{"lon low", Point{0, -180.1}, false},
		{"boundary", Point{90, -180}, true},
	}
	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("%s: Valid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
