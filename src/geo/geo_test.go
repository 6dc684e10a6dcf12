package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name               string
		lat1, lon1         float64
		lat2, lon2         float64
		expectedKm         float64
		toleranceKm        float64
	}{
		{"same point", 19.4326, -99.1332, 19.4326, -99.1332, 0, 0.0001},
		{"one degree of latitude", 0, 0, 1, 0, 111.19, 0.1},
		{"one degree of longitude at equator", 0, 0, 0, 1, 111.19, 0.1},
		{"madrid to barcelona", 40.4168, -3.7038, 41.3874, 2.1686, 505, 5},
		{"across the antimeridian", 0, 179.5, 0, -179.5, 111.19, 0.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Distance(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
			if math.Abs(d-tc.expectedKm) > tc.toleranceKm {
				t.Errorf("Distance = %.3f km, expected %.3f ± %.3f", d, tc.expectedKm, tc.toleranceKm)
			}
		})
	}
}

func TestDistanceSymmetry(t *testing.T) {
	ab := Distance(19.43, -99.13, 19.45, -99.12)
	ba := Distance(19.45, -99.12, 19.43, -99.13)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("Distance is not symmetric: %v vs %v", ab, ba)
	}
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name        string
		lat1, lon1  float64
		lat2, lon2  float64
		expectedDeg float64
		tolerance   float64
	}{
		{"due north", 0, 0, 1, 0, 0, 0.01},
		{"due east", 0, 0, 0, 1, 90, 0.01},
		{"due south", 1, 0, 0, 0, 180, 0.01},
		{"due west", 0, 1, 0, 0, 270, 0.01},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := Bearing(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
			if math.Abs(b-tc.expectedDeg) > tc.tolerance {
				t.Errorf("Bearing = %.3f, expected %.3f", b, tc.expectedDeg)
			}
			if b < 0 || b >= 360 {
				t.Errorf("Bearing %.3f outside [0,360)", b)
			}
		})
	}
}
