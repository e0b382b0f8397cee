package geo

import (
	"math"
	"testing"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	if d := DistanceMeters(16.8409, 96.1735, 16.8409, 96.1735); d != 0 {
		t.Fatalf("distance to self = %v, want 0", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := DistanceMeters(16.8409, 96.1735, 40.7128, -74.0060)
	b := DistanceMeters(40.7128, -74.0060, 16.8409, 96.1735)
	if a != b {
		t.Fatalf("d(a,b) = %v, d(b,a) = %v", a, b)
	}
}

func TestDistanceShortRange(t *testing.T) {
	// 0.001° of longitude at ~16.84°N is roughly 106 m.
	d := DistanceMeters(16.8409, 96.1735, 16.8409, 96.1745)
	if d < 100 || d > 112 {
		t.Fatalf("distance = %v, want ~106m", d)
	}
}

func TestDistanceLongRange(t *testing.T) {
	// Yangon to New York is on the order of 13,000 km.
	d := DistanceMeters(16.8409, 96.1735, 40.7128, -74.0060)
	if d < 12_000_000 || d > 15_000_000 {
		t.Fatalf("distance = %v, want ~13,500km", d)
	}
}

func TestNaNPropagates(t *testing.T) {
	if d := DistanceMeters(math.NaN(), 96.1735, 16.8409, 96.1735); !math.IsNaN(d) {
		t.Fatalf("distance with NaN input = %v, want NaN", d)
	}
}
