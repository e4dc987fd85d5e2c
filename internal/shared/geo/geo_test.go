package geo

import "testing"

func TestHaversineKm(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := HaversineKm(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestHaversineMZero(t *testing.T) {
	if d := HaversineM(47.6, -122.3, 47.6, -122.3); d != 0 {
		t.Fatalf("expected zero distance, got %v", d)
	}
}

func TestHaversineMShortSegment(t *testing.T) {
	// 0.001 deg of latitude is roughly 111 m
	d := HaversineM(47.6, -122.3, 47.601, -122.3)
	if d < 100 || d > 125 {
		t.Fatalf("unexpected segment length: %v", d)
	}
}
