package hrzone

import (
	"math"
	"testing"
	"time"
)

func TestZonesFromProfile(t *testing.T) {
	zones := ZonesFromProfile(60, 180) // reserve 120
	if len(zones) != 5 {
		t.Fatalf("expected 5 zones, got %d", len(zones))
	}

	// Z1 spans 50-60% of reserve above resting: 120-132.
	if zones[0].MinBpm != 120 || zones[0].MaxBpm != 132 {
		t.Fatalf("unexpected Z1: %+v", zones[0])
	}
	// Z5 tops out at max HR.
	if zones[4].MaxBpm != 180 {
		t.Fatalf("unexpected Z5 top: %+v", zones[4])
	}

	// Ordered, contiguous, non-overlapping.
	for i := 1; i < len(zones); i++ {
		if zones[i].MinBpm != zones[i-1].MaxBpm {
			t.Fatalf("zones %d and %d not contiguous", i-1, i)
		}
	}
}

func TestZonesFromUserFieldsDefaults(t *testing.T) {
	// Nothing supplied: age 40, Tanaka max 208-28=180, unisex resting 67.
	zones := ZonesFromUserFields(nil, nil, nil, "")
	if zones == nil {
		t.Fatalf("expected zones from defaults")
	}
	if math.Abs(zones[4].MaxBpm-180) > 1e-9 {
		t.Fatalf("expected Tanaka max 180, got %v", zones[4].MaxBpm)
	}
	wantZ1Min := 67 + 0.5*(180-67)
	if math.Abs(zones[0].MinBpm-wantZ1Min) > 1e-9 {
		t.Fatalf("expected Z1 min %v, got %v", wantZ1Min, zones[0].MinBpm)
	}
}

func TestZonesFromUserFieldsGenderedResting(t *testing.T) {
	male := ZonesFromUserFields(nil, nil, nil, "male")
	female := ZonesFromUserFields(nil, nil, nil, "female")
	if male == nil || female == nil {
		t.Fatalf("expected zones for both")
	}
	// Resting 65 vs 70 shifts every boundary.
	if male[0].MinBpm >= female[0].MinBpm {
		t.Fatalf("expected male Z1 min below female: %v vs %v", male[0].MinBpm, female[0].MinBpm)
	}
}

func TestZonesFromUserFieldsBirthDate(t *testing.T) {
	birth := time.Now().AddDate(-20, 0, 0)
	zones := ZonesFromUserFields(nil, nil, &birth, "")
	if zones == nil {
		t.Fatalf("expected zones")
	}
	// Tanaka for a 20 year old: 208 - 14 = 194.
	if math.Abs(zones[4].MaxBpm-194) > 1e-9 {
		t.Fatalf("expected max 194, got %v", zones[4].MaxBpm)
	}
}

func TestZonesFromUserFieldsClampsAndRejectsNonsense(t *testing.T) {
	resting := 300.0 // clamped to 110
	zones := ZonesFromUserFields(&resting, nil, nil, "")
	if zones == nil {
		t.Fatalf("clamped resting should still produce zones")
	}
	if zones[0].MinBpm < 110 {
		t.Fatalf("expected clamped resting in boundaries, got %+v", zones[0])
	}

	// Reserve too small to be meaningful: resting 110 against a max that
	// clamps up to 130 leaves only 20 BPM of reserve.
	resting = 110
	badMax := 120.0
	if z := ZonesFromUserFields(&resting, &badMax, nil, ""); z != nil {
		t.Fatalf("expected nil zones for nonsense profile, got %+v", z)
	}
}

func TestTimeInZonesAttribution(t *testing.T) {
	zones := ZonesFromProfile(60, 180)
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	samples := []Sample{
		{Time: base, Bpm: 125},                       // Z1
		{Time: base.Add(30 * time.Second), Bpm: 140}, // 30s attributed to Z1
		{Time: base.Add(90 * time.Second), Bpm: 170}, // 60s attributed to Z3 (140)
		{Time: base.Add(120 * time.Second), Bpm: 95}, // 30s attributed to Z5 (170)
	}

	got := TimeInZonesSeconds(samples, zones)
	if got["Z1"] != 30 {
		t.Fatalf("expected 30s in Z1, got %v", got["Z1"])
	}
	if got["Z3"] != 60 {
		t.Fatalf("expected 60s in Z3, got %v", got["Z3"])
	}
	if got["Z5"] != 30 {
		t.Fatalf("expected 30s in Z5, got %v", got["Z5"])
	}

	var total float64
	for _, s := range got {
		total += s
	}
	if total > 120 {
		t.Fatalf("zone seconds %v exceed wall clock span", total)
	}
}

func TestTimeInZonesGapClamp(t *testing.T) {
	zones := ZonesFromProfile(60, 180)
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	samples := []Sample{
		{Time: base, Bpm: 125},
		{Time: base.Add(2 * time.Hour), Bpm: 125}, // dead stretch
	}
	got := TimeInZonesSeconds(samples, zones)
	if got["Z1"] != maxAttributableGapSec {
		t.Fatalf("expected gap clamped to %d, got %v", maxAttributableGapSec, got["Z1"])
	}
}

func TestTimeInZonesBoundaryAndClamping(t *testing.T) {
	zones := ZonesFromProfile(60, 180)
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	samples := []Sample{
		{Time: base, Bpm: 132},                       // exactly on the Z1/Z2 boundary: lower zone wins
		{Time: base.Add(10 * time.Second), Bpm: 40},  // below any zone: clamps to Z1
		{Time: base.Add(20 * time.Second), Bpm: 250}, // above max: clamps to Z5
		{Time: base.Add(30 * time.Second), Bpm: 132},
	}
	got := TimeInZonesSeconds(samples, zones)
	if got["Z1"] != 20 {
		t.Fatalf("expected 20s in Z1 (boundary + low clamp), got %v", got["Z1"])
	}
	if got["Z5"] != 10 {
		t.Fatalf("expected 10s in Z5 (high clamp), got %v", got["Z5"])
	}
}

func TestTimeInZonesEmptyInputs(t *testing.T) {
	if got := TimeInZonesSeconds(nil, ZonesFromProfile(60, 180)); len(got) != 5 {
		t.Fatalf("expected zeroed histogram, got %v", got)
	}
	if got := TimeInZonesSeconds([]Sample{{Bpm: 120}}, nil); len(got) != 0 {
		t.Fatalf("expected empty map without zones, got %v", got)
	}
}
