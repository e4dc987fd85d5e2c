// Package hrzone derives Karvonen heart-rate training zones from a user
// profile and attributes session time to them. All functions are pure.
package hrzone

import "time"

// Zone is one of the five training bands. Zones are ordered and
// non-overlapping; a BPM sitting exactly on a shared boundary belongs to
// the lower zone.
type Zone struct {
	Label  string  `json:"label"`
	MinBpm float64 `json:"min_bpm"`
	MaxBpm float64 `json:"max_bpm"`
	Color  string  `json:"color"`
}

// Sample is a single heart-rate reading.
type Sample struct {
	Time time.Time `json:"timestamp"`
	Bpm  int       `json:"bpm"`
}

// Physiological clamps applied before zone computation.
const (
	minRestingBpm = 30
	maxRestingBpm = 110
	minMaxBpm     = 130
	maxMaxBpm     = 220

	defaultAge            = 40
	defaultRestingUnisex  = 67
	defaultRestingMale    = 65
	defaultRestingFemale  = 70
	minReserveBpm         = 25 // below this the zone math is nonsense
	maxAttributableGapSec = 600
)

var zoneBands = []struct {
	label   string
	low, hi float64
	color   string
}{
	{"Z1", 0.50, 0.60, "#2ecc71"},
	{"Z2", 0.60, 0.70, "#3498db"},
	{"Z3", 0.70, 0.80, "#f1c40f"},
	{"Z4", 0.80, 0.90, "#e67e22"},
	{"Z5", 0.90, 1.00, "#e74c3c"},
}

// ZonesFromProfile computes the five zones from resting and max heart rate
// using the heart-rate-reserve (Karvonen) method: zone k spans the 10%-wide
// reserve band from 50% up to 100%.
func ZonesFromProfile(restingBpm, maxBpm float64) []Zone {
	reserve := maxBpm - restingBpm
	zones := make([]Zone, 0, len(zoneBands))
	for _, b := range zoneBands {
		zones = append(zones, Zone{
			Label:  b.label,
			MinBpm: restingBpm + b.low*reserve,
			MaxBpm: restingBpm + b.hi*reserve,
			Color:  b.color,
		})
	}
	return zones
}

// ZonesFromUserFields computes zones from whatever profile fields the user
// has filled in, supplying defaults for the rest: age from birth date
// (fallback 40), max HR via Tanaka (208 - 0.7*age), resting HR from a
// gender-keyed default. Returns nil when the resulting reserve is too small
// to be meaningful.
func ZonesFromUserFields(restingBpm, maxBpm *float64, birthDate *time.Time, gender string) []Zone {
	age := defaultAge
	if birthDate != nil {
		age = yearsSince(*birthDate, time.Now())
	}

	maxHr := 208 - 0.7*float64(age) // Tanaka
	if maxBpm != nil && *maxBpm > 0 {
		maxHr = *maxBpm
	}

	resting := float64(defaultRestingUnisex)
	switch gender {
	case "male":
		resting = defaultRestingMale
	case "female":
		resting = defaultRestingFemale
	}
	if restingBpm != nil && *restingBpm > 0 {
		resting = *restingBpm
	}

	resting = clampF(resting, minRestingBpm, maxRestingBpm)
	maxHr = clampF(maxHr, minMaxBpm, maxMaxBpm)

	if maxHr-resting < minReserveBpm {
		return nil
	}
	return ZonesFromProfile(resting, maxHr)
}

// TimeInZonesSeconds walks consecutive sample pairs and attributes each
// inter-sample duration to the zone containing the earlier sample's BPM.
// Gaps longer than ten minutes are clamped so one dead stretch cannot
// dominate the histogram; out-of-range BPM clamps to the nearest boundary
// zone.
func TimeInZonesSeconds(samples []Sample, zones []Zone) map[string]float64 {
	out := make(map[string]float64, len(zones))
	for _, z := range zones {
		out[z.Label] = 0
	}
	if len(zones) == 0 {
		return out
	}

	for i := 1; i < len(samples); i++ {
		gap := samples[i].Time.Sub(samples[i-1].Time).Seconds()
		if gap <= 0 {
			continue
		}
		if gap > maxAttributableGapSec {
			gap = maxAttributableGapSec
		}
		z := zoneFor(float64(samples[i-1].Bpm), zones)
		out[z.Label] += gap
	}
	return out
}

// zoneFor picks the zone containing bpm, clamping out-of-range values to
// the boundary zones. Shared boundaries resolve to the lower zone.
func zoneFor(bpm float64, zones []Zone) Zone {
	if bpm < zones[0].MinBpm {
		return zones[0]
	}
	for _, z := range zones {
		if bpm <= z.MaxBpm {
			return z
		}
	}
	return zones[len(zones)-1]
}

func yearsSince(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.YearDay() < birth.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
