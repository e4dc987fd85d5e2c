// Package pace filters raw instantaneous pace readings into a display-ready
// value. A single GPS dropout or a brief stop at a crossing produces a large
// bogus pace spike; the smoother blends a weighted moving average with a
// median and caps how far the output may move from the previous baseline, so
// the display tracks genuine pace change within a few samples without ever
// jumping on an isolated outlier.
package pace

import (
	"math"
	"sort"
)

// Config tunes the smoothing behavior. All paces are seconds per kilometre.
type Config struct {
	MinSecPerKm float64 // faster than this is treated as sensor garbage
	MaxSecPerKm float64 // slower than this is treated as standing still

	Window int // samples considered, newest included

	// A new sample above baseline*SlowdownJumpRatio is probably a brief
	// stop; the blend leans on the median there.
	SlowdownJumpRatio float64

	// Asymmetric hysteresis on the change from baseline, as fractions of
	// the baseline. The larger upward (slowing) step is only allowed when
	// SlowConsensus recent samples agree the slow-down is real.
	RaiseCapIsolated  float64
	RaiseCapSustained float64
	DropCap           float64
	SlowConsensus     int
}

func DefaultConfig() Config {
	return Config{
		MinSecPerKm:       120,  // 2 min/km, faster than any ruck
		MaxSecPerKm:       3600, // 60 min/km
		Window:            5,
		SlowdownJumpRatio: 1.5,
		RaiseCapIsolated:  0.06,
		RaiseCapSustained: 0.18,
		DropCap:           0.20,
		SlowConsensus:     3,
	}
}

// Smooth filters current against the recent pace history using the default
// configuration. recent is ordered oldest first; its last element acts as
// the previous baseline.
func Smooth(current float64, recent []float64) float64 {
	return DefaultConfig().Smooth(current, recent)
}

// Smooth is the configurable form of the package-level function.
func (c Config) Smooth(current float64, recent []float64) float64 {
	current = c.clamp(current)
	if len(recent) == 0 {
		return current
	}

	clamped := make([]float64, len(recent))
	for i, p := range recent {
		clamped[i] = c.clamp(p)
	}
	baseline := clamped[len(clamped)-1]

	window := append(tail(clamped, c.Window-1), current)
	wma := weightedAverage(window)
	med := median(window)

	// Large slow-down jumps are usually a stop, not a new pace: trust the
	// median. Speed-ups should show quickly: trust the weighted average.
	var blended float64
	if current > baseline*c.SlowdownJumpRatio {
		blended = 0.7*med + 0.3*wma
	} else {
		blended = 0.3*med + 0.7*wma
	}

	delta := blended - baseline
	if delta > 0 {
		limit := baseline * c.RaiseCapIsolated
		if c.countSlow(clamped, baseline) >= c.SlowConsensus {
			limit = baseline * c.RaiseCapSustained
		}
		if delta > limit {
			blended = baseline + limit
		}
	} else if -delta > baseline*c.DropCap {
		blended = baseline - baseline*c.DropCap
	}

	return c.clamp(blended)
}

func (c Config) clamp(p float64) float64 {
	return math.Min(math.Max(p, c.MinSecPerKm), c.MaxSecPerKm)
}

// countSlow counts recent samples strictly above the baseline, i.e.
// evidence that the athlete genuinely slowed down. Samples sitting exactly
// on the baseline are a steady pace, not consensus for a slow-down.
func (c Config) countSlow(recent []float64, baseline float64) int {
	n := 0
	for _, p := range tail(recent, c.Window-1) {
		if p > baseline {
			n++
		}
	}
	return n
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// weightedAverage weighs newer samples more heavily (1, 2, ..., n).
func weightedAverage(window []float64) float64 {
	var sum, weights float64
	for i, p := range window {
		w := float64(i + 1)
		sum += p * w
		weights += w
	}
	return sum / weights
}

func median(window []float64) float64 {
	sorted := make([]float64, len(window))
	copy(sorted, window)
	sort.Float64s(sorted)
	if len(sorted)%2 == 0 {
		return (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}
	return sorted[len(sorted)/2]
}
