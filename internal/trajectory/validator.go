package trajectory

import (
	"log"
	"time"

	"github.com/orourkera/go-ruck-yourself-sub010/internal/shared/geo"
)

// Validator owns the validation state for one active session. Not safe for
// concurrent use; the caller serializes point ingestion per session.
type Validator struct {
	cfg Config

	cumulativeM    float64
	initialReached bool
	lastAccepted   *Point
	rejectedCount  int

	lowAccuracySince time.Time
	overSpeedSince   time.Time
	idleSince        time.Time
}

func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Reset clears all per-session state. Idempotent.
func (v *Validator) Reset() {
	v.cumulativeM = 0
	v.initialReached = false
	v.lastAccepted = nil
	v.rejectedCount = 0
	v.lowAccuracySince = time.Time{}
	v.overSpeedSince = time.Time{}
	v.idleSince = time.Time{}
}

// AccumulatedDistance returns the distance in metres covered by accepted
// points so far. Monotonically non-decreasing within a session.
func (v *Validator) AccumulatedDistance() float64 { return v.cumulativeM }

// InitialDistanceReached reports whether the session has covered enough
// ground for its stats to be meaningful.
func (v *Validator) InitialDistanceReached() bool { return v.initialReached }

// RejectedCount returns how many samples failed validation so far.
func (v *Validator) RejectedCount() int { return v.rejectedCount }

// LastAccepted returns the current reference point, or nil before the first
// accepted sample.
func (v *Validator) LastAccepted() *Point { return v.lastAccepted }

// ValidatePoint runs the validation gates against curr, in order, stopping
// at the first hard rejection. prev overrides the internal reference point
// when non-nil; precomputedM skips the haversine computation when the caller
// already knows the segment distance.
func (v *Validator) ValidatePoint(curr Point, prev *Point, precomputedM *float64) Outcome {
	ref := prev
	if ref == nil {
		ref = v.lastAccepted
	}

	// First point is always valid and becomes the reference.
	if ref == nil {
		v.lastAccepted = &curr
		return Outcome{Status: Accepted}
	}

	if out, rejected := v.accuracyGate(curr); rejected {
		return out
	}

	distM := geo.HaversineM(ref.Lat, ref.Lon, curr.Lat, curr.Lon)
	if precomputedM != nil {
		distM = *precomputedM
	}
	elapsed := curr.Time.Sub(ref.Time)

	if distM > v.cfg.MaxJumpM && elapsed >= 0 && elapsed < v.cfg.MaxJumpWindow {
		return v.reject(ReasonJump)
	}

	out := Outcome{Status: Accepted}

	speed := derivedSpeed(curr, distM, elapsed)
	if rejected := v.speedGate(curr, speed, &out); rejected {
		return out
	}
	v.idleGate(curr, speed, &out)

	v.cumulativeM += distM
	if !v.initialReached && v.cumulativeM >= v.cfg.InitialDistanceM {
		v.initialReached = true
		out.InitialDistanceReached = true
	}

	v.lastAccepted = &curr
	return out
}

// accuracyGate opens a grace window on the first low-accuracy fix and only
// rejects once the condition has persisted past it.
func (v *Validator) accuracyGate(curr Point) (Outcome, bool) {
	if curr.Accuracy <= v.cfg.MaxAccuracyM {
		v.lowAccuracySince = time.Time{}
		return Outcome{}, false
	}
	if v.lowAccuracySince.IsZero() {
		v.lowAccuracySince = curr.Time
		return Outcome{}, false
	}
	if curr.Time.Sub(v.lowAccuracySince) > v.cfg.AccuracyGrace {
		return v.reject(ReasonLowAccuracy), true
	}
	return Outcome{}, false
}

func (v *Validator) speedGate(curr Point, speed float64, out *Outcome) bool {
	if speed <= v.cfg.MaxSpeedMps {
		v.overSpeedSince = time.Time{}
		return false
	}
	if v.overSpeedSince.IsZero() {
		v.overSpeedSince = curr.Time
		return false
	}
	if curr.Time.Sub(v.overSpeedSince) <= v.cfg.OverSpeedWindow {
		return false
	}
	if v.cfg.OverSpeedRejects {
		*out = v.reject(ReasonOverSpeed)
		return true
	}
	log.Printf("trajectory: sustained over-speed %.1f m/s (report-only policy)", speed)
	return false
}

func (v *Validator) idleGate(curr Point, speed float64, out *Outcome) {
	if speed >= v.cfg.IdleSpeedMps {
		v.idleSince = time.Time{}
		return
	}
	if v.idleSince.IsZero() {
		v.idleSince = curr.Time
		return
	}
	if curr.Time.Sub(v.idleSince) > v.cfg.IdleWindow {
		out.Status = AcceptedWithAdvisory
		out.ShouldEnd = true
	}
}

func (v *Validator) reject(reason string) Outcome {
	v.rejectedCount++
	return Outcome{Status: Rejected, Reason: reason}
}

// derivedSpeed prefers the sample's own reported speed and falls back to
// distance over time.
func derivedSpeed(curr Point, distM float64, elapsed time.Duration) float64 {
	if curr.Speed != nil && *curr.Speed >= 0 {
		return *curr.Speed
	}
	if elapsed <= 0 {
		return 0
	}
	return distM / elapsed.Seconds()
}
