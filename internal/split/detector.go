// Package split detects whole-unit distance milestones during an active
// session and records one split per crossed unit, with duration, calories
// and elevation gain attributed to the split.
package split

import (
	"context"
	"log"
	"time"
)

// Unit is the athlete's distance unit preference.
type Unit int

const (
	UnitKilometers Unit = iota
	UnitMiles
)

// Meters returns the length of one unit.
func (u Unit) Meters() float64 {
	if u == UnitMiles {
		return 1609.344
	}
	return 1000
}

func (u Unit) String() string {
	if u == UnitMiles {
		return "mi"
	}
	return "km"
}

// ParseUnit maps a caller preference string onto a Unit; anything that is
// not miles counts as kilometres.
func ParseUnit(s string) Unit {
	switch s {
	case "mi", "mile", "miles", "imperial":
		return UnitMiles
	}
	return UnitKilometers
}

// Record is one completed split. Records are append-only and indexed from 1
// with no gaps.
type Record struct {
	Index                 int       `json:"split_index"`
	UnitDistance          float64   `json:"unit_distance"` // always 1.0
	Unit                  string    `json:"unit"`
	DurationSec           float64   `json:"split_duration_sec"`
	CumulativeDistanceM   float64   `json:"cumulative_distance_m"`
	CumulativeDurationSec float64   `json:"cumulative_duration_sec"`
	Calories              float64   `json:"calories"`
	ElevationGainM        float64   `json:"elevation_gain_m"`
	Timestamp             time.Time `json:"timestamp"`
}

// Notification is the payload pushed to the paired wearable when a split
// completes.
type Notification struct {
	SessionID             string  `json:"session_id"`
	SplitIndex            int     `json:"split_index"`
	DistanceM             float64 `json:"distance_m"`
	DurationSec           float64 `json:"duration_sec"`
	CumulativeDistanceM   float64 `json:"cumulative_distance_m"`
	CumulativeDurationSec float64 `json:"cumulative_duration_sec"`
	IsMetric              bool    `json:"is_metric"`
	Calories              float64 `json:"calories"`
	ElevationGainM        float64 `json:"elevation_gain_m"`
}

// Notifier delivers split notifications to the wearable. Delivery failures
// are logged and never invalidate the split record.
type Notifier interface {
	NotifySplit(ctx context.Context, n Notification) error
}

// MET tiers keyed on the split's pace, minutes per kilometre.
const (
	metFast     = 8.0 // at or under 8 min/km
	metModerate = 6.5 // at or under 12 min/km
	metSlow     = 5.0

	fastPaceMinPerKm     = 8.0
	moderatePaceMinPerKm = 12.0
)

// Detector owns the split state for one active session. Not safe for
// concurrent use; the caller serializes distance updates.
type Detector struct {
	sessionID    string
	unit         Unit
	bodyWeightKg float64
	notifier     Notifier

	splits              []Record
	lastSplitDistanceM  float64
	lastSplitElapsedSec float64
	lastSplitGainM      float64
}

func NewDetector(sessionID string, unit Unit, bodyWeightKg float64, notifier Notifier) *Detector {
	return &Detector{
		sessionID:    sessionID,
		unit:         unit,
		bodyWeightKg: bodyWeightKg,
		notifier:     notifier,
	}
}

// Reset clears all recorded splits and pointers. Idempotent.
func (d *Detector) Reset() {
	d.splits = nil
	d.lastSplitDistanceM = 0
	d.lastSplitElapsedSec = 0
	d.lastSplitGainM = 0
}

// Splits returns the recorded splits in order.
func (d *Detector) Splits() []Record {
	out := make([]Record, len(d.splits))
	copy(out, d.splits)
	return out
}

// CheckForMilestone records a new split when the session distance has
// crossed the next whole unit. No-op while paused. Returns the new record,
// or nil when no milestone was crossed.
func (d *Detector) CheckForMilestone(ctx context.Context, currentDistanceM float64, sessionStart time.Time, elapsedSec float64, paused bool, elevationGainM float64) *Record {
	if paused {
		return nil
	}

	unitM := d.unit.Meters()
	milestoneIndex := int(currentDistanceM / unitM)
	if milestoneIndex <= 0 || d.lastSplitDistanceM >= float64(milestoneIndex)*unitM {
		return nil
	}

	durationSec := elapsedSec - d.lastSplitElapsedSec
	if durationSec < 0 {
		durationSec = 0
	}

	gainM := elevationGainM - d.lastSplitGainM
	if gainM < 0 {
		gainM = 0
	}

	rec := Record{
		Index:                 len(d.splits) + 1,
		UnitDistance:          1.0,
		Unit:                  d.unit.String(),
		DurationSec:           durationSec,
		CumulativeDistanceM:   currentDistanceM,
		CumulativeDurationSec: elapsedSec,
		Calories:              d.calories(durationSec),
		ElevationGainM:        gainM,
		Timestamp:             sessionStart.Add(time.Duration(elapsedSec * float64(time.Second))),
	}

	d.splits = append(d.splits, rec)
	d.lastSplitDistanceM = float64(milestoneIndex) * unitM
	d.lastSplitElapsedSec = elapsedSec
	d.lastSplitGainM = elevationGainM

	if d.notifier != nil {
		n := Notification{
			SessionID:             d.sessionID,
			SplitIndex:            rec.Index,
			DistanceM:             unitM,
			DurationSec:           rec.DurationSec,
			CumulativeDistanceM:   rec.CumulativeDistanceM,
			CumulativeDurationSec: rec.CumulativeDurationSec,
			IsMetric:              d.unit == UnitKilometers,
			Calories:              rec.Calories,
			ElevationGainM:        rec.ElevationGainM,
		}
		if err := d.notifier.NotifySplit(ctx, n); err != nil {
			log.Printf("split: wearable notification for split %d failed: %v", rec.Index, err)
		}
	}

	return &rec
}

// calories estimates the split's energy expenditure with a three-tier MET
// model keyed on the split's pace.
func (d *Detector) calories(durationSec float64) float64 {
	unitKm := d.unit.Meters() / 1000
	if unitKm <= 0 || durationSec <= 0 || d.bodyWeightKg <= 0 {
		return 0
	}

	paceMinPerKm := (durationSec / 60) / unitKm
	met := metSlow
	switch {
	case paceMinPerKm <= fastPaceMinPerKm:
		met = metFast
	case paceMinPerKm <= moderatePaceMinPerKm:
		met = metModerate
	}

	return met * d.bodyWeightKg * (durationSec / 3600)
}
