package trajectory

import "time"

// Point is a single raw GPS fix. Immutable once created.
type Point struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lng"`
	Elevation float64   `json:"elevation_m"`
	Time      time.Time `json:"recorded_at"`
	Accuracy  float64   `json:"horizontal_accuracy_m"`
	Speed     *float64  `json:"speed_mps,omitempty"` // device-reported, nil when absent
}

// Status tags a validation outcome.
type Status int

const (
	Accepted Status = iota
	Rejected
	AcceptedWithAdvisory
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case AcceptedWithAdvisory:
		return "accepted_with_advisory"
	}
	return "unknown"
}

// Outcome is produced once per sample. It drives caller behavior and is
// never persisted.
type Outcome struct {
	Status Status `json:"status"`
	// Reason is set only when Status == Rejected; human readable so the UI
	// can surface it verbatim.
	Reason string `json:"reason,omitempty"`
	// ShouldPause is reserved for a future auto-pause feature; nothing sets
	// it today.
	ShouldPause bool `json:"should_pause"`
	// ShouldEnd signals sustained idleness. Advisory only: the caller owns
	// session lifecycle.
	ShouldEnd bool `json:"should_end"`
	// InitialDistanceReached is reported exactly once per session, when the
	// track has covered enough ground for stats to be meaningful.
	InitialDistanceReached bool `json:"initial_distance_reached"`
}

// Valid reports whether the sample joins the trajectory.
func (o Outcome) Valid() bool { return o.Status != Rejected }

// Rejection reasons surfaced to the caller.
const (
	ReasonLowAccuracy = "sustained low GPS accuracy"
	ReasonJump        = "unrealistic position jump"
	ReasonOverSpeed   = "sustained over-speed"
)

// Config holds all validation thresholds. Every value here is a product
// trade-off, not physical law; deployments tune them through the
// environment rather than editing constants.
type Config struct {
	MaxAccuracyM  float64       // fixes worse than this open the low-accuracy window
	AccuracyGrace time.Duration // low accuracy must persist this long before rejecting

	MaxJumpM      float64       // teleport guard distance
	MaxJumpWindow time.Duration // jump only counts when covered faster than this

	MaxSpeedMps      float64       // walking/rucking ceiling
	OverSpeedWindow  time.Duration // over-speed must persist this long to matter
	OverSpeedRejects bool          // policy: reject, or report-only

	IdleSpeedMps float64       // below this counts as standing still
	IdleWindow   time.Duration // sustained idleness raises the end advisory

	InitialDistanceM float64 // suppress stats until this much ground is covered

	Elevation ElevationConfig
}

// ElevationConfig tunes the accuracy-driven damping of elevation deltas.
type ElevationConfig struct {
	MinChangeM        float64 // deltas below this are jitter and count as zero
	GoodAccuracyM     float64 // at or under this, trust the barometer/GPS
	PoorAccuracyM     float64 // over this, damp deltas toward zero
	DampingFactor     float64
	EnhancementFactor float64 // compensates sensor under-reporting on good fixes
	EnhanceBelowM     float64 // only deltas smaller than this get enhanced
}

// DefaultConfig returns field-tested thresholds for rucking pace movement.
func DefaultConfig() Config {
	return Config{
		MaxAccuracyM:     50,               // typical urban-canyon fixes stay under this
		AccuracyGrace:    30 * time.Second, // one noisy fix must not stall tracking
		MaxJumpM:         100,
		MaxJumpWindow:    10 * time.Second,
		MaxSpeedMps:      4.2, // ~15 km/h, brisk running with a pack
		OverSpeedWindow:  30 * time.Second,
		OverSpeedRejects: false, // report-only by default
		IdleSpeedMps:     0.3,
		IdleWindow:       3 * time.Minute,
		InitialDistanceM: 30,
		Elevation: ElevationConfig{
			MinChangeM:        1.0,
			GoodAccuracyM:     10,
			PoorAccuracyM:     30,
			DampingFactor:     0.5,
			EnhancementFactor: 1.2,
			EnhanceBelowM:     3.0,
		},
	}
}
