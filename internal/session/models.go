package session

import (
	"time"

	"github.com/orourkera/go-ruck-yourself-sub010/internal/split"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/trajectory"
)

// Settings is everything the caller supplies when starting a session.
type Settings struct {
	UserID       string     `json:"user_id"`
	Unit         string     `json:"unit"` // "km" or "mi"
	BodyWeightKg float64    `json:"body_weight_kg"`
	RestingBpm   *float64   `json:"resting_bpm,omitempty"`
	MaxBpm       *float64   `json:"max_bpm,omitempty"`
	BirthDate    *time.Time `json:"birth_date,omitempty"`
	Gender       string     `json:"gender,omitempty"`
}

// Session is the persisted session row.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Unit      string    `json:"unit"`
	StartedAt time.Time `json:"started_at"`
	Status    string    `json:"status"`
}

// PointResult is returned for every ingested location sample, valid or not.
type PointResult struct {
	Outcome              trajectory.Outcome `json:"outcome"`
	CumulativeDistanceM  float64            `json:"cumulative_distance_m"`
	ElevationGainM       float64            `json:"elevation_gain_m"`
	ElevationLossM       float64            `json:"elevation_loss_m"`
	SmoothedPaceSecPerKm float64            `json:"smoothed_pace_sec_per_km,omitempty"`
	Split                *split.Record      `json:"split,omitempty"`
}

// Summary is the live or final state of a session.
type Summary struct {
	SessionID            string             `json:"session_id"`
	DistanceM            float64            `json:"distance_m"`
	DurationSec          float64            `json:"duration_sec"`
	ElevationGainM       float64            `json:"elevation_gain_m"`
	ElevationLossM       float64            `json:"elevation_loss_m"`
	SmoothedPaceSecPerKm float64            `json:"smoothed_pace_sec_per_km"`
	LatestBpm            int                `json:"latest_bpm"`
	RejectedPoints       int                `json:"rejected_points"`
	Paused               bool               `json:"paused"`
	Splits               []split.Record     `json:"splits"`
	TimeInZonesSec       map[string]float64 `json:"time_in_zones_sec,omitempty"`
}
