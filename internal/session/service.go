// Package session orchestrates one live rucking session: every location
// sample runs through trajectory validation, elevation accumulation, pace
// smoothing and split detection, while a heart-rate engine ingests wearable
// and health-store readings in the background. Results stream out through
// the websocket hub and are persisted when the session ends.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orourkera/go-ruck-yourself-sub010/internal/config"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/db"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/heartrate"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/hrzone"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/pace"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/shared/geo"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/split"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/stream"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/trajectory"
)

var ErrNotFound = errors.New("session not found")

// Collaborators are the per-session external hookups. Factories take the
// session ID so each session gets its own subject/subscription; any field
// may be nil and the session degrades accordingly.
type Collaborators struct {
	Wearable func(sessionID string) heartrate.WearableSource
	Health   func(sessionID string) heartrate.HealthSource
	Notifier split.Notifier
	Clock    heartrate.Clock
}

type Service struct {
	db     db.Querier
	hub    *stream.Hub
	collab Collaborators
	cfg    config.Config

	mu     sync.Mutex
	active map[string]*runtime
}

// runtime is the in-memory state of one active session. Its mutex serializes
// point ingestion against pause/resume/end.
type runtime struct {
	mu sync.Mutex

	id        string
	userID    string
	unit      split.Unit
	startedAt time.Time

	// Pause boundaries are server wall clock while milestone elapsed time
	// comes from sample timestamps; this assumes points arrive near
	// real-time. elapsedAt floors at zero so a batched backlog straddling
	// a pause can never produce a negative active duration.
	paused      bool
	pausedAt    time.Time
	pausedTotal time.Duration

	validator *trajectory.Validator
	detector  *split.Detector
	engine    *heartrate.Engine
	paceCfg   pace.Config
	zones     []hrzone.Zone

	prev           *trajectory.Point
	elevationGainM float64
	elevationLossM float64
	recentPaces    []float64
	smoothedPace   float64
	hrLog          []heartrate.Sample // downsampled readings already persisted mid-session

	stopFeeds func()
}

func NewService(q db.Querier, hub *stream.Hub, collab Collaborators, cfg config.Config) *Service {
	if collab.Clock == nil {
		collab.Clock = heartrate.RealClock()
	}
	return &Service{
		db:     q,
		hub:    hub,
		collab: collab,
		cfg:    cfg,
		active: map[string]*runtime{},
	}
}

// Start creates the session row and spins up the in-memory pipeline. The
// heart-rate engine and its feed consumers outlive the request, so they run
// on a background context cancelled only by End.
func (s *Service) Start(ctx context.Context, settings Settings) (Session, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	sess := Session{
		ID:        id,
		UserID:    settings.UserID,
		Unit:      split.ParseUnit(settings.Unit).String(),
		StartedAt: now,
		Status:    "active",
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO ruck_sessions (id, user_id, unit, body_weight_kg, started_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, settings.UserID, sess.Unit, settings.BodyWeightKg, now, sess.Status)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}

	var wearable heartrate.WearableSource
	if s.collab.Wearable != nil {
		wearable = s.collab.Wearable(id)
	}
	var health heartrate.HealthSource
	if s.collab.Health != nil {
		health = s.collab.Health(id)
	}

	engine := heartrate.NewEngine(s.heartrateConfig(), s.collab.Clock, wearable, health)

	rt := &runtime{
		id:        id,
		userID:    settings.UserID,
		unit:      split.ParseUnit(settings.Unit),
		startedAt: now,
		validator: trajectory.NewValidator(s.trajectoryConfig()),
		detector:  split.NewDetector(id, split.ParseUnit(settings.Unit), settings.BodyWeightKg, s.collab.Notifier),
		engine:    engine,
		paceCfg:   pace.DefaultConfig(),
		zones:     hrzone.ZonesFromUserFields(settings.RestingBpm, settings.MaxBpm, settings.BirthDate, settings.Gender),
	}

	feedCtx, cancel := context.WithCancel(context.Background())
	rt.stopFeeds = cancel
	engine.StartMonitoring(feedCtx)
	go s.forwardHeartRate(feedCtx, rt)
	go s.persistBuffers(feedCtx, rt)

	s.mu.Lock()
	s.active[id] = rt
	s.mu.Unlock()

	return sess, nil
}

// AddPoint ingests one raw location sample. Rejected samples still produce
// a result so the client can surface the reason.
func (s *Service) AddPoint(ctx context.Context, sessionID string, p trajectory.Point) (PointResult, error) {
	rt, err := s.runtimeFor(sessionID)
	if err != nil {
		return PointResult{}, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	outcome := rt.validator.ValidatePoint(p, nil, nil)
	res := PointResult{
		Outcome:             outcome,
		CumulativeDistanceM: rt.validator.AccumulatedDistance(),
		ElevationGainM:      rt.elevationGainM,
		ElevationLossM:      rt.elevationLossM,
	}

	if !outcome.Valid() {
		s.hub.BroadcastEvent(sessionID, stream.EventRejection, outcome)
		return res, nil
	}

	if rt.prev != nil && !rt.paused {
		gain, loss := rt.validator.ValidateElevationChange(*rt.prev, p)
		rt.elevationGainM += gain
		rt.elevationLossM += loss
		res.ElevationGainM = rt.elevationGainM
		res.ElevationLossM = rt.elevationLossM

		if smoothed, ok := rt.smoothSegment(*rt.prev, p); ok {
			res.SmoothedPaceSecPerKm = smoothed
			s.hub.BroadcastEvent(sessionID, stream.EventPace, map[string]float64{
				"sec_per_km": smoothed,
			})
		}
	}
	rt.prev = &p

	elapsed := rt.elapsedAt(p.Time)
	if rec := rt.detector.CheckForMilestone(ctx, rt.validator.AccumulatedDistance(), rt.startedAt, elapsed, rt.paused, rt.elevationGainM); rec != nil {
		res.Split = rec
		s.hub.BroadcastEvent(sessionID, stream.EventSplit, rec)
	}

	res.CumulativeDistanceM = rt.validator.AccumulatedDistance()
	s.hub.BroadcastEvent(sessionID, stream.EventPoint, res)
	if outcome.ShouldEnd {
		s.hub.BroadcastEvent(sessionID, stream.EventAdvisory, map[string]string{
			"advisory": "sustained idleness, consider ending the session",
		})
	}
	return res, nil
}

// UpdateHeartRate is the manual override path, for a bluetooth strap the
// client reads directly.
func (s *Service) UpdateHeartRate(sessionID string, bpm int) error {
	rt, err := s.runtimeFor(sessionID)
	if err != nil {
		return err
	}
	rt.engine.UpdateHeartRate(bpm)
	return nil
}

func (s *Service) Pause(sessionID string) error {
	rt, err := s.runtimeFor(sessionID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.paused {
		rt.paused = true
		rt.pausedAt = time.Now().UTC()
	}
	return nil
}

func (s *Service) Resume(sessionID string) error {
	rt, err := s.runtimeFor(sessionID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.paused {
		rt.pausedTotal += time.Since(rt.pausedAt)
		rt.paused = false
		// Resuming starts a fresh segment; pace across the gap is bogus.
		rt.prev = nil
	}
	return nil
}

// Summary reports the live state without ending the session.
func (s *Service) Summary(sessionID string) (Summary, error) {
	rt, err := s.runtimeFor(sessionID)
	if err != nil {
		return Summary{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.summary(time.Now().UTC()), nil
}

// Splits returns the records detected so far, oldest first.
func (s *Service) Splits(sessionID string) ([]split.Record, error) {
	rt, err := s.runtimeFor(sessionID)
	if err != nil {
		return nil, err
	}
	return rt.detector.Splits(), nil
}

// End stops ingestion, computes the zone histogram over the flushed
// heart-rate buffer and persists everything. The runtime is dropped even
// when persistence fails; the caller sees the error.
func (s *Service) End(ctx context.Context, sessionID string) (Summary, error) {
	s.mu.Lock()
	rt, ok := s.active[sessionID]
	delete(s.active, sessionID)
	s.mu.Unlock()
	if !ok {
		return Summary{}, ErrNotFound
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := time.Now().UTC()
	if rt.paused {
		rt.pausedTotal += now.Sub(rt.pausedAt)
		rt.paused = false
	}

	rt.engine.StopMonitoring()
	remaining := rt.engine.FlushBuffer()
	rt.stopFeeds()

	sum := rt.summary(now)
	all := append(append([]heartrate.Sample{}, rt.hrLog...), remaining...)
	sum.TimeInZonesSec = hrzone.TimeInZonesSeconds(zoneSamples(all), rt.zones)

	if err := s.persistEnd(ctx, rt, sum, now, remaining); err != nil {
		return sum, err
	}
	return sum, nil
}

func (s *Service) persistEnd(ctx context.Context, rt *runtime, sum Summary, endedAt time.Time, samples []heartrate.Sample) error {
	zonesJSON, _ := json.Marshal(sum.TimeInZonesSec)
	_, err := s.db.Exec(ctx,
		`UPDATE ruck_sessions
		 SET status = 'completed', ended_at = $2, total_distance_m = $3,
		     duration_sec = $4, elevation_gain_m = $5, elevation_loss_m = $6,
		     rejected_points = $7, time_in_zones = $8
		 WHERE id = $1`,
		rt.id, endedAt, sum.DistanceM, sum.DurationSec,
		sum.ElevationGainM, sum.ElevationLossM, sum.RejectedPoints, zonesJSON)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	for _, rec := range sum.Splits {
		_, err := s.db.Exec(ctx,
			`INSERT INTO ruck_splits (session_id, split_index, unit, duration_sec,
			     cumulative_distance_m, cumulative_duration_sec, calories,
			     elevation_gain_m, occurred_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rt.id, rec.Index, rec.Unit, rec.DurationSec,
			rec.CumulativeDistanceM, rec.CumulativeDurationSec, rec.Calories,
			rec.ElevationGainM, rec.Timestamp)
		if err != nil {
			return fmt.Errorf("insert split %d: %w", rec.Index, err)
		}
	}

	return s.insertSamples(ctx, rt.id, samples)
}

func (s *Service) insertSamples(ctx context.Context, sessionID string, samples []heartrate.Sample) error {
	for _, smp := range samples {
		_, err := s.db.Exec(ctx,
			`INSERT INTO heart_rate_samples (session_id, recorded_at, bpm, source)
			 VALUES ($1, $2, $3, $4)`,
			sessionID, smp.Time, smp.Bpm, smp.Source.String())
		if err != nil {
			return fmt.Errorf("insert heart rate sample: %w", err)
		}
	}
	return nil
}

// forwardHeartRate relays every accepted reading to websocket subscribers.
func (s *Service) forwardHeartRate(ctx context.Context, rt *runtime) {
	ch, cancel := rt.engine.Samples()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case smp, ok := <-ch:
			if !ok {
				return
			}
			s.hub.BroadcastEvent(rt.id, stream.EventHeartRate, smp)
		}
	}
}

// persistBuffers writes downsampled readings mid-session so a crash loses
// at most one buffer's worth. The flush is taken fresh on each emission;
// the snapshot itself only signals that the threshold was crossed.
func (s *Service) persistBuffers(ctx context.Context, rt *runtime) {
	ch, cancel := rt.engine.Buffers()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			batch := rt.engine.FlushBuffer()
			if len(batch) == 0 {
				continue
			}
			rt.mu.Lock()
			rt.hrLog = append(rt.hrLog, batch...)
			rt.mu.Unlock()
			if err := s.insertSamples(context.Background(), rt.id, batch); err != nil {
				log.Printf("session %s: persist heart rate batch: %v", rt.id, err)
			}
		}
	}
}

func (s *Service) runtimeFor(sessionID string) (*runtime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.active[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return rt, nil
}

func (s *Service) trajectoryConfig() trajectory.Config {
	cfg := trajectory.DefaultConfig()
	cfg.MaxAccuracyM = s.cfg.TrackMaxAccuracyM
	cfg.AccuracyGrace = time.Duration(s.cfg.TrackAccuracyGraceSec) * time.Second
	cfg.MaxJumpM = s.cfg.TrackMaxJumpM
	cfg.MaxJumpWindow = time.Duration(s.cfg.TrackMaxJumpSec) * time.Second
	cfg.MaxSpeedMps = s.cfg.TrackMaxSpeedMps
	cfg.OverSpeedWindow = time.Duration(s.cfg.TrackOverSpeedSec) * time.Second
	cfg.OverSpeedRejects = s.cfg.TrackOverSpeedRejects
	cfg.IdleSpeedMps = s.cfg.TrackIdleSpeedMps
	cfg.IdleWindow = time.Duration(s.cfg.TrackIdleWindowSec) * time.Second
	cfg.InitialDistanceM = s.cfg.TrackInitialDistanceM
	return cfg
}

func (s *Service) heartrateConfig() heartrate.Config {
	cfg := heartrate.DefaultConfig()
	cfg.DownsampleEvery = time.Duration(s.cfg.HRDownsampleSec) * time.Second
	cfg.WatchdogInterval = time.Duration(s.cfg.HRWatchdogSec) * time.Second
	cfg.SilenceThreshold = time.Duration(s.cfg.HRSilenceSec) * time.Second
	cfg.ReconnectDelay = time.Duration(s.cfg.HRReconnectSec) * time.Second
	cfg.BufferEmitSize = s.cfg.HRBufferEmitSize
	return cfg
}

// smoothSegment derives instantaneous pace over the last segment and runs
// it through the smoother. Segments too short or too quick to yield a
// meaningful pace are skipped.
func (rt *runtime) smoothSegment(prev, curr trajectory.Point) (float64, bool) {
	distM := geo.HaversineM(prev.Lat, prev.Lon, curr.Lat, curr.Lon)
	dt := curr.Time.Sub(prev.Time).Seconds()
	if distM < 1 || dt <= 0 {
		return 0, false
	}
	instant := dt / (distM / 1000)
	smoothed := rt.paceCfg.Smooth(instant, rt.recentPaces)
	rt.recentPaces = append(rt.recentPaces, smoothed)
	if len(rt.recentPaces) > rt.paceCfg.Window {
		rt.recentPaces = rt.recentPaces[len(rt.recentPaces)-rt.paceCfg.Window:]
	}
	rt.smoothedPace = smoothed
	return smoothed, true
}

// elapsedAt is active duration (paused time excluded) as of t.
func (rt *runtime) elapsedAt(t time.Time) float64 {
	elapsed := t.Sub(rt.startedAt) - rt.pausedTotal
	if rt.paused {
		elapsed -= t.Sub(rt.pausedAt)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed.Seconds()
}

func (rt *runtime) summary(now time.Time) Summary {
	return Summary{
		SessionID:            rt.id,
		DistanceM:            rt.validator.AccumulatedDistance(),
		DurationSec:          rt.elapsedAt(now),
		ElevationGainM:       rt.elevationGainM,
		ElevationLossM:       rt.elevationLossM,
		SmoothedPaceSecPerKm: rt.smoothedPace,
		LatestBpm:            rt.engine.LatestBpm(),
		RejectedPoints:       rt.validator.RejectedCount(),
		Paused:               rt.paused,
		Splits:               rt.detector.Splits(),
	}
}

func zoneSamples(in []heartrate.Sample) []hrzone.Sample {
	out := make([]hrzone.Sample, 0, len(in))
	for _, s := range in {
		out = append(out, hrzone.Sample{Time: s.Time, Bpm: s.Bpm})
	}
	return out
}
