// Package heartrate merges two independent live heart-rate sources into one
// acceptance path, downsamples into a bounded buffer, and self-heals when a
// source goes silent mid-session.
package heartrate

import (
	"context"
	"log"
	"sync"
	"time"
)

// Config tunes the ingestion engine.
type Config struct {
	DownsampleEvery  time.Duration // buffer keeps at most one sample per this interval
	WatchdogInterval time.Duration
	SilenceThreshold time.Duration // silence beyond this triggers a reconnect
	ReconnectDelay   time.Duration // fixed delay before rebuilding a subscription
	BufferEmitSize   int           // buffer feed emits a snapshot at this size
}

func DefaultConfig() Config {
	return Config{
		DownsampleEvery:  20 * time.Second,
		WatchdogInterval: 10 * time.Second,
		SilenceThreshold: 20 * time.Second,
		ReconnectDelay:   2 * time.Second,
		BufferEmitSize:   25,
	}
}

// Engine owns the heart-rate state for one active session. All mutation
// goes through the internal mutex; the two push sources and the manual
// override share a single acceptance path.
type Engine struct {
	cfg      Config
	clock    Clock
	wearable WearableSource
	health   HealthSource // nil when the deployment has no health store

	mu             sync.Mutex
	monitoring     bool
	reconnecting   bool
	latestBpm      int
	latestSample   *Sample
	buffer         []Sample
	lastKept       time.Time
	lastUpdate     time.Time
	cancel         context.CancelFunc
	wearableCancel context.CancelFunc

	wg sync.WaitGroup

	samples *Feed[Sample]
	buffers *Feed[[]Sample]
}

func NewEngine(cfg Config, clock Clock, wearable WearableSource, health HealthSource) *Engine {
	if clock == nil {
		clock = RealClock()
	}
	return &Engine{
		cfg:      cfg,
		clock:    clock,
		wearable: wearable,
		health:   health,
		samples:  NewFeed[Sample](),
		buffers:  NewFeed[[]Sample](),
	}
}

// Samples subscribes to the live feed of every accepted sample.
func (e *Engine) Samples() (<-chan Sample, func()) { return e.samples.Subscribe() }

// Buffers subscribes to buffer snapshots emitted at the size threshold.
func (e *Engine) Buffers() (<-chan []Sample, func()) { return e.buffers.Subscribe() }

// StartMonitoring attaches to both sources and starts the watchdog. Calling
// it while already monitoring fully stops and restarts, so a new session
// always begins from clean state. A denied health-store authorization
// degrades to wearable-only and is not an error.
func (e *Engine) StartMonitoring(ctx context.Context) {
	e.mu.Lock()
	running := e.monitoring
	e.mu.Unlock()
	if running {
		e.StopMonitoring()
	}

	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.monitoring = true
	e.reconnecting = false
	e.cancel = cancel
	e.lastUpdate = e.clock.Now()
	e.mu.Unlock()

	if e.health != nil {
		if err := e.health.RequestAuthorization(runCtx); err != nil {
			log.Printf("heartrate: health store authorization denied, continuing with wearable only: %v", err)
		} else {
			if bpm, ok, err := e.health.Latest(runCtx); err != nil {
				log.Printf("heartrate: health store initial pull failed: %v", err)
			} else if ok {
				e.accept(bpm, SourceHealthStore)
			}
			if ch, err := e.health.Subscribe(runCtx); err != nil {
				log.Printf("heartrate: health store subscribe failed: %v", err)
			} else {
				e.wg.Add(1)
				go e.consume(runCtx, ch, SourceHealthStore)
			}
		}
	}

	e.subscribeWearable(runCtx)

	e.wg.Add(1)
	go e.watchdog(runCtx)
}

// StopMonitoring cancels both subscriptions and the watchdog. Safe to call
// repeatedly and when never started.
func (e *Engine) StopMonitoring() {
	e.mu.Lock()
	if !e.monitoring {
		e.mu.Unlock()
		return
	}
	e.monitoring = false
	cancel := e.cancel
	e.cancel = nil
	e.wearableCancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// Monitoring reports whether the engine is attached to its sources.
func (e *Engine) Monitoring() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.monitoring
}

// UpdateHeartRate injects a reading from outside both push sources.
func (e *Engine) UpdateHeartRate(bpm int) {
	if bpm <= 0 {
		return
	}
	e.accept(bpm, SourceManual)
}

// LatestBpm returns the most recent accepted reading, zero before any.
func (e *Engine) LatestBpm() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latestBpm
}

// LatestSample returns the most recent accepted sample.
func (e *Engine) LatestSample() (Sample, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latestSample == nil {
		return Sample{}, false
	}
	return *e.latestSample, true
}

// Buffer returns a copy of the downsampled buffer.
func (e *Engine) Buffer() []Sample {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Sample, len(e.buffer))
	copy(out, e.buffer)
	return out
}

// FlushBuffer returns the downsampled buffer and clears it; the caller owns
// persisting the returned samples.
func (e *Engine) FlushBuffer() []Sample {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.buffer
	e.buffer = nil
	return out
}

// ClearBuffer discards the downsampled buffer.
func (e *Engine) ClearBuffer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffer = nil
}

// accept is the single write path for every source. It always updates the
// latest value and feeds the watchdog; the sample only enters the persisted
// buffer when the downsample interval has elapsed, but is broadcast live
// either way.
func (e *Engine) accept(bpm int, src Source) {
	now := e.clock.Now()
	s := Sample{Time: now, Bpm: bpm, Source: src}

	e.mu.Lock()
	e.latestBpm = bpm
	e.latestSample = &s
	e.lastUpdate = now

	var snapshot []Sample
	if e.lastKept.IsZero() || now.Sub(e.lastKept) >= e.cfg.DownsampleEvery {
		e.buffer = append(e.buffer, s)
		e.lastKept = now
		if e.cfg.BufferEmitSize > 0 && len(e.buffer) >= e.cfg.BufferEmitSize {
			snapshot = make([]Sample, len(e.buffer))
			copy(snapshot, e.buffer)
		}
	}
	e.mu.Unlock()

	e.samples.Publish(s)
	if snapshot != nil {
		e.buffers.Publish(snapshot)
	}
}

func (e *Engine) consume(ctx context.Context, ch <-chan int, src Source) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case bpm, ok := <-ch:
			if !ok {
				return
			}
			if bpm > 0 {
				e.accept(bpm, src)
			}
		}
	}
}

// subscribeWearable tears down any existing wearable subscription and
// builds a fresh one.
func (e *Engine) subscribeWearable(ctx context.Context) {
	if e.wearable == nil {
		log.Printf("heartrate: no wearable source configured")
		return
	}

	wctx, wcancel := context.WithCancel(ctx)

	e.mu.Lock()
	if e.wearableCancel != nil {
		e.wearableCancel()
	}
	e.wearableCancel = wcancel
	e.mu.Unlock()

	ch, err := e.wearable.Subscribe(wctx)
	if err != nil {
		// The watchdog retries on the next silent tick.
		log.Printf("heartrate: wearable subscribe failed: %v", err)
		wcancel()
		return
	}
	e.wg.Add(1)
	go e.consume(wctx, ch, SourceWearable)
}

// watchdog checks periodically for silence across both sources and rebuilds
// the wearable subscription when nothing has arrived for too long. The
// reconnecting flag keeps reconnect attempts single-flight.
func (e *Engine) watchdog(ctx context.Context) {
	defer e.wg.Done()
	ticks, stop := e.clock.Ticker(e.cfg.WatchdogInterval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			e.mu.Lock()
			silent := e.monitoring && !e.reconnecting &&
				e.clock.Now().Sub(e.lastUpdate) > e.cfg.SilenceThreshold
			if silent {
				e.reconnecting = true
			}
			e.mu.Unlock()

			if silent {
				e.wg.Add(1)
				go e.reconnect(ctx)
			}
		}
	}
}

func (e *Engine) reconnect(ctx context.Context) {
	defer e.wg.Done()
	log.Printf("heartrate: sources silent past %s, rebuilding wearable subscription", e.cfg.SilenceThreshold)

	select {
	case <-ctx.Done():
		e.mu.Lock()
		e.reconnecting = false
		e.mu.Unlock()
		return
	case <-e.clock.After(e.cfg.ReconnectDelay):
	}

	e.subscribeWearable(ctx)

	e.mu.Lock()
	e.reconnecting = false
	// Give the fresh subscription a full silence window before the
	// watchdog fires again.
	e.lastUpdate = e.clock.Now()
	e.mu.Unlock()
}
