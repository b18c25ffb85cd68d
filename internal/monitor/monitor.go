package monitor

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"inkbatt/internal/homeassistant"
	"inkbatt/internal/metrics"
	"inkbatt/internal/model"
	"inkbatt/internal/retry"
)

var (
	ErrAlreadyRunning = errors.New("monitor already running")
	ErrNotRunning     = errors.New("monitor not running")
)

type sensorClient interface {
	Fetch(ctx context.Context) (*model.SensorReading, error)
}

type renderer interface {
	Render(state model.DisplayState) error
}

type Monitor struct {
	client      sensorClient
	renderer    renderer
	retryCfg    retry.Config
	interval    time.Duration
	maxInterval time.Duration
	metrics     *metrics.Metrics

	state State

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(
	client sensorClient,
	r renderer,
	retryCfg retry.Config,
	interval time.Duration,
	maxInterval time.Duration,
	m *metrics.Metrics,
) *Monitor {
	return &Monitor{
		client:      client,
		renderer:    r,
		retryCfg:    retryCfg,
		interval:    interval,
		maxInterval: maxInterval,
		metrics:     m,
	}
}

// Start launches the poll loop in a background goroutine. The first
// cycle runs immediately. The loop ends when ctx is cancelled or Stop
// is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	go m.run(loopCtx)
	return nil
}

// Stop halts the poll loop. An in-flight fetch is abandoned; fetches
// are read-only, so there is nothing to roll back.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel == nil {
		return ErrNotRunning
	}

	m.cancel()
	m.cancel = nil
	return nil
}

// IsRunning returns whether the poll loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Snapshot returns the current display state. Safe to call from any
// goroutine.
func (m *Monitor) Snapshot() model.DisplayState {
	return m.state.Snapshot(time.Now())
}

func (m *Monitor) run(ctx context.Context) {
	slog.Info("poll loop started",
		"interval", m.interval,
		"max_interval", m.maxInterval,
		"max_retries", m.retryCfg.MaxRetries)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("poll loop panicked", "error", r, "stack", string(debug.Stack()))
			m.mu.Lock()
			m.cancel = nil
			m.mu.Unlock()
		}
	}()

	m.runCycle(ctx)

	// A Timer rather than a Ticker because the interval stretches while
	// the server stays down.
	timer := time.NewTimer(m.sleepInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poll loop stopped")
			return
		case <-timer.C:
			m.runCycle(ctx)
			timer.Reset(m.sleepInterval())
		}
	}
}

// runCycle performs one fetch-record-render pass. Every outcome ends
// with a render and a heartbeat log line; nothing here is fatal.
func (m *Monitor) runCycle(ctx context.Context) {
	start := time.Now()

	var reading *model.SensorReading
	err := retry.Do(ctx, m.retryCfg, func() error {
		r, ferr := m.client.Fetch(ctx)
		if ferr != nil {
			if !homeassistant.Retryable(ferr) {
				return retry.Permanent(ferr)
			}
			return ferr
		}
		reading = r
		return nil
	}, func(ferr error, delay time.Duration) {
		m.metrics.RecordRetry()
		slog.Warn("fetch attempt failed, retrying",
			"kind", string(homeassistant.KindOf(ferr)),
			"error", ferr,
			"retry_in", delay)
	})

	m.metrics.ObserveFetchDuration(time.Since(start))

	// Shutdown mid-fetch: leave state untouched and let run exit.
	if ctx.Err() != nil {
		return
	}

	now := time.Now()
	outcome := "success"
	if err != nil {
		outcome = "failure"
		failures := m.state.recordFailure()
		m.metrics.RecordCycle(outcome)
		m.metrics.RecordFetchFailure(string(homeassistant.KindOf(err)))
		m.metrics.SetConsecutiveFailures(failures)
		slog.Error("fetch failed for this cycle, keeping last reading",
			"kind", string(homeassistant.KindOf(err)),
			"error", err,
			"consecutive_failures", failures)
	} else {
		m.state.recordSuccess(reading, now)
		m.metrics.RecordCycle(outcome)
		m.metrics.SetConsecutiveFailures(0)
		m.metrics.SetBatteryLevel(reading.Value)
		m.metrics.SetLastSuccess(now)
		slog.Info("fetched sensor state",
			"entity", reading.EntityID,
			"value", reading.Value,
			"unit", reading.Unit)
	}

	m.render(m.state.Snapshot(now))

	slog.Info("cycle complete",
		"outcome", outcome,
		"consecutive_failures", m.state.failures(),
		"next_interval", m.sleepInterval())
}

// render hands the snapshot to the render sink. A broken or panicking
// sink must never take down the poll loop, so faults stop here.
func (m *Monitor) render(state model.DisplayState) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.RecordRenderFailure("panic")
			slog.Error("renderer panicked", "error", r, "stack", string(debug.Stack()))
		}
	}()

	if err := m.renderer.Render(state); err != nil {
		m.metrics.RecordRenderFailure("error")
		slog.Error("render failed", "error", err)
	}
}

func (m *Monitor) sleepInterval() time.Duration {
	return nextInterval(m.interval, m.maxInterval, m.state.failures())
}

// nextInterval stretches the base interval linearly with the failure
// count, capped at ceil, so a server that is known to be down gets
// polled less often. One failure keeps the base interval; recovery
// snaps back to it immediately.
func nextInterval(base, ceil time.Duration, failures int) time.Duration {
	if failures <= 1 {
		return base
	}
	return min(time.Duration(failures)*base, ceil)
}
