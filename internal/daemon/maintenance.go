package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// MaintenanceSummary reports one maintenance run.
type MaintenanceSummary struct {
	OrphansRemoved int    `json:"orphans_removed"`
	Backfilled     int    `json:"backfilled"`
	At             string `json:"at"`
	Interrupted    bool   `json:"interrupted,omitempty"`
	Error          string `json:"error,omitempty"`
}

// MaintenanceTask performs the maintenance work. It must stop promptly when
// ctx is cancelled.
type MaintenanceTask func(ctx context.Context) (MaintenanceSummary, error)

// MaintenanceManager runs a maintenance task once the daemon has been idle
// for a while.
//
// A run starts when:
//  1. no request arrived for the idle period
//  2. the cooldown since the previous run has elapsed
//  3. no run is in progress
//
// Any request interrupts a run in progress.
type MaintenanceManager struct {
	idle     time.Duration
	cooldown time.Duration
	task     MaintenanceTask
	logger   *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	timer     *time.Timer
	running   bool
	runCancel context.CancelFunc
	lastRun   time.Time
	last      *MaintenanceSummary

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewMaintenanceManager creates a manager. idle <= 0 disables it.
func NewMaintenanceManager(idle, cooldown time.Duration, task MaintenanceTask, logger *slog.Logger) *MaintenanceManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceManager{
		idle:     idle,
		cooldown: cooldown,
		task:     task,
		logger:   logger,
	}
}

// Enabled reports whether maintenance runs at all.
func (m *MaintenanceManager) Enabled() bool {
	return m.idle > 0 && m.task != nil
}

// Start arms the idle timer.
func (m *MaintenanceManager) Start(ctx context.Context) {
	if !m.Enabled() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.timer = time.AfterFunc(m.idle, m.onIdle)
	m.logger.Debug("maintenance manager started",
		slog.Duration("idle", m.idle),
		slog.Duration("cooldown", m.cooldown))
}

// OnActivity restarts the idle period and interrupts a run in progress.
func (m *MaintenanceManager) OnActivity() {
	if !m.Enabled() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil || m.ctx.Err() != nil {
		return
	}
	if m.runCancel != nil {
		m.logger.Debug("interrupting maintenance for request")
		m.runCancel()
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.idle, m.onIdle)
}

func (m *MaintenanceManager) onIdle() {
	m.mu.Lock()
	if m.ctx == nil || m.ctx.Err() != nil || m.running {
		m.mu.Unlock()
		return
	}
	if !m.lastRun.IsZero() && time.Since(m.lastRun) < m.cooldown {
		m.logger.Debug("maintenance skipped: cooldown active",
			slog.Duration("remaining", m.cooldown-time.Since(m.lastRun)))
		m.timer = time.AfterFunc(m.cooldown-time.Since(m.lastRun), m.onIdle)
		m.mu.Unlock()
		return
	}

	runCtx, cancel := context.WithCancel(m.ctx)
	m.running = true
	m.runCancel = cancel
	m.lastRun = time.Now()
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx, cancel)
}

func (m *MaintenanceManager) run(ctx context.Context, cancel context.CancelFunc) {
	defer m.wg.Done()
	defer cancel()

	start := time.Now()
	summary, err := m.task(ctx)
	summary.At = start.UTC().Format(time.RFC3339)

	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		summary.Interrupted = true
		m.logger.Debug("maintenance interrupted")
	case err != nil:
		summary.Error = err.Error()
		m.logger.Warn("maintenance failed", slog.String("error", err.Error()))
	default:
		m.logger.Info("maintenance complete",
			slog.Int("orphans_removed", summary.OrphansRemoved),
			slog.Int("backfilled", summary.Backfilled),
			slog.Duration("duration", time.Since(start)))
	}

	m.mu.Lock()
	m.running = false
	m.runCancel = nil
	m.last = &summary
	m.mu.Unlock()
}

// Last returns the most recent run, or nil.
func (m *MaintenanceManager) Last() *MaintenanceSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	s := *m.last
	return &s
}

// Stop cancels timers and any run, and waits for it to return.
func (m *MaintenanceManager) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		if m.timer != nil {
			m.timer.Stop()
		}
		if m.cancel != nil {
			m.cancel()
		}
		m.mu.Unlock()
		m.wg.Wait()
	})
}
