package daemon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingTask(runs *atomic.Int32) MaintenanceTask {
	return func(ctx context.Context) (MaintenanceSummary, error) {
		runs.Add(1)
		return MaintenanceSummary{OrphansRemoved: 1, Backfilled: 2}, nil
	}
}

func TestMaintenanceManager_Enabled(t *testing.T) {
	task := func(context.Context) (MaintenanceSummary, error) { return MaintenanceSummary{}, nil }

	tests := []struct {
		name string
		idle time.Duration
		task MaintenanceTask
		want bool
	}{
		{"enabled", time.Minute, task, true},
		{"zero idle", 0, task, false},
		{"no task", time.Minute, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMaintenanceManager(tt.idle, time.Hour, tt.task, nil)
			assert.Equal(t, tt.want, m.Enabled())
		})
	}
}

func TestMaintenanceManager_RunsAfterIdle(t *testing.T) {
	// Given a manager with a short idle period
	var runs atomic.Int32
	m := NewMaintenanceManager(20*time.Millisecond, time.Hour, countingTask(&runs), nil)
	m.Start(context.Background())
	defer m.Stop()

	// When the daemon stays quiet
	require.Eventually(t, func() bool { return m.Last() != nil }, 2*time.Second, 5*time.Millisecond)

	// Then one run is recorded
	last := m.Last()
	assert.Equal(t, 1, last.OrphansRemoved)
	assert.Equal(t, 2, last.Backfilled)
	assert.NotEmpty(t, last.At)
	assert.False(t, last.Interrupted)
	assert.Equal(t, int32(1), runs.Load())
}

func TestMaintenanceManager_CooldownLimitsRuns(t *testing.T) {
	var runs atomic.Int32
	m := NewMaintenanceManager(10*time.Millisecond, time.Hour, countingTask(&runs), nil)
	m.Start(context.Background())
	defer m.Stop()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Activity re-arms the idle timer but the cooldown holds
	m.OnActivity()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(1), runs.Load())
}

func TestMaintenanceManager_ActivityInterruptsRun(t *testing.T) {
	// Given a task that blocks until cancelled
	started := make(chan struct{})
	task := func(ctx context.Context) (MaintenanceSummary, error) {
		close(started)
		<-ctx.Done()
		return MaintenanceSummary{}, ctx.Err()
	}
	m := NewMaintenanceManager(10*time.Millisecond, time.Hour, task, nil)
	m.Start(context.Background())
	defer m.Stop()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("maintenance did not start")
	}

	// When a request arrives
	m.OnActivity()

	// Then the run is recorded as interrupted
	require.Eventually(t, func() bool { return m.Last() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, m.Last().Interrupted)
}

func TestMaintenanceManager_RecordsFailure(t *testing.T) {
	task := func(context.Context) (MaintenanceSummary, error) {
		return MaintenanceSummary{}, errors.New("backend down")
	}
	m := NewMaintenanceManager(10*time.Millisecond, time.Hour, task, nil)
	m.Start(context.Background())
	defer m.Stop()

	require.Eventually(t, func() bool { return m.Last() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "backend down", m.Last().Error)
}

func TestMaintenanceManager_DisabledNeverRuns(t *testing.T) {
	var runs atomic.Int32
	m := NewMaintenanceManager(0, time.Hour, countingTask(&runs), nil)
	m.Start(context.Background())
	m.OnActivity()

	time.Sleep(50 * time.Millisecond)
	m.Stop()

	assert.Zero(t, runs.Load())
	assert.Nil(t, m.Last())
}

func TestMaintenanceManager_StopIsIdempotent(t *testing.T) {
	var runs atomic.Int32
	m := NewMaintenanceManager(time.Hour, time.Hour, countingTask(&runs), nil)
	m.Start(context.Background())

	m.Stop()
	m.Stop()

	assert.Zero(t, runs.Load())
}
