package ui

import (
	"bytes"
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfqa/internal/query"
)

func TestPlainWaiter_PrintsStateChanges(t *testing.T) {
	// Given a plain waiter
	var buf bytes.Buffer
	w := NewPlainWaiter(NewConfig(&buf), "Thinking")

	// When a job is polled until it completes
	ctx := w.Start(context.Background())
	w.Update(0, query.Result{State: query.StatePending})
	w.Update(1, query.Result{State: query.StatePending})
	w.Update(2, query.Result{State: query.StateCompleted})
	w.Stop()

	// Then only the start and the first pending poll are printed
	require.NoError(t, ctx.Err())
	assert.Equal(t, "Thinking...\n[poll 1] pending\n", buf.String())
}

func TestPlainWaiter_PrintsFailure(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlainWaiter(NewConfig(&buf), "Thinking")

	w.Start(context.Background())
	w.Update(0, query.Result{State: query.StateFailed})

	assert.Contains(t, buf.String(), "[poll 1] failed")
}

func TestWaitModel_Updates(t *testing.T) {
	// Given a model started 75 seconds ago
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newWaitModel("Thinking", start)
	m.styles = NoColorStyles()
	m.now = func() time.Time { return start.Add(75 * time.Second) }

	// When a poll arrives
	_, cmd := m.Update(pollMsg{attempt: 2, state: query.StatePending})

	// Then the view shows elapsed time and the poll number
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Thinking 1m 15s · poll 3 · pending")

	// And done clears the view and quits
	_, cmd = m.Update(doneMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, "", m.View())
}

func TestWaitModel_InterruptCancels(t *testing.T) {
	m := newWaitModel("Thinking", time.Now())
	m.styles = NoColorStyles()
	cancelled := false
	m.onInterrupt = func() { cancelled = true }

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.True(t, cancelled)
	assert.Equal(t, "Cancelled.\n", m.View())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{4 * time.Second, "4s"},
		{2 * time.Minute, "2m"},
		{125 * time.Second, "2m 5s"},
		{90 * time.Minute, "1h 30m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.in))
		})
	}
}
