package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfqa/internal/index"
)

func newTestPoller(maxAttempts int) (*Poller, *[]time.Duration) {
	var slept []time.Duration
	p := NewPoller(PollConfig{MaxAttempts: maxAttempts}, nil)
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func TestPollConfig_DelayIsLinearAndCapped(t *testing.T) {
	c := DefaultPollConfig()

	assert.Equal(t, time.Second, c.Delay(0))
	assert.Equal(t, 1200*time.Millisecond, c.Delay(1))
	assert.Equal(t, 5*time.Second, c.Delay(20))
	assert.Equal(t, 5*time.Second, c.Delay(59))
}

func TestPoller_CompletesAfterPending(t *testing.T) {
	// Given: a job pending twice and then completed
	p, slept := newTestPoller(10)
	calls := 0
	fetch := func(context.Context, index.JobHandle) (Result, error) {
		calls++
		if calls < 3 {
			return Result{State: StatePending}, nil
		}
		return Result{State: StateCompleted, Messages: []ChatMessage{
			{Role: "user", Content: "q"},
			{Role: "assistant", Content: "the answer"},
		}}, nil
	}

	// When: waiting
	out, err := p.Wait(context.Background(), index.JobHandle{}, fetch, nil)

	// Then: it completes on the third attempt with growing delays
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, "the answer", out.Text())
	assert.Equal(t, []time.Duration{time.Second, 1200 * time.Millisecond}, *slept)
}

func TestPoller_TimesOutAfterMaxAttempts(t *testing.T) {
	p, slept := newTestPoller(60)
	calls := 0
	fetch := func(context.Context, index.JobHandle) (Result, error) {
		calls++
		return Result{State: StatePending}, nil
	}

	out, err := p.Wait(context.Background(), index.JobHandle{}, fetch, nil)

	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeout, out.Kind)
	assert.Equal(t, 60, calls)
	assert.Equal(t, TimeoutText, out.Text())
	for _, d := range *slept {
		assert.LessOrEqual(t, d, 5*time.Second)
	}
	assert.Len(t, *slept, 59)
}

func TestPoller_FailedIsGeneric(t *testing.T) {
	p, _ := newTestPoller(5)
	fetch := func(context.Context, index.JobHandle) (Result, error) {
		return Result{State: StateFailed, Error: "rate_limit_exceeded: quota"}, nil
	}

	out, err := p.Wait(context.Background(), index.JobHandle{}, fetch, nil)

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, FailedText, out.Text())
	assert.NotContains(t, out.Text(), "quota")
}

func TestPoller_FetchErrorsKeepPolling(t *testing.T) {
	p, _ := newTestPoller(5)
	calls := 0
	var seen []State
	fetch := func(context.Context, index.JobHandle) (Result, error) {
		calls++
		if calls == 1 {
			return Result{}, errors.New("connection reset")
		}
		return Result{State: StateCompleted}, nil
	}

	out, err := p.Wait(context.Background(), index.JobHandle{}, fetch, func(_ int, r Result) {
		seen = append(seen, r.State)
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, []State{StatePending, StateCompleted}, seen)
	assert.Equal(t, "", out.Text())
}

func TestPoller_ContextCancel(t *testing.T) {
	p := NewPoller(PollConfig{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	fetch := func(context.Context, index.JobHandle) (Result, error) {
		cancel()
		return Result{State: StatePending}, nil
	}

	_, err := p.Wait(ctx, index.JobHandle{}, fetch, nil)

	assert.ErrorIs(t, err, context.Canceled)
}
