package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aman-CERP/pdfqa/internal/index"
)

// PollConfig bounds the client-side wait for a job.
type PollConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Step        time.Duration
	MaxDelay    time.Duration
}

// DefaultPollConfig waits at most 60 polls with a 1s..5s linear delay.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		MaxAttempts: 60,
		BaseDelay:   time.Second,
		Step:        200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Delay is the wait after attempt n (0-based) before the next one.
func (c PollConfig) Delay(n int) time.Duration {
	d := c.BaseDelay + time.Duration(n)*c.Step
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// OutcomeKind is how a wait ended.
type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeTimeout   OutcomeKind = "timeout"
)

// Outcome is the end of a wait.
type Outcome struct {
	Kind     OutcomeKind   `json:"kind"`
	Messages []ChatMessage `json:"messages,omitempty"`
	Attempts int           `json:"attempts"`
}

// Text returns the answer for completed outcomes and the user-facing
// failure text otherwise.
func (o Outcome) Text() string {
	switch o.Kind {
	case OutcomeCompleted:
		if m, ok := LatestAssistant(o.Messages); ok {
			return m.Content
		}
		return ""
	case OutcomeTimeout:
		return TimeoutText
	default:
		return FailedText
	}
}

// FetchFunc reads the current result of a job.
type FetchFunc func(ctx context.Context, h index.JobHandle) (Result, error)

// Poller repeatedly fetches a job result until it settles.
type Poller struct {
	cfg    PollConfig
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// NewPoller creates a Poller. Zero fields of cfg take defaults.
func NewPoller(cfg PollConfig, logger *slog.Logger) *Poller {
	def := DefaultPollConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.Step < 0 {
		cfg.Step = def.Step
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{cfg: cfg, sleep: sleepContext, logger: logger}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait polls fetch until the job completes or fails, or the attempt budget
// runs out. Fetch errors count as pending. progress, if set, sees every
// attempt. The error is non-nil only when ctx ends.
func (p *Poller) Wait(ctx context.Context, h index.JobHandle, fetch FetchFunc, progress func(attempt int, r Result)) (Outcome, error) {
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, p.cfg.Delay(attempt-1)); err != nil {
				return Outcome{Attempts: attempt}, err
			}
		}

		res, err := fetch(ctx, h)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{Attempts: attempt + 1}, ctx.Err()
			}
			p.logger.Debug("poll failed, will retry",
				slog.String("run_id", h.RunID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			res = Result{State: StatePending}
		}
		if progress != nil {
			progress(attempt, res)
		}

		switch res.State {
		case StateCompleted:
			return Outcome{Kind: OutcomeCompleted, Messages: res.Messages, Attempts: attempt + 1}, nil
		case StateFailed:
			return Outcome{Kind: OutcomeFailed, Attempts: attempt + 1}, nil
		}
	}

	p.logger.Info("query timed out", slog.String("run_id", h.RunID), slog.Int("attempts", p.cfg.MaxAttempts))
	return Outcome{Kind: OutcomeTimeout, Attempts: p.cfg.MaxAttempts}, nil
}
