package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/pdfqa/internal/document"
	"github.com/Aman-CERP/pdfqa/internal/store"
)

const (
	DefaultSweepInterval    = time.Minute
	DefaultSweepConcurrency = 4
)

// SweepResult summarizes one sweep.
type SweepResult struct {
	Examined  int           `json:"examined"`
	Ready     int           `json:"ready"`
	Failed    int           `json:"failed"`
	Unchanged int           `json:"unchanged"`
	Errors    int           `json:"errors"`
	Skipped   bool          `json:"skipped,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	Interval    time.Duration
	Concurrency int
	// LockPath enables the cross-process sweep lock when set.
	LockPath string
	Logger   *slog.Logger
}

// Sweeper periodically reconciles every processing record.
type Sweeper struct {
	reconciler *Reconciler
	docs       store.DocumentStore
	interval   time.Duration
	limit      int
	lock       *SweepLock
	logger     *slog.Logger

	// sweeping is held for the duration of RunOnce.
	sweeping sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	last    SweepResult
	lastRun time.Time
}

// NewSweeper creates a Sweeper.
func NewSweeper(r *Reconciler, docs store.DocumentStore, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultSweepConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Sweeper{
		reconciler: r,
		docs:       docs,
		interval:   cfg.Interval,
		limit:      cfg.Concurrency,
		logger:     cfg.Logger,
	}
	if cfg.LockPath != "" {
		s.lock = NewSweepLock(cfg.LockPath)
	}
	return s
}

// RunOnce performs a single sweep. Per-record failures are counted and
// logged; the returned error is non-nil only when listing fails. A call
// made while another sweep is running is skipped.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	start := time.Now()

	if !s.sweeping.TryLock() {
		s.logger.Info("sweep skipped, already running")
		return SweepResult{Skipped: true}, nil
	}
	defer s.sweeping.Unlock()

	if s.lock != nil {
		acquired, err := s.lock.TryLock()
		if err != nil {
			return SweepResult{}, err
		}
		if !acquired {
			s.logger.Info("sweep skipped, lock held by another process", slog.String("lock", s.lock.Path()))
			return SweepResult{Skipped: true}, nil
		}
		defer func() {
			if err := s.lock.Unlock(); err != nil {
				s.logger.Warn("failed to release sweep lock", slog.String("error", err.Error()))
			}
		}()
	}

	records, err := s.docs.ListByStatus(ctx, document.StatusProcessing)
	if err != nil {
		return SweepResult{}, err
	}

	var (
		mu  sync.Mutex
		res = SweepResult{Examined: len(records)}
	)

	g := new(errgroup.Group)
	g.SetLimit(s.limit)

	for i := range records {
		rec := records[i]
		g.Go(func() error {
			status, err := s.reconciler.Reconcile(ctx, &rec)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.Errors++
				s.logger.Warn("reconcile failed",
					slog.String("document_id", rec.ID),
					slog.String("error", err.Error()))
			case status == document.StatusReady:
				res.Ready++
			case status == document.StatusFailed:
				res.Failed++
			default:
				res.Unchanged++
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Duration = time.Since(start)

	s.mu.Lock()
	s.last = res
	s.lastRun = start
	s.mu.Unlock()

	if res.Examined > 0 {
		s.logger.Info("sweep completed",
			slog.Int("examined", res.Examined),
			slog.Int("ready", res.Ready),
			slog.Int("failed", res.Failed),
			slog.Int("unchanged", res.Unchanged),
			slog.Int("errors", res.Errors),
			slog.Duration("duration", res.Duration))
	}
	return res, nil
}

// Start runs a sweep immediately and then on every interval until ctx is
// cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go func() {
		defer close(doneCh)

		s.tick(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()

	s.logger.Info("sweeper started", slog.Duration("interval", s.interval), slog.Int("concurrency", s.limit))
}

func (s *Sweeper) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("sweep failed", slog.String("error", err.Error()))
	}
}

// Stop signals the loop to exit and waits for it.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.Wait()
}

// Wait blocks until the loop has exited.
func (s *Sweeper) Wait() {
	s.mu.Lock()
	done := s.doneCh
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Last returns the most recent sweep result and when it started.
func (s *Sweeper) Last() (SweepResult, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastRun
}
