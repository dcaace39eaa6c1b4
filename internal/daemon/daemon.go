package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aman-CERP/pdfqa/internal/document"
	"github.com/Aman-CERP/pdfqa/internal/documents"
	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/query"
	"github.com/Aman-CERP/pdfqa/internal/reconcile"
	"github.com/Aman-CERP/pdfqa/internal/telemetry"
	"github.com/Aman-CERP/pdfqa/internal/watcher"
)

// statusTopTerms bounds the question terms reported in status.
const statusTopTerms = 5

// Deps are the components the daemon runs.
type Deps struct {
	Service *documents.Service
	Sweeper *reconcile.Sweeper
	// OwnerID is the owner every request acts for.
	OwnerID string
	// Breaker is reported in status when set.
	Breaker *qaerrors.CircuitBreaker
	// Inbox is run alongside the server when set.
	Inbox *watcher.Inbox
	// Metrics collects question telemetry. A fresh collector is used when nil.
	Metrics *telemetry.QueryMetrics
	Logger  *slog.Logger
}

// Daemon serves document operations and runs background work.
type Daemon struct {
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	pidFile *PIDFile
	maint   *MaintenanceManager
}

var _ RequestHandler = (*Daemon)(nil)

// NewDaemon creates a daemon.
func NewDaemon(cfg Config, deps Deps) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid daemon config: %w", err)
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("daemon requires a document service")
	}
	if deps.OwnerID == "" {
		return nil, fmt.Errorf("daemon requires an owner id")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.New(telemetry.DefaultConfig())
	}

	d := &Daemon{
		cfg:     cfg,
		deps:    deps,
		logger:  deps.Logger,
		pidFile: NewPIDFile(cfg.PIDPath),
	}
	d.maint = NewMaintenanceManager(cfg.MaintenanceIdle, cfg.MaintenanceCooldown, d.maintain, deps.Logger)
	return d, nil
}

// Start runs the daemon until ctx is cancelled or SIGINT/SIGTERM arrives.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.pidFile.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := d.pidFile.Remove(); err != nil {
			d.logger.Warn("failed to remove PID file", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := NewServer(d.cfg.SocketPath, d.cfg.Timeout, d.logger)
	if err != nil {
		return err
	}
	srv.SetHandler(d)
	srv.SetActivityHook(func(method string) {
		if method != MethodPing && method != MethodStatus {
			d.maint.OnActivity()
		}
	})

	if d.deps.Sweeper != nil {
		d.deps.Sweeper.Start(ctx)
	}
	d.maint.Start(ctx)

	inboxDone := make(chan struct{})
	if d.deps.Inbox != nil {
		go func() {
			defer close(inboxDone)
			if err := d.deps.Inbox.Run(ctx); err != nil {
				d.logger.Error("inbox stopped", slog.String("error", err.Error()))
			}
		}()
	} else {
		close(inboxDone)
	}

	d.logger.Info("daemon started",
		slog.String("socket", d.cfg.SocketPath),
		slog.String("owner_id", d.deps.OwnerID))

	serveErr := srv.ListenAndServe(ctx)

	d.shutdown(inboxDone)

	if errors.Is(serveErr, context.Canceled) {
		return nil
	}
	return serveErr
}

// shutdown stops background work, bounded by the grace period.
func (d *Daemon) shutdown(inboxDone <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if d.deps.Inbox != nil {
			d.deps.Inbox.Stop()
		}
		if d.deps.Sweeper != nil {
			d.deps.Sweeper.Stop()
		}
		d.maint.Stop()
		<-inboxDone
	}()

	select {
	case <-done:
		d.logger.Info("daemon stopped")
	case <-time.After(d.cfg.ShutdownGracePeriod):
		d.logger.Warn("shutdown grace period elapsed", slog.Duration("grace", d.cfg.ShutdownGracePeriod))
	}
}

func (d *Daemon) maintain(ctx context.Context) (MaintenanceSummary, error) {
	var s MaintenanceSummary

	n, err := d.deps.Service.CleanupOrphans(ctx, d.deps.OwnerID)
	s.OrphansRemoved = n
	if err != nil {
		return s, err
	}

	n, err = d.deps.Service.BackfillMetadata(ctx, d.deps.OwnerID)
	s.Backfilled = n
	return s, err
}

func (d *Daemon) ListDocuments(ctx context.Context) ([]document.Record, error) {
	return d.deps.Service.ListDocuments(ctx, d.deps.OwnerID)
}

func (d *Daemon) DocumentStatus(ctx context.Context, documentID string) (document.Status, error) {
	return d.deps.Service.GetStatus(ctx, d.deps.OwnerID, documentID)
}

func (d *Daemon) ToggleDocument(ctx context.Context, documentID string) (*document.Record, error) {
	return d.deps.Service.ToggleActive(ctx, d.deps.OwnerID, documentID)
}

func (d *Daemon) DeleteDocument(ctx context.Context, documentID string) error {
	return d.deps.Service.Delete(ctx, d.deps.OwnerID, documentID)
}

func (d *Daemon) UploadDocument(ctx context.Context, p UploadParams) (*document.Record, error) {
	return d.deps.Service.Upload(ctx, d.deps.OwnerID, documents.UploadRequest{Path: p.Path, Filename: p.Filename})
}

func (d *Daemon) SubmitQuery(ctx context.Context, p QuerySubmitParams) (index.JobHandle, error) {
	h, err := d.deps.Service.SubmitQuery(ctx, d.deps.OwnerID, p.Text, p.Model)
	if err != nil {
		return h, err
	}
	d.deps.Metrics.Submitted(h, p.Text, d.deps.Service.Models().Resolve(p.Model))
	return h, nil
}

func (d *Daemon) QueryResult(ctx context.Context, h index.JobHandle) (query.Result, error) {
	res, err := d.deps.Service.GetQueryResult(ctx, h)
	if err != nil {
		return res, err
	}

	var outcome telemetry.Outcome
	switch res.State {
	case query.StateCompleted:
		outcome = telemetry.OutcomeAnswered
	case query.StateFailed:
		outcome = telemetry.OutcomeFailed
	default:
		return res, nil
	}
	if ev, ok := d.deps.Metrics.Finished(h, outcome); ok {
		d.logger.Info("question finished",
			slog.String("outcome", string(ev.Outcome)),
			slog.String("model", ev.Model),
			slog.Duration("duration", ev.Latency))
	}
	return res, nil
}

func (d *Daemon) Models() []query.Model {
	return d.deps.Service.Models().Models()
}

func (d *Daemon) Sweep(ctx context.Context) (reconcile.SweepResult, error) {
	if d.deps.Sweeper == nil {
		return reconcile.SweepResult{}, qaerrors.InternalError("sweeper is not configured", nil)
	}
	return d.deps.Sweeper.RunOnce(ctx)
}

// GetStatus reports owner, document counts and background state. Process
// fields are filled in by the server.
func (d *Daemon) GetStatus(ctx context.Context) StatusResult {
	status := StatusResult{OwnerID: d.deps.OwnerID}

	if docs, err := d.deps.Service.ListDocuments(ctx, d.deps.OwnerID); err == nil {
		status.Documents = make(map[string]int)
		for _, r := range docs {
			status.Documents[string(r.Status)]++
		}
	} else {
		d.logger.Warn("status: failed to count documents", slog.String("error", err.Error()))
	}

	if d.deps.Breaker != nil {
		status.Breaker = d.deps.Breaker.State().String()
	}

	if d.deps.Sweeper != nil {
		if res, at := d.deps.Sweeper.Last(); !at.IsZero() {
			status.LastSweep = &SweepSummary{SweepResult: res, At: at.UTC().Format(time.RFC3339)}
		}
	}

	if d.deps.Inbox != nil {
		stats := d.deps.Inbox.Stats()
		status.Inbox = &stats
	}

	status.LastMaint = d.maint.Last()
	status.Queries = d.deps.Metrics.Snapshot(statusTopTerms)
	return status
}
