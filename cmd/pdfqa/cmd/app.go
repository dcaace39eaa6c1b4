package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Aman-CERP/pdfqa/internal/citation"
	"github.com/Aman-CERP/pdfqa/internal/config"
	"github.com/Aman-CERP/pdfqa/internal/daemon"
	"github.com/Aman-CERP/pdfqa/internal/document"
	"github.com/Aman-CERP/pdfqa/internal/documents"
	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/logging"
	"github.com/Aman-CERP/pdfqa/internal/query"
	"github.com/Aman-CERP/pdfqa/internal/reconcile"
	"github.com/Aman-CERP/pdfqa/internal/store"
)

// newIndexClient builds the raw backend client. Tests replace it.
var newIndexClient = func(cfg *config.Config) (index.Client, error) {
	return index.NewOpenAI(index.Config{
		BaseURL: cfg.Index.BaseURL,
		APIKey:  cfg.Index.APIKey,
		Timeout: cfg.Index.Timeout,
	})
}

// loadConfig loads configuration for the working directory.
func loadConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(wd)
	if err != nil {
		return nil, qaerrors.ConfigError("failed to load configuration", err).
			WithSuggestion("Run 'pdfqa config show' to inspect the effective configuration")
	}
	return cfg, nil
}

// setupLogging installs file logging from cfg as the default logger and
// returns it. stderr mirrors log lines to stderr. With --debug the logger
// set up by the root command is kept. cleanup restores the previous
// default.
func setupLogging(cfg *config.Config, stderr bool) (*slog.Logger, func(), error) {
	if debugMode {
		return slog.Default(), func() {}, nil
	}

	lc := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: stderr || cfg.Logging.Stderr,
	}
	if lc.FilePath == "" {
		lc.FilePath = logging.DefaultLogPath()
	}

	prev := slog.Default()
	var closeLog func()
	if lc.WriteToStderr {
		logger, cleanup, err := logging.Setup(lc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to setup logging: %w", err)
		}
		slog.SetDefault(logger)
		closeLog = cleanup
	} else {
		cleanup, err := logging.SetupQuiet(lc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to setup logging: %w", err)
		}
		closeLog = cleanup
	}

	return slog.Default(), func() {
		slog.SetDefault(prev)
		closeLog()
	}, nil
}

// app is the in-process service stack built from the configuration.
type app struct {
	cfg     *config.Config
	store   store.Store
	service *documents.Service
	sweeper *reconcile.Sweeper
	breaker *qaerrors.CircuitBreaker
	logger  *slog.Logger
}

// newApp wires the store, the resilient index client, the reconciler, the
// sweeper and the document service, and registers the configured owner.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := newIndexClient(cfg)
	if err != nil {
		return nil, err
	}

	rc := index.DefaultResilientConfig()
	rc.MaxRetries = cfg.Index.MaxRetries
	if cfg.Index.BreakerFailures > 0 {
		rc.BreakerFailures = cfg.Index.BreakerFailures
	}
	if cfg.Index.BreakerReset > 0 {
		rc.BreakerReset = cfg.Index.BreakerReset
	}
	client := index.NewResilient(raw, rc)

	st, err := store.Open(ctx, storeOptions(cfg))
	if err != nil {
		return nil, qaerrors.StoreError("failed to open document store", err)
	}

	rec := reconcile.New(client, st, st, reconcile.Config{
		ForceReadyAfter: cfg.Reconcile.ForceReadyAfter,
		Logger:          logger,
	})
	sweeper := reconcile.NewSweeper(rec, st, reconcile.SweeperConfig{
		Interval:    cfg.Reconcile.SweepInterval,
		Concurrency: cfg.Reconcile.Concurrency,
		LockPath:    cfg.SweepLockPath(),
		Logger:      logger,
	})

	resolver, err := citation.NewStoreResolver(st, cfg.Citation.CacheSize)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create citation resolver: %w", err)
	}

	catalog := query.DefaultCatalog()
	if cfg.Query.DefaultModel != "" {
		if err := catalog.SetDefault(cfg.Query.DefaultModel); err != nil {
			logger.Warn("ignoring unknown default model",
				slog.String("model", cfg.Query.DefaultModel),
				slog.String("error", err.Error()))
		}
	}

	svc := documents.New(documents.Deps{
		Client:     client,
		Store:      st,
		Reconciler: rec,
		Resolver:   resolver,
		Catalog:    catalog,
	}, documents.Config{
		AssistantID:    cfg.Index.AssistantID,
		Instructions:   cfg.Query.Instructions,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logger,
	})

	if err := svc.EnsureOwner(ctx, cfg.Owner.ID, cfg.Owner.Name); err != nil {
		_ = st.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		store:   st,
		service: svc,
		sweeper: sweeper,
		breaker: client.Breaker(),
		logger:  logger,
	}, nil
}

func storeOptions(cfg *config.Config) store.Options {
	return store.Options{
		Driver:        cfg.Store.Driver,
		Path:          cfg.StorePath(),
		MongoURI:      cfg.Store.MongoURI,
		MongoDatabase: cfg.Store.MongoDatabase,
	}
}

func (a *app) poller() *query.Poller {
	return query.NewPoller(pollConfig(a.cfg), a.logger)
}

func (a *app) Close() error {
	return a.store.Close()
}

func pollConfig(cfg *config.Config) query.PollConfig {
	return query.PollConfig{
		MaxAttempts: cfg.Query.PollMaxAttempts,
		BaseDelay:   cfg.Query.PollBaseDelay,
		Step:        cfg.Query.PollStep,
		MaxDelay:    cfg.Query.PollMaxDelay,
	}
}

// backend is what the document commands need. It is served by the daemon
// when one is running and by an in-process stack otherwise.
type backend interface {
	ListDocuments(ctx context.Context) ([]document.Record, error)
	DocumentStatus(ctx context.Context, documentID string) (document.Status, error)
	ToggleDocument(ctx context.Context, documentID string) (bool, error)
	DeleteDocument(ctx context.Context, documentID string) error
	UploadDocument(ctx context.Context, path, filename string) (*document.Record, error)
	SubmitQuery(ctx context.Context, text, model string) (index.JobHandle, error)
	QueryResult(ctx context.Context, h index.JobHandle) (query.Result, error)
	Models(ctx context.Context) ([]query.Model, error)
	Sweep(ctx context.Context) (reconcile.SweepResult, error)
	Close() error
}

// openBackend prefers a running daemon and falls back to an in-process
// stack.
func openBackend(ctx context.Context, cfg *config.Config) (backend, error) {
	client := daemon.NewClient(daemon.FromConfig(cfg))
	if client.IsRunning() {
		slog.Debug("using daemon", slog.String("socket", cfg.SocketPath()))
		return &remoteBackend{client: client}, nil
	}

	a, err := newApp(ctx, cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	return &localBackend{app: a}, nil
}

type remoteBackend struct {
	client *daemon.Client
}

func (b *remoteBackend) ListDocuments(ctx context.Context) ([]document.Record, error) {
	return b.client.ListDocuments(ctx)
}

func (b *remoteBackend) DocumentStatus(ctx context.Context, id string) (document.Status, error) {
	return b.client.DocumentStatus(ctx, id)
}

func (b *remoteBackend) ToggleDocument(ctx context.Context, id string) (bool, error) {
	res, err := b.client.ToggleDocument(ctx, id)
	if err != nil {
		return false, err
	}
	return res.IsActive, nil
}

func (b *remoteBackend) DeleteDocument(ctx context.Context, id string) error {
	return b.client.DeleteDocument(ctx, id)
}

func (b *remoteBackend) UploadDocument(ctx context.Context, path, filename string) (*document.Record, error) {
	return b.client.UploadDocument(ctx, daemon.UploadParams{Path: path, Filename: filename})
}

func (b *remoteBackend) SubmitQuery(ctx context.Context, text, model string) (index.JobHandle, error) {
	return b.client.SubmitQuery(ctx, text, model)
}

func (b *remoteBackend) QueryResult(ctx context.Context, h index.JobHandle) (query.Result, error) {
	return b.client.QueryResult(ctx, h)
}

func (b *remoteBackend) Models(ctx context.Context) ([]query.Model, error) {
	return b.client.Models(ctx)
}

func (b *remoteBackend) Sweep(ctx context.Context) (reconcile.SweepResult, error) {
	return b.client.Sweep(ctx)
}

func (b *remoteBackend) Close() error { return nil }

type localBackend struct {
	app *app
}

func (b *localBackend) owner() string { return b.app.cfg.Owner.ID }

func (b *localBackend) ListDocuments(ctx context.Context) ([]document.Record, error) {
	return b.app.service.ListDocuments(ctx, b.owner())
}

func (b *localBackend) DocumentStatus(ctx context.Context, id string) (document.Status, error) {
	return b.app.service.GetStatus(ctx, b.owner(), id)
}

func (b *localBackend) ToggleDocument(ctx context.Context, id string) (bool, error) {
	rec, err := b.app.service.ToggleActive(ctx, b.owner(), id)
	if err != nil {
		return false, err
	}
	return rec.IsActive, nil
}

func (b *localBackend) DeleteDocument(ctx context.Context, id string) error {
	return b.app.service.Delete(ctx, b.owner(), id)
}

func (b *localBackend) UploadDocument(ctx context.Context, path, filename string) (*document.Record, error) {
	return b.app.service.Upload(ctx, b.owner(), documents.UploadRequest{Path: path, Filename: filename})
}

func (b *localBackend) SubmitQuery(ctx context.Context, text, model string) (index.JobHandle, error) {
	return b.app.service.SubmitQuery(ctx, b.owner(), text, model)
}

func (b *localBackend) QueryResult(ctx context.Context, h index.JobHandle) (query.Result, error) {
	return b.app.service.GetQueryResult(ctx, h)
}

func (b *localBackend) Models(_ context.Context) ([]query.Model, error) {
	return b.app.service.Models().Models(), nil
}

func (b *localBackend) Sweep(ctx context.Context) (reconcile.SweepResult, error) {
	return b.app.sweeper.RunOnce(ctx)
}

func (b *localBackend) Close() error {
	return b.app.Close()
}

// withBackend loads config, opens a backend and closes it after fn.
func withBackend(ctx context.Context, fn func(cfg *config.Config, b backend) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	_, cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			slog.Warn("failed to close backend", slog.String("error", cerr.Error()))
		}
	}()
	return fn(cfg, b)
}

// withApp is withBackend for commands that always run in-process.
func withApp(ctx context.Context, fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("failed to close store", slog.String("error", cerr.Error()))
		}
	}()
	return fn(a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
