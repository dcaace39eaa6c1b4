// Package reconcile resolves the ingestion status of documents whose
// indexing happens asynchronously in the remote backend.
//
// A record starts as processing and moves at most once to ready or failed.
// Reconcile is the only writer of the status field and is invoked from
// three places: the optimistic probe at upload time, client status polls,
// and the background Sweeper.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Aman-CERP/pdfqa/internal/document"
	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/store"
)

// DefaultForceReadyAfter is how long a record may stay indeterminate before
// it is assumed ready.
const DefaultForceReadyAfter = 5 * time.Minute

// Config configures a Reconciler.
type Config struct {
	ForceReadyAfter time.Duration
	// Now is the clock; nil uses time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Reconciler probes the backend and persists status transitions.
type Reconciler struct {
	client          index.Client
	docs            store.DocumentStore
	owners          store.OwnerStore
	forceReadyAfter time.Duration
	now             func() time.Time
	logger          *slog.Logger
}

// New creates a Reconciler.
func New(client index.Client, docs store.DocumentStore, owners store.OwnerStore, cfg Config) *Reconciler {
	if cfg.ForceReadyAfter <= 0 {
		cfg.ForceReadyAfter = DefaultForceReadyAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reconciler{
		client:          client,
		docs:            docs,
		owners:          owners,
		forceReadyAfter: cfg.ForceReadyAfter,
		now:             cfg.Now,
		logger:          cfg.Logger,
	}
}

// Reconcile resolves rec's status and persists any transition. rec.Status
// is updated in place. Probe failures never surface; the error is non-nil
// only when the store fails.
func (r *Reconciler) Reconcile(ctx context.Context, rec *document.Record) (document.Status, error) {
	if rec.Status != document.StatusProcessing {
		return rec.Status, nil
	}

	next := r.probe(ctx, rec)

	if next == document.StatusProcessing && rec.Age(r.now()) > r.forceReadyAfter {
		r.logger.Info("forcing document ready after timeout",
			slog.String("document_id", rec.ID),
			slog.Duration("age", rec.Age(r.now())))
		next = document.StatusReady
	}

	if next == document.StatusProcessing {
		return next, nil
	}

	return r.persist(ctx, rec, next)
}

// probe asks the backend for the record's state. It returns processing
// whenever the answer is indeterminate.
func (r *Reconciler) probe(ctx context.Context, rec *document.Record) document.Status {
	log := r.logger.With(slog.String("document_id", rec.ID), slog.String("file_id", rec.ExternalFileID))

	if err := r.client.GetFile(ctx, rec.ExternalFileID); err != nil {
		log.Debug("file probe failed", slog.String("error", err.Error()))
		return document.StatusProcessing
	}

	if !rec.HasCollectionFile() {
		return document.StatusProcessing
	}

	collectionID, err := r.collectionFor(ctx, rec.OwnerID)
	if err != nil {
		log.Debug("collection lookup failed", slog.String("error", err.Error()))
		return document.StatusProcessing
	}
	if collectionID == "" {
		return document.StatusProcessing
	}

	status, err := r.client.GetCollectionFileStatus(ctx, collectionID, rec.ExternalCollectionFileID)
	if err != nil {
		log.Debug("collection file probe failed", slog.String("error", err.Error()))
		return document.StatusProcessing
	}

	switch status {
	// in_progress maps to ready.
	case index.FileStatusCompleted, index.FileStatusInProgress:
		return document.StatusReady
	case index.FileStatusFailed:
		return document.StatusFailed
	default:
		log.Debug("indeterminate collection file status", slog.String("status", string(status)))
		return document.StatusProcessing
	}
}

func (r *Reconciler) collectionFor(ctx context.Context, ownerID string) (string, error) {
	owner, err := r.owners.GetOwner(ctx, ownerID)
	if err != nil {
		return "", err
	}
	return owner.CollectionID, nil
}

// persist writes processing -> next conditionally. A lost race returns the
// status the winner stored; a vanished record returns next.
func (r *Reconciler) persist(ctx context.Context, rec *document.Record, next document.Status) (document.Status, error) {
	applied, err := r.docs.UpdateStatus(ctx, rec.ID, document.StatusProcessing, next)
	if errors.Is(err, store.ErrNotFound) {
		rec.Status = next
		return next, nil
	}
	if err != nil {
		return rec.Status, qaerrors.New(qaerrors.ErrCodeStoreFailed, "failed to persist document status", err).
			WithDetail("document_id", rec.ID)
	}

	if applied {
		r.logger.Info("document status updated",
			slog.String("document_id", rec.ID),
			slog.String("status", string(next)))
		rec.Status = next
		return next, nil
	}

	current, err := r.docs.Get(ctx, rec.ID)
	if errors.Is(err, store.ErrNotFound) {
		rec.Status = next
		return next, nil
	}
	if err != nil {
		return rec.Status, qaerrors.New(qaerrors.ErrCodeStoreFailed, "failed to re-read document status", err).
			WithDetail("document_id", rec.ID)
	}

	rec.Status = current.Status
	return current.Status, nil
}
