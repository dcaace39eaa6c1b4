// Package documents implements the document operations exposed by the
// CLI, the daemon and the MCP server.
package documents

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Aman-CERP/pdfqa/internal/citation"
	"github.com/Aman-CERP/pdfqa/internal/document"
	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/query"
	"github.com/Aman-CERP/pdfqa/internal/reconcile"
	"github.com/Aman-CERP/pdfqa/internal/store"
)

// Config holds service settings.
type Config struct {
	// AssistantID is the backend assistant that answers queries.
	AssistantID string
	// Instructions are appended to the assistant's instructions per query.
	Instructions string
	// MaxUploadBytes caps upload size; <= 0 disables the cap.
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Deps are the collaborators of a Service.
type Deps struct {
	Client     index.Client
	Store      store.Store
	Reconciler *reconcile.Reconciler
	// Resolver is optional; when set, deleted files are evicted from it.
	Resolver *citation.StoreResolver
	Catalog  *query.Catalog
}

// Service orchestrates the store, the index client, the reconciler and
// the citation processor.
type Service struct {
	client     index.Client
	store      store.Store
	reconciler *reconcile.Reconciler
	resolver   *citation.StoreResolver
	citations  *citation.Processor
	catalog    *query.Catalog
	cfg        Config
	logger     *slog.Logger
}

// New creates a Service.
func New(deps Deps, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if deps.Catalog == nil {
		deps.Catalog = query.DefaultCatalog()
	}

	var resolver citation.Resolver
	if deps.Resolver != nil {
		resolver = deps.Resolver
	} else {
		resolver = storeNames{deps.Store}
	}

	return &Service{
		client:     deps.Client,
		store:      deps.Store,
		reconciler: deps.Reconciler,
		resolver:   deps.Resolver,
		citations:  citation.NewProcessor(resolver, cfg.Logger),
		catalog:    deps.Catalog,
		cfg:        cfg,
		logger:     cfg.Logger,
	}
}

// storeNames resolves citation names straight from the store.
type storeNames struct {
	finder citation.FileFinder
}

func (s storeNames) ResolveNames(ctx context.Context, ids []string) (map[string]string, error) {
	recs, err := s.finder.FindByExternalFileIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(recs))
	for _, r := range recs {
		names[r.ExternalFileID] = r.Filename
	}
	return names, nil
}

// Models returns the model catalog.
func (s *Service) Models() *query.Catalog {
	return s.catalog
}

// EnsureOwner registers the owner or refreshes its name.
func (s *Service) EnsureOwner(ctx context.Context, id, name string) error {
	if id == "" {
		return qaerrors.ValidationError("owner id is required", nil)
	}
	if name == "" {
		name = id
	}
	if err := s.store.UpsertOwner(ctx, &document.Owner{ID: id, Name: name}); err != nil {
		return qaerrors.StoreError("failed to register owner", err)
	}
	return nil
}

// ListDocuments returns the owner's records, oldest first.
func (s *Service) ListDocuments(ctx context.Context, ownerID string) ([]document.Record, error) {
	recs, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, qaerrors.StoreError("failed to list documents", err)
	}
	if recs == nil {
		recs = []document.Record{}
	}
	return recs, nil
}

// GetStatus reconciles the document once and returns its status.
func (s *Service) GetStatus(ctx context.Context, ownerID, documentID string) (document.Status, error) {
	rec, err := s.owned(ctx, ownerID, documentID)
	if err != nil {
		return "", err
	}
	return s.reconciler.Reconcile(ctx, rec)
}

// ToggleActive flips the document's inclusion in query scope.
func (s *Service) ToggleActive(ctx context.Context, ownerID, documentID string) (*document.Record, error) {
	if _, err := s.owned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	rec, err := s.store.ToggleActive(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, qaerrors.NotFoundError(documentID)
		}
		return nil, qaerrors.StoreError("failed to update document", err)
	}

	s.logger.Info("document scope toggled",
		slog.String("document_id", rec.ID),
		slog.Bool("active", rec.IsActive))
	return rec, nil
}

// owned loads a record and enforces that ownerID owns it.
func (s *Service) owned(ctx context.Context, ownerID, documentID string) (*document.Record, error) {
	rec, err := s.store.Get(ctx, documentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, qaerrors.NotFoundError(documentID)
	}
	if err != nil {
		return nil, qaerrors.StoreError("failed to load document", err)
	}
	if rec.OwnerID != ownerID {
		return nil, qaerrors.ForbiddenError(documentID)
	}
	return rec, nil
}
