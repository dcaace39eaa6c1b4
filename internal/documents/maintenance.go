package documents

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Aman-CERP/pdfqa/internal/document"
	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/pdf"
	"github.com/Aman-CERP/pdfqa/internal/store"
)

// CleanupOrphans deletes the owner's records whose collection file is no
// longer listed in the collection. Records never added to a collection are
// kept. It returns the number of deleted records.
func (s *Service) CleanupOrphans(ctx context.Context, ownerID string) (int, error) {
	owner, err := s.store.GetOwner(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, qaerrors.StoreError("failed to load owner", err)
	}
	if owner.CollectionID == "" {
		return 0, nil
	}

	listed, err := s.client.ListCollectionFiles(ctx, owner.CollectionID)
	if err != nil {
		return 0, err
	}
	present := make(map[string]struct{}, len(listed))
	for _, id := range listed {
		present[id] = struct{}{}
	}

	recs, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, qaerrors.StoreError("failed to list documents", err)
	}

	deleted := 0
	for i := range recs {
		rec := &recs[i]
		if !rec.HasCollectionFile() {
			continue
		}
		if _, ok := present[rec.ExternalCollectionFileID]; ok {
			continue
		}
		if err := s.store.Delete(ctx, rec.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return deleted, qaerrors.StoreError("failed to delete orphaned document", err)
		}
		if s.resolver != nil {
			s.resolver.Forget(rec.ExternalFileID)
		}
		deleted++
		s.logger.Info("orphaned document removed",
			slog.String("document_id", rec.ID),
			slog.String("filename", rec.Filename))
	}
	return deleted, nil
}

// BackfillMetadata counts pages for the owner's records that lack a page
// count, downloading each file from the backend. Per-record failures are
// logged and skipped. It returns the number of updated records.
func (s *Service) BackfillMetadata(ctx context.Context, ownerID string) (int, error) {
	recs, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, qaerrors.StoreError("failed to list documents", err)
	}

	updated := 0
	for i := range recs {
		rec := &recs[i]
		if rec.PageCount != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if err := s.backfill(ctx, rec); err != nil {
			s.logger.Warn("metadata backfill failed",
				slog.String("document_id", rec.ID),
				slog.String("error", err.Error()))
			continue
		}
		updated++
	}
	return updated, nil
}

func (s *Service) backfill(ctx context.Context, rec *document.Record) error {
	content, err := s.client.GetFileContent(ctx, rec.ExternalFileID)
	if err != nil {
		return err
	}
	pages, err := pdf.PageCountBytes(content)
	if err != nil {
		return err
	}

	if err := s.store.SetMetadata(ctx, rec.ID, pages, int64(len(content))); err != nil {
		return err
	}

	s.logger.Debug("metadata backfilled",
		slog.String("document_id", rec.ID),
		slog.Int("pages", pages))
	return nil
}
