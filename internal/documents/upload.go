package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/pdfqa/internal/document"
	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/pdf"
	"github.com/Aman-CERP/pdfqa/internal/store"
)

// UploadRequest names a local PDF to upload.
type UploadRequest struct {
	// Path is the local file.
	Path string `json:"path"`
	// Filename is the display name; empty uses the base name of Path.
	Filename string `json:"filename,omitempty"`
}

// Upload validates a PDF, sends it to the backend, adds it to the owner's
// collection and records it as processing. Adding to the collection,
// linking the assistant and the first status probe are best-effort.
func (s *Service) Upload(ctx context.Context, ownerID string, req UploadRequest) (*document.Record, error) {
	name := req.Filename
	if name == "" {
		name = filepath.Base(req.Path)
	}
	if !pdf.HasPDFExtension(name) {
		return nil, qaerrors.New(qaerrors.ErrCodeUnsupportedType, "only .pdf files are supported", nil).
			WithDetail("filename", name)
	}

	info, err := pdf.Inspect(req.Path, s.cfg.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	collectionID, err := s.ensureCollection(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return nil, qaerrors.New(qaerrors.ErrCodeFileNotFound, "failed to open file", err).WithDetail("path", req.Path)
	}
	defer f.Close()

	fileID, err := s.client.UploadFile(ctx, name, f)
	if err != nil {
		return nil, qaerrors.New(qaerrors.ErrCodeUploadFailed, "failed to upload file", err).WithDetail("filename", name)
	}

	log := s.logger.With(slog.String("file_id", fileID), slog.String("filename", name))

	collectionFileID, err := s.client.AddFile(ctx, collectionID, fileID)
	if err != nil {
		log.Warn("failed to add file to collection, status will resolve by timeout",
			slog.String("collection_id", collectionID),
			slog.String("error", err.Error()))
		collectionFileID = ""
	}

	rec := &document.Record{
		OwnerID:                  ownerID,
		Filename:                 name,
		ExternalFileID:           fileID,
		ExternalCollectionFileID: collectionFileID,
		Status:                   document.StatusProcessing,
		IsActive:                 true,
		PageCount:                info.Pages,
		SizeBytes:                document.Int64Ptr(info.Size),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		if delErr := s.client.DeleteFile(ctx, fileID); delErr != nil {
			log.Warn("failed to remove uploaded file after store error", slog.String("error", delErr.Error()))
		}
		return nil, qaerrors.StoreError("failed to save document", err)
	}

	if s.cfg.AssistantID != "" {
		if err := s.client.LinkAssistant(ctx, s.cfg.AssistantID, collectionID); err != nil {
			log.Warn("failed to link assistant to collection", slog.String("error", err.Error()))
		}
	}

	if _, err := s.reconciler.Reconcile(ctx, rec); err != nil {
		log.Warn("initial status check failed", slog.String("error", err.Error()))
	}

	log.Info("document uploaded",
		slog.String("document_id", rec.ID),
		slog.String("status", string(rec.Status)))
	return rec, nil
}

// ensureCollection returns the owner's collection, creating it on first
// use. When two uploads race, the first stored id wins and the loser's
// collection is left unused.
func (s *Service) ensureCollection(ctx context.Context, ownerID string) (string, error) {
	owner, err := s.store.GetOwner(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		owner = &document.Owner{ID: ownerID, Name: ownerID}
		if err := s.store.UpsertOwner(ctx, owner); err != nil {
			return "", qaerrors.StoreError("failed to register owner", err)
		}
	} else if err != nil {
		return "", qaerrors.StoreError("failed to load owner", err)
	}
	if owner.CollectionID != "" {
		return owner.CollectionID, nil
	}

	id, err := s.client.CreateCollection(ctx, owner.CollectionLabel())
	if err != nil {
		return "", qaerrors.New(qaerrors.ErrCodeCollectionFailed, "failed to create collection", err)
	}

	applied, err := s.store.SetCollection(ctx, ownerID, id)
	if err != nil {
		return "", qaerrors.StoreError("failed to save collection", err)
	}
	if applied {
		s.logger.Info("collection created", slog.String("owner_id", ownerID), slog.String("collection_id", id))
		return id, nil
	}

	owner, err = s.store.GetOwner(ctx, ownerID)
	if err != nil {
		return "", qaerrors.StoreError("failed to load owner", err)
	}
	s.logger.Warn("collection created concurrently, using the stored one",
		slog.String("owner_id", ownerID),
		slog.String("unused_collection_id", id),
		slog.String("collection_id", owner.CollectionID))
	return owner.CollectionID, nil
}

// Delete removes a document. Backend cleanup is best-effort; the record is
// always removed.
func (s *Service) Delete(ctx context.Context, ownerID, documentID string) error {
	rec, err := s.owned(ctx, ownerID, documentID)
	if err != nil {
		return err
	}

	log := s.logger.With(slog.String("document_id", rec.ID), slog.String("file_id", rec.ExternalFileID))

	if err := s.client.DeleteFile(ctx, rec.ExternalFileID); err != nil {
		log.Warn("failed to delete backend file", slog.String("error", err.Error()))
	}

	if rec.HasCollectionFile() {
		owner, err := s.store.GetOwner(ctx, ownerID)
		switch {
		case err != nil:
			log.Warn("failed to load owner for collection cleanup", slog.String("error", err.Error()))
		case owner.CollectionID != "":
			if err := s.client.DeleteCollectionFile(ctx, owner.CollectionID, rec.ExternalCollectionFileID); err != nil {
				log.Warn("failed to delete collection file", slog.String("error", err.Error()))
			}
		}
	}

	if err := s.store.Delete(ctx, rec.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return qaerrors.StoreError(fmt.Sprintf("failed to delete document %s", rec.ID), err)
	}
	if s.resolver != nil {
		s.resolver.Forget(rec.ExternalFileID)
	}

	log.Info("document deleted")
	return nil
}
