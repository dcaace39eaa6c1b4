package documents

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/query"
	"github.com/Aman-CERP/pdfqa/internal/store"
)

// MaxQueryLength is the longest accepted query text, in characters.
const MaxQueryLength = 4000

// SubmitQuery scopes the question to the owner's active documents and
// starts a backend job. Empty or unknown model ids use the default model.
func (s *Service) SubmitQuery(ctx context.Context, ownerID, text, modelID string) (index.JobHandle, error) {
	if strings.TrimSpace(text) == "" {
		return index.JobHandle{}, qaerrors.New(qaerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if utf8.RuneCountInString(text) > MaxQueryLength {
		return index.JobHandle{}, qaerrors.New(qaerrors.ErrCodeQueryTooLong, "query is too long", nil).
			WithSuggestion("Shorten the question and try again")
	}

	owner, err := s.store.GetOwner(ctx, ownerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return index.JobHandle{}, qaerrors.StoreError("failed to load owner", err)
	}
	if owner == nil || owner.CollectionID == "" {
		return index.JobHandle{}, qaerrors.ValidationError("no documents uploaded yet", nil).
			WithSuggestion("Upload a PDF before asking questions")
	}

	docs, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return index.JobHandle{}, qaerrors.StoreError("failed to list documents", err)
	}

	modelID = s.catalog.Resolve(modelID)
	model, effort := query.RunOptions(modelID)

	h, err := s.client.SubmitJob(ctx, index.JobRequest{
		CollectionID:    owner.CollectionID,
		AssistantID:     s.cfg.AssistantID,
		Query:           query.BuildQuery(text, docs),
		Instructions:    s.cfg.Instructions,
		Model:           model,
		ReasoningEffort: effort,
	})
	if err != nil {
		return index.JobHandle{}, qaerrors.New(qaerrors.ErrCodeJobFailed, "failed to submit query", err)
	}

	s.logger.Info("query submitted",
		slog.String("owner_id", ownerID),
		slog.String("model", modelID),
		slog.String("run_id", h.RunID))
	return h, nil
}

// GetQueryResult reads the state of a job and, once completed, its
// rendered transcript.
func (s *Service) GetQueryResult(ctx context.Context, h index.JobHandle) (query.Result, error) {
	if h.ThreadID == "" || h.RunID == "" {
		return query.Result{}, qaerrors.ValidationError("thread and run ids are required", nil)
	}

	status, err := s.client.GetJobStatus(ctx, h)
	if err != nil {
		return query.Result{}, err
	}

	switch {
	case status == index.JobCompleted:
		msgs, err := s.client.GetJobMessages(ctx, h)
		if err != nil {
			return query.Result{}, err
		}
		return query.Result{
			State:     query.StateCompleted,
			JobStatus: status,
			Messages:  query.MapMessages(ctx, s.citations, msgs),
		}, nil
	case status.IsFailure():
		return query.Result{
			State:     query.StateFailed,
			JobStatus: status,
			Error:     query.FailedText,
		}, nil
	default:
		return query.Result{State: query.StatePending, JobStatus: status}, nil
	}
}

// Ask submits a query and polls until it settles.
func (s *Service) Ask(ctx context.Context, ownerID, text, modelID string, poller *query.Poller, progress func(attempt int, r query.Result)) (query.Outcome, error) {
	h, err := s.SubmitQuery(ctx, ownerID, text, modelID)
	if err != nil {
		return query.Outcome{}, err
	}
	return poller.Wait(ctx, h, s.GetQueryResult, progress)
}
