package index

import (
	"context"
	"io"
	"log/slog"
	"time"

	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
)

// ResilientConfig configures retries and the circuit breaker.
type ResilientConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BreakerFailures int
	BreakerReset    time.Duration
}

// DefaultResilientConfig mirrors the default retry policy and breaker.
func DefaultResilientConfig() ResilientConfig {
	rc := qaerrors.DefaultRetryConfig()
	return ResilientConfig{
		MaxRetries:      rc.MaxRetries,
		InitialDelay:    rc.InitialDelay,
		MaxDelay:        rc.MaxDelay,
		BreakerFailures: 5,
		BreakerReset:    30 * time.Second,
	}
}

// Resilient decorates a Client with retry on retryable errors and a shared
// circuit breaker. Only retryable errors trip the breaker, so a 404 never
// opens it.
type Resilient struct {
	next    Client
	retry   qaerrors.RetryConfig
	breaker *qaerrors.CircuitBreaker
}

var _ Client = (*Resilient)(nil)

// NewResilient wraps next.
func NewResilient(next Client, cfg ResilientConfig) *Resilient {
	retry := qaerrors.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	if cfg.InitialDelay > 0 {
		retry.InitialDelay = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		retry.MaxDelay = cfg.MaxDelay
	}

	var opts []qaerrors.CircuitBreakerOption
	if cfg.BreakerFailures > 0 {
		opts = append(opts, qaerrors.WithMaxFailures(cfg.BreakerFailures))
	}
	if cfg.BreakerReset > 0 {
		opts = append(opts, qaerrors.WithResetTimeout(cfg.BreakerReset))
	}
	opts = append(opts, qaerrors.WithFailurePredicate(qaerrors.IsRetryable))

	return &Resilient{
		next:    next,
		retry:   retry,
		breaker: qaerrors.NewCircuitBreaker("index", opts...),
	}
}

// Breaker exposes the circuit breaker for status reporting.
func (r *Resilient) Breaker() *qaerrors.CircuitBreaker {
	return r.breaker
}

func call[T any](ctx context.Context, r *Resilient, op string, fn func() (T, error)) (T, error) {
	attempt := 0
	return qaerrors.RetryWithResult(ctx, r.retry, func() (T, error) {
		attempt++
		if attempt > 1 {
			slog.Debug("retrying index call", slog.String("op", op), slog.Int("attempt", attempt))
		}
		return qaerrors.CircuitExecute(r.breaker, fn)
	})
}

func callErr(ctx context.Context, r *Resilient, op string, fn func() error) error {
	_, err := call(ctx, r, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (r *Resilient) CreateCollection(ctx context.Context, label string) (string, error) {
	return call(ctx, r, "create_collection", func() (string, error) {
		return r.next.CreateCollection(ctx, label)
	})
}

func (r *Resilient) AddFile(ctx context.Context, collectionID, fileID string) (string, error) {
	return call(ctx, r, "add_file", func() (string, error) {
		return r.next.AddFile(ctx, collectionID, fileID)
	})
}

func (r *Resilient) GetFile(ctx context.Context, fileID string) error {
	return callErr(ctx, r, "get_file", func() error {
		return r.next.GetFile(ctx, fileID)
	})
}

func (r *Resilient) GetCollectionFileStatus(ctx context.Context, collectionID, collectionFileID string) (FileStatus, error) {
	return call(ctx, r, "get_collection_file", func() (FileStatus, error) {
		return r.next.GetCollectionFileStatus(ctx, collectionID, collectionFileID)
	})
}

func (r *Resilient) DeleteFile(ctx context.Context, fileID string) error {
	return callErr(ctx, r, "delete_file", func() error {
		return r.next.DeleteFile(ctx, fileID)
	})
}

func (r *Resilient) DeleteCollectionFile(ctx context.Context, collectionID, collectionFileID string) error {
	return callErr(ctx, r, "delete_collection_file", func() error {
		return r.next.DeleteCollectionFile(ctx, collectionID, collectionFileID)
	})
}

// SubmitJob is not retried: a retry after a partial success would start a
// second run.
func (r *Resilient) SubmitJob(ctx context.Context, req JobRequest) (JobHandle, error) {
	return qaerrors.CircuitExecute(r.breaker, func() (JobHandle, error) {
		return r.next.SubmitJob(ctx, req)
	})
}

func (r *Resilient) GetJobStatus(ctx context.Context, h JobHandle) (JobStatus, error) {
	return call(ctx, r, "get_job_status", func() (JobStatus, error) {
		return r.next.GetJobStatus(ctx, h)
	})
}

func (r *Resilient) GetJobMessages(ctx context.Context, h JobHandle) ([]Message, error) {
	return call(ctx, r, "get_job_messages", func() ([]Message, error) {
		return r.next.GetJobMessages(ctx, h)
	})
}

// UploadFile retries only when the content can be rewound.
func (r *Resilient) UploadFile(ctx context.Context, name string, content io.Reader) (string, error) {
	seeker, ok := content.(io.Seeker)
	if !ok {
		return qaerrors.CircuitExecute(r.breaker, func() (string, error) {
			return r.next.UploadFile(ctx, name, content)
		})
	}

	return call(ctx, r, "upload_file", func() (string, error) {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
		return r.next.UploadFile(ctx, name, content)
	})
}

func (r *Resilient) GetFileContent(ctx context.Context, fileID string) ([]byte, error) {
	return call(ctx, r, "get_file_content", func() ([]byte, error) {
		return r.next.GetFileContent(ctx, fileID)
	})
}

func (r *Resilient) ListCollectionFiles(ctx context.Context, collectionID string) ([]string, error) {
	return call(ctx, r, "list_collection_files", func() ([]string, error) {
		return r.next.ListCollectionFiles(ctx, collectionID)
	})
}

func (r *Resilient) LinkAssistant(ctx context.Context, assistantID, collectionID string) error {
	return callErr(ctx, r, "link_assistant", func() error {
		return r.next.LinkAssistant(ctx, assistantID, collectionID)
	})
}
