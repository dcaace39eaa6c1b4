package index_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/index/indextest"
)

func fastConfig() index.ResilientConfig {
	return index.ResilientConfig{
		MaxRetries:      2,
		InitialDelay:    time.Millisecond,
		MaxDelay:        2 * time.Millisecond,
		BreakerFailures: 10,
		BreakerReset:    time.Minute,
	}
}

// flaky fails GetFile a fixed number of times before delegating.
type flaky struct {
	*indextest.Fake
	failures int
	err      error
	calls    int
}

func (f *flaky) GetFile(ctx context.Context, fileID string) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return f.Fake.GetFile(ctx, fileID)
}

func TestResilient_RetriesRetryableErrors(t *testing.T) {
	// Given: a backend failing twice with a retryable error
	fake := indextest.New()
	id := fake.AddStoredFile([]byte("x"))
	next := &flaky{Fake: fake, failures: 2, err: qaerrors.New(qaerrors.ErrCodeNetworkUnavailable, "502", nil)}

	// When: probing through the decorator
	err := index.NewResilient(next, fastConfig()).GetFile(context.Background(), id)

	// Then: the third attempt succeeds
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
}

func TestResilient_DoesNotRetryNotFound(t *testing.T) {
	fake := indextest.New()
	next := &flaky{Fake: fake}

	err := index.NewResilient(next, fastConfig()).GetFile(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, index.ErrNotFound))
	assert.Equal(t, 1, next.calls)
}

func TestResilient_BreakerOpensOnRetryableFailures(t *testing.T) {
	// Given: a backend that is always down and a breaker of 3
	fake := indextest.New()
	next := &flaky{Fake: fake, failures: 100, err: qaerrors.New(qaerrors.ErrCodeNetworkUnavailable, "down", nil)}
	cfg := fastConfig()
	cfg.MaxRetries = 0
	cfg.BreakerFailures = 3
	r := index.NewResilient(next, cfg)

	// When: calling past the threshold
	for i := 0; i < 3; i++ {
		_ = r.GetFile(context.Background(), "f")
	}
	err := r.GetFile(context.Background(), "f")

	// Then: the call fails fast without reaching the backend
	assert.ErrorIs(t, err, qaerrors.ErrCircuitOpen)
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, qaerrors.StateOpen, r.Breaker().State())
}

func TestResilient_NotFoundDoesNotTripBreaker(t *testing.T) {
	fake := indextest.New()
	cfg := fastConfig()
	cfg.BreakerFailures = 1
	r := index.NewResilient(fake, cfg)

	for i := 0; i < 3; i++ {
		err := r.GetFile(context.Background(), "missing")
		assert.True(t, errors.Is(err, index.ErrNotFound))
	}
	assert.Equal(t, qaerrors.StateClosed, r.Breaker().State())
}

// rewindCheck drains the reader and fails the first upload.
type rewindCheck struct {
	*indextest.Fake
	attempts int
}

func (f *rewindCheck) UploadFile(ctx context.Context, name string, r io.Reader) (string, error) {
	f.attempts++
	if f.attempts == 1 {
		_, _ = io.ReadAll(r)
		return "", qaerrors.New(qaerrors.ErrCodeRateLimited, "slow down", nil)
	}
	return f.Fake.UploadFile(ctx, name, r)
}

func TestResilient_UploadRewindsSeekableContent(t *testing.T) {
	fake := indextest.New()
	next := &rewindCheck{Fake: fake}
	r := index.NewResilient(next, fastConfig())

	id, err := r.UploadFile(context.Background(), "a.pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)

	data, err := fake.GetFileContent(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))
	assert.Equal(t, 2, next.attempts)
}
