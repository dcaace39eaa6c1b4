package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfqa/internal/document"
	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/index/indextest"
	"github.com/Aman-CERP/pdfqa/internal/store"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// countingStore counts status writes and can inject failures.
type countingStore struct {
	store.Store

	mu        sync.Mutex
	writes    int
	failIDs   map[string]bool
	beforeSet func(id string)
}

func (c *countingStore) UpdateStatus(ctx context.Context, id string, from, to document.Status) (bool, error) {
	c.mu.Lock()
	c.writes++
	fail := c.failIDs[id]
	hook := c.beforeSet
	c.mu.Unlock()

	if fail {
		return false, errors.New("disk full")
	}
	if hook != nil {
		hook(id)
	}
	return c.Store.UpdateStatus(ctx, id, from, to)
}

func (c *countingStore) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

type fixture struct {
	fake  *indextest.Fake
	store *countingStore
	now   time.Time
	rec   *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.UpsertOwner(context.Background(), &document.Owner{ID: "u1", Name: "Ada"}))
	_, err = s.SetCollection(context.Background(), "u1", "vs-1")
	require.NoError(t, err)

	f := &fixture{
		fake:  indextest.New(),
		store: &countingStore{Store: s, failIDs: map[string]bool{}},
		now:   t0,
	}
	f.rec = New(f.fake, f.store, f.store, Config{Now: func() time.Time { return f.now }})
	return f
}

// addRecord creates a processing record whose file and collection file
// exist in the fake with the given status.
func (f *fixture) addRecord(t *testing.T, status index.FileStatus) *document.Record {
	t.Helper()
	fileID := f.fake.AddStoredFile([]byte("%PDF-1.4"))
	f.fake.SetFileStatus("vs-1", fileID, status)

	rec := &document.Record{
		OwnerID:                  "u1",
		Filename:                 "a.pdf",
		ExternalFileID:           fileID,
		ExternalCollectionFileID: fileID,
		IsActive:                 true,
		CreatedAt:                t0,
	}
	require.NoError(t, f.store.Create(context.Background(), rec))
	return rec
}

func (f *fixture) stored(t *testing.T, id string) document.Status {
	t.Helper()
	got, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return got.Status
}

func TestReconcile_TerminalRecordIsUntouched(t *testing.T) {
	for _, status := range []document.Status{document.StatusReady, document.StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			// Given: a terminal record
			f := newFixture(t)
			rec := &document.Record{ID: "d1", Status: status, ExternalFileID: "file-x", CreatedAt: t0}

			// When: reconciling
			got, err := f.rec.Reconcile(context.Background(), rec)

			// Then: no probe and no write
			require.NoError(t, err)
			assert.Equal(t, status, got)
			assert.Zero(t, f.fake.TotalCalls())
			assert.Zero(t, f.store.Writes())
		})
	}
}

func TestReconcile_MapsCollectionFileStatus(t *testing.T) {
	tests := []struct {
		name   string
		status index.FileStatus
		want   document.Status
		writes int
	}{
		{name: "completed", status: index.FileStatusCompleted, want: document.StatusReady, writes: 1},
		{name: "in progress counts as ready", status: index.FileStatusInProgress, want: document.StatusReady, writes: 1},
		{name: "failed", status: index.FileStatusFailed, want: document.StatusFailed, writes: 1},
		{name: "cancelled is indeterminate", status: index.FileStatusCancelled, want: document.StatusProcessing},
		{name: "unknown is indeterminate", status: "queued", want: document.StatusProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.addRecord(t, tt.status)
			f.now = t0.Add(time.Minute)

			got, err := f.rec.Reconcile(context.Background(), rec)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, rec.Status)
			assert.Equal(t, tt.want, f.stored(t, rec.ID))
			assert.Equal(t, tt.writes, f.store.Writes())
		})
	}
}

func TestReconcile_ForcedReadyAfterTimeout(t *testing.T) {
	// Given: the file probe keeps failing
	f := newFixture(t)
	rec := f.addRecord(t, index.FileStatusInProgress)
	f.fake.GetFileErr = qaerrors.New(qaerrors.ErrCodeNetworkUnavailable, "down", nil)

	// When: reconciling at t0+4m
	f.now = t0.Add(4 * time.Minute)
	got, err := f.rec.Reconcile(context.Background(), rec)

	// Then: still processing, nothing written
	require.NoError(t, err)
	assert.Equal(t, document.StatusProcessing, got)
	assert.Zero(t, f.store.Writes())

	// When: reconciling at t0+6m
	f.now = t0.Add(6 * time.Minute)
	got, err = f.rec.Reconcile(context.Background(), rec)

	// Then: forced ready
	require.NoError(t, err)
	assert.Equal(t, document.StatusReady, got)
	assert.Equal(t, document.StatusReady, f.stored(t, rec.ID))
}

func TestReconcile_IndeterminateStatusScenario(t *testing.T) {
	// Given: the collection reports a status outside the mapping
	f := newFixture(t)
	rec := f.addRecord(t, index.FileStatusCancelled)

	f.now = t0.Add(4 * time.Minute)
	got, err := f.rec.Reconcile(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, document.StatusProcessing, got)

	f.now = t0.Add(6 * time.Minute)
	got, err = f.rec.Reconcile(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, document.StatusReady, got)
}

func TestReconcile_WithoutCollectionFileOnlyForced(t *testing.T) {
	f := newFixture(t)
	rec := f.addRecord(t, index.FileStatusCompleted)
	rec.ExternalCollectionFileID = ""

	f.now = t0.Add(time.Minute)
	got, err := f.rec.Reconcile(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, document.StatusProcessing, got)
	assert.Zero(t, f.fake.Calls("GetCollectionFileStatus"))

	f.now = t0.Add(5*time.Minute + time.Second)
	got, err = f.rec.Reconcile(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, document.StatusReady, got)
}

func TestReconcile_CollectionProbeErrorIsIndeterminate(t *testing.T) {
	f := newFixture(t)
	rec := f.addRecord(t, index.FileStatusCompleted)
	f.fake.StatusErr = errors.New("timeout")
	f.now = t0.Add(time.Minute)

	got, err := f.rec.Reconcile(context.Background(), rec)

	require.NoError(t, err)
	assert.Equal(t, document.StatusProcessing, got)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	// Given: a record whose collection file completed
	f := newFixture(t)
	rec := f.addRecord(t, index.FileStatusCompleted)

	// When: reconciling twice
	first, err := f.rec.Reconcile(context.Background(), rec)
	require.NoError(t, err)
	calls := f.fake.TotalCalls()
	second, err := f.rec.Reconcile(context.Background(), rec)
	require.NoError(t, err)

	// Then: one write, and the second call probes nothing
	assert.Equal(t, document.StatusReady, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.store.Writes())
	assert.Equal(t, calls, f.fake.TotalCalls())
}

func TestReconcile_ConcurrentResolutionWins(t *testing.T) {
	// Given: another writer marks the record failed just before our write
	f := newFixture(t)
	rec := f.addRecord(t, index.FileStatusCompleted)
	f.store.beforeSet = func(id string) {
		f.store.beforeSet = nil
		_, err := f.store.Store.UpdateStatus(context.Background(), id, document.StatusProcessing, document.StatusFailed)
		require.NoError(t, err)
	}

	// When: reconciling with a stale in-memory copy
	got, err := f.rec.Reconcile(context.Background(), rec)

	// Then: the stored terminal value is returned, not clobbered
	require.NoError(t, err)
	assert.Equal(t, document.StatusFailed, got)
	assert.Equal(t, document.StatusFailed, f.stored(t, rec.ID))
}

func TestReconcile_DeletedRecordReturnsResolvedStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.addRecord(t, index.FileStatusCompleted)
	require.NoError(t, f.store.Delete(context.Background(), rec.ID))

	got, err := f.rec.Reconcile(context.Background(), rec)

	require.NoError(t, err)
	assert.Equal(t, document.StatusReady, got)
}

func TestReconcile_StoreFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	rec := f.addRecord(t, index.FileStatusCompleted)
	f.store.failIDs[rec.ID] = true

	got, err := f.rec.Reconcile(context.Background(), rec)

	require.Error(t, err)
	assert.Equal(t, qaerrors.ErrCodeStoreFailed, qaerrors.GetCode(err))
	assert.Equal(t, document.StatusProcessing, got)
}

func TestReconcile_MissingOwnerIsIndeterminate(t *testing.T) {
	f := newFixture(t)
	fileID := f.fake.AddStoredFile(nil)
	rec := &document.Record{
		OwnerID:                  "ghost",
		Filename:                 "a.pdf",
		ExternalFileID:           fileID,
		ExternalCollectionFileID: fileID,
		CreatedAt:                t0,
	}
	require.NoError(t, f.store.Create(context.Background(), rec))

	got, err := f.rec.Reconcile(context.Background(), rec)

	require.NoError(t, err)
	assert.Equal(t, document.StatusProcessing, got)
}
