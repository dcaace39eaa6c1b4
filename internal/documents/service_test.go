package documents

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfqa/internal/citation"
	"github.com/Aman-CERP/pdfqa/internal/document"
	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/index/indextest"
	"github.com/Aman-CERP/pdfqa/internal/pdf/pdftest"
	"github.com/Aman-CERP/pdfqa/internal/query"
	"github.com/Aman-CERP/pdfqa/internal/reconcile"
	"github.com/Aman-CERP/pdfqa/internal/store"
)

type fixture struct {
	fake     *indextest.Fake
	store    store.Store
	resolver *citation.StoreResolver
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	fake := indextest.New()
	resolver, err := citation.NewStoreResolver(s, 16)
	require.NoError(t, err)

	svc := New(Deps{
		Client:     fake,
		Store:      s,
		Reconciler: reconcile.New(fake, s, s, reconcile.Config{}),
		Resolver:   resolver,
	}, Config{AssistantID: "asst-1", Instructions: "be brief", MaxUploadBytes: 1 << 20})

	require.NoError(t, svc.EnsureOwner(context.Background(), "u1", "Ada"))
	return &fixture{fake: fake, store: s, resolver: resolver, svc: svc}
}

func (f *fixture) upload(t *testing.T, name string) *document.Record {
	t.Helper()
	path := pdftest.WriteFile(t, name, pdftest.Minimal(2))
	rec, err := f.svc.Upload(context.Background(), "u1", UploadRequest{Path: path})
	require.NoError(t, err)
	return rec
}

func TestUpload_CreatesCollectionAndRecord(t *testing.T) {
	// Given an owner without a collection
	f := newFixture(t)

	// When a PDF is uploaded
	rec := f.upload(t, "report.pdf")

	// Then the collection is created once and the record saved active
	owner, err := f.store.GetOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.NotEmpty(t, owner.CollectionID)

	assert.Equal(t, "report.pdf", rec.Filename)
	assert.True(t, rec.IsActive)
	assert.True(t, f.fake.HasFile(rec.ExternalFileID))
	assert.True(t, f.fake.HasCollectionFile(owner.CollectionID, rec.ExternalCollectionFileID))
	require.NotNil(t, rec.PageCount)
	assert.Equal(t, 2, *rec.PageCount)
	require.NotNil(t, rec.SizeBytes)
	assert.Positive(t, *rec.SizeBytes)
	assert.Equal(t, owner.CollectionID, f.fake.LinkedCollection("asst-1"))

	// And the optimistic probe resolved in_progress to ready
	assert.Equal(t, document.StatusReady, rec.Status)
	stored, err := f.store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, document.StatusReady, stored.Status)

	// And a second upload reuses the collection
	f.upload(t, "second.pdf")
	assert.Equal(t, 1, f.fake.Calls("CreateCollection"))
}

func TestUpload_ToleratesCollectionAndProbeFailures(t *testing.T) {
	// Given a backend that rejects adding files and status probes
	f := newFixture(t)
	f.fake.AddFileErr = qaerrors.New(qaerrors.ErrCodeBackendRejected, "nope", nil)
	f.fake.StatusErr = qaerrors.New(qaerrors.ErrCodeNetworkUnavailable, "down", nil)
	f.fake.LinkErr = qaerrors.New(qaerrors.ErrCodeBackendRejected, "nope", nil)

	// When a PDF is uploaded
	rec := f.upload(t, "report.pdf")

	// Then the record is still saved, without a collection file
	assert.Empty(t, rec.ExternalCollectionFileID)
	assert.Equal(t, document.StatusProcessing, rec.Status)

	recs, err := f.svc.ListDocuments(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestUpload_Rejections(t *testing.T) {
	dir := t.TempDir()
	notPDF := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notPDF, []byte("hello"), 0o644))
	badMagic := filepath.Join(dir, "fake.pdf")
	require.NoError(t, os.WriteFile(badMagic, []byte("hello world"), 0o644))
	big := filepath.Join(dir, "big.pdf")
	require.NoError(t, os.WriteFile(big, append(pdftest.Minimal(1), make([]byte, 2<<20)...), 0o644))

	tests := []struct {
		name string
		path string
		code string
	}{
		{"wrong extension", notPDF, qaerrors.ErrCodeUnsupportedType},
		{"bad magic", badMagic, qaerrors.ErrCodeUnsupportedType},
		{"too large", big, qaerrors.ErrCodeFileTooLarge},
		{"missing", filepath.Join(dir, "missing.pdf"), qaerrors.ErrCodeFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.Upload(context.Background(), "u1", UploadRequest{Path: tt.path})

			require.Error(t, err)
			assert.Equal(t, tt.code, qaerrors.GetCode(err))
			assert.Zero(t, f.fake.Calls("UploadFile"))
		})
	}
}

func TestUpload_FailedUploadSavesNothing(t *testing.T) {
	// Given a backend that rejects uploads
	f := newFixture(t)
	f.fake.UploadErr = qaerrors.New(qaerrors.ErrCodeBackendRejected, "nope", nil)
	path := pdftest.WriteFile(t, "report.pdf", pdftest.Minimal(1))

	// When uploading
	_, err := f.svc.Upload(context.Background(), "u1", UploadRequest{Path: path})

	// Then no record is saved
	require.Error(t, err)
	assert.Equal(t, qaerrors.ErrCodeUploadFailed, qaerrors.GetCode(err))
	recs, err := f.svc.ListDocuments(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestUpload_UsesDisplayName(t *testing.T) {
	f := newFixture(t)
	path := pdftest.WriteFile(t, "tmp-123.pdf", pdftest.Minimal(1))

	rec, err := f.svc.Upload(context.Background(), "u1", UploadRequest{Path: path, Filename: "Annual Report.pdf"})

	require.NoError(t, err)
	assert.Equal(t, "Annual Report.pdf", rec.Filename)
}

func TestGetStatus_Ownership(t *testing.T) {
	f := newFixture(t)
	rec := f.upload(t, "report.pdf")
	require.NoError(t, f.svc.EnsureOwner(context.Background(), "u2", "Bob"))

	tests := []struct {
		name    string
		owner   string
		docID   string
		code    string
		wantErr bool
	}{
		{"owner", "u1", rec.ID, "", false},
		{"other owner", "u2", rec.ID, qaerrors.ErrCodeForbidden, true},
		{"unknown document", "u1", "missing", qaerrors.ErrCodeDocumentNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := f.svc.GetStatus(context.Background(), tt.owner, tt.docID)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.code, qaerrors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, document.StatusReady, status)
		})
	}
}

func TestGetStatus_ReconcilesOnce(t *testing.T) {
	// Given a processing record whose file is still indexing
	f := newFixture(t)
	f.fake.StatusErr = qaerrors.New(qaerrors.ErrCodeNetworkUnavailable, "down", nil)
	rec := f.upload(t, "report.pdf")
	require.Equal(t, document.StatusProcessing, rec.Status)
	f.fake.StatusErr = nil
	before := f.fake.Calls("GetCollectionFileStatus")

	// When the status is requested
	status, err := f.svc.GetStatus(context.Background(), "u1", rec.ID)

	// Then exactly one probe runs
	require.NoError(t, err)
	assert.Equal(t, document.StatusReady, status)
	assert.Equal(t, before+1, f.fake.Calls("GetCollectionFileStatus"))
}

func TestToggleActive_FlipsOnlyActive(t *testing.T) {
	// Given a ready, active document
	f := newFixture(t)
	rec := f.upload(t, "report.pdf")

	// When toggled twice
	off, err := f.svc.ToggleActive(context.Background(), "u1", rec.ID)
	require.NoError(t, err)
	on, err := f.svc.ToggleActive(context.Background(), "u1", rec.ID)
	require.NoError(t, err)

	// Then only the active flag changed
	assert.False(t, off.IsActive)
	assert.True(t, on.IsActive)
	stored, err := f.store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, document.StatusReady, stored.Status)
	assert.Equal(t, rec.Filename, stored.Filename)

	_, err = f.svc.ToggleActive(context.Background(), "u2", rec.ID)
	assert.Equal(t, qaerrors.ErrCodeForbidden, qaerrors.GetCode(err))
}

func TestDelete_RemovesBackendAndRecord(t *testing.T) {
	// Given an uploaded document
	f := newFixture(t)
	rec := f.upload(t, "report.pdf")
	owner, err := f.store.GetOwner(context.Background(), "u1")
	require.NoError(t, err)

	// When another owner tries to delete it
	err = f.svc.Delete(context.Background(), "u2", rec.ID)

	// Then it is refused
	assert.Equal(t, qaerrors.ErrCodeForbidden, qaerrors.GetCode(err))

	// When the owner deletes it
	require.NoError(t, f.svc.Delete(context.Background(), "u1", rec.ID))

	// Then backend and store are cleaned up
	assert.False(t, f.fake.HasFile(rec.ExternalFileID))
	assert.False(t, f.fake.HasCollectionFile(owner.CollectionID, rec.ExternalCollectionFileID))
	_, err = f.store.Get(context.Background(), rec.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = f.svc.Delete(context.Background(), "u1", rec.ID)
	assert.Equal(t, qaerrors.ErrCodeDocumentNotFound, qaerrors.GetCode(err))
}

func TestDelete_BackendFailureStillRemovesRecord(t *testing.T) {
	f := newFixture(t)
	rec := f.upload(t, "report.pdf")
	f.fake.DeleteErr = qaerrors.New(qaerrors.ErrCodeNetworkUnavailable, "down", nil)

	require.NoError(t, f.svc.Delete(context.Background(), "u1", rec.ID))

	_, err := f.store.Get(context.Background(), rec.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmitQuery_ScopesToActiveDocuments(t *testing.T) {
	// Given one active and one inactive document
	f := newFixture(t)
	f.upload(t, "a.pdf")
	b := f.upload(t, "b.pdf")
	_, err := f.svc.ToggleActive(context.Background(), "u1", b.ID)
	require.NoError(t, err)

	// When a query is submitted with a model that is not yet available
	h, err := f.svc.SubmitQuery(context.Background(), "u1", "What is X?", "o4-mini")

	// Then the job carries the framed query and the default model's options
	require.NoError(t, err)
	assert.NotEmpty(t, h.RunID)
	require.Len(t, f.fake.Submitted, 1)
	req := f.fake.Submitted[0]
	owner, err := f.store.GetOwner(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, owner.CollectionID, req.CollectionID)
	assert.Equal(t, "asst-1", req.AssistantID)
	assert.Equal(t, "be brief", req.Instructions)
	assert.Equal(t, query.BuildQuery("What is X?", []document.Record{
		{Filename: "a.pdf", IsActive: true},
		{Filename: "b.pdf", IsActive: false},
	}), req.Query)
	model, effort := query.RunOptions("o3-mini")
	assert.Equal(t, model, req.Model)
	assert.Equal(t, effort, req.ReasoningEffort)
}

func TestSubmitQuery_PassesThroughWhenAllActive(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "a.pdf")

	_, err := f.svc.SubmitQuery(context.Background(), "u1", "  raw question ", "unknown-model")

	require.NoError(t, err)
	require.Len(t, f.fake.Submitted, 1)
	assert.Equal(t, "  raw question ", f.fake.Submitted[0].Query)
	model, _ := query.RunOptions(query.DefaultCatalog().Default().ID)
	assert.Equal(t, model, f.fake.Submitted[0].Model)
}

func TestSubmitQuery_Validation(t *testing.T) {
	long := make([]rune, MaxQueryLength+1)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name   string
		upload bool
		text   string
		code   string
	}{
		{"empty", true, "   ", qaerrors.ErrCodeQueryEmpty},
		{"too long", true, string(long), qaerrors.ErrCodeQueryTooLong},
		{"no collection", false, "hello", qaerrors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.upload {
				f.upload(t, "a.pdf")
			}

			_, err := f.svc.SubmitQuery(context.Background(), "u1", tt.text, "")

			require.Error(t, err)
			assert.Equal(t, tt.code, qaerrors.GetCode(err))
			assert.Zero(t, f.fake.Calls("SubmitJob"))
		})
	}
}

func TestGetQueryResult_States(t *testing.T) {
	tests := []struct {
		name   string
		status index.JobStatus
		want   query.State
	}{
		{"queued", index.JobQueued, query.StatePending},
		{"running", index.JobInProgress, query.StatePending},
		{"completed", index.JobCompleted, query.StateCompleted},
		{"failed", index.JobFailed, query.StateFailed},
		{"expired", index.JobExpired, query.StateFailed},
		{"cancelled", index.JobCancelled, query.StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.upload(t, "a.pdf")
			f.fake.JobStatuses = []index.JobStatus{tt.status}
			h, err := f.svc.SubmitQuery(context.Background(), "u1", "q", "")
			require.NoError(t, err)

			res, err := f.svc.GetQueryResult(context.Background(), h)

			require.NoError(t, err)
			assert.Equal(t, tt.want, res.State)
			if tt.want == query.StateFailed {
				assert.Equal(t, query.FailedText, res.Error)
			}
		})
	}
}

func TestGetQueryResult_RendersCitations(t *testing.T) {
	// Given a completed job citing an uploaded document
	f := newFixture(t)
	rec := f.upload(t, "report.pdf")
	f.fake.JobMessages = []index.Message{
		{Role: index.RoleUser, Blocks: []index.TextBlock{{Text: "q"}}},
		{Role: index.RoleAssistant, Blocks: []index.TextBlock{{
			Text:        "Revenue grew【4:0†source】.",
			Annotations: []index.Annotation{{Start: 12, End: 24, FileID: rec.ExternalFileID}},
		}}},
	}
	h, err := f.svc.SubmitQuery(context.Background(), "u1", "q", "")
	require.NoError(t, err)

	// When the result is fetched
	res, err := f.svc.GetQueryResult(context.Background(), h)

	// Then the citation names the document
	require.NoError(t, err)
	answer, ok := res.Answer()
	require.True(t, ok)
	assert.Equal(t, "Revenue grew"+citation.Marker("report.pdf")+".", answer.Content)
	assert.Equal(t, 1, f.resolver.Len())
}

func TestGetQueryResult_RequiresHandle(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetQueryResult(context.Background(), index.JobHandle{})

	assert.Equal(t, qaerrors.ErrCodeInvalidInput, qaerrors.GetCode(err))
}

func TestAsk_PollsUntilCompleted(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "a.pdf")
	f.fake.JobStatuses = []index.JobStatus{index.JobQueued, index.JobCompleted}
	f.fake.JobMessages = []index.Message{
		{Role: index.RoleAssistant, Blocks: []index.TextBlock{{Text: "42"}}},
	}
	poller := query.NewPoller(query.PollConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, nil)

	var attempts []int
	out, err := f.svc.Ask(context.Background(), "u1", "q", "", poller, func(n int, _ query.Result) {
		attempts = append(attempts, n)
	})

	require.NoError(t, err)
	assert.Equal(t, query.OutcomeCompleted, out.Kind)
	assert.Equal(t, "42", out.Text())
	assert.Equal(t, []int{0, 1}, attempts)
}

func TestCleanupOrphans(t *testing.T) {
	// Given two documents, one of which vanished from the collection
	f := newFixture(t)
	kept := f.upload(t, "kept.pdf")
	gone := f.upload(t, "gone.pdf")
	owner, err := f.store.GetOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.NoError(t, f.fake.DeleteCollectionFile(context.Background(), owner.CollectionID, gone.ExternalCollectionFileID))

	// And one that never made it into the collection
	f.fake.AddFileErr = qaerrors.New(qaerrors.ErrCodeBackendRejected, "nope", nil)
	loose := f.upload(t, "loose.pdf")

	// When orphans are cleaned up
	n, err := f.svc.CleanupOrphans(context.Background(), "u1")

	// Then only the vanished document is removed
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = f.store.Get(context.Background(), gone.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	for _, id := range []string{kept.ID, loose.ID} {
		_, err = f.store.Get(context.Background(), id)
		assert.NoError(t, err)
	}
}

func TestCleanupOrphans_NoCollection(t *testing.T) {
	f := newFixture(t)

	n, err := f.svc.CleanupOrphans(context.Background(), "u1")

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, f.fake.Calls("ListCollectionFiles"))
}

func TestBackfillMetadata(t *testing.T) {
	// Given documents stored without page counts, one whose content is gone
	f := newFixture(t)
	ctx := context.Background()
	good := &document.Record{OwnerID: "u1", Filename: "a.pdf", ExternalFileID: f.fake.AddStoredFile(pdftest.Minimal(3))}
	lost := &document.Record{OwnerID: "u1", Filename: "b.pdf", ExternalFileID: "file-missing"}
	sized := &document.Record{
		OwnerID: "u1", Filename: "c.pdf",
		ExternalFileID: f.fake.AddStoredFile(pdftest.Minimal(1)),
		SizeBytes:      document.Int64Ptr(7),
	}
	for _, r := range []*document.Record{good, lost, sized} {
		require.NoError(t, f.store.Create(ctx, r))
	}

	// When metadata is backfilled
	n, err := f.svc.BackfillMetadata(ctx, "u1")

	// Then readable files gain page counts and missing sizes
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := f.store.Get(ctx, good.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PageCount)
	assert.Equal(t, 3, *got.PageCount)
	require.NotNil(t, got.SizeBytes)
	assert.Equal(t, int64(len(pdftest.Minimal(3))), *got.SizeBytes)

	got, err = f.store.Get(ctx, sized.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), *got.SizeBytes)

	got, err = f.store.Get(ctx, lost.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PageCount)
}

// togglingClient flips a document's scope while its content downloads.
type togglingClient struct {
	*indextest.Fake
	toggle func()
}

func (c *togglingClient) GetFileContent(ctx context.Context, fileID string) ([]byte, error) {
	c.toggle()
	return c.Fake.GetFileContent(ctx, fileID)
}

func TestBackfillMetadata_KeepsConcurrentToggle(t *testing.T) {
	// Given an active document without a page count
	f := newFixture(t)
	ctx := context.Background()
	rec := &document.Record{
		OwnerID: "u1", Filename: "a.pdf", IsActive: true,
		ExternalFileID: f.fake.AddStoredFile(pdftest.Minimal(2)),
	}
	require.NoError(t, f.store.Create(ctx, rec))

	// And a backend whose download races a user toggle
	client := &togglingClient{Fake: f.fake}
	svc := New(Deps{
		Client:     client,
		Store:      f.store,
		Reconciler: reconcile.New(client, f.store, f.store, reconcile.Config{}),
		Resolver:   f.resolver,
	}, Config{AssistantID: "asst-1"})
	client.toggle = func() {
		_, err := svc.ToggleActive(ctx, "u1", rec.ID)
		require.NoError(t, err)
	}

	// When metadata is backfilled
	n, err := svc.BackfillMetadata(ctx, "u1")

	// Then the page count is set and the toggle survives
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.PageCount)
	assert.Equal(t, 2, *got.PageCount)
}

func TestToggleActive_ConcurrentFlipsAllApply(t *testing.T) {
	// Given an active document
	f := newFixture(t)
	rec := f.upload(t, "report.pdf")

	// When it is toggled an odd number of times concurrently
	const toggles = 9
	var wg sync.WaitGroup
	errs := make(chan error, toggles)
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ToggleActive(context.Background(), "u1", rec.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// Then no flip is lost
	for err := range errs {
		require.NoError(t, err)
	}
	got, err := f.store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
