// Package indextest provides a scriptable in-memory index.Client.
package indextest

import (
	"context"
	"fmt"
	"io"
	"sync"

	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/index"
)

// Fake is an in-memory index.Client. Exported fields script behaviour and
// may be set before use; use the methods once goroutines are running.
type Fake struct {
	mu sync.Mutex

	files       map[string][]byte
	collections map[string]map[string]index.FileStatus // collection -> collection file -> status
	assistants  map[string]string
	jobs        map[index.JobHandle]*fakeJob
	calls       map[string]int
	seq         int

	// Errors returned by the matching method when non-nil.
	CreateCollectionErr error
	UploadErr           error
	AddFileErr          error
	GetFileErr          error
	StatusErr           error
	DeleteErr           error
	SubmitErr           error
	JobStatusErr        error
	ListErr             error
	LinkErr             error

	// DefaultFileStatus is the status of newly added collection files.
	DefaultFileStatus index.FileStatus

	// JobStatuses is the sequence of statuses each new job reports, one per
	// GetJobStatus call. The last entry repeats. Empty means completed.
	JobStatuses []index.JobStatus
	// JobMessages is the transcript returned for every job.
	JobMessages []index.Message

	// Submitted records every JobRequest in order.
	Submitted []index.JobRequest
}

type fakeJob struct {
	statuses []index.JobStatus
	messages []index.Message
}

var _ index.Client = (*Fake)(nil)

// New returns an empty Fake whose collection files start in_progress.
func New() *Fake {
	return &Fake{
		files:             make(map[string][]byte),
		collections:       make(map[string]map[string]index.FileStatus),
		assistants:        make(map[string]string),
		jobs:              make(map[index.JobHandle]*fakeJob),
		calls:             make(map[string]int),
		DefaultFileStatus: index.FileStatusInProgress,
	}
}

func (f *Fake) record(method string) {
	f.calls[method]++
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func notFound(what, id string) error {
	return qaerrors.New(qaerrors.ErrCodeBackendNotFound, what+" not found", nil).WithDetail("id", id)
}

// Calls returns how many times method was called.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// AddStoredFile seeds an uploaded file and returns its id.
func (f *Fake) AddStoredFile(content []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("file")
	f.files[id] = content
	return id
}

// RemoveFile makes GetFile report the file as missing.
func (f *Fake) RemoveFile(fileID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, fileID)
}

// SetFileStatus sets the ingestion status of a collection file, creating the
// collection entry if needed.
func (f *Fake) SetFileStatus(collectionID, collectionFileID string, status index.FileStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	files, ok := f.collections[collectionID]
	if !ok {
		files = make(map[string]index.FileStatus)
		f.collections[collectionID] = files
	}
	files[collectionFileID] = status
}

// HasCollectionFile reports whether the collection still lists the file.
func (f *Fake) HasCollectionFile(collectionID, collectionFileID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[collectionID][collectionFileID]
	return ok
}

// HasFile reports whether the file still exists.
func (f *Fake) HasFile(fileID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[fileID]
	return ok
}

// LinkedCollection returns the collection linked to an assistant.
func (f *Fake) LinkedCollection(assistantID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assistants[assistantID]
}

func (f *Fake) CreateCollection(_ context.Context, label string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateCollection")
	if f.CreateCollectionErr != nil {
		return "", f.CreateCollectionErr
	}
	id := f.nextID("vs")
	f.collections[id] = make(map[string]index.FileStatus)
	return id, nil
}

func (f *Fake) AddFile(_ context.Context, collectionID, fileID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AddFile")
	if f.AddFileErr != nil {
		return "", f.AddFileErr
	}
	files, ok := f.collections[collectionID]
	if !ok {
		return "", notFound("collection", collectionID)
	}
	if _, ok := f.files[fileID]; !ok {
		return "", notFound("file", fileID)
	}
	files[fileID] = f.DefaultFileStatus
	return fileID, nil
}

func (f *Fake) GetFile(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetFile")
	if f.GetFileErr != nil {
		return f.GetFileErr
	}
	if _, ok := f.files[fileID]; !ok {
		return notFound("file", fileID)
	}
	return nil
}

func (f *Fake) GetCollectionFileStatus(_ context.Context, collectionID, collectionFileID string) (index.FileStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetCollectionFileStatus")
	if f.StatusErr != nil {
		return "", f.StatusErr
	}
	status, ok := f.collections[collectionID][collectionFileID]
	if !ok {
		return "", notFound("collection file", collectionFileID)
	}
	return status, nil
}

func (f *Fake) DeleteFile(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteFile")
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if _, ok := f.files[fileID]; !ok {
		return notFound("file", fileID)
	}
	delete(f.files, fileID)
	return nil
}

func (f *Fake) DeleteCollectionFile(_ context.Context, collectionID, collectionFileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteCollectionFile")
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if _, ok := f.collections[collectionID][collectionFileID]; !ok {
		return notFound("collection file", collectionFileID)
	}
	delete(f.collections[collectionID], collectionFileID)
	return nil
}

func (f *Fake) SubmitJob(_ context.Context, req index.JobRequest) (index.JobHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SubmitJob")
	if f.SubmitErr != nil {
		return index.JobHandle{}, f.SubmitErr
	}
	f.Submitted = append(f.Submitted, req)

	h := index.JobHandle{ThreadID: f.nextID("thread"), RunID: f.nextID("run")}
	f.jobs[h] = &fakeJob{
		statuses: append([]index.JobStatus(nil), f.JobStatuses...),
		messages: f.JobMessages,
	}
	return h, nil
}

func (f *Fake) GetJobStatus(_ context.Context, h index.JobHandle) (index.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetJobStatus")
	if f.JobStatusErr != nil {
		return "", f.JobStatusErr
	}
	job, ok := f.jobs[h]
	if !ok {
		return "", notFound("run", h.RunID)
	}
	if len(job.statuses) == 0 {
		return index.JobCompleted, nil
	}
	status := job.statuses[0]
	if len(job.statuses) > 1 {
		job.statuses = job.statuses[1:]
	}
	return status, nil
}

func (f *Fake) GetJobMessages(_ context.Context, h index.JobHandle) ([]index.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetJobMessages")
	job, ok := f.jobs[h]
	if !ok {
		return nil, notFound("thread", h.ThreadID)
	}
	return job.messages, nil
}

func (f *Fake) UploadFile(_ context.Context, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UploadFile")
	if err != nil {
		return "", err
	}
	if f.UploadErr != nil {
		return "", f.UploadErr
	}
	id := f.nextID("file")
	f.files[id] = data
	return id, nil
}

func (f *Fake) GetFileContent(_ context.Context, fileID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetFileContent")
	data, ok := f.files[fileID]
	if !ok {
		return nil, notFound("file", fileID)
	}
	return data, nil
}

func (f *Fake) ListCollectionFiles(_ context.Context, collectionID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListCollectionFiles")
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	files, ok := f.collections[collectionID]
	if !ok {
		return nil, notFound("collection", collectionID)
	}
	ids := make([]string, 0, len(files))
	for id := range files {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *Fake) LinkAssistant(_ context.Context, assistantID, collectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("LinkAssistant")
	if f.LinkErr != nil {
		return f.LinkErr
	}
	f.assistants[assistantID] = collectionID
	return nil
}
