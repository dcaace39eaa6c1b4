// Package index talks to the remote semantic-index and generation backend.
//
// The backend owns file storage, per-owner collections (vector stores) and
// asynchronous generation jobs (assistant runs). Ingestion is eventually
// consistent: a file added to a collection is indexed in the background and
// its progress can only be observed by probing.
package index

import (
	"context"
	"io"

	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
)

// ErrNotFound matches (via errors.Is) any backend 404.
var ErrNotFound = qaerrors.New(qaerrors.ErrCodeBackendNotFound, "not found in indexing backend", nil)

// FileStatus is the ingestion state of a file inside a collection.
type FileStatus string

const (
	FileStatusInProgress FileStatus = "in_progress"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
	FileStatusCancelled  FileStatus = "cancelled"
)

// JobStatus is the state of a generation job.
type JobStatus string

const (
	JobQueued         JobStatus = "queued"
	JobInProgress     JobStatus = "in_progress"
	JobRequiresAction JobStatus = "requires_action"
	JobCancelling     JobStatus = "cancelling"
	JobCancelled      JobStatus = "cancelled"
	JobFailed         JobStatus = "failed"
	JobCompleted      JobStatus = "completed"
	JobIncomplete     JobStatus = "incomplete"
	JobExpired        JobStatus = "expired"
)

// IsFailure reports whether the job ended without an answer.
func (s JobStatus) IsFailure() bool {
	switch s {
	case JobFailed, JobCancelled, JobExpired, JobIncomplete:
		return true
	}
	return false
}

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Annotation ties the span [Start, End) of a text block to a source file.
// Offsets count Unicode code points.
type Annotation struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	FileID string `json:"file_id"`
}

// TextBlock is one text content item of a message.
type TextBlock struct {
	Text        string       `json:"text"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Message is a job transcript entry.
type Message struct {
	ID     string      `json:"id,omitempty"`
	Role   Role        `json:"role"`
	Blocks []TextBlock `json:"blocks"`
}

// JobRequest describes a generation job scoped to one collection.
type JobRequest struct {
	CollectionID string
	AssistantID  string
	// Query is the user message, already framed with scope instructions.
	Query string
	// Instructions are appended to the assistant's own instructions.
	Instructions string
	// Model is empty to use the assistant default.
	Model           string
	ReasoningEffort string
}

// JobHandle identifies a submitted job.
type JobHandle struct {
	ThreadID string `json:"thread_id"`
	RunID    string `json:"run_id"`
}

// Client is the indexing backend surface.
type Client interface {
	CreateCollection(ctx context.Context, label string) (string, error)
	AddFile(ctx context.Context, collectionID, fileID string) (string, error)
	// GetFile returns ErrNotFound when the file no longer exists.
	GetFile(ctx context.Context, fileID string) error
	GetCollectionFileStatus(ctx context.Context, collectionID, collectionFileID string) (FileStatus, error)
	DeleteFile(ctx context.Context, fileID string) error
	DeleteCollectionFile(ctx context.Context, collectionID, collectionFileID string) error

	SubmitJob(ctx context.Context, req JobRequest) (JobHandle, error)
	GetJobStatus(ctx context.Context, h JobHandle) (JobStatus, error)
	GetJobMessages(ctx context.Context, h JobHandle) ([]Message, error)

	UploadFile(ctx context.Context, name string, r io.Reader) (string, error)
	GetFileContent(ctx context.Context, fileID string) ([]byte, error)
	// ListCollectionFiles returns the ids of every file in the collection.
	ListCollectionFiles(ctx context.Context, collectionID string) ([]string, error)
	// LinkAssistant attaches the collection to the assistant's file search.
	LinkAssistant(ctx context.Context, assistantID, collectionID string) error
}
