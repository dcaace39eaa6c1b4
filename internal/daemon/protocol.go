package daemon

import (
	"errors"

	"github.com/Aman-CERP/pdfqa/internal/document"
	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/reconcile"
	"github.com/Aman-CERP/pdfqa/internal/telemetry"
	"github.com/Aman-CERP/pdfqa/internal/watcher"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing   = "ping"
	MethodStatus = "status"

	MethodDocumentsList   = "documents.list"
	MethodDocumentsStatus = "documents.status"
	MethodDocumentsToggle = "documents.toggle"
	MethodDocumentsDelete = "documents.delete"
	MethodDocumentsUpload = "documents.upload"

	MethodQuerySubmit = "query.submit"
	MethodQueryResult = "query.result"

	MethodModelsList = "models.list"
	MethodSweepRun   = "sweep.run"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Daemon-specific error codes.
const (
	ErrCodeNotFound    = -32001
	ErrCodeBackend     = -32002
	ErrCodeForbidden   = -32003
	ErrCodeStore       = -32004
	ErrCodeConfig      = -32005
	ErrCodeUnavailable = -32006
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error is a JSON-RPC 2.0 error.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData carries the structured error across the socket.
type ErrorData struct {
	Code       string            `json:"code"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Retryable  bool              `json:"retryable,omitempty"`
}

// Err converts the RPC error back into an error value. Errors that carried
// a structured code come back as *QAError.
func (e *Error) Err() error {
	if e.Data == nil || e.Data.Code == "" {
		return &RPCError{Code: e.Code, Message: e.Message}
	}
	qe := qaerrors.New(e.Data.Code, e.Message, nil)
	for k, v := range e.Data.Details {
		qe = qe.WithDetail(k, v)
	}
	if e.Data.Suggestion != "" {
		qe = qe.WithSuggestion(e.Data.Suggestion)
	}
	qe.Retryable = e.Data.Retryable
	return qe
}

// RPCError is an unstructured error returned by the daemon.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return e.Message
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{JSONRPC: "2.0", Result: result, ID: id}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}

// ErrorResponseFor maps an error from the document service onto a response.
func ErrorResponseFor(id string, err error) Response {
	qe, ok := qaerrors.As(err)
	if !ok {
		return NewErrorResponse(id, ErrCodeInternalError, err.Error())
	}

	resp := NewErrorResponse(id, rpcCode(qe), qe.Message)
	resp.Error.Data = &ErrorData{
		Code:       qe.Code,
		Details:    qe.Details,
		Suggestion: qe.Suggestion,
		Retryable:  qe.Retryable,
	}
	return resp
}

func rpcCode(qe *qaerrors.QAError) int {
	switch qe.Code {
	case qaerrors.ErrCodeDocumentNotFound:
		return ErrCodeNotFound
	case qaerrors.ErrCodeForbidden:
		return ErrCodeForbidden
	}

	switch qe.Category {
	case qaerrors.CategoryValidation:
		return ErrCodeInvalidParams
	case qaerrors.CategoryNetwork:
		if qe.Retryable {
			return ErrCodeUnavailable
		}
		return ErrCodeBackend
	case qaerrors.CategoryIO:
		return ErrCodeStore
	case qaerrors.CategoryConfig:
		return ErrCodeConfig
	default:
		return ErrCodeInternalError
	}
}

// errInvalidParams is returned by param validation.
var errInvalidParams = errors.New("invalid params")

// DocumentParams identifies one document.
type DocumentParams struct {
	DocumentID string `json:"document_id"`
}

// Validate checks required fields.
func (p *DocumentParams) Validate() error {
	if p.DocumentID == "" {
		return qaerrors.ValidationError("document_id is required", errInvalidParams)
	}
	return nil
}

// UploadParams names a local PDF. The path is read by the daemon, so it
// must be absolute.
type UploadParams struct {
	Path     string `json:"path"`
	Filename string `json:"filename,omitempty"`
}

// Validate checks required fields.
func (p *UploadParams) Validate() error {
	if p.Path == "" {
		return qaerrors.ValidationError("path is required", errInvalidParams)
	}
	return nil
}

// QuerySubmitParams is a question for the owner's documents.
type QuerySubmitParams struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// QueryResultParams identifies a submitted job.
type QueryResultParams struct {
	ThreadID string `json:"thread_id"`
	RunID    string `json:"run_id"`
}

// Handle returns the job handle.
func (p QueryResultParams) Handle() index.JobHandle {
	return index.JobHandle{ThreadID: p.ThreadID, RunID: p.RunID}
}

// QueryHandle is the result of query.submit.
type QueryHandle struct {
	ThreadID string `json:"thread_id"`
	RunID    string `json:"run_id"`
}

// StatusResponse is the result of documents.status.
type StatusResponse struct {
	DocumentID string          `json:"document_id"`
	Status     document.Status `json:"status"`
}

// ToggleResult is the result of documents.toggle.
type ToggleResult struct {
	DocumentID string `json:"document_id"`
	IsActive   bool   `json:"is_active"`
}

// SweepSummary describes the last background sweep.
type SweepSummary struct {
	reconcile.SweepResult
	At string `json:"at,omitempty"`
}

// StatusResult describes the running daemon.
type StatusResult struct {
	Running   bool                `json:"running"`
	PID       int                 `json:"pid"`
	Uptime    string              `json:"uptime"`
	OwnerID   string              `json:"owner_id"`
	Documents map[string]int      `json:"documents,omitempty"`
	Breaker   string              `json:"breaker,omitempty"`
	LastSweep *SweepSummary       `json:"last_sweep,omitempty"`
	Inbox     *watcher.InboxStats `json:"inbox,omitempty"`
	LastMaint *MaintenanceSummary `json:"last_maintenance,omitempty"`
	Queries   *telemetry.Snapshot `json:"queries,omitempty"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
