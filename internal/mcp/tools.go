package mcp

import (
	"time"

	"github.com/Aman-CERP/pdfqa/internal/document"
	"github.com/Aman-CERP/pdfqa/internal/query"
)

// ListDocumentsInput defines the input schema for the list_documents tool (no parameters).
type ListDocumentsInput struct{}

// ListDocumentsOutput defines the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents" jsonschema:"the owner's documents, newest first"`
}

// DocumentOutput is one document as seen by AI clients.
type DocumentOutput struct {
	ID        string `json:"id" jsonschema:"document id"`
	Filename  string `json:"filename" jsonschema:"display name of the PDF"`
	Status    string `json:"status" jsonschema:"processing, ready or failed"`
	IsActive  bool   `json:"is_active" jsonschema:"whether questions focus on this document"`
	PageCount int    `json:"page_count,omitempty" jsonschema:"number of pages, when known"`
	SizeBytes int64  `json:"size_bytes,omitempty" jsonschema:"file size in bytes, when known"`
	CreatedAt string `json:"created_at" jsonschema:"upload time in RFC3339"`
}

// DocumentInput identifies one document.
type DocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"id of the document"`
}

// DocumentStatusOutput defines the output schema for the document_status tool.
type DocumentStatusOutput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status" jsonschema:"processing, ready or failed"`
}

// ToggleDocumentOutput defines the output schema for the toggle_document tool.
type ToggleDocumentOutput struct {
	DocumentID string `json:"document_id"`
	IsActive   bool   `json:"is_active" jsonschema:"the new active flag"`
}

// UploadDocumentInput defines the input schema for the upload_document tool.
type UploadDocumentInput struct {
	Path     string `json:"path" jsonschema:"absolute path of a local PDF file"`
	Filename string `json:"filename,omitempty" jsonschema:"display name, defaults to the file name"`
}

// AskInput defines the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to ask about the uploaded documents"`
	Model    string `json:"model,omitempty" jsonschema:"model id from list_models, defaults to the default model"`
}

// AskOutput defines the output schema for the ask tool.
type AskOutput struct {
	Outcome  string              `json:"outcome" jsonschema:"completed, failed or timeout"`
	Answer   string              `json:"answer" jsonschema:"the answer with citation markers, or a failure message"`
	Messages []query.ChatMessage `json:"messages,omitempty" jsonschema:"the rendered transcript"`
	Attempts int                 `json:"attempts" jsonschema:"number of result polls"`
}

// ListModelsInput defines the input schema for the list_models tool (no parameters).
type ListModelsInput struct{}

// ListModelsOutput defines the output schema for the list_models tool.
type ListModelsOutput struct {
	Models []query.Model `json:"models"`
}

// ToDocumentOutput converts a record for AI clients.
func ToDocumentOutput(r document.Record) DocumentOutput {
	out := DocumentOutput{
		ID:        r.ID,
		Filename:  r.Filename,
		Status:    string(r.Status),
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.PageCount != nil {
		out.PageCount = *r.PageCount
	}
	if r.SizeBytes != nil {
		out.SizeBytes = *r.SizeBytes
	}
	return out
}
