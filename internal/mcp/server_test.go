package mcp

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfqa/internal/documents"
	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/index/indextest"
	"github.com/Aman-CERP/pdfqa/internal/pdf/pdftest"
	"github.com/Aman-CERP/pdfqa/internal/query"
	"github.com/Aman-CERP/pdfqa/internal/reconcile"
	"github.com/Aman-CERP/pdfqa/internal/store"
)

func newTestServer(t *testing.T) (*Server, *indextest.Fake) {
	t.Helper()
	s, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	fake := indextest.New()
	svc := documents.New(documents.Deps{
		Client:     fake,
		Store:      s,
		Reconciler: reconcile.New(fake, s, s, reconcile.Config{}),
	}, documents.Config{})
	require.NoError(t, svc.EnsureOwner(context.Background(), "u1", "Ada"))

	poller := query.NewPoller(query.PollConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, nil)
	srv, err := NewServer(svc, "u1", poller, nil)
	require.NoError(t, err)
	return srv, fake
}

func uploadPDF(t *testing.T, srv *Server, name string) DocumentOutput {
	t.Helper()
	path := pdftest.WriteFile(t, name, pdftest.Minimal(3))
	_, out, err := srv.mcpUploadDocumentHandler(context.Background(), nil, UploadDocumentInput{Path: path})
	require.NoError(t, err)
	return out
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil, "u1", nil, nil)
	assert.Error(t, err)

	srv, _ := newTestServer(t)
	_, err = NewServer(srv.svc, "", nil, nil)
	assert.Error(t, err)
}

func TestServer_InfoAndTools(t *testing.T) {
	srv, _ := newTestServer(t)

	name, _ := srv.Info()
	assert.Equal(t, "pdfqa", name)

	var names []string
	for _, tool := range srv.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{
		"list_documents", "document_status", "toggle_document",
		"upload_document", "ask", "list_models",
	}, names)
}

func TestServer_UploadAndList(t *testing.T) {
	// Given a server with no documents
	srv, _ := newTestServer(t)
	ctx := context.Background()

	res, out, err := srv.mcpListDocumentsHandler(ctx, nil, ListDocumentsInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Documents)
	require.NotNil(t, res)
	assert.Contains(t, res.Content[0].(*mcp.TextContent).Text, "No documents uploaded yet")

	// When a PDF is uploaded
	doc := uploadPDF(t, srv, "report.pdf")

	// Then it is listed with its metadata
	assert.Equal(t, "report.pdf", doc.Filename)
	assert.Equal(t, 3, doc.PageCount)
	assert.True(t, doc.IsActive)

	_, out, err = srv.mcpListDocumentsHandler(ctx, nil, ListDocumentsInput{})
	require.NoError(t, err)
	require.Len(t, out.Documents, 1)
	assert.Equal(t, doc.ID, out.Documents[0].ID)
}

func TestServer_UploadValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		in   UploadDocumentInput
		code int
	}{
		{"missing path", UploadDocumentInput{}, ErrCodeInvalidParams},
		{"relative path", UploadDocumentInput{Path: "report.pdf"}, ErrCodeInvalidParams},
		{"missing file", UploadDocumentInput{Path: filepath.Join(t.TempDir(), "gone.pdf")}, ErrCodeFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := srv.mcpUploadDocumentHandler(context.Background(), nil, tt.in)

			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, tt.code, mcpErr.Code)
		})
	}
}

func TestServer_StatusAndToggle(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	doc := uploadPDF(t, srv, "report.pdf")

	_, status, err := srv.mcpDocumentStatusHandler(ctx, nil, DocumentInput{DocumentID: doc.ID})
	require.NoError(t, err)
	assert.Equal(t, "ready", status.Status)

	_, toggled, err := srv.mcpToggleDocumentHandler(ctx, nil, DocumentInput{DocumentID: doc.ID})
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	tests := []struct {
		name string
		id   string
		code int
	}{
		{"missing id", "", ErrCodeInvalidParams},
		{"unknown id", "nope", ErrCodeDocumentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := srv.mcpDocumentStatusHandler(ctx, nil, DocumentInput{DocumentID: tt.id})
			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, tt.code, mcpErr.Code)

			_, _, err = srv.mcpToggleDocumentHandler(ctx, nil, DocumentInput{DocumentID: tt.id})
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, tt.code, mcpErr.Code)
		})
	}
}

func TestServer_Ask(t *testing.T) {
	// Given an uploaded document and a backend with a canned answer
	srv, fake := newTestServer(t)
	uploadPDF(t, srv, "report.pdf")
	fake.JobMessages = []index.Message{
		{Role: index.RoleAssistant, Blocks: []index.TextBlock{{Text: "Three pages."}}},
	}

	// When a question is asked
	res, out, err := srv.mcpAskHandler(context.Background(), nil, AskInput{Question: "How long is it?"})

	// Then the answer is returned in both forms
	require.NoError(t, err)
	assert.Equal(t, "completed", out.Outcome)
	assert.Equal(t, "Three pages.", out.Answer)
	assert.Equal(t, 1, out.Attempts)
	require.NotNil(t, res)
	assert.Contains(t, res.Content[0].(*mcp.TextContent).Text, "Three pages.")
}

func TestServer_AskTimesOut(t *testing.T) {
	srv, fake := newTestServer(t)
	uploadPDF(t, srv, "report.pdf")
	fake.JobStatuses = []index.JobStatus{index.JobInProgress}

	_, out, err := srv.mcpAskHandler(context.Background(), nil, AskInput{Question: "still there?"})

	require.NoError(t, err)
	assert.Equal(t, "timeout", out.Outcome)
	assert.Equal(t, query.TimeoutText, out.Answer)
	assert.Equal(t, 3, out.Attempts)
}

func TestServer_AskValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name     string
		question string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"no documents", "what is this?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := srv.mcpAskHandler(context.Background(), nil, AskInput{Question: tt.question})

			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
		})
	}
}

func TestServer_ListModels(t *testing.T) {
	srv, _ := newTestServer(t)

	_, out, err := srv.mcpListModelsHandler(context.Background(), nil, ListModelsInput{})

	require.NoError(t, err)
	assert.Equal(t, query.DefaultCatalog().Models(), out.Models)
}

func TestServer_DocumentsResource(t *testing.T) {
	srv, _ := newTestServer(t)
	uploadPDF(t, srv, "report.pdf")

	res, err := srv.handleDocumentsResource(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, DocumentsURI, res.Contents[0].URI)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)
	assert.Contains(t, res.Contents[0].Text, `"filename": "report.pdf"`)
}

func TestServer_Serve_UnknownTransport(t *testing.T) {
	srv, _ := newTestServer(t)

	err := srv.Serve(context.Background(), "sse")

	assert.ErrorContains(t, err, "unknown transport")
}

func TestMapError_PassesThroughValidation(t *testing.T) {
	err := qaerrors.ValidationError("no documents uploaded yet", nil)

	assert.Equal(t, ErrCodeInvalidParams, MapError(err).Code)
}
