package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/pdfqa/internal/documents"
	"github.com/Aman-CERP/pdfqa/internal/query"
	"github.com/Aman-CERP/pdfqa/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "pdfqa"

// Server is the MCP server for pdfqa. It exposes one owner's documents
// and question answering to AI clients.
type Server struct {
	mcp     *mcp.Server
	svc     *documents.Service
	ownerID string
	poller  *query.Poller
	logger  *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "list_documents",
		Description: "List the uploaded PDF documents with their processing status and whether questions currently focus on them.",
	},
	{
		Name:        "document_status",
		Description: "Refresh and return the processing status of one document. A document can be queried once it is ready.",
	},
	{
		Name:        "toggle_document",
		Description: "Flip whether a document is active. Questions focus on active documents and ignore inactive ones.",
	},
	{
		Name:        "upload_document",
		Description: "Upload a local PDF by absolute path. The document starts processing and becomes ready once indexed.",
	},
	{
		Name:        "ask",
		Description: "Ask a question about the active documents. Waits for the answer and returns it with citation markers naming the source files.",
	},
	{
		Name:        "list_models",
		Description: "List the models that can answer questions and which one is the default.",
	},
}

// NewServer creates a new MCP server acting for ownerID.
func NewServer(svc *documents.Service, ownerID string, poller *query.Poller, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("document service is required")
	}
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}
	if poller == nil {
		poller = query.NewPoller(query.DefaultPollConfig(), logger)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		svc:     svc,
		ownerID: ownerID,
		poller:  poller,
		logger:  logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	for _, t := range tools {
		tool := &mcp.Tool{Name: t.Name, Description: t.Description}
		switch t.Name {
		case "list_documents":
			mcp.AddTool(s.mcp, tool, s.mcpListDocumentsHandler)
		case "document_status":
			mcp.AddTool(s.mcp, tool, s.mcpDocumentStatusHandler)
		case "toggle_document":
			mcp.AddTool(s.mcp, tool, s.mcpToggleDocumentHandler)
		case "upload_document":
			mcp.AddTool(s.mcp, tool, s.mcpUploadDocumentHandler)
		case "ask":
			mcp.AddTool(s.mcp, tool, s.mcpAskHandler)
		case "list_models":
			mcp.AddTool(s.mcp, tool, s.mcpListModelsHandler)
		}
		s.logger.Debug("Registered tool", slog.String("name", t.Name))
	}

	s.logger.Info("MCP tools registered", slog.Int("count", len(tools)))
}

func (s *Server) mcpListDocumentsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListDocumentsInput) (
	*mcp.CallToolResult,
	ListDocumentsOutput,
	error,
) {
	docs, err := s.svc.ListDocuments(ctx, s.ownerID)
	if err != nil {
		return nil, ListDocumentsOutput{}, MapError(err)
	}

	out := ListDocumentsOutput{Documents: make([]DocumentOutput, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, ToDocumentOutput(d))
	}
	return textResult(FormatDocuments(out.Documents)), out, nil
}

func (s *Server) mcpDocumentStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, input DocumentInput) (
	*mcp.CallToolResult,
	DocumentStatusOutput,
	error,
) {
	if input.DocumentID == "" {
		return nil, DocumentStatusOutput{}, NewInvalidParamsError("document_id parameter is required")
	}

	status, err := s.svc.GetStatus(ctx, s.ownerID, input.DocumentID)
	if err != nil {
		return nil, DocumentStatusOutput{}, MapError(err)
	}
	return nil, DocumentStatusOutput{DocumentID: input.DocumentID, Status: string(status)}, nil
}

func (s *Server) mcpToggleDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, input DocumentInput) (
	*mcp.CallToolResult,
	ToggleDocumentOutput,
	error,
) {
	if input.DocumentID == "" {
		return nil, ToggleDocumentOutput{}, NewInvalidParamsError("document_id parameter is required")
	}

	rec, err := s.svc.ToggleActive(ctx, s.ownerID, input.DocumentID)
	if err != nil {
		return nil, ToggleDocumentOutput{}, MapError(err)
	}
	return nil, ToggleDocumentOutput{DocumentID: rec.ID, IsActive: rec.IsActive}, nil
}

func (s *Server) mcpUploadDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, input UploadDocumentInput) (
	*mcp.CallToolResult,
	DocumentOutput,
	error,
) {
	if input.Path == "" {
		return nil, DocumentOutput{}, NewInvalidParamsError("path parameter is required")
	}
	if !filepath.IsAbs(input.Path) {
		return nil, DocumentOutput{}, NewInvalidParamsError(fmt.Sprintf("path must be absolute: %s", input.Path))
	}

	requestID := generateRequestID()
	s.logger.Info("upload started",
		slog.String("request_id", requestID),
		slog.String("path", input.Path))

	rec, err := s.svc.Upload(ctx, s.ownerID, documents.UploadRequest{Path: input.Path, Filename: input.Filename})
	if err != nil {
		s.logger.Error("upload failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, DocumentOutput{}, MapError(err)
	}

	s.logger.Info("upload completed",
		slog.String("request_id", requestID),
		slog.String("document_id", rec.ID),
		slog.String("status", string(rec.Status)))
	return nil, ToDocumentOutput(*rec), nil
}

func (s *Server) mcpAskHandler(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (
	*mcp.CallToolResult,
	AskOutput,
	error,
) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, AskOutput{}, NewInvalidParamsError("question cannot be empty or whitespace only")
	}

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("ask started",
		slog.String("request_id", requestID),
		slog.String("model", input.Model))

	out, err := s.svc.Ask(ctx, s.ownerID, input.Question, input.Model, s.poller, nil)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("ask failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, AskOutput{}, MapError(err)
	}

	s.logger.Info("ask completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.String("outcome", string(out.Kind)),
		slog.Int("attempts", out.Attempts))

	output := AskOutput{
		Outcome:  string(out.Kind),
		Answer:   out.Text(),
		Messages: out.Messages,
		Attempts: out.Attempts,
	}
	return textResult(FormatAnswer(input.Question, out)), output, nil
}

func (s *Server) mcpListModelsHandler(_ context.Context, _ *mcp.CallToolRequest, _ ListModelsInput) (
	*mcp.CallToolResult,
	ListModelsOutput,
	error,
) {
	return nil, ListModelsOutput{Models: s.svc.Models().Models()}, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
