package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DocumentsURI is the resource listing the owner's documents.
const DocumentsURI = "pdfqa://documents"

// ModelsURI is the resource listing the model catalog.
const ModelsURI = "pdfqa://models"

func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "documents",
			URI:         DocumentsURI,
			Description: "Uploaded PDF documents with status and active flag",
			MIMEType:    "application/json",
		},
		s.handleDocumentsResource,
	)
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "models",
			URI:         ModelsURI,
			Description: "Models available for answering questions",
			MIMEType:    "application/json",
		},
		s.handleModelsResource,
	)
}

func (s *Server) handleDocumentsResource(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	docs, err := s.svc.ListDocuments(ctx, s.ownerID)
	if err != nil {
		return nil, MapError(err)
	}

	out := make([]DocumentOutput, 0, len(docs))
	for _, d := range docs {
		out = append(out, ToDocumentOutput(d))
	}
	return jsonResource(DocumentsURI, out)
}

func (s *Server) handleModelsResource(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonResource(ModelsURI, s.svc.Models().Models())
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
