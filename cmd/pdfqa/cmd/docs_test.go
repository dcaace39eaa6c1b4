package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfqa/internal/document"
	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/pdf/pdftest"
)

func TestUpload_InProcess(t *testing.T) {
	// Given: no daemon and a backend that has indexed files already
	env := setupEnv(t)
	env.fake.DefaultFileStatus = index.FileStatusCompleted
	path := pdftest.WriteFile(t, "report.pdf", pdftest.Minimal(3))

	// When: uploading the file
	out, err := execute(t, "upload", path)

	// Then: the record is stored active and ready with its page count
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded report.pdf")

	docs := listDocs(t)
	require.Len(t, docs, 1)
	assert.Equal(t, "report.pdf", docs[0].Filename)
	assert.Equal(t, document.StatusReady, docs[0].Status)
	assert.True(t, docs[0].IsActive)
	require.NotNil(t, docs[0].PageCount)
	assert.Equal(t, 3, *docs[0].PageCount)
}

func TestUpload_Rejections(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name    string
		args    func(t *testing.T) []string
		wantErr string
	}{
		{
			name: "not a pdf",
			args: func(t *testing.T) []string {
				return []string{"upload", pdftest.WriteFile(t, "notes.txt", []byte("hello"))}
			},
			wantErr: "1 of 1 uploads failed",
		},
		{
			name: "name with several files",
			args: func(t *testing.T) []string {
				return []string{"upload", "--name", "x.pdf", "a.pdf", "b.pdf"}
			},
			wantErr: "--name can only be used with a single file",
		},
		{
			name:    "no files",
			args:    func(*testing.T) []string { return []string{"upload"} },
			wantErr: "requires at least 1 arg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args(t)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.Empty(t, listDocs(t))
}

func TestUpload_MultipleFilesReportsPartialFailure(t *testing.T) {
	setupEnv(t)
	good := pdftest.WriteFile(t, "good.pdf", pdftest.Minimal(1))
	bad := pdftest.WriteFile(t, "bad.pdf", []byte("not a pdf at all"))

	out, err := execute(t, "upload", good, bad)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 uploads failed")
	assert.Contains(t, out, "Uploaded good.pdf")
	assert.Contains(t, out, "bad.pdf")
	assert.Len(t, listDocs(t), 1)
}

func TestDocs_StatusToggleDelete(t *testing.T) {
	// Given: one processing document
	env := setupEnv(t)
	_, err := execute(t, "upload", pdftest.WriteFile(t, "a.pdf", pdftest.Minimal(1)))
	require.NoError(t, err)
	doc := listDocs(t)[0]
	require.Equal(t, document.StatusProcessing, doc.Status)

	// When: the backend finishes and the status is refreshed
	env.fake.SetFileStatus(env.collectionID(t), doc.ExternalCollectionFileID, index.FileStatusCompleted)

	out, err := execute(t, "docs", "status", doc.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "ready")

	// When: toggling twice
	out, err = execute(t, "docs", "toggle", doc.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "is now inactive")
	assert.False(t, listDocs(t)[0].IsActive)

	out, err = execute(t, "docs", "toggle", doc.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "is now active")

	// When: deleting
	out, err = execute(t, "docs", "delete", doc.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+doc.ID)

	// Then: the record and the backend file are gone
	assert.Empty(t, listDocs(t))
	assert.False(t, env.fake.HasFile(doc.ExternalFileID))
}

func TestDocs_UnknownDocument(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "docs", "status", "missing")

	require.Error(t, err)
	assert.Equal(t, qaerrors.ErrCodeDocumentNotFound, qaerrors.GetCode(err))
}

func TestDocs_ListTable(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "docs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents")

	_, err = execute(t, "upload", pdftest.WriteFile(t, "annual-report.pdf", pdftest.Minimal(2)))
	require.NoError(t, err)

	out, err = execute(t, "docs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "annual-report.pdf")
	assert.Contains(t, out, "processing")
}
