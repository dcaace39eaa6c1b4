package pdf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
	"github.com/Aman-CERP/pdfqa/internal/pdf/pdftest"
)

func TestHasPDFExtension(t *testing.T) {
	assert.True(t, HasPDFExtension("a.pdf"))
	assert.True(t, HasPDFExtension("/x/REPORT.PDF"))
	assert.False(t, HasPDFExtension("a.pdf.txt"))
	assert.False(t, HasPDFExtension("pdf"))
}

func TestCheckFile(t *testing.T) {
	valid := pdftest.Minimal(1)

	tests := []struct {
		name     string
		file     string
		content  []byte
		maxBytes int64
		wantCode string
	}{
		{name: "valid", file: "a.pdf", content: valid},
		{name: "wrong extension", file: "a.txt", content: valid, wantCode: qaerrors.ErrCodeUnsupportedType},
		{name: "bad magic", file: "a.pdf", content: []byte("<html>not a pdf</html>"), wantCode: qaerrors.ErrCodeUnsupportedType},
		{name: "too short", file: "a.pdf", content: []byte("%P"), wantCode: qaerrors.ErrCodeUnsupportedType},
		{name: "too large", file: "a.pdf", content: valid, maxBytes: 10, wantCode: qaerrors.ErrCodeFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := pdftest.WriteFile(t, tt.file, tt.content)

			size, err := CheckFile(path, tt.maxBytes)

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, qaerrors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.content)), size)
		})
	}
}

func TestCheckFile_Missing(t *testing.T) {
	_, err := CheckFile("/definitely/not/here.pdf", 0)
	assert.Equal(t, qaerrors.ErrCodeFileNotFound, qaerrors.GetCode(err))
}

func TestPageCount(t *testing.T) {
	n, err := PageCount(bytes.NewReader(pdftest.Minimal(3)))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPageCount_Garbage(t *testing.T) {
	_, err := PageCountBytes([]byte("%PDF-1.4 truncated"))
	assert.Error(t, err)
}

func TestInspect_BestEffortPages(t *testing.T) {
	// Given: a file with a valid header but a broken body
	path := pdftest.WriteFile(t, "broken.pdf", []byte("%PDF-1.4 nothing else"))

	// When: inspecting it
	info, err := Inspect(path, 0)

	// Then: validation passes and the page count is absent
	require.NoError(t, err)
	assert.Nil(t, info.Pages)
	assert.Equal(t, int64(21), info.Size)

	good, err := Inspect(pdftest.WriteFile(t, "good.pdf", pdftest.Minimal(2)), 0)
	require.NoError(t, err)
	require.NotNil(t, good.Pages)
	assert.Equal(t, 2, *good.Pages)
}
