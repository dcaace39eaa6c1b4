// Package pdf validates uploaded PDF files and extracts best-effort
// metadata.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	qaerrors "github.com/Aman-CERP/pdfqa/internal/errors"
)

// Magic is the header every PDF file starts with.
const Magic = "%PDF-"

// Info is what Inspect learns about a file.
type Info struct {
	Size int64
	// Pages is nil when the page count could not be determined.
	Pages *int
}

// HasPDFExtension reports whether name ends in .pdf (any case).
func HasPDFExtension(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// ValidateHeader checks the magic bytes at the start of a file.
func ValidateHeader(head []byte) error {
	if !bytes.HasPrefix(head, []byte(Magic)) {
		return qaerrors.New(qaerrors.ErrCodeUnsupportedType, "file is not a PDF", nil).
			WithSuggestion("Only PDF files can be uploaded")
	}
	return nil
}

// CheckFile validates name, size and header of the file at path without
// reading it fully. maxBytes <= 0 disables the size cap.
func CheckFile(path string, maxBytes int64) (int64, error) {
	if !HasPDFExtension(path) {
		return 0, qaerrors.New(qaerrors.ErrCodeUnsupportedType, "only .pdf files are supported", nil).
			WithDetail("path", path)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, qaerrors.New(qaerrors.ErrCodeFileNotFound, "file not found", err).WithDetail("path", path)
		}
		if os.IsPermission(err) {
			return 0, qaerrors.New(qaerrors.ErrCodeFilePermission, "permission denied", err).WithDetail("path", path)
		}
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return 0, qaerrors.New(qaerrors.ErrCodeInvalidPath, "path is a directory", nil).WithDetail("path", path)
	}
	if maxBytes > 0 && st.Size() > maxBytes {
		return 0, qaerrors.New(qaerrors.ErrCodeFileTooLarge, "file exceeds the upload size limit", nil).
			WithDetail("path", path).
			WithDetail("size", fmt.Sprint(st.Size())).
			WithDetail("limit", fmt.Sprint(maxBytes))
	}

	head := make([]byte, len(Magic))
	if _, err := io.ReadFull(f, head); err != nil {
		return 0, ValidateHeader(nil)
	}
	if err := ValidateHeader(head); err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// PageCount counts the pages of a PDF with relaxed validation.
func PageCount(rs io.ReadSeeker) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(rs, conf)
	if err != nil {
		return 0, qaerrors.New(qaerrors.ErrCodeFileCorrupt, "failed to read PDF page count", err)
	}
	return n, nil
}

// PageCountBytes is PageCount for in-memory content.
func PageCountBytes(data []byte) (int, error) {
	return PageCount(bytes.NewReader(data))
}

// Inspect validates the file at path and counts its pages. A page count
// failure leaves Info.Pages nil and is not an error.
func Inspect(path string, maxBytes int64) (*Info, error) {
	size, err := CheckFile(path, maxBytes)
	if err != nil {
		return nil, err
	}

	info := &Info{Size: size}

	f, err := os.Open(path)
	if err != nil {
		return info, nil
	}
	defer f.Close()

	if n, err := PageCount(f); err == nil {
		info.Pages = &n
	}
	return info, nil
}
