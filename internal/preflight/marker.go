package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MarkerFile records a passing check in the data directory.
const MarkerFile = ".preflight-passed"

// NeedsCheck reports whether checks must run: there is no marker, or it
// was written by a different version.
func NeedsCheck(dataDir, version string) bool {
	at, v, err := readMarker(dataDir)
	return err != nil || at.IsZero() || v != version
}

// MarkPassed writes the marker for version.
func MarkPassed(dataDir, version string) error {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	content := time.Now().UTC().Format(time.RFC3339) + "\n" + version + "\n"
	return os.WriteFile(filepath.Join(dataDir, MarkerFile), []byte(content), 0o600)
}

// ClearMarker removes the marker so the next start checks again.
func ClearMarker(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, MarkerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// LastPassed returns when checks last passed, or the zero time.
func LastPassed(dataDir string) time.Time {
	at, _, err := readMarker(dataDir)
	if err != nil {
		return time.Time{}
	}
	return at
}

func readMarker(dataDir string) (time.Time, string, error) {
	content, err := os.ReadFile(filepath.Join(dataDir, MarkerFile))
	if err != nil {
		return time.Time{}, "", err
	}
	lines := strings.SplitN(strings.TrimSpace(string(content)), "\n", 2)
	at, err := time.Parse(time.RFC3339, lines[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("parse marker: %w", err)
	}
	version := ""
	if len(lines) == 2 {
		version = strings.TrimSpace(lines[1])
	}
	return at, version, nil
}
