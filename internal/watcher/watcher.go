package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Operation is a file system operation.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a change to one file in the watched directory.
type FileEvent struct {
	// Path is the file name relative to the watched directory.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures watching.
type Options struct {
	// Debounce is how long a file must be quiet before its event is emitted.
	// Default: 2s
	Debounce time.Duration

	// PollInterval is the scan interval when fsnotify is unavailable.
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the capacity of the batch channel.
	// Default: 16
	EventBufferSize int

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		Debounce:        2 * time.Second,
		PollInterval:    5 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults returns o with zero fields replaced by defaults.
func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	if o.Debounce <= 0 {
		o.Debounce = def.Debounce
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = def.EventBufferSize
	}
	return o
}

// isCandidate reports whether name looks like a PDF worth uploading.
// Hidden and partial-download files are skipped.
func isCandidate(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".pdf")
}
