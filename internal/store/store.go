package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Aman-CERP/pdfqa/internal/document"
)

// ErrNotFound is returned when a record or owner does not exist.
var ErrNotFound = errors.New("not found")

// DocumentStore persists document records.
type DocumentStore interface {
	// Create inserts a new record. An empty ID is assigned, a zero CreatedAt
	// is set to now and an empty Status becomes processing.
	Create(ctx context.Context, rec *document.Record) error
	Get(ctx context.Context, id string) (*document.Record, error)
	ListByOwner(ctx context.Context, ownerID string) ([]document.Record, error)
	FindByExternalFileID(ctx context.Context, fileID string) (*document.Record, error)
	// FindByExternalFileIDs resolves many file ids in one query. Unknown ids
	// are absent from the result.
	FindByExternalFileIDs(ctx context.Context, fileIDs []string) ([]document.Record, error)
	// ListByStatus lists records with the given status across all owners,
	// oldest first.
	ListByStatus(ctx context.Context, status document.Status) ([]document.Record, error)
	// ToggleActive atomically flips IsActive and returns the updated record.
	ToggleActive(ctx context.Context, id string) (*document.Record, error)
	// SetMetadata sets the page count, and the size only when none is
	// stored. Other fields are left alone.
	SetMetadata(ctx context.Context, id string, pages int, size int64) error
	// UpdateStatus moves a record from one status to another. applied is
	// false when the record was no longer in status from.
	UpdateStatus(ctx context.Context, id string, from, to document.Status) (applied bool, err error)
	Delete(ctx context.Context, id string) error
}

// OwnerStore persists owners and their collection association.
type OwnerStore interface {
	GetOwner(ctx context.Context, id string) (*document.Owner, error)
	// UpsertOwner creates the owner or updates its name.
	UpsertOwner(ctx context.Context, owner *document.Owner) error
	// SetCollection records the owner's collection id if none is set yet.
	// applied is false when another writer got there first.
	SetCollection(ctx context.Context, ownerID, collectionID string) (applied bool, err error)
}

// Store is the full persistence surface.
type Store interface {
	DocumentStore
	OwnerStore
	Close() error
}

// Options selects and configures a Store implementation.
type Options struct {
	// Driver is "sqlite" (default) or "mongo".
	Driver string
	// Path is the SQLite file. Empty opens an in-memory database.
	Path string

	MongoURI      string
	MongoDatabase string
}

// Open creates the Store selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Driver) {
	case "", "sqlite":
		return NewSQLiteStore(opts.Path)
	case "mongo":
		return NewMongoStore(ctx, opts.MongoURI, opts.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
