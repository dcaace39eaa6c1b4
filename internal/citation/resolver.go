package citation

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/pdfqa/internal/document"
)

// DefaultCacheSize bounds the number of cached file names.
const DefaultCacheSize = 1024

// FileFinder looks up records by backend file id in one batch.
type FileFinder interface {
	FindByExternalFileIDs(ctx context.Context, fileIDs []string) ([]document.Record, error)
}

// StoreResolver resolves names from the document store. Positive hits are
// cached; a file id's name never changes once the record exists.
type StoreResolver struct {
	finder FileFinder
	cache  *lru.Cache[string, string]
}

var _ Resolver = (*StoreResolver)(nil)

// NewStoreResolver creates a resolver with an LRU of size entries.
func NewStoreResolver(finder FileFinder, size int) (*StoreResolver, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &StoreResolver{finder: finder, cache: cache}, nil
}

// ResolveNames returns the filename for every known file id.
func (r *StoreResolver) ResolveNames(ctx context.Context, fileIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(fileIDs))
	var missing []string
	for _, id := range fileIDs {
		if name, ok := r.cache.Get(id); ok {
			names[id] = name
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return names, nil
	}

	records, err := r.finder.FindByExternalFileIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		names[rec.ExternalFileID] = rec.Filename
		r.cache.Add(rec.ExternalFileID, rec.Filename)
	}
	return names, nil
}

// Forget drops a cached name, e.g. after the record is deleted.
func (r *StoreResolver) Forget(fileID string) {
	r.cache.Remove(fileID)
}

// Len returns the number of cached names.
func (r *StoreResolver) Len() int {
	return r.cache.Len()
}
