// Package document defines the document record and owner types shared by
// the store, reconciler and service layers.
package document

import (
	"fmt"
	"time"
)

// Status is the ingestion status of a document as exposed to callers.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transition is defined from s.
func (s Status) IsTerminal() bool {
	return s == StatusReady || s == StatusFailed
}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusReady, StatusFailed:
		return true
	}
	return false
}

// ParseStatus converts a stored status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown document status %q", s)
	}
	return st, nil
}

// Record is the stored metadata of one uploaded document.
//
// ID, OwnerID, ExternalFileID and CreatedAt never change after creation.
// Status is written only by the reconciler.
type Record struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Filename string `json:"filename"`

	// ExternalFileID identifies the file in the indexing backend.
	ExternalFileID string `json:"external_file_id"`
	// ExternalCollectionFileID is empty when adding the file to the
	// owner's collection failed.
	ExternalCollectionFileID string `json:"external_collection_file_id,omitempty"`

	Status   Status `json:"status"`
	IsActive bool   `json:"is_active"`

	PageCount *int   `json:"page_count,omitempty"`
	SizeBytes *int64 `json:"size_bytes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCollectionFile reports whether the record was added to a collection.
func (r *Record) HasCollectionFile() bool {
	return r.ExternalCollectionFileID != ""
}

// Age returns how long ago the record was created.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// Owner is a user that owns documents and, lazily, one indexing collection.
type Owner struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CollectionID string    `json:"collection_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CollectionLabel is the name given to the owner's collection on creation.
func (o *Owner) CollectionLabel() string {
	return o.Name + "'s Vector Store"
}

// Partition splits records into active and inactive, preserving order.
func Partition(records []Record) (active, inactive []Record) {
	for _, r := range records {
		if r.IsActive {
			active = append(active, r)
		} else {
			inactive = append(inactive, r)
		}
	}
	return active, inactive
}

// IntPtr and Int64Ptr build optional metadata values.
func IntPtr(v int) *int { return &v }

func Int64Ptr(v int64) *int64 { return &v }
