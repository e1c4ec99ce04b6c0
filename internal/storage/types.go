package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/disambig/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// Snapshot is a persisted session.
type Snapshot struct {
	// ID is the session id.
	ID string

	Pattern types.SerializedPattern

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the snapshot can be stored.
func (s *Snapshot) Validate() error {
	if s == nil {
		return ErrInvalidInput
	}
	if s.ID == "" {
		return fmt.Errorf("%w: snapshot ID is required", ErrInvalidInput)
	}
	return nil
}

// SnapshotInfo summarizes a snapshot without its documents.
type SnapshotInfo struct {
	ID          string
	Query       string
	Drafts      int
	Ambiguities int
	Resolved    int
	UpdatedAt   time.Time
}

// Counts returns the number of drafts, ambiguities and resolved entities of
// a serialized session, across all kinds.
func Counts(doc types.SerializedPattern) (drafts, ambiguities, resolved int) {
	drafts = len(doc.ClassDrafts) + len(doc.IntentDrafts) + len(doc.ArgumentDrafts)
	ambiguities = len(doc.ClassAmbiguities) + len(doc.IntentAmbiguities) + len(doc.ArgumentAmbiguities)
	resolved = len(doc.ClassFixed) + len(doc.IntentFixed) + len(doc.ArgumentFixed)
	return drafts, ambiguities, resolved
}

// PaginatedResult represents a paginated result set with type safety using generics.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T

	// Total is the total number of items across all pages.
	Total int

	// Page is the current page number (1-indexed).
	Page int

	// PageSize is the number of items per page.
	PageSize int

	// HasMore indicates whether there are more pages available.
	HasMore bool
}

// ListOptions provides pagination options for list operations.
type ListOptions struct {
	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 20, max: 100).
	Limit int
}

// Normalize applies defaults and bounds.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	return o
}

// Offset returns the number of rows to skip.
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// HistoryEntry is one row of a persisted ledger.
type HistoryEntry struct {
	Kind       types.Kind
	Identifier string
	GraphPath  string

	// Document is the JSON encoding of the resolved record.
	Document []byte
}
