// Package storage provides the persistence interfaces of disambig.
//
// The storage layer is split into two small interfaces: HistoryStore keeps
// the cross-session ledger of resolved entities and SnapshotStore keeps
// serialized sessions so an interrupted disambiguation can be resumed.
// Backends live in the sqlite and postgres subpackages.
package storage

import (
	"context"

	"github.com/scrypster/disambig/pkg/types"
)

// HistoryStore persists the history ledger.
type HistoryStore interface {
	// LoadHistory returns every recorded entity in insertion order.
	// An empty store yields an empty document, not an error.
	LoadHistory(ctx context.Context) (types.SerializedHistory, error)

	// SaveHistory upserts every entry of doc by (kind, identifier).
	// Entries absent from doc are kept; history never forgets.
	SaveHistory(ctx context.Context, doc types.SerializedHistory) error

	// Close releases resources held by the store.
	Close() error
}

// SnapshotStore persists serialized sessions.
type SnapshotStore interface {
	// SaveSnapshot creates or replaces the snapshot with the same ID.
	SaveSnapshot(ctx context.Context, snap *Snapshot) error

	// LoadSnapshot retrieves a snapshot by ID.
	// Returns ErrNotFound if the snapshot doesn't exist.
	LoadSnapshot(ctx context.Context, id string) (*Snapshot, error)

	// ListSnapshots returns snapshot summaries, most recently updated first.
	ListSnapshots(ctx context.Context, opts ListOptions) (*PaginatedResult[SnapshotInfo], error)

	// DeleteSnapshot removes a snapshot.
	// Returns ErrNotFound if the snapshot doesn't exist.
	DeleteSnapshot(ctx context.Context, id string) error

	// Close releases resources held by the store.
	Close() error
}

// Store is implemented by backends that provide both interfaces on one
// connection.
type Store interface {
	HistoryStore
	SnapshotStore
}
