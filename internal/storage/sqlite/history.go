package sqlite

import (
	"context"
	"fmt"

	"github.com/scrypster/disambig/internal/storage"
	"github.com/scrypster/disambig/pkg/types"
)

// LoadHistory returns every recorded entity in first-insertion order.
func (s *Store) LoadHistory(ctx context.Context) (types.SerializedHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, identifier, graph_path, document
		FROM history_entries
		ORDER BY seq ASC
	`)
	if err != nil {
		return types.SerializedHistory{}, fmt.Errorf("sqlite: failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []storage.HistoryEntry
	for rows.Next() {
		var (
			e   storage.HistoryEntry
			doc string
		)
		if err := rows.Scan(&e.Kind, &e.Identifier, &e.GraphPath, &doc); err != nil {
			return types.SerializedHistory{}, fmt.Errorf("sqlite: failed to scan history entry: %w", err)
		}
		e.Document = []byte(doc)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return types.SerializedHistory{}, fmt.Errorf("sqlite: failed to read history: %w", err)
	}

	return storage.HistoryFromEntries(entries)
}

// SaveHistory upserts every entry of doc in a single transaction. Existing
// rows keep their position.
func (s *Store) SaveHistory(ctx context.Context, doc types.SerializedHistory) error {
	entries, err := storage.EntriesFromHistory(doc)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history_entries (kind, identifier, graph_path, document)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, identifier) DO UPDATE SET
			graph_path = excluded.graph_path,
			document = excluded.document,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("sqlite: failed to prepare history upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, string(e.Kind), e.Identifier, e.GraphPath, string(e.Document)); err != nil {
			return fmt.Errorf("sqlite: failed to save %s %q: %w", e.Kind, e.Identifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit history: %w", err)
	}
	return nil
}
