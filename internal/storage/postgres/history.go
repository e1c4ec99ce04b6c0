package postgres

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
		return types.SerializedHistory{}, fmt.Errorf("postgres: failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []storage.HistoryEntry
	for rows.Next() {
		var e storage.HistoryEntry
		if err := rows.Scan(&e.Kind, &e.Identifier, &e.GraphPath, &e.Document); err != nil {
			return types.SerializedHistory{}, fmt.Errorf("postgres: failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return types.SerializedHistory{}, fmt.Errorf("postgres: failed to read history: %w", err)
	}

	return storage.HistoryFromEntries(entries)
}

// SaveHistory upserts every entry of doc in a single transaction.
func (s *Store) SaveHistory(ctx context.Context, doc types.SerializedHistory) error {
	entries, err := storage.EntriesFromHistory(doc)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history_entries (kind, identifier, graph_path, document)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, identifier) DO UPDATE SET
			graph_path = EXCLUDED.graph_path,
			document = EXCLUDED.document,
			updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("postgres: failed to prepare history upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, string(e.Kind), e.Identifier, e.GraphPath, string(e.Document)); err != nil {
			return fmt.Errorf("postgres: failed to save %s %q: %w", e.Kind, e.Identifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: failed to commit history: %w", err)
	}
	return nil
}

// TruncateForTest removes all rows. It is intended for tests only.
func (s *Store) TruncateForTest(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE history_entries, snapshots RESTART IDENTITY"); err != nil {
		return fmt.Errorf("postgres: failed to truncate: %w", err)
	}
	return nil
}
