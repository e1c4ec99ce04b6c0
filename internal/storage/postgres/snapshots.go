package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/disambig/internal/storage"
)

// SaveSnapshot creates or replaces a snapshot (upsert semantics).
func (s *Store) SaveSnapshot(ctx context.Context, snap *storage.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	doc, err := json.Marshal(snap.Pattern)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode snapshot %q: %w", snap.ID, err)
	}

	now := time.Now().UTC()
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = now
	}
	snap.UpdatedAt = now
	drafts, ambiguities, resolved := storage.Counts(snap.Pattern)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, query, document, drafts, ambiguities, resolved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			query = EXCLUDED.query,
			document = EXCLUDED.document,
			drafts = EXCLUDED.drafts,
			ambiguities = EXCLUDED.ambiguities,
			resolved = EXCLUDED.resolved,
			updated_at = EXCLUDED.updated_at
	`, snap.ID, snap.Pattern.Query, string(doc), drafts, ambiguities, resolved, snap.CreatedAt, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to save snapshot %q: %w", snap.ID, err)
	}
	return nil
}

// LoadSnapshot retrieves a snapshot by ID.
func (s *Store) LoadSnapshot(ctx context.Context, id string) (*storage.Snapshot, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: snapshot ID is required", storage.ErrInvalidInput)
	}

	var (
		snap storage.Snapshot
		doc  []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document, created_at, updated_at
		FROM snapshots
		WHERE id = $1
	`, id).Scan(&snap.ID, &doc, &snap.CreatedAt, &snap.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: snapshot %q", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load snapshot %q: %w", id, err)
	}

	if err := json.Unmarshal(doc, &snap.Pattern); err != nil {
		return nil, fmt.Errorf("postgres: failed to decode snapshot %q: %w", id, err)
	}
	return &snap, nil
}

// ListSnapshots returns snapshot summaries, most recently updated first.
func (s *Store) ListSnapshots(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[storage.SnapshotInfo], error) {
	opts = opts.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots").Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: failed to count snapshots: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, drafts, ambiguities, resolved, updated_at
		FROM snapshots
		ORDER BY updated_at DESC, id ASC
		LIMIT $1 OFFSET $2
	`, opts.Limit, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]storage.SnapshotInfo, 0, opts.Limit)
	for rows.Next() {
		var info storage.SnapshotInfo
		if err := rows.Scan(&info.ID, &info.Query, &info.Drafts, &info.Ambiguities, &info.Resolved, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan snapshot: %w", err)
		}
		items = append(items, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read snapshots: %w", err)
	}

	return &storage.PaginatedResult[storage.SnapshotInfo]{
		Items:    items,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(items) < total,
	}, nil
}

// DeleteSnapshot removes a snapshot.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete snapshot %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: snapshot %q", storage.ErrNotFound, id)
	}
	return nil
}
