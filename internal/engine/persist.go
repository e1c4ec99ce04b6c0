package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/disambig/internal/history"
	"github.com/scrypster/disambig/internal/pattern"
	"github.com/scrypster/disambig/internal/storage"
	"github.com/scrypster/disambig/pkg/types"
)

// saveHistory writes the ledger to the history store. It runs on the writer
// after a successful mutation. Failures are logged; the in-memory session
// stays authoritative and the next mutation retries the save.
func (e *Engine) saveHistory(ctx context.Context) {
	if e.deps.History == nil {
		return
	}
	if err := e.deps.History.SaveHistory(ctx, e.pattern.History().Get()); err != nil {
		e.logger.Warn("failed to save history", zap.String("session", e.sessionID), zap.Error(err))
	}
}

// Persist writes the serialized session to the snapshot store under the
// session id.
func (e *Engine) Persist(ctx context.Context) error {
	if e.deps.Snapshots == nil {
		return fmt.Errorf("engine: no snapshot store configured")
	}
	doc, err := e.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("engine: persist: %w", err)
	}
	now := time.Now().UTC()
	snap := &storage.Snapshot{ID: e.sessionID, Pattern: doc, CreatedAt: now, UpdatedAt: now}
	if err := e.deps.Snapshots.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("engine: persist: %w", err)
	}
	e.logger.Debug("session persisted", zap.String("session", e.sessionID))
	return nil
}

// Resume creates an engine for sessionID. The history ledger is loaded from
// deps.History and the session from deps.Snapshots when they are set. A
// session id with no snapshot starts an empty session under that id; an
// empty sessionID gets a fresh one.
func Resume(ctx context.Context, deps Deps, cfg Config, sessionID string, opts ...pattern.Opt) (*Engine, error) {
	var hist types.SerializedHistory
	if deps.History != nil {
		var err error
		hist, err = deps.History.LoadHistory(ctx)
		if err != nil {
			return nil, fmt.Errorf("engine: loading history: %w", err)
		}
	}

	p := pattern.New("", history.FromSerialized(hist), opts...)
	if sessionID != "" && deps.Snapshots != nil {
		snap, err := deps.Snapshots.LoadSnapshot(ctx, sessionID)
		switch {
		case err == nil:
			p, err = pattern.Load(snap.Pattern, hist, opts...)
			if err != nil {
				return nil, fmt.Errorf("engine: loading session %s: %w", sessionID, err)
			}
		case errors.Is(err, storage.ErrNotFound):
		default:
			return nil, fmt.Errorf("engine: loading session %s: %w", sessionID, err)
		}
	}

	e, err := New(p, deps, cfg)
	if err != nil {
		return nil, err
	}
	if sessionID != "" {
		e.sessionID = sessionID
	}
	return e, nil
}
