package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/scrypster/disambig/internal/catalog"
	"github.com/scrypster/disambig/internal/config"
	"github.com/scrypster/disambig/internal/engine"
	"github.com/scrypster/disambig/internal/llm"
	"github.com/scrypster/disambig/internal/logging"
	"github.com/scrypster/disambig/internal/notify"
	"github.com/scrypster/disambig/internal/pattern"
	"github.com/scrypster/disambig/internal/rerank"
	"github.com/scrypster/disambig/internal/storage"
	"github.com/scrypster/disambig/internal/storage/postgres"
	"github.com/scrypster/disambig/internal/storage/sqlite"
	"github.com/scrypster/disambig/pkg/types"
)

// app holds what one CLI invocation needs: the configuration, the opened
// store and a started engine for the selected session.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  storage.Store
	engine *engine.Engine
}

// openApp loads configuration, opens the store and resumes the session.
func openApp(ctx context.Context, configPath, sessionID string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	deps, err := buildDeps(cfg, logger)
	if err != nil {
		_ = store.Close()
		_ = logger.Sync()
		return nil, err
	}
	deps.History = store
	deps.Snapshots = store

	policy := pattern.Policy{
		ClearWinnerScore: cfg.Resolution.ClearWinnerScore,
		LowScoreCutoff:   cfg.Resolution.LowScoreCutoff,
	}
	eng, err := engine.Resume(ctx, deps, engine.ConfigFrom(cfg.Resolution), sessionID, pattern.WithPolicy(policy))
	if err != nil {
		_ = store.Close()
		_ = logger.Sync()
		return nil, err
	}
	if cfg.Storage.Engine != "memory" {
		events := notify.NewEventWriter(cfg.Storage.DataPath)
		eng.SetOnPromoted(func(kind types.Kind, id string, tier types.Tier) {
			if err := events.Promoted(eng.SessionID(), kind, id, tier); err != nil {
				logger.Warn("failed to write promotion event",
					zap.String("kind", string(kind)),
					zap.String("identifier", id),
					zap.Error(err))
			}
		})
	}
	if err := eng.Start(ctx); err != nil {
		_ = store.Close()
		_ = logger.Sync()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: store, engine: eng}, nil
}

// close persists the session when persist is set, then stops the engine and
// releases the store.
func (a *app) close(ctx context.Context, persist bool) error {
	var errs []error
	if persist {
		if err := a.engine.Persist(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.engine.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.New(ctx, cfg.Storage.PostgresDSN, postgres.WithLogger(logger))
	case "memory":
		return sqlite.New(ctx, ":memory:", sqlite.WithLogger(logger))
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return sqlite.New(ctx, cfg.SQLitePath(), sqlite.WithLogger(logger))
	}
}

// buildDeps wires graph search and the reranker. Without a catalog the
// engine can ingest and solve but not resolve.
func buildDeps(cfg *config.Config, logger *zap.Logger) (engine.Deps, error) {
	deps := engine.Deps{Logger: logger}

	if cfg.Catalog.Path != "" {
		c, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return deps, err
		}
		deps.Search = c
	}

	gen, err := llm.NewTextGenerator(cfg.LLM, logger)
	if err != nil {
		return deps, fmt.Errorf("failed to create LLM client: %w", err)
	}
	deps.Reranker = rerank.New(gen, logger)
	return deps, nil
}
