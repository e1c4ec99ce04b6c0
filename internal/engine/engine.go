package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/scrypster/disambig/internal/pattern"
	"github.com/scrypster/disambig/pkg/types"
)

// command is a unit of work for the writer goroutine.
type command struct {
	name    string
	mutates bool
	fn      func(p *pattern.Pattern) error
	reply   chan error
}

// Engine owns one session. All reads and writes of the pattern happen on the
// writer goroutine started by Start.
type Engine struct {
	config    Config
	deps      Deps
	logger    *zap.Logger
	limiter   *rate.Limiter
	sessionID string

	// owned by the writer goroutine once started
	pattern *pattern.Pattern

	commands chan command
	stop     chan struct{}
	done     chan struct{}

	// State management
	started bool
	mu      sync.RWMutex

	// Callbacks
	onPromoted func(kind types.Kind, id string, tier types.Tier)
}

// New creates an engine for p with a fresh session id.
func New(p *pattern.Pattern, deps Deps, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: pattern is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Engine{
		config:    cfg,
		deps:      deps,
		logger:    logger.Named("engine"),
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		sessionID: uuid.NewString(),
		pattern:   p,
	}, nil
}

// SessionID returns the id the session is persisted under.
func (e *Engine) SessionID() string { return e.sessionID }

// SetOnPromoted sets a callback fired after an entity leaves the draft tier,
// either through resolution or Solve. It runs on the calling goroutine, never
// on the writer, so it may call back into the engine.
func (e *Engine) SetOnPromoted(callback func(kind types.Kind, id string, tier types.Tier)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPromoted = callback
}

func (e *Engine) notifyPromoted(out pattern.Outcome) {
	if out.Tier == types.TierDraft || out.Tier == "" {
		return
	}
	e.mu.RLock()
	cb := e.onPromoted
	e.mu.RUnlock()
	if cb != nil {
		cb(out.Kind, out.Identifier, out.Tier)
	}
}

// Start launches the writer goroutine. The engine stops when ctx is
// cancelled or Shutdown is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}

	e.commands = make(chan command, e.config.QueueSize)
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.run(ctx, e.commands, e.stop, e.done)

	e.started = true
	e.logger.Info("session engine started", zap.String("session", e.sessionID))
	return nil
}

// Shutdown stops the writer after the commands already queued have run.
// It waits at most ShutdownTimeout, or until ctx is done.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return ErrNotStarted
	}
	e.started = false
	close(e.stop)
	done := e.done
	e.mu.Unlock()

	timeout := time.NewTimer(e.config.ShutdownTimeout)
	defer timeout.Stop()

	select {
	case <-done:
		e.logger.Info("session engine shut down", zap.String("session", e.sessionID))
		return nil
	case <-timeout.C:
		e.logger.Warn("shutdown timeout reached, writer still busy", zap.String("session", e.sessionID))
		return fmt.Errorf("engine: shutdown timed out after %v", e.config.ShutdownTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the writer loop. On stop it drains the commands already buffered.
func (e *Engine) run(ctx context.Context, commands <-chan command, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case cmd := <-commands:
			e.execute(ctx, cmd)
		case <-stop:
			for {
				select {
				case cmd := <-commands:
					e.execute(ctx, cmd)
				default:
					return
				}
			}
		case <-ctx.Done():
			e.logger.Debug("writer stopped by context", zap.Error(ctx.Err()))
			return
		}
	}
}

func (e *Engine) execute(ctx context.Context, cmd command) {
	err := cmd.fn(e.pattern)
	if err == nil && cmd.mutates {
		e.saveHistory(ctx)
	}
	cmd.reply <- err
}

// do runs fn on the writer and waits for it to finish.
func (e *Engine) do(ctx context.Context, name string, mutates bool, fn func(p *pattern.Pattern) error) error {
	e.mu.RLock()
	if !e.started {
		e.mu.RUnlock()
		return ErrNotStarted
	}
	commands, done := e.commands, e.done
	e.mu.RUnlock()

	cmd := command{name: name, mutates: mutates, fn: fn, reply: make(chan error, 1)}
	select {
	case commands <- cmd:
	case <-done:
		return ErrNotStarted
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-done:
		// the writer may have run cmd while draining
		select {
		case err := <-cmd.reply:
			return err
		default:
			return ErrNotStarted
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetQuery replaces the natural-language query of the session.
func (e *Engine) SetQuery(ctx context.Context, query string) error {
	return e.do(ctx, "set_query", false, func(p *pattern.Pattern) error {
		p.SetQuery(query)
		return nil
	})
}

// Ingest merges a fresh parse into the session. Intents whose target could
// not be located are logged and reported, not failed.
func (e *Engine) Ingest(ctx context.Context, parsed types.ParsedPattern) (pattern.IngestReport, error) {
	var report pattern.IngestReport
	err := e.do(ctx, "ingest", true, func(p *pattern.Pattern) error {
		var err error
		report, err = p.UpdateWithParsedData(parsed)
		return err
	})
	if err != nil {
		return report, fmt.Errorf("engine: ingest: %w", err)
	}
	for _, terr := range report.TargetErrors {
		e.logger.Warn("intent target not found", zap.String("kind", string(types.KindIntent)), zap.Error(terr))
	}
	e.logger.Debug("ingested parse",
		zap.Int("classes", len(report.DraftedClasses)),
		zap.Int("intents", len(report.DraftedIntents)),
		zap.Int("arguments", len(report.DraftedArguments)),
		zap.Int("kept", len(report.Kept)))
	return report, nil
}

// Solve resolves an ambiguous entity to the option at chosenPath.
func (e *Engine) Solve(ctx context.Context, kind types.Kind, id, chosenPath string) (pattern.Outcome, error) {
	var out pattern.Outcome
	err := e.do(ctx, "solve", true, func(p *pattern.Pattern) error {
		var err error
		out, err = p.Solve(kind, id, chosenPath)
		return err
	})
	if err != nil {
		e.logger.Warn("solve rejected",
			zap.String("kind", string(kind)),
			zap.String("identifier", id),
			zap.String("path", chosenPath),
			zap.Error(err))
		return out, fmt.Errorf("engine: solve: %w", err)
	}
	e.notifyPromoted(out)
	return out, nil
}

// Snapshot returns the serialized session.
func (e *Engine) Snapshot(ctx context.Context) (types.SerializedPattern, error) {
	var doc types.SerializedPattern
	err := e.do(ctx, "snapshot", false, func(p *pattern.Pattern) error {
		doc = p.Serialize()
		return nil
	})
	return doc, err
}

// History returns the history ledger.
func (e *Engine) History(ctx context.Context) (types.SerializedHistory, error) {
	var doc types.SerializedHistory
	err := e.do(ctx, "history", false, func(p *pattern.Pattern) error {
		doc = p.History().Get()
		return nil
	})
	return doc, err
}
