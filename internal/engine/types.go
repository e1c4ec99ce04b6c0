// Package engine runs a disambiguation session. A single writer goroutine owns
// the session's pattern and executes every command in order, while
// resolution work (graph search and reranking) fans out to a bounded pool of
// workers whose results come back as commands.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/disambig/internal/catalog"
	"github.com/scrypster/disambig/internal/config"
	"github.com/scrypster/disambig/internal/rerank"
	"github.com/scrypster/disambig/internal/storage"
	"github.com/scrypster/disambig/pkg/types"
)

var (
	// ErrNotStarted is returned by operations called before Start or after Shutdown.
	ErrNotStarted = errors.New("engine not started")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("engine already started")
)

// Config holds configuration for the session engine.
type Config struct {
	// Workers is the number of drafts resolved in parallel (default: 4).
	Workers int

	// MaxRetries is the number of retries per draft when search or reranking
	// fails (default: 2).
	MaxRetries int

	// RetryBackoff is the base of the quadratic retry backoff (default: 100ms).
	RetryBackoff time.Duration

	// RequestsPerSecond throttles search and rerank calls. Zero disables
	// throttling (default: 5).
	RequestsPerSecond float64

	// Burst is the rate limiter burst (default: 5).
	Burst int

	// ShutdownTimeout is the maximum time to wait for the writer to stop (default: 30s).
	ShutdownTimeout time.Duration

	// QueueSize is the command buffer of the writer (default: 64).
	QueueSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           4,
		MaxRetries:        2,
		RetryBackoff:      100 * time.Millisecond,
		RequestsPerSecond: 5,
		Burst:             5,
		ShutdownTimeout:   30 * time.Second,
		QueueSize:         64,
	}
}

// ConfigFrom maps the resolution section of the application config onto
// engine defaults.
func ConfigFrom(rc config.ResolutionConfig) Config {
	c := DefaultConfig()
	c.Workers = rc.Workers
	c.MaxRetries = rc.MaxRetries
	c.RequestsPerSecond = rc.RequestsPerSecond
	c.Burst = rc.Burst
	c.ShutdownTimeout = rc.ShutdownTimeout
	return c
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("Workers must be >= 1, got %d", c.Workers)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MaxRetries must be >= 0, got %d", c.MaxRetries)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("RetryBackoff must be >= 0, got %v", c.RetryBackoff)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("RequestsPerSecond must be >= 0, got %v", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		return fmt.Errorf("Burst must be >= 1 when throttling, got %d", c.Burst)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("ShutdownTimeout must be >= 0, got %v", c.ShutdownTimeout)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("QueueSize must be >= 1, got %d", c.QueueSize)
	}
	return nil
}

// Deps are the collaborators of an engine. Search and Reranker are required
// for ResolvePending; the stores are optional.
type Deps struct {
	Search   catalog.GraphSearch
	Reranker rerank.Reranker

	// History, when set, receives the ledger after every successful mutation.
	History storage.HistoryStore

	// Snapshots, when set, is where Persist writes the session.
	Snapshots storage.SnapshotStore

	Logger *zap.Logger
}

// Ref names one entity of a session.
type Ref struct {
	Kind       types.Kind `json:"kind"`
	Identifier string     `json:"identifier"`
}

func (r Ref) String() string { return string(r.Kind) + ":" + r.Identifier }

// ResolveReport summarizes one ResolvePending pass.
type ResolveReport struct {
	Resolved  []Ref `json:"resolved"`
	Ambiguous []Ref `json:"ambiguous"`

	// Pending drafts found no viable candidate and stay drafts.
	Pending []Ref `json:"pending"`

	// Failed drafts exhausted their retries; they stay drafts.
	Failed []Ref `json:"failed"`

	// Stale drafts were dropped by an ingestion while being resolved.
	Stale []Ref `json:"stale"`
}

// Total returns the number of drafts the pass handled.
func (r ResolveReport) Total() int {
	return len(r.Resolved) + len(r.Ambiguous) + len(r.Pending) + len(r.Failed) + len(r.Stale)
}

func (r *ResolveReport) sort() {
	for _, refs := range [][]Ref{r.Resolved, r.Ambiguous, r.Pending, r.Failed, r.Stale} {
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].Kind != refs[j].Kind {
				return kindOrder(refs[i].Kind) < kindOrder(refs[j].Kind)
			}
			return refs[i].Identifier < refs[j].Identifier
		})
	}
}

func kindOrder(k types.Kind) int {
	switch k {
	case types.KindClass:
		return 0
	case types.KindIntent:
		return 1
	default:
		return 2
	}
}
