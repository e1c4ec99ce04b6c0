// Package pattern holds the state of one disambiguation session: the per-kind
// tier stores, the history ledger they feed, and the operations that move
// entities from draft to resolved.
//
// A Pattern is single-owner and single-writer. It does no locking; callers
// must serialize every call against one instance (internal/engine does this
// with a command loop).
package pattern

import (
	"fmt"

	"github.com/scrypster/disambig/internal/history"
	"github.com/scrypster/disambig/pkg/types"
)

// Policy holds the thresholds applied to reranker output.
type Policy struct {
	// ClearWinnerScore is the score at or above which a single candidate
	// wins outright even when others survive the cutoff.
	ClearWinnerScore float64

	// LowScoreCutoff drops candidates scoring strictly below it.
	LowScoreCutoff float64
}

// DefaultPolicy returns the default thresholds on the 0..5 score scale.
func DefaultPolicy() Policy {
	return Policy{
		ClearWinnerScore: 5,
		LowScoreCutoff:   2,
	}
}

// Validate checks the thresholds are on the score scale and ordered.
func (p Policy) Validate() error {
	if p.LowScoreCutoff < 0 || p.LowScoreCutoff > types.MaxScore {
		return fmt.Errorf("LowScoreCutoff must be within 0..%v, got %v", types.MaxScore, p.LowScoreCutoff)
	}
	if p.ClearWinnerScore < p.LowScoreCutoff || p.ClearWinnerScore > types.MaxScore {
		return fmt.Errorf("ClearWinnerScore must be within %v..%v, got %v", p.LowScoreCutoff, types.MaxScore, p.ClearWinnerScore)
	}
	return nil
}

// Pattern is the aggregate root of a session.
type Pattern struct {
	query string

	classes   *ClassStore
	intents   *IntentStore
	arguments *ArgumentStore

	history *history.Ledger
	policy  Policy
}

// Opt configures a Pattern.
type Opt func(*Pattern)

// WithPolicy overrides the default promotion thresholds.
func WithPolicy(policy Policy) Opt {
	return func(p *Pattern) { p.policy = policy }
}

// New creates an empty session for query. A nil ledger starts a fresh history.
func New(query string, ledger *history.Ledger, opts ...Opt) *Pattern {
	if ledger == nil {
		ledger = history.New()
	}
	p := &Pattern{
		query:     query,
		classes:   newStore[*types.ClassDraft, *types.ClassAmbiguity, *types.ClassFixed](types.KindClass),
		intents:   newStore[*types.IntentDraft, *types.IntentAmbiguity, *types.IntentFixed](types.KindIntent),
		arguments: newStore[*types.ArgumentDraft, *types.ArgumentAmbiguity, *types.ArgumentFixed](types.KindArgument),
		history:   ledger,
		policy:    DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Query returns the user query the session was opened for.
func (p *Pattern) Query() string { return p.query }

// SetQuery replaces the query, e.g. when the user refines it.
func (p *Pattern) SetQuery(q string) { p.query = q }

// Classes returns the class store.
func (p *Pattern) Classes() *ClassStore { return p.classes }

// Intents returns the intent store.
func (p *Pattern) Intents() *IntentStore { return p.intents }

// Arguments returns the argument store.
func (p *Pattern) Arguments() *ArgumentStore { return p.arguments }

// History returns the ledger the session records into.
func (p *Pattern) History() *history.Ledger { return p.history }

// Policy returns the promotion thresholds.
func (p *Pattern) Policy() Policy { return p.policy }

// Lookup returns the session record for (kind, id), or nil.
func (p *Pattern) Lookup(kind types.Kind, id string) types.Variant {
	switch kind {
	case types.KindClass:
		return p.classes.Lookup(id)
	case types.KindIntent:
		return p.intents.Lookup(id)
	case types.KindArgument:
		return p.arguments.Lookup(id)
	default:
		return nil
	}
}

// TierOf returns the session tier holding (kind, id), or "".
func (p *Pattern) TierOf(kind types.Kind, id string) types.Tier {
	switch kind {
	case types.KindClass:
		return p.classes.TierOf(id)
	case types.KindIntent:
		return p.intents.TierOf(id)
	case types.KindArgument:
		return p.arguments.TierOf(id)
	default:
		return ""
	}
}

// PendingDraft describes a draft awaiting resolution.
type PendingDraft struct {
	Kind       types.Kind
	Identifier string

	// Text is what graph search is queried with.
	Text string

	// Scope is the graph path search should be restricted to, when known.
	Scope string
}

// PendingDrafts lists finished drafts that are not already being resolved,
// classes first, then intents, then arguments.
func (p *Pattern) PendingDrafts() []PendingDraft {
	var out []PendingDraft
	for _, d := range p.classes.Drafts() {
		if !d.Finished || d.Loading || d.Reranking {
			continue
		}
		out = append(out, PendingDraft{
			Kind:       types.KindClass,
			Identifier: d.Identifier,
			Text:       joinText(firstNonEmpty(d.Name, d.Identifier), d.Description),
		})
	}
	for _, d := range p.intents.Drafts() {
		if !d.Finished || d.Loading || d.Reranking {
			continue
		}
		out = append(out, PendingDraft{
			Kind:       types.KindIntent,
			Identifier: d.Identifier,
			Text:       firstNonEmpty(d.Instruction, d.Identifier),
			Scope:      p.resolvedPath(d.Target),
		})
	}
	for _, d := range p.arguments.Drafts() {
		if !d.Finished || d.Loading || d.Reranking {
			continue
		}
		out = append(out, PendingDraft{
			Kind:       types.KindArgument,
			Identifier: d.Identifier,
			Text:       joinText(firstNonEmpty(d.Description, d.Identifier), d.Type),
			Scope:      p.resolvedPath(d.Intent),
		})
	}
	return out
}

// resolvedPath returns the graph path of a resolved class or intent, in the
// session or in history, or "" when id is not resolved anywhere.
func (p *Pattern) resolvedPath(id string) string {
	if id == "" {
		return ""
	}
	if c, ok := p.classes.Resolved(id); ok {
		return c.GraphPath
	}
	if i, ok := p.intents.Resolved(id); ok {
		return i.GraphPath
	}
	if c, ok := p.history.Class(id); ok {
		return c.GraphPath
	}
	if i, ok := p.history.Intent(id); ok {
		return i.GraphPath
	}
	return ""
}

func joinText(parts ...string) string {
	out := ""
	for _, s := range parts {
		if s == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += s
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
