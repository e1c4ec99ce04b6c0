package pattern

import (
	"fmt"
	"sort"

	"github.com/scrypster/disambig/internal/history"
	"github.com/scrypster/disambig/pkg/types"
)

// Serialize exports the session as a SerializedPattern. Summary lists follow
// store order: drafts, then ambiguities, then resolved records, each in
// insertion order.
func (p *Pattern) Serialize() types.SerializedPattern {
	doc := types.SerializedPattern{
		Query:        p.query,
		ClassesSum:   p.classes.summaries(),
		IntentsSum:   p.intents.summaries(),
		ArgumentsSum: p.arguments.summaries(),

		ClassDrafts:    make(map[string]types.ClassDraft),
		IntentDrafts:   make(map[string]types.IntentDraft),
		ArgumentDrafts: make(map[string]types.ArgumentDraft),

		ClassAmbiguities:    make(map[string]types.ClassAmbiguity),
		IntentAmbiguities:   make(map[string]types.IntentAmbiguity),
		ArgumentAmbiguities: make(map[string]types.ArgumentAmbiguity),

		ClassFixed:    make(map[string]types.ClassFixed),
		IntentFixed:   make(map[string]types.IntentFixed),
		ArgumentFixed: make(map[string]types.ArgumentFixed),
	}

	for _, d := range p.classes.Drafts() {
		cp := *d
		cp.UsedBy = d.UsedBy.Clone()
		doc.ClassDrafts[d.Identifier] = cp
	}
	for _, a := range p.classes.Ambiguities() {
		cp := *a
		cp.UsedBy = a.UsedBy.Clone()
		cp.Options = append([]types.Option[types.ClassFixed](nil), a.Options...)
		doc.ClassAmbiguities[a.Identifier] = cp
	}
	for _, r := range p.classes.ResolvedList() {
		doc.ClassFixed[r.Identifier] = r.Clone()
	}

	for _, d := range p.intents.Drafts() {
		cp := *d
		cp.UsedBy = d.UsedBy.Clone()
		doc.IntentDrafts[d.Identifier] = cp
	}
	for _, a := range p.intents.Ambiguities() {
		cp := *a
		cp.UsedBy = a.UsedBy.Clone()
		cp.Options = append([]types.Option[types.IntentFixed](nil), a.Options...)
		doc.IntentAmbiguities[a.Identifier] = cp
	}
	for _, r := range p.intents.ResolvedList() {
		doc.IntentFixed[r.Identifier] = r.Clone()
	}

	for _, d := range p.arguments.Drafts() {
		cp := *d
		cp.UsedBy = d.UsedBy.Clone()
		doc.ArgumentDrafts[d.Identifier] = cp
	}
	for _, a := range p.arguments.Ambiguities() {
		cp := *a
		cp.UsedBy = a.UsedBy.Clone()
		cp.Options = append([]types.Option[types.ArgumentFixed](nil), a.Options...)
		doc.ArgumentAmbiguities[a.Identifier] = cp
	}
	for _, r := range p.arguments.ResolvedList() {
		doc.ArgumentFixed[r.Identifier] = r.Clone()
	}

	return doc
}

// Load rebuilds a session from a SerializedPattern and a history document.
// The detail maps are authoritative; summary lists only restore ordering.
// A document holding one identifier in two tiers of a kind is rejected with
// ErrTierConflict, and a record keyed under another identifier with
// ErrIdentifierMismatch.
func Load(doc types.SerializedPattern, hist types.SerializedHistory, opts ...Opt) (*Pattern, error) {
	p := New(doc.Query, history.FromSerialized(hist), opts...)

	if err := restore(p.classes, doc.ClassesSum, doc.ClassDrafts, doc.ClassAmbiguities, doc.ClassFixed); err != nil {
		return nil, fmt.Errorf("pattern: loading classes: %w", err)
	}
	if err := restore(p.intents, doc.IntentsSum, doc.IntentDrafts, doc.IntentAmbiguities, doc.IntentFixed); err != nil {
		return nil, fmt.Errorf("pattern: loading intents: %w", err)
	}
	if err := restore(p.arguments, doc.ArgumentsSum, doc.ArgumentDrafts, doc.ArgumentAmbiguities, doc.ArgumentFixed); err != nil {
		return nil, fmt.Errorf("pattern: loading arguments: %w", err)
	}
	return p, nil
}

// restore fills one store from the detail maps. PD, PA and PR are the pointer
// types of the map value types DV, AV and RV.
func restore[
	DV any, AV any, RV any,
	PD interface {
		*DV
		draftRecord
	},
	PA interface {
		*AV
		ambiguityRecord
	},
	PR interface {
		*RV
		types.Variant
	},
](s *Store[PD, PA, PR], sums []types.Summary, drafts map[string]DV, ambiguous map[string]AV, resolved map[string]RV) error {
	for _, id := range orderedKeys(sums, types.TierResolved, resolved) {
		v := resolved[id]
		if err := s.checkRestored(id, PR(&v)); err != nil {
			return err
		}
		s.resolved.put(PR(&v))
	}
	for _, id := range orderedKeys(sums, types.TierAmbiguous, ambiguous) {
		v := ambiguous[id]
		if err := s.checkRestored(id, PA(&v)); err != nil {
			return err
		}
		s.ambiguous.put(PA(&v))
	}
	for _, id := range orderedKeys(sums, types.TierDraft, drafts) {
		v := drafts[id]
		if err := s.checkRestored(id, PD(&v)); err != nil {
			return err
		}
		s.drafts.put(PD(&v))
	}
	return nil
}

// checkRestored rejects a record filed under a key other than its own
// identifier, or one whose identifier already sits in another tier.
func (s *Store[D, A, R]) checkRestored(key string, v types.Variant) error {
	if v.ID() != key {
		return fmt.Errorf("%w: %s filed under %q has identifier %q", ErrIdentifierMismatch, s.kind, key, v.ID())
	}
	if s.TierOf(key) != "" {
		return fmt.Errorf("%w: %s %q is held by two tiers", ErrTierConflict, s.kind, key)
	}
	return nil
}

// orderedKeys returns the keys of m whose record sits in tier t, in summary
// order first and sorted order for any key the summaries do not mention.
func orderedKeys[V any](sums []types.Summary, t types.Tier, m map[string]V) []string {
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, s := range sums {
		if s.Kind != t || seen[s.Identifier] {
			continue
		}
		if _, ok := m[s.Identifier]; ok {
			keys = append(keys, s.Identifier)
			seen[s.Identifier] = true
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
