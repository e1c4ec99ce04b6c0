package pattern

import (
	"fmt"

	"github.com/scrypster/disambig/pkg/types"
)

type draftRecord interface {
	types.Variant
	State() *types.DraftState
}

type ambiguityRecord interface {
	types.Variant
	SummaryOptions() []types.SummaryOption
}

// tier is an insertion-ordered keyed collection.
type tier[T types.Variant] struct {
	items map[string]T
	order []string
}

func newTier[T types.Variant]() *tier[T] {
	return &tier[T]{items: make(map[string]T)}
}

func (t *tier[T]) get(id string) (T, bool) {
	v, ok := t.items[id]
	return v, ok
}

func (t *tier[T]) put(v T) {
	id := v.ID()
	if _, ok := t.items[id]; !ok {
		t.order = append(t.order, id)
	}
	t.items[id] = v
}

func (t *tier[T]) remove(id string) bool {
	if _, ok := t.items[id]; !ok {
		return false
	}
	delete(t.items, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *tier[T]) clear() {
	t.items = make(map[string]T)
	t.order = nil
}

func (t *tier[T]) list() []T {
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.items[id])
	}
	return out
}

// Store holds the three tiers of one entity kind. Every write goes through
// place, which removes the identifier from the other tiers, so an identifier
// is held by at most one tier at any time.
type Store[D draftRecord, A ambiguityRecord, R types.Variant] struct {
	kind      types.Kind
	drafts    *tier[D]
	ambiguous *tier[A]
	resolved  *tier[R]
}

// ClassStore holds class drafts, ambiguities and resolved classes.
type ClassStore = Store[*types.ClassDraft, *types.ClassAmbiguity, *types.ClassFixed]

// IntentStore holds intent drafts, ambiguities and resolved intents.
type IntentStore = Store[*types.IntentDraft, *types.IntentAmbiguity, *types.IntentFixed]

// ArgumentStore holds argument drafts, ambiguities and resolved arguments.
type ArgumentStore = Store[*types.ArgumentDraft, *types.ArgumentAmbiguity, *types.ArgumentFixed]

func newStore[D draftRecord, A ambiguityRecord, R types.Variant](kind types.Kind) *Store[D, A, R] {
	return &Store[D, A, R]{
		kind:      kind,
		drafts:    newTier[D](),
		ambiguous: newTier[A](),
		resolved:  newTier[R](),
	}
}

// Kind returns the entity kind held by the store.
func (s *Store[D, A, R]) Kind() types.Kind { return s.kind }

// TierOf returns the tier holding id, or "" when id is absent.
func (s *Store[D, A, R]) TierOf(id string) types.Tier {
	if _, ok := s.resolved.get(id); ok {
		return types.TierResolved
	}
	if _, ok := s.ambiguous.get(id); ok {
		return types.TierAmbiguous
	}
	if _, ok := s.drafts.get(id); ok {
		return types.TierDraft
	}
	return ""
}

// Lookup returns the record for id from whichever tier holds it.
func (s *Store[D, A, R]) Lookup(id string) types.Variant {
	if v, ok := s.resolved.get(id); ok {
		return v
	}
	if v, ok := s.ambiguous.get(id); ok {
		return v
	}
	if v, ok := s.drafts.get(id); ok {
		return v
	}
	return nil
}

// Draft returns the draft for id.
func (s *Store[D, A, R]) Draft(id string) (D, bool) { return s.drafts.get(id) }

// Ambiguity returns the ambiguity for id.
func (s *Store[D, A, R]) Ambiguity(id string) (A, bool) { return s.ambiguous.get(id) }

// Resolved returns the resolved record for id.
func (s *Store[D, A, R]) Resolved(id string) (R, bool) { return s.resolved.get(id) }

// Drafts lists drafts in insertion order.
func (s *Store[D, A, R]) Drafts() []D { return s.drafts.list() }

// Ambiguities lists ambiguities in insertion order.
func (s *Store[D, A, R]) Ambiguities() []A { return s.ambiguous.list() }

// ResolvedList lists resolved records in insertion order.
func (s *Store[D, A, R]) ResolvedList() []R { return s.resolved.list() }

// Len returns the number of identifiers held across all tiers.
func (s *Store[D, A, R]) Len() int {
	return len(s.drafts.items) + len(s.ambiguous.items) + len(s.resolved.items)
}

// place moves v into tier next, removing it from the other tiers. The move
// must be a valid tier transition from wherever v's identifier sits now.
func (s *Store[D, A, R]) place(next types.Tier, v types.Variant) error {
	id := v.ID()
	current := s.TierOf(id)
	if current != next && !types.IsValidTierTransition(current, next) {
		return fmt.Errorf("%w: %s %q is %s, cannot become %s", ErrTierConflict, s.kind, id, tierName(current), next)
	}

	switch next {
	case types.TierDraft:
		s.drafts.put(v.(D))
	case types.TierAmbiguous:
		s.drafts.remove(id)
		s.ambiguous.put(v.(A))
	case types.TierResolved:
		s.drafts.remove(id)
		s.ambiguous.remove(id)
		s.resolved.put(v.(R))
	}
	return nil
}

func (s *Store[D, A, R]) putDraft(d D) error     { return s.place(types.TierDraft, d) }
func (s *Store[D, A, R]) putAmbiguity(a A) error { return s.place(types.TierAmbiguous, a) }
func (s *Store[D, A, R]) putResolved(r R) error  { return s.place(types.TierResolved, r) }
func (s *Store[D, A, R]) clearDrafts()           { s.drafts.clear() }

// summaries lists every record as a summary line, drafts first.
func (s *Store[D, A, R]) summaries() []types.Summary {
	out := make([]types.Summary, 0, s.Len())
	for _, d := range s.drafts.list() {
		st := d.State()
		out = append(out, types.Summary{
			Identifier: d.ID(),
			Kind:       types.TierDraft,
			Loading:    st.Loading,
			Reranking:  st.Reranking,
		})
	}
	for _, a := range s.ambiguous.list() {
		out = append(out, types.Summary{
			Identifier: a.ID(),
			Kind:       types.TierAmbiguous,
			Options:    a.SummaryOptions(),
		})
	}
	for _, r := range s.resolved.list() {
		out = append(out, types.Summary{
			Identifier: r.ID(),
			Kind:       types.TierResolved,
		})
	}
	return out
}

func tierName(t types.Tier) string {
	if t == "" {
		return "absent"
	}
	return string(t)
}
