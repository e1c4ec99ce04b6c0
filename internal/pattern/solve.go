package pattern

import (
	"fmt"

	"github.com/scrypster/disambig/pkg/types"
)

// Solve resolves an ambiguous entity to the option whose graph path equals
// chosenPath. The chosen record enters the resolved tier (and history, for
// classes and intents) and the ambiguity is removed.
//
// When id is not ambiguous Solve returns ErrUnknownAmbiguity, and when no
// option matches it returns ErrOptionNotFound. In both cases the session is
// left exactly as it was.
func (p *Pattern) Solve(kind types.Kind, id, chosenPath string) (Outcome, error) {
	switch kind {
	case types.KindClass:
		return solve(p.classes, id, chosenPath, p.classOps())
	case types.KindIntent:
		return solve(p.intents, id, chosenPath, p.intentOps())
	case types.KindArgument:
		return solve(p.arguments, id, chosenPath, p.argumentOps())
	default:
		return Outcome{}, fmt.Errorf("%w: %q", types.ErrUnknownKind, kind)
	}
}

func solve[D draftRecord, A ambiguityRecord, R types.Variant](s *Store[D, A, R], id, chosenPath string, ops kindOps[D, A, R]) (Outcome, error) {
	out := Outcome{Kind: s.kind, Identifier: id, Tier: s.TierOf(id)}

	a, ok := s.Ambiguity(id)
	if !ok {
		return out, fmt.Errorf("%w: %s %q", ErrUnknownAmbiguity, s.kind, id)
	}
	r, ok := ops.choose(a, chosenPath)
	if !ok {
		return out, fmt.Errorf("%w: %s %q has no option %q", ErrOptionNotFound, s.kind, id, chosenPath)
	}

	if err := s.putResolved(r); err != nil {
		return out, err
	}
	ops.resolved(r)

	out.Tier = types.TierResolved
	out.GraphPath = chosenPath
	return out, nil
}
