package pattern

import (
	"fmt"

	"github.com/scrypster/disambig/pkg/types"
)

// GetTarget finds the entity an intent operates on. Lookup order, first match
// wins: resolved classes, resolved intents, ambiguous classes, ambiguous
// intents, draft classes, draft intents, history. Returns nil when the target
// is unknown everywhere.
func (p *Pattern) GetTarget(intent types.Intent) types.Variant {
	v, _ := p.locateTarget(intent.Target)
	return v
}

// locateTarget implements the lookup of GetTarget and also reports whether
// the match came from history rather than from the session.
func (p *Pattern) locateTarget(id string) (types.Variant, bool) {
	if id == "" {
		return nil, false
	}
	if c, ok := p.classes.Resolved(id); ok {
		return c, false
	}
	if i, ok := p.intents.Resolved(id); ok {
		return i, false
	}
	if c, ok := p.classes.Ambiguity(id); ok {
		return c, false
	}
	if i, ok := p.intents.Ambiguity(id); ok {
		return i, false
	}
	if c, ok := p.classes.Draft(id); ok {
		return c, false
	}
	if i, ok := p.intents.Draft(id); ok {
		return i, false
	}
	if v := p.history.Search(id); v != nil {
		return v, true
	}
	return nil, false
}

// wireDependency adds sourceID to the used_by set of the entity targetID
// names. Resolved session targets are mirrored into history so both copies
// agree. Returns ErrTargetNotFound when the target is unknown everywhere.
func (p *Pattern) wireDependency(targetID, sourceID string) error {
	target, fromHistory := p.locateTarget(targetID)
	if target == nil {
		return fmt.Errorf("%w: %q (targeted by %q)", ErrTargetNotFound, targetID, sourceID)
	}
	if fromHistory {
		p.history.AddDependency(targetID, sourceID)
		return nil
	}

	target.Dependents().Add(sourceID)
	if target.Tier() == types.TierResolved {
		p.history.AddDependency(targetID, sourceID)
	}
	return nil
}
