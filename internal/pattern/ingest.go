package pattern

import (
	"errors"
	"fmt"

	"github.com/scrypster/disambig/pkg/types"
)

// IngestReport summarizes one UpdateWithParsedData pass.
type IngestReport struct {
	// Drafted lists the identifiers drafted per kind, in parse order.
	DraftedClasses   []string
	DraftedIntents   []string
	DraftedArguments []string

	// Kept lists identifiers left untouched because they are already
	// ambiguous or resolved (or, for intents, recorded in history).
	Kept []string

	// TargetErrors holds one ErrTargetNotFound per intent whose target
	// could not be located. These are not failures of the pass.
	TargetErrors []error
}

// UnresolvedTargets returns the number of intents whose target is unknown.
func (r IngestReport) UnresolvedTargets() int { return len(r.TargetErrors) }

// UpdateWithParsedData merges a fresh parse into the session.
//
// Drafts of all three kinds are rebuilt from scratch; ambiguous and resolved
// entities are never touched. A draft re-derived under the same identifier
// keeps its loading and reranking flags so an in-flight resolution stays
// visible. Every new intent then has its target located and its identifier
// added to the target's used_by.
//
// An invalid parse is rejected before any state changes.
func (p *Pattern) UpdateWithParsedData(parsed types.ParsedPattern) (IngestReport, error) {
	var report IngestReport
	if err := parsed.Validate(); err != nil {
		return report, err
	}

	newClasses := make([]types.ParsedClass, 0, len(parsed.Classes))
	for _, c := range parsed.Classes {
		if _, resolved := p.classes.Resolved(c.Identifier); resolved {
			report.Kept = append(report.Kept, c.Identifier)
			continue
		}
		newClasses = append(newClasses, c)
	}
	newIntents := make([]types.ParsedIntent, 0, len(parsed.Intents))
	for _, in := range parsed.Intents {
		if _, resolved := p.intents.Resolved(in.Identifier); resolved {
			report.Kept = append(report.Kept, in.Identifier)
			continue
		}
		newIntents = append(newIntents, in)
	}

	inFlight := p.inFlightFlags()
	p.classes.clearDrafts()
	p.intents.clearDrafts()
	p.arguments.clearDrafts()

	for _, c := range newClasses {
		if p.classes.TierOf(c.Identifier) == types.TierAmbiguous {
			report.Kept = append(report.Kept, c.Identifier)
			continue
		}
		draft := &types.ClassDraft{
			Class: types.Class{
				Identifier:  c.Identifier,
				Name:        c.Name,
				Description: c.Description,
			},
			DraftState: inFlight.carry(types.KindClass, c.Identifier, c.Relevant),
		}
		if err := p.classes.putDraft(draft); err != nil {
			return report, err
		}
		report.DraftedClasses = append(report.DraftedClasses, c.Identifier)
	}

	for _, in := range newIntents {
		_, inHistory := p.history.Intent(in.Identifier)
		if p.intents.TierOf(in.Identifier) == types.TierAmbiguous || inHistory {
			report.Kept = append(report.Kept, in.Identifier)
		} else {
			draft := &types.IntentDraft{
				Intent: types.Intent{
					Identifier:      in.Identifier,
					Instruction:     in.Instruction,
					Target:          in.Target,
					TargetRelevance: in.TargetRelevance,
					IntentType:      in.IntentType,
				},
				DraftState: inFlight.carry(types.KindIntent, in.Identifier, in.Relevant),
			}
			if err := p.intents.putDraft(draft); err != nil {
				return report, err
			}
			report.DraftedIntents = append(report.DraftedIntents, in.Identifier)
		}

		for _, a := range in.Arguments {
			if p.arguments.TierOf(a.Identifier) != "" {
				report.Kept = append(report.Kept, a.Identifier)
				continue
			}
			draft := &types.ArgumentDraft{
				Argument: types.Argument{
					Identifier:  a.Identifier,
					Description: a.Description,
					Intent:      in.Identifier,
					Type:        a.Type,
					Attributes:  copyAttributes(a.Attributes),
				},
				DraftState: inFlight.carry(types.KindArgument, a.Identifier, a.Relevant),
			}
			if err := p.arguments.putDraft(draft); err != nil {
				return report, err
			}
			report.DraftedArguments = append(report.DraftedArguments, a.Identifier)
		}
	}

	for _, in := range newIntents {
		if in.Target == "" {
			continue
		}
		if err := p.wireDependency(in.Target, in.Identifier); err != nil {
			if !errors.Is(err, ErrTargetNotFound) {
				return report, fmt.Errorf("pattern: wiring %q: %w", in.Identifier, err)
			}
			report.TargetErrors = append(report.TargetErrors, err)
		}
	}

	return report, nil
}

type flagKey struct {
	kind types.Kind
	id   string
}

type flagSet map[flagKey]types.DraftState

func (p *Pattern) inFlightFlags() flagSet {
	flags := make(flagSet)
	for _, d := range p.classes.Drafts() {
		flags[flagKey{types.KindClass, d.Identifier}] = d.DraftState
	}
	for _, d := range p.intents.Drafts() {
		flags[flagKey{types.KindIntent, d.Identifier}] = d.DraftState
	}
	for _, d := range p.arguments.Drafts() {
		flags[flagKey{types.KindArgument, d.Identifier}] = d.DraftState
	}
	return flags
}

// carry builds the state of a re-derived draft: finished comes from the new
// parse, loading and reranking survive from the previous draft if any.
func (f flagSet) carry(kind types.Kind, id string, finished bool) types.DraftState {
	prev := f[flagKey{kind, id}]
	return types.DraftState{
		Loading:   prev.Loading,
		Reranking: prev.Reranking,
		Finished:  finished,
	}
}

func copyAttributes(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
