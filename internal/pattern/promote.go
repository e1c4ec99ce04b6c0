package pattern

import (
	"fmt"
	"sort"

	"github.com/scrypster/disambig/pkg/types"
)

// Outcome describes where an entity ended up after a promotion attempt.
type Outcome struct {
	Kind       types.Kind
	Identifier string

	// Tier is TierDraft when nothing changed.
	Tier types.Tier

	// GraphPath is set when the entity was resolved.
	GraphPath string

	// Options is the number of options when the entity became ambiguous.
	Options int
}

// decide applies the policy to reranker output. It returns either a single
// winner or two or more surviving options ordered by descending score.
func (p Policy) decide(ranked []types.RankedCandidate) (*types.RankedCandidate, []types.RankedCandidate, error) {
	survivors := make([]types.RankedCandidate, 0, len(ranked))
	seen := make(map[string]bool, len(ranked))
	for _, c := range ranked {
		if c.Path == "" || seen[c.Path] {
			continue
		}
		if c.Score < p.LowScoreCutoff {
			continue
		}
		seen[c.Path] = true
		survivors = append(survivors, c)
	}
	if len(survivors) == 0 {
		return nil, nil, ErrNoCandidatesFound
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].Score > survivors[j].Score
	})

	if len(survivors) == 1 {
		return &survivors[0], nil, nil
	}

	var winner *types.RankedCandidate
	winners := 0
	for i := range survivors {
		if survivors[i].Score >= p.ClearWinnerScore {
			winners++
			winner = &survivors[i]
		}
	}
	if winners == 1 {
		return winner, nil, nil
	}
	return nil, survivors, nil
}

// ApplyRanking promotes the draft (kind, id) according to reranker output:
// one clear or single surviving candidate resolves it, two or more make it
// ambiguous, none leaves it a draft and returns ErrNoCandidatesFound.
// The draft's loading and reranking flags are cleared in every case.
// A ranking for an identifier that is not a draft returns ErrUnknownEntity.
func (p *Pattern) ApplyRanking(kind types.Kind, id string, ranked []types.RankedCandidate) (Outcome, error) {
	switch kind {
	case types.KindClass:
		return promote(p, p.classes, id, ranked, p.classOps())
	case types.KindIntent:
		return promote(p, p.intents, id, ranked, p.intentOps())
	case types.KindArgument:
		return promote(p, p.arguments, id, ranked, p.argumentOps())
	default:
		return Outcome{}, fmt.Errorf("%w: %q", types.ErrUnknownKind, kind)
	}
}

// MarkLoading sets the loading flag of a draft.
func (p *Pattern) MarkLoading(kind types.Kind, id string, loading bool) error {
	st, err := p.draftState(kind, id)
	if err != nil {
		return err
	}
	st.Loading = loading
	return nil
}

// MarkReranking sets the reranking flag of a draft.
func (p *Pattern) MarkReranking(kind types.Kind, id string, reranking bool) error {
	st, err := p.draftState(kind, id)
	if err != nil {
		return err
	}
	st.Reranking = reranking
	return nil
}

func (p *Pattern) draftState(kind types.Kind, id string) (*types.DraftState, error) {
	var (
		d  draftRecord
		ok bool
	)
	switch kind {
	case types.KindClass:
		d, ok = p.classes.Draft(id)
	case types.KindIntent:
		d, ok = p.intents.Draft(id)
	case types.KindArgument:
		d, ok = p.arguments.Draft(id)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownKind, kind)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s draft %q", ErrUnknownEntity, kind, id)
	}
	return d.State(), nil
}

// kindOps adapts the generic promotion code to one entity kind.
type kindOps[D draftRecord, A ambiguityRecord, R types.Variant] struct {
	// fix builds the resolved record a draft becomes at path.
	fix func(d D, path string) R

	// ambiguate builds the ambiguity of a draft from ordered options.
	ambiguate func(d D, options []types.RankedCandidate) A

	// choose builds the resolved record for the option of a matching path.
	choose func(a A, path string) (R, bool)

	// resolved runs after r entered the resolved tier.
	resolved func(r R)
}

func promote[D draftRecord, A ambiguityRecord, R types.Variant](p *Pattern, s *Store[D, A, R], id string, ranked []types.RankedCandidate, ops kindOps[D, A, R]) (Outcome, error) {
	out := Outcome{Kind: s.kind, Identifier: id, Tier: types.TierDraft}

	d, ok := s.Draft(id)
	if !ok {
		return out, fmt.Errorf("%w: %s draft %q", ErrUnknownEntity, s.kind, id)
	}
	st := d.State()
	st.Loading = false
	st.Reranking = false

	winner, options, err := p.policy.decide(ranked)
	if err != nil {
		return out, fmt.Errorf("%s %q: %w", s.kind, id, err)
	}

	if winner != nil {
		r := ops.fix(d, winner.Path)
		if err := s.putResolved(r); err != nil {
			return out, err
		}
		ops.resolved(r)
		out.Tier = types.TierResolved
		out.GraphPath = winner.Path
		return out, nil
	}

	if err := s.putAmbiguity(ops.ambiguate(d, options)); err != nil {
		return out, err
	}
	out.Tier = types.TierAmbiguous
	out.Options = len(options)
	return out, nil
}

func (p *Pattern) classOps() kindOps[*types.ClassDraft, *types.ClassAmbiguity, *types.ClassFixed] {
	fix := func(c types.Class, path string) types.ClassFixed {
		c.UsedBy = c.UsedBy.Clone()
		return types.ClassFixed{Class: c, GraphPath: path}
	}
	return kindOps[*types.ClassDraft, *types.ClassAmbiguity, *types.ClassFixed]{
		fix: func(d *types.ClassDraft, path string) *types.ClassFixed {
			r := fix(d.Class, path)
			return &r
		},
		ambiguate: func(d *types.ClassDraft, ranked []types.RankedCandidate) *types.ClassAmbiguity {
			a := &types.ClassAmbiguity{Class: d.Class}
			a.UsedBy = d.UsedBy.Clone()
			for _, c := range ranked {
				a.Options = append(a.Options, types.Option[types.ClassFixed]{
					Candidate:   fix(d.Class, c.Path),
					Score:       c.Score,
					Label:       c.Label,
					Description: c.Description,
				})
			}
			return a
		},
		choose: func(a *types.ClassAmbiguity, path string) (*types.ClassFixed, bool) {
			for _, o := range a.Options {
				if o.Path() == path {
					r := o.Candidate.Clone()
					r.UsedBy = a.UsedBy.Clone()
					return &r, true
				}
			}
			return nil, false
		},
		resolved: func(r *types.ClassFixed) { p.history.AddClass(*r) },
	}
}

func (p *Pattern) intentOps() kindOps[*types.IntentDraft, *types.IntentAmbiguity, *types.IntentFixed] {
	fix := func(i types.Intent, path string) types.IntentFixed {
		i.UsedBy = i.UsedBy.Clone()
		return types.IntentFixed{Intent: i, GraphPath: path}
	}
	return kindOps[*types.IntentDraft, *types.IntentAmbiguity, *types.IntentFixed]{
		fix: func(d *types.IntentDraft, path string) *types.IntentFixed {
			r := fix(d.Intent, path)
			return &r
		},
		ambiguate: func(d *types.IntentDraft, ranked []types.RankedCandidate) *types.IntentAmbiguity {
			a := &types.IntentAmbiguity{Intent: d.Intent}
			a.UsedBy = d.UsedBy.Clone()
			for _, c := range ranked {
				a.Options = append(a.Options, types.Option[types.IntentFixed]{
					Candidate:   fix(d.Intent, c.Path),
					Score:       c.Score,
					Label:       c.Label,
					Description: c.Description,
				})
			}
			return a
		},
		choose: func(a *types.IntentAmbiguity, path string) (*types.IntentFixed, bool) {
			for _, o := range a.Options {
				if o.Path() == path {
					r := o.Candidate.Clone()
					r.UsedBy = a.UsedBy.Clone()
					r.Version = a.Version
					return &r, true
				}
			}
			return nil, false
		},
		resolved: func(r *types.IntentFixed) { p.history.AddIntent(*r) },
	}
}

func (p *Pattern) argumentOps() kindOps[*types.ArgumentDraft, *types.ArgumentAmbiguity, *types.ArgumentFixed] {
	fix := func(a types.Argument, path string) types.ArgumentFixed {
		r := types.ArgumentFixed{Argument: a, GraphPath: path}
		return r.Clone()
	}
	return kindOps[*types.ArgumentDraft, *types.ArgumentAmbiguity, *types.ArgumentFixed]{
		fix: func(d *types.ArgumentDraft, path string) *types.ArgumentFixed {
			r := fix(d.Argument, path)
			return &r
		},
		ambiguate: func(d *types.ArgumentDraft, ranked []types.RankedCandidate) *types.ArgumentAmbiguity {
			a := &types.ArgumentAmbiguity{Argument: d.Argument}
			a.UsedBy = d.UsedBy.Clone()
			for _, c := range ranked {
				a.Options = append(a.Options, types.Option[types.ArgumentFixed]{
					Candidate:   fix(d.Argument, c.Path),
					Score:       c.Score,
					Label:       c.Label,
					Description: c.Description,
				})
			}
			return a
		},
		choose: func(a *types.ArgumentAmbiguity, path string) (*types.ArgumentFixed, bool) {
			for _, o := range a.Options {
				if o.Path() == path {
					r := o.Candidate.Clone()
					r.UsedBy = a.UsedBy.Clone()
					return &r, true
				}
			}
			return nil, false
		},
		resolved: func(r *types.ArgumentFixed) { p.bumpVersion(r.Intent) },
	}
}

// bumpVersion increments the version of the intent owning a newly resolved
// argument, in whichever tier holds it. Resolved intents are re-recorded in
// history so the ledger sees the new version.
func (p *Pattern) bumpVersion(intentID string) {
	if i, ok := p.intents.Resolved(intentID); ok {
		i.Version++
		p.history.AddIntent(*i)
		return
	}
	if a, ok := p.intents.Ambiguity(intentID); ok {
		a.Version++
		for k := range a.Options {
			a.Options[k].Candidate.Version = a.Version
		}
		return
	}
	if d, ok := p.intents.Draft(intentID); ok {
		d.Version++
	}
}
