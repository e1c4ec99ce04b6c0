// Package rerank scores graph search candidates against the query a session
// is disambiguating. Scores are on the 0..5 scale the promotion policy reads.
package rerank

import (
	"context"
	"sort"

	"github.com/scrypster/disambig/pkg/types"
)

// Request is one reranking call.
type Request struct {
	// Query is the session's natural-language query.
	Query string

	// Mention is the text of the entity being resolved.
	Mention string

	Candidates []types.Candidate
}

// Reranker scores candidates. Implementations may omit candidates they
// consider irrelevant; an empty result means nothing matched.
type Reranker interface {
	Rerank(ctx context.Context, req Request) ([]types.RankedCandidate, error)
}

// ScoreReranker passes search scores through, clamped to 0..5 and ordered by
// descending score. It is used when no LLM is configured.
type ScoreReranker struct{}

// Rerank implements Reranker.
func (ScoreReranker) Rerank(ctx context.Context, req Request) ([]types.RankedCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]types.RankedCandidate, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		out = append(out, types.RankedCandidate{
			Path:        c.Path,
			Label:       c.Label,
			Description: c.Description,
			Score:       types.ClampScore(c.Score),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
