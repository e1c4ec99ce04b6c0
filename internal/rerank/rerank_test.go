package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/disambig/internal/llm"
	"github.com/scrypster/disambig/pkg/types"
)

type stubGenerator struct {
	answer  string
	err     error
	prompts []string
}

func (s *stubGenerator) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.answer, s.err
}

func (s *stubGenerator) GetModel() string { return "stub" }

var candidates = []types.Candidate{
	{Path: "billing/invoice", Label: "Invoice", Score: 3},
	{Path: "billing/receipt", Label: "Receipt", Score: 9},
	{Path: "crm/contact", Label: "Contact", Score: -2},
}

func TestScoreReranker(t *testing.T) {
	got, err := ScoreReranker{}.Rerank(context.Background(), Request{Candidates: candidates})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "billing/receipt", got[0].Path)
	assert.Equal(t, 5.0, got[0].Score)
	assert.Equal(t, "billing/invoice", got[1].Path)
	assert.Equal(t, 0.0, got[2].Score)
}

func TestLLMReranker(t *testing.T) {
	gen := &stubGenerator{answer: `{"rankings":[{"path":"billing/invoice","score":5},{"path":"billing/receipt","score":2}]}`}
	r := NewLLMReranker(gen, nil)

	got, err := r.Rerank(context.Background(), Request{Query: "overdue invoices", Mention: "Invoice", Candidates: candidates})
	require.NoError(t, err)

	assert.Equal(t, []types.RankedCandidate{
		{Path: "billing/invoice", Label: "Invoice", Score: 5},
		{Path: "billing/receipt", Label: "Receipt", Score: 2},
	}, got)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "overdue invoices")
}

func TestLLMReranker_NoCandidatesSkipsModel(t *testing.T) {
	gen := &stubGenerator{}
	got, err := NewLLMReranker(gen, nil).Rerank(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, gen.prompts)
}

func TestLLMReranker_Errors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewLLMReranker(&stubGenerator{err: boom}, nil).Rerank(context.Background(), Request{Candidates: candidates})
	assert.ErrorIs(t, err, boom)

	_, err = NewLLMReranker(&stubGenerator{answer: "no idea"}, nil).Rerank(context.Background(), Request{Candidates: candidates})
	assert.ErrorIs(t, err, llm.ErrMalformedResponse)
}

func TestNew(t *testing.T) {
	assert.IsType(t, ScoreReranker{}, New(nil, nil))
	assert.IsType(t, &LLMReranker{}, New(&stubGenerator{}, nil))
}
