package rerank

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scrypster/disambig/internal/llm"
	"github.com/scrypster/disambig/pkg/types"
)

// LLMReranker asks a text generator to score candidates.
type LLMReranker struct {
	gen    llm.TextGenerator
	logger *zap.Logger
}

// NewLLMReranker creates a reranker backed by gen. A nil logger disables logging.
func NewLLMReranker(gen llm.TextGenerator, logger *zap.Logger) *LLMReranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMReranker{gen: gen, logger: logger.Named("rerank")}
}

// Rerank implements Reranker. No model call is made when there are no candidates.
func (r *LLMReranker) Rerank(ctx context.Context, req Request) ([]types.RankedCandidate, error) {
	if len(req.Candidates) == 0 {
		return nil, nil
	}

	prompt := llm.RerankPrompt(req.Query, req.Mention, req.Candidates)
	text, err := r.gen.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("rerank: %s: %w", r.gen.GetModel(), err)
	}

	ranked, err := llm.ParseRankings(text, req.Candidates)
	if err != nil {
		r.logger.Warn("unparseable rerank answer",
			zap.String("model", r.gen.GetModel()),
			zap.String("mention", req.Mention),
			zap.Int("answer_bytes", len(text)),
			zap.Error(err))
		return nil, fmt.Errorf("rerank: %w", err)
	}

	r.logger.Debug("reranked candidates",
		zap.String("mention", req.Mention),
		zap.Int("candidates", len(req.Candidates)),
		zap.Int("ranked", len(ranked)))
	return ranked, nil
}

// New returns an LLMReranker when gen is set and a ScoreReranker otherwise.
func New(gen llm.TextGenerator, logger *zap.Logger) Reranker {
	if gen == nil {
		return ScoreReranker{}
	}
	return NewLLMReranker(gen, logger)
}
