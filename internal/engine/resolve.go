package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scrypster/disambig/internal/pattern"
	"github.com/scrypster/disambig/internal/rerank"
	"github.com/scrypster/disambig/pkg/types"
)

// ResolvePending resolves every finished draft that is not already in flight.
//
// Kinds are handled in waves, classes then intents then arguments, so an
// intent's search is scoped to a target class resolved earlier in the same
// pass. Within a wave up to Workers drafts are resolved in parallel. Each
// worker waits on the rate limiter, searches, reranks and submits the
// ranking to the writer. Search and rerank failures are retried with
// quadratic backoff up to MaxRetries.
//
// Per-draft outcomes are collected in the report. The returned error is only
// set when ctx is cancelled or the engine stops.
func (e *Engine) ResolvePending(ctx context.Context) (ResolveReport, error) {
	if e.deps.Search == nil || e.deps.Reranker == nil {
		return ResolveReport{}, fmt.Errorf("engine: resolve requires search and reranker")
	}

	var (
		report ResolveReport
		mu     sync.Mutex
	)
	record := func(list *[]Ref, ref Ref) {
		mu.Lock()
		defer mu.Unlock()
		*list = append(*list, ref)
	}

	for _, kind := range types.ValidKinds {
		var (
			query   string
			pending []pattern.PendingDraft
		)
		err := e.do(ctx, "claim", false, func(p *pattern.Pattern) error {
			query = p.Query()
			for _, d := range p.PendingDrafts() {
				if d.Kind != kind {
					continue
				}
				if err := p.MarkLoading(d.Kind, d.Identifier, true); err != nil {
					return err
				}
				pending = append(pending, d)
			}
			return nil
		})
		if err != nil {
			return report, err
		}
		if len(pending) == 0 {
			continue
		}
		e.logger.Debug("resolving drafts", zap.String("kind", string(kind)), zap.Int("count", len(pending)))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.config.Workers)
		for _, d := range pending {
			g.Go(func() error {
				ref := Ref{Kind: d.Kind, Identifier: d.Identifier}
				out, err := e.resolveOne(gctx, query, d)
				switch {
				case err == nil && out.Tier == types.TierResolved:
					record(&report.Resolved, ref)
					e.notifyPromoted(out)
				case err == nil && out.Tier == types.TierAmbiguous:
					record(&report.Ambiguous, ref)
					e.notifyPromoted(out)
				case err == nil:
					record(&report.Pending, ref)
				case pattern.IsPending(err):
					record(&report.Pending, ref)
				case errors.Is(err, pattern.ErrUnknownEntity):
					record(&report.Stale, ref)
				case gctx.Err() != nil:
					return gctx.Err()
				default:
					record(&report.Failed, ref)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			report.sort()
			return report, err
		}
	}

	report.sort()
	return report, nil
}

// resolveOne runs search and rerank for one claimed draft and applies the
// ranking. The draft's flags are released on every path.
func (e *Engine) resolveOne(ctx context.Context, query string, d pattern.PendingDraft) (pattern.Outcome, error) {
	log := e.logger.With(zap.String("kind", string(d.Kind)), zap.String("identifier", d.Identifier))

	var (
		ranked  []types.RankedCandidate
		lastErr error
	)
	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * e.config.RetryBackoff // 1x, 4x, 9x...
			log.Debug("retrying resolution", zap.Int("attempt", attempt), zap.Duration("backoff", backoff))
			if err := sleep(ctx, backoff); err != nil {
				e.release(d)
				return pattern.Outcome{}, err
			}
		}

		ranked, lastErr = e.rankOne(ctx, query, d)
		if lastErr == nil || errors.Is(lastErr, pattern.ErrUnknownEntity) || ctx.Err() != nil {
			break
		}
		log.Warn("resolution attempt failed", zap.Int("attempt", attempt), zap.Error(lastErr))
	}

	if lastErr != nil {
		e.release(d)
		if !errors.Is(lastErr, pattern.ErrUnknownEntity) && ctx.Err() == nil {
			log.Warn("giving up on draft", zap.Int("retries", e.config.MaxRetries), zap.Error(lastErr))
		}
		return pattern.Outcome{}, lastErr
	}

	var out pattern.Outcome
	err := e.do(ctx, "apply_ranking", true, func(p *pattern.Pattern) error {
		var err error
		out, err = p.ApplyRanking(d.Kind, d.Identifier, ranked)
		return err
	})
	switch {
	case err == nil:
		log.Debug("draft promoted", zap.String("tier", string(out.Tier)), zap.String("path", out.GraphPath))
	case pattern.IsPending(err):
		log.Info("no viable candidate, draft stays pending", zap.Int("ranked", len(ranked)))
	case errors.Is(err, pattern.ErrUnknownEntity):
		log.Debug("draft dropped before ranking was applied")
	default:
		// apply may not have run at all, so the claim is still held
		e.release(d)
		if ctx.Err() == nil {
			log.Warn("ranking rejected", zap.Error(err))
		}
	}
	return out, err
}

// rankOne performs one search and rerank round.
func (e *Engine) rankOne(ctx context.Context, query string, d pattern.PendingDraft) ([]types.RankedCandidate, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	candidates, err := e.deps.Search.Search(ctx, d.Text, d.Scope)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	err = e.do(ctx, "mark_reranking", false, func(p *pattern.Pattern) error {
		return p.MarkReranking(d.Kind, d.Identifier, true)
	})
	if err != nil {
		return nil, err
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ranked, err := e.deps.Reranker.Rerank(ctx, rerank.Request{
		Query:      query,
		Mention:    d.Text,
		Candidates: candidates,
	})
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	return ranked, nil
}

// release clears the in-flight flags of a draft that was not promoted so a
// later pass picks it up again. A draft dropped meanwhile is ignored.
func (e *Engine) release(d pattern.PendingDraft) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = e.do(ctx, "release", false, func(p *pattern.Pattern) error {
		if err := p.MarkLoading(d.Kind, d.Identifier, false); err != nil {
			return nil
		}
		return p.MarkReranking(d.Kind, d.Identifier, false)
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
