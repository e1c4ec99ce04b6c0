package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/scrypster/disambig/pkg/types"
)

// ErrMalformedResponse is returned when the model's answer holds no usable JSON.
var ErrMalformedResponse = errors.New("malformed llm response")

// RankingResponse represents a single scored path from the LLM response.
type RankingResponse struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// RerankResponse represents the complete reranking response.
type RerankResponse struct {
	Rankings []RankingResponse `json:"rankings"`
}

// extractJSON extracts the first valid JSON object from a string that may contain extra text.
// This handles cases where LLMs add explanations before/after the JSON despite instructions.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escape {
			escape = false
			continue
		}
		if ch == '\\' {
			escape = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text
}

// ParseRankings parses a rerank answer and maps it back onto the candidates.
// Paths the model invented are skipped and scores are clamped to 0..5.
// A candidate ranked twice keeps its first score. Candidates the model did not
// mention are omitted. Only malformed JSON is an error.
func ParseRankings(text string, candidates []types.Candidate) ([]types.RankedCandidate, error) {
	var resp RerankResponse
	if err := json.Unmarshal([]byte(extractJSON(text)), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	byPath := make(map[string]types.Candidate, len(candidates))
	for _, c := range candidates {
		byPath[c.Path] = c
	}

	out := make([]types.RankedCandidate, 0, len(resp.Rankings))
	seen := make(map[string]bool, len(resp.Rankings))
	for _, r := range resp.Rankings {
		c, ok := byPath[r.Path]
		if !ok || seen[r.Path] {
			continue
		}
		seen[r.Path] = true
		out = append(out, types.RankedCandidate{
			Path:        c.Path,
			Label:       c.Label,
			Description: c.Description,
			Score:       types.ClampScore(r.Score),
		})
	}
	return out, nil
}
