package llm

import (
	"fmt"
	"strings"

	"github.com/scrypster/disambig/pkg/types"
)

// rerankSystemPrompt is sent as the system message by chat style providers.
const rerankSystemPrompt = "You rank knowledge graph nodes by how well they match a user query. You answer with JSON only."

// RerankPrompt generates a strict JSON-only prompt asking the model to score
// each candidate graph node against the query on a 0..5 scale.
//
// Parameters:
//   - query: the user query the session is disambiguating
//   - mention: the entity being resolved, as written in the parse
//   - candidates: graph nodes proposed by search
//
// Returns:
//   - A prompt whose expected answer is {"rankings":[{"path":"...","score":N}]}
func RerankPrompt(query, mention string, candidates []types.Candidate) string {
	var sb strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. path=%s label=%q", i+1, c.Path, c.Label)
		if c.Description != "" {
			fmt.Fprintf(&sb, " description=%q", c.Description)
		}
		sb.WriteByte('\n')
	}

	return fmt.Sprintf(`TASK: Score knowledge graph nodes against a user query.
OUTPUT: ONLY valid JSON. NO markdown. NO code blocks. NO backticks.

QUERY:
%s

ENTITY BEING RESOLVED:
%s

CANDIDATE NODES:
%s
SCORING (integers only):
- 5: exactly the node the query refers to
- 3-4: plausible match
- 1-2: weak match
- 0: unrelated

VALIDATION (STRICT):
1. Start with { - End with }
2. "rankings" key must be present and hold an array
3. One entry per candidate, using the candidate path unchanged
4. Each entry has exactly: path, score

RESPOND WITH ONLY THIS JSON STRUCTURE (nothing else):
{"rankings":[{"path":"X","score":5}]}`, query, mention, sb.String())
}
