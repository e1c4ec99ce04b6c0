// Package llm provides the text-generation clients used by the LLM reranker:
// Ollama over HTTP and the Anthropic and OpenAI SDKs, each guarded by a
// circuit breaker. It also builds the reranking prompt and parses the
// model's answer.
package llm

import "context"

// TextGenerator is the interface for LLM text completion.
// Reranking uses single-string completion style (not chat).
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}
