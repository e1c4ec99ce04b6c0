package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrypster/disambig/internal/config"
)

func TestNewTextGenerator(t *testing.T) {
	logger := zap.NewNop()

	gen, err := NewTextGenerator(config.LLMConfig{Provider: "none"}, logger)
	require.NoError(t, err)
	assert.Nil(t, gen)

	gen, err = NewTextGenerator(config.LLMConfig{Provider: "ollama", Model: "llama3"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, gen)
	assert.Equal(t, "llama3", gen.GetModel())

	gen, err = NewTextGenerator(config.LLMConfig{Provider: "anthropic", APIKey: "k"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, gen)
	assert.NotEmpty(t, gen.GetModel())

	gen, err = NewTextGenerator(config.LLMConfig{Provider: "openai", APIKey: "k"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", gen.GetModel())

	_, err = NewTextGenerator(config.LLMConfig{Provider: "cohere"}, logger)
	assert.Error(t, err)
}
