package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Complete(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: `{"rankings":[]}`, Done: true})
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "tiny"})
	out, err := client.Complete(context.Background(), "rank these")
	require.NoError(t, err)

	assert.Equal(t, `{"rankings":[]}`, out)
	assert.Equal(t, "tiny", got.Model)
	assert.Equal(t, "rank these", got.Prompt)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.Equal(t, "tiny", client.GetModel())
}

func TestOllamaClient_Defaults(t *testing.T) {
	client := NewOllamaClient(OllamaConfig{})
	assert.Equal(t, "http://localhost:11434", client.baseURL)
	assert.Equal(t, "qwen2.5:7b", client.GetModel())
	assert.Equal(t, 60*time.Second, client.timeout)
}

func TestOllamaClient_TripsBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          2,
		Timeout:              time.Hour,
		HalfOpenMaxSuccesses: 1,
	})
	client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Breaker: cb})

	for i := 0; i < 2; i++ {
		_, err := client.Complete(context.Background(), "p")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	}

	_, err := client.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "open", cb.State())
}
