package llms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetutor/casetutor/pkg/errors"
)

func TestNewLLMOllamaSpecs(t *testing.T) {
	cases := []struct {
		spec      string
		wantHost  string
		wantModel string
	}{
		{"ollama:llama3", "http://localhost:11434", "llama3"},
		{"ollama:myhost:llama3", "http://myhost", "llama3"},
		{"ollama:myhost:11434:llama3", "http://myhost:11434", "llama3"},
		{"ollama:http://myhost:11434:llama3", "http://myhost:11434", "llama3"},
		{"ollama:https://ollama.internal:mistral", "https://ollama.internal", "mistral"},
	}
	for _, tc := range cases {
		t.Run(tc.spec, func(t *testing.T) {
			llm, err := NewLLM("", tc.spec)
			require.NoError(t, err)

			ollama, ok := llm.(*OllamaLLM)
			require.True(t, ok)
			assert.Equal(t, tc.wantHost, ollama.GetEndpointConfig().BaseURL)
			assert.Equal(t, tc.wantModel, ollama.ModelID())
		})
	}
}

func TestNewLLMAnthropic(t *testing.T) {
	llm, err := NewLLM("sk-test", "anthropic:claude-sonnet-4-20250514")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", llm.Name())
	assert.Equal(t, "claude-sonnet-4-20250514", llm.ModelID())

	_, err = NewLLM("", "anthropic:claude-sonnet-4-20250514")
	require.Error(t, err)
	assert.Equal(t, errors.Config, errors.CodeOf(err))
}

func TestNewLLMOpenRouter(t *testing.T) {
	llm, err := NewLLM("sk-or-test", "openrouter:anthropic/claude-3.5-sonnet")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", llm.Name())
	assert.Equal(t, "anthropic/claude-3.5-sonnet", llm.ModelID())
}

func TestNewLLMInvalidSpecs(t *testing.T) {
	for _, spec := range []string{"", "gpt-4", "ollama:", "openrouter:", "ollama::model", "ollama:host:"} {
		t.Run(spec, func(t *testing.T) {
			_, err := NewLLM("key", spec)
			require.Error(t, err)
			assert.Equal(t, errors.Config, errors.CodeOf(err))
		})
	}
}

func TestNewEmbedder(t *testing.T) {
	emb, err := NewEmbedder("", "ollama:nomic-embed-text")
	require.NoError(t, err)
	assert.IsType(t, &OllamaLLM{}, emb)

	_, err = NewEmbedder("", "pinecone:whatever")
	require.Error(t, err)
	assert.Equal(t, errors.Config, errors.CodeOf(err))

	_, err = NewEmbedder("", "openai:text-embedding-3-small")
	require.Error(t, err, "OpenAI embedder requires an API key")
}
