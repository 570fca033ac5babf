package llms

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/casetutor/casetutor/pkg/errors"
)

// OpenAIEmbedder implements core.Embedder on top of langchaingo's OpenAI
// client. It serves deployments where Ollama hosts the tutor model but
// embeddings come from a hosted API.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	model    string
}

// NewOpenAIEmbedder creates an embedder bound to the given embedding
// model, e.g. "text-embedding-3-small".
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New(errors.Config, "OpenAI API key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}

	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.Config, "failed to create OpenAI client")
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, errors.Wrap(err, errors.Config, "failed to create embedder")
	}
	return &OpenAIEmbedder{embedder: embedder, model: model}, nil
}

// Embed implements core.Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Provider, "embedding request failed"),
			errors.Fields{"model": e.model})
	}
	return vector, nil
}
