package llms

import (
	"strings"

	"github.com/casetutor/casetutor/pkg/core"
	"github.com/casetutor/casetutor/pkg/errors"
)

// NewLLM creates a provider client from a model spec string:
//
//	anthropic:<model>               Anthropic Messages API
//	openrouter:<model>              OpenRouter chat completions
//	ollama:<model>                  local Ollama, default host
//	ollama:<host>:<model>           Ollama at host (port and http(s)://
//	                                prefix optional)
//
// The apiKey is required for hosted providers and ignored for Ollama.
func NewLLM(apiKey, spec string) (core.LLM, error) {
	switch {
	case strings.HasPrefix(spec, "anthropic:"):
		return NewAnthropicLLM(apiKey, spec[len("anthropic:"):])

	case strings.HasPrefix(spec, "openrouter:"):
		model := spec[len("openrouter:"):]
		if model == "" {
			return nil, errors.New(errors.Config, "invalid model spec, use 'openrouter:<model_name>'")
		}
		return NewOpenRouterLLM(apiKey, model)

	case strings.HasPrefix(spec, "ollama:"):
		host, model, err := splitOllamaSpec(spec[len("ollama:"):])
		if err != nil {
			return nil, err
		}
		return NewOllamaLLM(host, model)

	default:
		return nil, errors.WithFields(
			errors.New(errors.Config, "unsupported model spec"),
			errors.Fields{"spec": spec})
	}
}

// NewEmbedder creates an embedding client from a spec string:
//
//	ollama:<model> or ollama:<host>:<model>   Ollama embeddings endpoint
//	openai:<model>                            OpenAI via langchaingo
func NewEmbedder(apiKey, spec string) (core.Embedder, error) {
	switch {
	case strings.HasPrefix(spec, "ollama:"):
		host, model, err := splitOllamaSpec(spec[len("ollama:"):])
		if err != nil {
			return nil, err
		}
		return NewOllamaLLM(host, model)

	case strings.HasPrefix(spec, "openai:"):
		return NewOpenAIEmbedder(apiKey, spec[len("openai:"):])

	default:
		return nil, errors.WithFields(
			errors.New(errors.Config, "unsupported embedder spec"),
			errors.Fields{"spec": spec})
	}
}

// splitOllamaSpec parses "<model>", "<host>:<model>" and
// "http(s)://<host>[:<port>]:<model>" forms. The model name is always the
// segment after the last colon.
func splitOllamaSpec(input string) (host, model string, err error) {
	if input == "" {
		return "", "", errors.New(errors.Config, "invalid model spec, use 'ollama:<model_name>' or 'ollama:<host>:<model_name>'")
	}
	if !strings.Contains(input, ":") {
		return "", input, nil
	}

	lastColon := strings.LastIndex(input, ":")
	host, model = input[:lastColon], input[lastColon+1:]
	if host == "" || model == "" {
		return "", "", errors.New(errors.Config, "invalid model spec, use 'ollama:<host>:<model_name>' with non-empty host and model")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host, model, nil
}
