package core

import (
	"context"
	"net/http"
	"time"
)

// LLMResponse is the result of a text generation call.
type LLMResponse struct {
	Content string
}

// GenerateOptions configures a single generation call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// NewGenerateOptions returns generation options with default values.
func NewGenerateOptions() *GenerateOptions {
	return &GenerateOptions{
		MaxTokens:   2048,
		Temperature: 0.5,
	}
}

// GenerateOption mutates GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		if n > 0 {
			o.MaxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = t }
}

// WithStopSequences sets stop sequences for generation.
func WithStopSequences(stop ...string) GenerateOption {
	return func(o *GenerateOptions) { o.Stop = stop }
}

// Function-call result keys returned by LLM.GenerateWithFunctions. A tool
// selection carries FunctionKeyTool and FunctionKeyArguments; a direct
// answer carries only FunctionKeyContent.
const (
	FunctionKeyTool      = "tool"
	FunctionKeyArguments = "arguments"
	FunctionKeyContent   = "content"
)

// LLM is the external text-generation provider contract. Implementations
// must honor context cancellation and classify transport failures as
// Provider errors.
type LLM interface {
	// Name identifies the provider ("ollama", "anthropic", ...).
	Name() string

	// ModelID returns the model this client is bound to.
	ModelID() string

	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string, options ...GenerateOption) (*LLMResponse, error)

	// GenerateWithFunctions produces either a function call or a direct
	// answer, given JSON-schema function specs. See the FunctionKey
	// constants for the result shape.
	GenerateWithFunctions(ctx context.Context, prompt string, functions []map[string]any, options ...GenerateOption) (map[string]any, error)
}

// Embedder is the external embedding provider contract: given text, return
// a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EndpointConfig describes an HTTP provider endpoint.
type EndpointConfig struct {
	BaseURL    string
	Path       string
	Headers    map[string]string
	TimeoutSec int
}

// BaseLLM carries the identity and HTTP plumbing shared by provider
// clients.
type BaseLLM struct {
	name     string
	modelID  string
	endpoint *EndpointConfig
	client   *http.Client
}

// NewBaseLLM creates the shared base for a provider client.
func NewBaseLLM(name, modelID string, endpoint *EndpointConfig) *BaseLLM {
	timeout := 10 * time.Minute
	if endpoint != nil && endpoint.TimeoutSec > 0 {
		timeout = time.Duration(endpoint.TimeoutSec) * time.Second
	}
	return &BaseLLM{
		name:     name,
		modelID:  modelID,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (b *BaseLLM) Name() string                      { return b.name }
func (b *BaseLLM) ModelID() string                   { return b.modelID }
func (b *BaseLLM) GetEndpointConfig() *EndpointConfig { return b.endpoint }
func (b *BaseLLM) GetHTTPClient() *http.Client        { return b.client }
