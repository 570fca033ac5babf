package core

import (
	"log/slog"
	"time"
)

// Config holds the shared dependencies of the tutoring core. It is
// constructed once at process start and passed by reference; there is no
// global state, so test harnesses can build isolated configs.
type Config struct {
	// DefaultLLM is the text-generation provider used for routing and by
	// sub-agents that do not name their own model.
	DefaultLLM LLM

	// Embedder is the embedding provider used by feedback retrieval.
	Embedder Embedder

	// ProviderTimeout bounds each external provider call.
	ProviderTimeout time.Duration

	// Log is the structured logger; nil means slog.Default().
	Log *slog.Logger
}

// NewConfig creates a configuration with default values.
func NewConfig() *Config {
	return &Config{
		ProviderTimeout: 60 * time.Second,
	}
}

// WithDefaultLLM sets the default text-generation provider.
func (c *Config) WithDefaultLLM(llm LLM) *Config {
	c.DefaultLLM = llm
	return c
}

// WithEmbedder sets the embedding provider.
func (c *Config) WithEmbedder(e Embedder) *Config {
	c.Embedder = e
	return c
}

// WithProviderTimeout sets the per-call provider timeout.
func (c *Config) WithProviderTimeout(d time.Duration) *Config {
	if d > 0 {
		c.ProviderTimeout = d
	}
	return c
}

// WithLogger sets the structured logger.
func (c *Config) WithLogger(l *slog.Logger) *Config {
	c.Log = l
	return c
}

// Logger returns the configured logger, falling back to slog.Default().
func (c *Config) Logger() *slog.Logger {
	if c == nil || c.Log == nil {
		return slog.Default()
	}
	return c.Log
}
