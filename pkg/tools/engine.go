package tools

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casetutor/casetutor/pkg/core"
	"github.com/casetutor/casetutor/pkg/errors"
)

// Engine executes registered tools with uniform guarantees: arguments are
// validated, results are memoized for cacheable tools, latency is measured,
// and every outcome — success or any class of failure — is normalized into
// an InvocationResult. Execute never panics and never returns an error; the
// result carries the failure.
type Engine struct {
	registry *Registry
	cache    ResultCache
	timeout  time.Duration
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithResultCache replaces the default in-process cache.
func WithResultCache(c ResultCache) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithExecutionTimeout bounds each tool invocation. Zero disables the
// engine-level bound (the provider client still applies its own).
func WithExecutionTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

// WithEngineLogger sets the engine's structured logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an execution engine over the given registry.
func NewEngine(registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		cache:    NewMemoryCache(),
		timeout:  registry.cfg.ProviderTimeout,
		logger:   registry.cfg.Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteOption configures a single Execute call.
type ExecuteOption func(*executeOptions)

type executeOptions struct {
	validate bool
	useCache bool
}

// WithoutValidation skips schema validation for this call.
func WithoutValidation() ExecuteOption {
	return func(o *executeOptions) { o.validate = false }
}

// WithoutCache bypasses the result cache for this call.
func WithoutCache() ExecuteOption {
	return func(o *executeOptions) { o.useCache = false }
}

// Execute runs the named tool with the given arguments.
//
// An unknown tool name is a Validation failure, not a crash: tool selection
// comes from a language model and bad names are expected input. Validation
// and Config failures are never retried; Provider failures are surfaced for
// the caller's own retry policy — the engine performs no retries itself.
func (e *Engine) Execute(ctx context.Context, name string, args map[string]any, opts ...ExecuteOption) InvocationResult {
	options := &executeOptions{validate: true, useCache: true}
	for _, opt := range opts {
		opt(options)
	}
	if args == nil {
		args = map[string]any{}
	}

	tool, ok := e.registry.Instance(name)
	if !ok {
		return failure(name, 0, errors.WithFields(
			errors.New(errors.Validation, "tool not found"),
			errors.Fields{"tool": name},
		))
	}
	desc, _ := e.registry.Descriptor(name)

	if options.validate {
		if err := ValidateArgs(desc.ParameterSchema, args); err != nil {
			return failure(name, 0, err)
		}
	}

	cacheable := options.useCache && desc.Cacheable
	var key string
	if cacheable {
		key = CacheKey(name, args)
		if v, hit := e.cache.Get(ctx, key); hit {
			e.logger.Debug("tool cache hit", "tool", name)
			return cachedResult(name, v)
		}
	}

	start := time.Now()
	result, err := e.invoke(ctx, tool, args)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		e.logger.Warn("tool execution failed",
			"tool", name, "kind", errors.CodeOf(err).String(), "err", err)
		return failure(name, elapsed, err)
	}

	if cacheable {
		e.cache.Set(ctx, key, result)
	}
	e.logger.Debug("tool executed", "tool", name, "elapsed_ms", elapsed)
	return success(name, elapsed, result)
}

// invoke runs the tool's core logic, containing panics and classifying
// errors. Declared error codes pass through verbatim; context expiry maps
// to Provider; anything else is wrapped as Unexpected with the original
// message preserved.
func (e *Engine) invoke(ctx context.Context, tool core.Tool, args map[string]any) (result string, err error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.Unexpected, fmt.Sprintf("tool panicked: %v", r))
		}
	}()

	result, err = tool.Execute(ctx, args)
	if err == nil {
		return result, nil
	}

	var coded *errors.Error
	switch {
	case stderrors.As(err, &coded):
		return "", err
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return "", errors.Wrap(err, errors.Provider, "tool execution timed out")
	default:
		return "", errors.Wrap(err, errors.Unexpected, err.Error())
	}
}

// ClearCache empties the result cache.
func (e *Engine) ClearCache(ctx context.Context) error {
	return e.cache.Clear(ctx)
}
