package core

import "context"

// Well-known tool argument keys. Every sub-agent invocation carries the
// case text and the conversation history; exemplars are attached when
// feedback retrieval is enabled.
const (
	ArgCase      = "case"
	ArgHistory   = "history"
	ArgExemplars = "exemplars"
	ArgMessage   = "message"
)

// ToolDescriptor is the static configuration of a tool. Immutable once
// registered; the registry owns it.
type ToolDescriptor struct {
	// Name uniquely identifies the tool.
	Name string

	// Description is shown to the routing model.
	Description string

	// Type selects the constructor used to instantiate the tool.
	Type string

	// Cacheable enables result memoization in the execution engine.
	Cacheable bool

	// ParameterSchema is a JSON-schema object describing accepted
	// arguments ("type", "properties", "required").
	ParameterSchema map[string]any

	// Metadata carries opaque provider-specific configuration.
	Metadata map[string]string
}

// Tool is a live sub-agent bound to one descriptor. Instances are created
// lazily, cached per name, and shared across sessions, so implementations
// must be safe for concurrent use.
type Tool interface {
	// Name returns the descriptor name the tool is bound to.
	Name() string

	// Execute runs the tool with validated arguments and returns its
	// textual output.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToolConstructor builds a tool instance from its descriptor. Constructors
// are registered per descriptor Type tag.
type ToolConstructor func(desc ToolDescriptor, cfg *Config) (Tool, error)
