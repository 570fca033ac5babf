package llms

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/casetutor/casetutor/pkg/core"
	"github.com/casetutor/casetutor/pkg/errors"
)

// AnthropicLLM implements core.LLM against the Anthropic Messages API.
// Unlike the Ollama client it gets native tool calling, so function
// routing never depends on the model emitting well-formed JSON in prose.
type AnthropicLLM struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropicLLM creates a client for the given model.
func NewAnthropicLLM(apiKey, model string) (*AnthropicLLM, error) {
	if apiKey == "" {
		return nil, errors.New(errors.Config, "anthropic API key is required")
	}
	if model == "" {
		model = string(anthropic.ModelClaude4Sonnet20250514)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicLLM{
		client: &client,
		model:  anthropic.Model(model),
	}, nil
}

func (a *AnthropicLLM) Name() string    { return "anthropic" }
func (a *AnthropicLLM) ModelID() string { return string(a.model) }

// Generate implements core.LLM.
func (a *AnthropicLLM) Generate(ctx context.Context, prompt string, options ...core.GenerateOption) (*core.LLMResponse, error) {
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	response, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:         a.model,
		MaxTokens:     int64(opts.MaxTokens),
		Temperature:   anthropic.Float(opts.Temperature),
		StopSequences: opts.Stop,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Provider, "anthropic message request failed"),
			errors.Fields{"model": a.model})
	}

	var content string
	for _, block := range response.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += text.Text
		}
	}
	return &core.LLMResponse{Content: content}, nil
}

// GenerateWithFunctions implements core.LLM using native tool use. Each
// function spec carries "name", "description" and a JSON-schema
// "parameters" object.
func (a *AnthropicLLM) GenerateWithFunctions(ctx context.Context, prompt string, functions []map[string]any, options ...core.GenerateOption) (map[string]any, error) {
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	tools := make([]anthropic.ToolUnionParam, 0, len(functions))
	for _, fn := range functions {
		name, _ := fn["name"].(string)
		if name == "" {
			return nil, errors.New(errors.Validation, "function spec missing name")
		}
		description, _ := fn["description"].(string)
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        name,
				Description: anthropic.String(description),
				InputSchema: toolInputSchema(fn["parameters"]),
			},
		})
	}

	response, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Tools: tools,
	})
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Provider, "anthropic tool request failed"),
			errors.Fields{"model": a.model})
	}

	var content string
	for _, block := range response.Content {
		switch block := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += block.Text
		case anthropic.ToolUseBlock:
			inputJSON, err := json.Marshal(block.Input)
			if err != nil {
				return nil, errors.Wrap(err, errors.Provider, "failed to marshal tool input")
			}
			var args map[string]any
			if err := json.Unmarshal(inputJSON, &args); err != nil {
				return nil, errors.Wrap(err, errors.Provider, "failed to decode tool input")
			}
			return map[string]any{
				core.FunctionKeyTool:      block.Name,
				core.FunctionKeyArguments: args,
			}, nil
		}
	}
	return map[string]any{core.FunctionKeyContent: content}, nil
}

func toolInputSchema(parameters any) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{}
	params, ok := parameters.(map[string]any)
	if !ok {
		return schema
	}
	if props, ok := params["properties"]; ok {
		schema.Properties = props
	}
	switch req := params["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}
