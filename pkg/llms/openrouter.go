package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/casetutor/casetutor/pkg/core"
	"github.com/casetutor/casetutor/pkg/errors"
	"github.com/casetutor/casetutor/pkg/utils"
)

// OpenRouterLLM implements core.LLM against OpenRouter's OpenAI-compatible
// chat completions API.
type OpenRouterLLM struct {
	*core.BaseLLM
	apiKey string
}

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// NewOpenRouterLLM creates a client for the given OpenRouter model, e.g.
// "anthropic/claude-3.5-sonnet".
func NewOpenRouterLLM(apiKey, modelName string) (*OpenRouterLLM, error) {
	if apiKey == "" {
		return nil, errors.New(errors.Config, "OpenRouter API key is required")
	}
	if modelName == "" {
		return nil, errors.New(errors.Config, "OpenRouter model name is required")
	}

	endpointCfg := &core.EndpointConfig{
		BaseURL: openRouterBaseURL,
		Path:    "/chat/completions",
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + strings.TrimSpace(apiKey),
		},
		TimeoutSec: 10 * 60,
	}
	return &OpenRouterLLM{
		apiKey:  apiKey,
		BaseLLM: core.NewBaseLLM("openrouter", modelName, endpointCfg),
	}, nil
}

type openRouterRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
	Functions   []map[string]any    `json:"functions,omitempty"`
}

type openRouterMessage struct {
	Role         string              `json:"role"`
	Content      string              `json:"content"`
	FunctionCall *openRouterFuncCall `json:"function_call,omitempty"`
}

type openRouterFuncCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openRouterChoice struct {
	Message      openRouterMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type openRouterError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type openRouterResponse struct {
	Choices []openRouterChoice `json:"choices"`
	Error   *openRouterError   `json:"error,omitempty"`
}

// Generate implements core.LLM.
func (o *OpenRouterLLM) Generate(ctx context.Context, prompt string, options ...core.GenerateOption) (*core.LLMResponse, error) {
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	resp, err := o.complete(ctx, openRouterRequest{
		Model:       o.ModelID(),
		Messages:    []openRouterMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stop:        opts.Stop,
	})
	if err != nil {
		return nil, err
	}
	return &core.LLMResponse{Content: resp.Choices[0].Message.Content}, nil
}

// GenerateWithFunctions implements core.LLM. Function-calling models answer
// with a function_call; others fall back to a JSON object in the content.
func (o *OpenRouterLLM) GenerateWithFunctions(ctx context.Context, prompt string, functions []map[string]any, options ...core.GenerateOption) (map[string]any, error) {
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	resp, err := o.complete(ctx, openRouterRequest{
		Model:       o.ModelID(),
		Messages:    []openRouterMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Functions:   functions,
	})
	if err != nil {
		return nil, err
	}

	message := resp.Choices[0].Message
	if fc := message.FunctionCall; fc != nil {
		var args map[string]any
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, errors.WithFields(
				errors.Wrap(err, errors.Provider, "failed to parse function call arguments"),
				errors.Fields{"function": fc.Name})
		}
		return map[string]any{
			core.FunctionKeyTool:      fc.Name,
			core.FunctionKeyArguments: args,
		}, nil
	}

	if parsed, err := utils.ExtractJSONObject(message.Content); err == nil {
		return parsed, nil
	}
	return map[string]any{core.FunctionKeyContent: message.Content}, nil
}

func (o *OpenRouterLLM) complete(ctx context.Context, reqBody openRouterRequest) (*openRouterResponse, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Validation, "failed to marshal request body"),
			errors.Fields{"model": o.ModelID()})
	}

	endpoint := o.GetEndpointConfig()
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint.BaseURL+endpoint.Path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Validation, "failed to create request"),
			errors.Fields{"model": o.ModelID()})
	}
	for key, value := range endpoint.Headers {
		req.Header.Set(key, value)
	}

	resp, err := o.GetHTTPClient().Do(req)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Provider, "failed to send request"),
			errors.Fields{"model": o.ModelID()})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Provider, "failed to read response body"),
			errors.Fields{"model": o.ModelID()})
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.WithFields(
			errors.New(errors.Provider, fmt.Sprintf("API request failed with status code %d", resp.StatusCode)),
			errors.Fields{
				"model":         o.ModelID(),
				"status_code":   resp.StatusCode,
				"response_body": string(body),
			})
	}

	var parsed openRouterResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Provider, "failed to unmarshal response"),
			errors.Fields{"model": o.ModelID()})
	}
	if parsed.Error != nil {
		return nil, errors.WithFields(
			errors.New(errors.Provider, parsed.Error.Message),
			errors.Fields{"model": o.ModelID(), "code": parsed.Error.Code})
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.WithFields(
			errors.New(errors.Provider, "response contained no choices"),
			errors.Fields{"model": o.ModelID()})
	}
	return &parsed, nil
}
