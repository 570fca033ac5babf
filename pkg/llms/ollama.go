package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/casetutor/casetutor/pkg/core"
	"github.com/casetutor/casetutor/pkg/errors"
	"github.com/casetutor/casetutor/pkg/utils"
)

// OllamaLLM implements core.LLM and core.Embedder against an Ollama server.
type OllamaLLM struct {
	*core.BaseLLM
}

// NewOllamaLLM creates a client for the given Ollama host and model. An
// empty host falls back to the local default.
func NewOllamaLLM(host, model string) (*OllamaLLM, error) {
	if model == "" {
		return nil, errors.New(errors.Config, "ollama model name is required")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	host = strings.TrimSuffix(host, "/")

	endpointCfg := &core.EndpointConfig{
		BaseURL: host,
		Path:    "api/generate",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		TimeoutSec: 10 * 60,
	}
	return &OllamaLLM{
		BaseLLM: core.NewBaseLLM("ollama", model, endpointCfg),
	}, nil
}

// Generate implements core.LLM.
func (o *OllamaLLM) Generate(ctx context.Context, prompt string, options ...core.GenerateOption) (*core.LLMResponse, error) {
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	streamValue := false
	reqBody := api.GenerateRequest{
		Model:  o.ModelID(),
		Prompt: prompt,
		Stream: &streamValue,
		Options: map[string]any{
			"num_predict": opts.MaxTokens,
			"temperature": opts.Temperature,
			"stop":        opts.Stop,
		},
	}

	body, err := o.post(ctx, "/api/generate", reqBody)
	if err != nil {
		return nil, err
	}

	var ollamaResp api.GenerateResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Provider, "failed to unmarshal generate response"),
			errors.Fields{"model": o.ModelID()})
	}
	return &core.LLMResponse{Content: ollamaResp.Response}, nil
}

// GenerateWithFunctions implements core.LLM. Ollama has no native tool
// calling on the generate endpoint, so the function specs ride along in
// the prompt and the model answers with a single JSON object.
func (o *OllamaLLM) GenerateWithFunctions(ctx context.Context, prompt string, functions []map[string]any, options ...core.GenerateOption) (map[string]any, error) {
	specs, err := json.Marshal(functions)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to marshal function specs")
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nAvailable tools (JSON schemas):\n")
	b.Write(specs)
	fmt.Fprintf(&b, "\n\nRespond with exactly one JSON object and nothing else. "+
		"To call a tool: {%q: \"<name>\", %q: {...}}. "+
		"To answer directly: {%q: \"<text>\"}.",
		core.FunctionKeyTool, core.FunctionKeyArguments, core.FunctionKeyContent)

	resp, err := o.Generate(ctx, b.String(), options...)
	if err != nil {
		return nil, err
	}

	if parsed, err := utils.ParseJSONResponse(resp.Content); err == nil {
		return parsed, nil
	}
	// Smaller models wrap the object in prose; extract it. When no object
	// can be recovered the text stands as a direct answer.
	if parsed, err := utils.ExtractJSONObject(resp.Content); err == nil {
		return parsed, nil
	}
	return map[string]any{core.FunctionKeyContent: resp.Content}, nil
}

// Embed implements core.Embedder using Ollama's embeddings endpoint.
func (o *OllamaLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := api.EmbeddingRequest{
		Model:  o.ModelID(),
		Prompt: text,
	}

	body, err := o.post(ctx, "/api/embeddings", reqBody)
	if err != nil {
		return nil, err
	}

	var ollamaResp api.EmbeddingResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Provider, "failed to unmarshal embedding response"),
			errors.Fields{"model": o.ModelID()})
	}

	vector := make([]float32, len(ollamaResp.Embedding))
	for i, v := range ollamaResp.Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

func (o *OllamaLLM) post(ctx context.Context, path string, reqBody any) ([]byte, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Validation, "failed to marshal request body"),
			errors.Fields{"model": o.ModelID()})
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.GetEndpointConfig().BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Validation, "failed to create request"),
			errors.Fields{"model": o.ModelID()})
	}
	for key, value := range o.GetEndpointConfig().Headers {
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
	return body, nil
}
