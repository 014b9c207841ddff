// Package generator wraps the external text-generation service used to
// draft, refine and implement specification documents.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"blueprint-api/internal/model"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 4000
	DefaultTimeout     = 60 * time.Second
)

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

type Gateway struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

// New builds a gateway. Without an API key the gateway is still usable but
// every call fails with ErrNotConfigured.
func New(opts Options) *Gateway {
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	g := &Gateway{
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     opts.Timeout,
	}

	if key := strings.TrimSpace(opts.APIKey); key != "" {
		cfg := openai.DefaultConfig(key)
		if opts.BaseURL != "" {
			cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
		}
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
		g.client = openai.NewClientWithConfig(cfg)
	}

	return g
}

func (g *Gateway) Configured() bool {
	return g != nil && g.client != nil
}

func (g *Gateway) GenerateSpec(ctx context.Context, idea string) (model.Document, error) {
	content, err := g.complete(ctx, specSystemPrompt, specPrompt(idea))
	if err != nil {
		return model.Document{}, err
	}
	return decodeDocument(content)
}

func (g *Gateway) RefineSpec(ctx context.Context, current model.Document, instruction string) (model.Document, error) {
	prompt, err := refinePrompt(current, instruction)
	if err != nil {
		return model.Document{}, err
	}

	content, err := g.complete(ctx, specSystemPrompt, prompt)
	if err != nil {
		return model.Document{}, err
	}
	return decodeDocument(content)
}

func (g *Gateway) GenerateImplementation(ctx context.Context, doc model.Document, moduleName string) (model.Implementation, error) {
	prompt, err := implementationPrompt(doc, moduleName)
	if err != nil {
		return model.Implementation{}, err
	}

	content, err := g.complete(ctx, codeSystemPrompt, prompt)
	if err != nil {
		return model.Implementation{}, err
	}
	return decodeImplementation(content)
}

func (g *Gateway) complete(ctx context.Context, system string, user string) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		slog.Warn("generation request failed",
			"model", g.model,
			"duration_ms", time.Since(started).Milliseconds(),
			"error", err.Error(),
		)
		return "", &ServiceError{Err: describeFailure(err)}
	}

	slog.Info("generation request completed",
		"model", g.model,
		"duration_ms", time.Since(started).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	if len(resp.Choices) == 0 {
		return "", &ServiceError{Err: errors.New("response contained no choices")}
	}

	return resp.Choices[0].Message.Content, nil
}

func describeFailure(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.New("request timed out")
	}
	return err
}

func decodeDocument(content string) (model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal(trimFences(content), &doc); err != nil {
		return model.Document{}, &ParseError{Reason: "invalid JSON", Err: err}
	}
	if err := doc.Validate(); err != nil {
		return model.Document{}, &ParseError{Reason: "response does not match the specification schema", Err: err}
	}
	return doc, nil
}

func decodeImplementation(content string) (model.Implementation, error) {
	var raw struct {
		ModelsPy      *string `json:"models_py"`
		SerializersPy *string `json:"serializers_py"`
		ViewsPy       *string `json:"views_py"`
		URLsPy        *string `json:"urls_py"`
	}
	if err := json.Unmarshal(trimFences(content), &raw); err != nil {
		return model.Implementation{}, &ParseError{Reason: "invalid JSON", Err: err}
	}

	fields := []struct {
		key   string
		value *string
	}{
		{"models_py", raw.ModelsPy},
		{"serializers_py", raw.SerializersPy},
		{"views_py", raw.ViewsPy},
		{"urls_py", raw.URLsPy},
	}

	var missing []string
	for _, f := range fields {
		if f.value == nil {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return model.Implementation{}, &ParseError{
			Reason: "response is missing implementation keys",
			Err:    errors.New(strings.Join(missing, ", ")),
		}
	}

	return model.Implementation{
		ModelsPy:      *raw.ModelsPy,
		SerializersPy: *raw.SerializersPy,
		ViewsPy:       *raw.ViewsPy,
		URLsPy:        *raw.URLsPy,
	}, nil
}

// trimFences drops a surrounding markdown code fence, which some
// OpenAI-compatible backends add despite the JSON response format.
func trimFences(content string) []byte {
	trimmed := bytes.TrimSpace([]byte(content))
	if !bytes.HasPrefix(trimmed, []byte("```")) {
		return trimmed
	}

	if idx := bytes.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = bytes.TrimSuffix(bytes.TrimSpace(trimmed), []byte("```"))
	return bytes.TrimSpace(trimmed)
}
