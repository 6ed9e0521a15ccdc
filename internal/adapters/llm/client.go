// Package llm implements the extractor and auditor stages on top of an
// OpenAI-compatible chat completion API (OpenAI, Groq, Gemini, Ollama).
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/pipeline"
)

// ChatCompleter is the subset of *openai.Client used here.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient builds a go-openai client for one configured endpoint.
func NewClient(cfg config.LLMConfig) (*openai.Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm provider %q has no base url", cfg.Provider)
	}
	c := openai.DefaultConfig(cfg.APIKey)
	c.BaseURL = cfg.BaseURL
	return openai.NewClientWithConfig(c), nil
}

// endpoint binds a client to the request settings shared by both stages.
type endpoint struct {
	client      ChatCompleter
	model       string
	label       string
	maxTokens   int
	temperature float32
}

func newEndpoint(client ChatCompleter, cfg config.LLMConfig) (endpoint, error) {
	if client == nil {
		return endpoint{}, errors.New("chat client is required")
	}
	if cfg.Model == "" {
		return endpoint{}, errors.New("llm model is required")
	}
	return endpoint{
		client:      client,
		model:       cfg.Model,
		label:       cfg.Label(),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// completeJSON sends one system+user exchange in JSON mode and returns the raw content.
func (e endpoint) completeJSON(ctx context.Context, system, user string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("completion returned empty content")
	}
	return content, nil
}

// classifyCallError decides whether a failed completion is worth retrying as transient.
// Everything else keeps the stage's own kind.
func classifyCallError(stage pipeline.Stage, kind pipeline.Kind, err error) error {
	if isTransient(err) {
		return pipeline.NewStageError(stage, pipeline.KindTransient, err)
	}
	return pipeline.NewStageError(stage, kind, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}
