// Package oracle abstracts the LLM service that turns document text into
// structured suggestions. The pipeline only ever sees the Client
// interface, so tests run against deterministic fakes instead of a model.
package oracle

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Response is a raw oracle answer: the model output (expected to be JSON
// matching the prompt's schema) plus the token cost of the call.
type Response struct {
	Raw        string
	TokensUsed int
}

// Client is the suggestion capability injected into the pipeline.
type Client interface {
	Suggest(ctx context.Context, prompt string) (Response, error)
}

const systemPrompt = "You are a content enhancement assistant for blog posts. " +
	"Always respond with only the JSON requested by the user, no commentary and no code fences."

// Config for the OpenAI-backed client.
type Config struct {
	APIKey  string
	BaseURL string // optional override for compatible gateways
	Model   string
	Timeout time.Duration
}

// OpenAI implements Client with chat completions. Outbound requests carry
// an otelhttp transport so traces propagate into the model gateway.
type OpenAI struct {
	model string
	opts  []option.RequestOption
}

// NewOpenAI builds an OpenAI-backed oracle client.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("oracle: api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("oracle: model is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{model: cfg.Model, opts: opts}, nil
}

// Suggest sends one prompt and returns the raw completion.
func (o *OpenAI) Suggest(ctx context.Context, prompt string) (Response, error) {
	client := openai.NewClient(o.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("oracle: empty choices")
	}
	return Response{
		Raw:        strings.TrimSpace(resp.Choices[0].Message.Content),
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}

// Func adapts a plain function to Client; handy for tests and fixed fakes.
type Func func(ctx context.Context, prompt string) (Response, error)

func (f Func) Suggest(ctx context.Context, prompt string) (Response, error) {
	return f(ctx, prompt)
}

// Static is a Client that always returns the same canned answer.
type Static struct {
	Raw        string
	TokensUsed int
	Err        error
}

func (s Static) Suggest(context.Context, string) (Response, error) {
	if s.Err != nil {
		return Response{}, s.Err
	}
	return Response{Raw: s.Raw, TokensUsed: s.TokensUsed}, nil
}
