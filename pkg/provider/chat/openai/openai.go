// Package openai provides a chat backend on the OpenAI API.
//
// Because the official SDK only needs a base URL swap to talk to any endpoint
// speaking the chat-completions dialect, this package also serves
// OpenAI-compatible vendors; xAI Grok is wired this way ([NewGrok]).
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/duolog/pkg/provider/chat"
)

// GrokBaseURL is the xAI API endpoint, which speaks the OpenAI
// chat-completions dialect.
const GrokBaseURL = "https://api.x.ai/v1"

// Backend implements chat.Backend using the OpenAI API.
type Backend struct {
	client oai.Client
	model  string
}

var _ chat.Backend = (*Backend)(nil)

// config holds optional configuration for the backend.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
}

// Option is a functional option for Backend.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI chat Backend.
func New(apiKey string, model string, opts ...Option) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Backend{client: client, model: model}, nil
}

// NewGrok constructs a Backend for the xAI Grok API.
func NewGrok(apiKey string, model string, opts ...Option) (*Backend, error) {
	return New(apiKey, model, append([]Option{WithBaseURL(GrokBaseURL)}, opts...)...)
}

// Respond implements chat.Backend.
func (b *Backend) Respond(ctx context.Context, req chat.Request) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, b.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildParams converts a chat.Request into OpenAI SDK params. The responding
// participant's own turns become assistant messages, the peer's become user
// messages.
func (b *Backend) buildParams(req chat.Request) oai.ChatCompletionNewParams {
	var messages []oai.ChatCompletionMessageParamUnion

	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}

	for _, m := range req.Messages {
		if m.Role == chat.RoleSelf {
			asst := oai.ChatCompletionAssistantMessageParam{}
			asst.Content.OfString = oai.String(m.Text)
			messages = append(messages, oai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
			continue
		}
		messages = append(messages, oai.UserMessage(m.Text))
	}

	params := oai.ChatCompletionNewParams{
		Model:       shared.ChatModel(b.model),
		Messages:    messages,
		Temperature: param.NewOpt(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}

	return params
}
