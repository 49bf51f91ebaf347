// Package openai provides a speech synthesizer on the OpenAI audio API.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/duolog/pkg/provider/speech"
)

// DefaultModel is the speech model used when none is configured.
const DefaultModel = "gpt-4o-mini-tts"

// availableVoices are the voices the OpenAI audio API offers. The API has no
// listing endpoint, so the set is maintained here, in rotation order.
var availableVoices = []string{
	"alloy", "echo", "fable", "onyx", "nova", "shimmer", "coral",
	"verse", "ballad", "ash", "sage", "marin", "cedar",
}

// Backend implements speech.Synthesizer using the OpenAI audio API.
type Backend struct {
	client oai.Client
	model  string
}

var _ speech.Synthesizer = (*Backend)(nil)

// config holds optional configuration for the backend.
type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option is a functional option for Backend.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel overrides the default speech model.
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI speech Backend.
func New(apiKey string, opts ...Option) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: DefaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Backend{client: client, model: cfg.model}, nil
}

// Synthesize implements speech.Synthesizer. The clip is returned as MP3.
func (b *Backend) Synthesize(ctx context.Context, req speech.Request) (*speech.Clip, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("openai: text must not be empty")
	}
	if req.Voice == "" {
		return nil, fmt.Errorf("openai: voice must not be empty")
	}

	resp, err := b.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(b.model),
		Input:          req.Text,
		Voice:          oai.AudioSpeechNewParamsVoice(req.Voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormat("mp3"),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read speech response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai: empty audio in response")
	}

	return &speech.Clip{Audio: audio, Format: "mp3"}, nil
}

// Voices implements speech.Synthesizer with the fixed OpenAI voice set.
func (b *Backend) Voices(_ context.Context) ([]string, error) {
	voices := make([]string, len(availableVoices))
	copy(voices, availableVoices)
	return voices, nil
}
