// Package elevenlabs provides an ElevenLabs-backed speech synthesizer using
// the ElevenLabs streaming WebSocket API. It implements speech.Synthesizer.
//
// Each Synthesize call opens one stream-input connection, sends the whole
// utterance, flushes, and collects the audio chunks into a single clip.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/duolog/pkg/provider/speech"
)

const (
	wsEndpointFmt    = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s"
	voicesEndpoint   = "https://api.elevenlabs.io/v1/voices"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "mp3_44100_128"
)

// Option is a functional option for configuring the ElevenLabs Backend.
type Option func(*Backend)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(b *Backend) {
		b.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "mp3_44100_128",
// "pcm_16000"). The clip format is derived from its prefix.
func WithOutputFormat(format string) Option {
	return func(b *Backend) {
		b.outputFormat = format
	}
}

// Backend implements speech.Synthesizer backed by the ElevenLabs API.
type Backend struct {
	apiKey       string
	model        string
	outputFormat string
	httpClient   *http.Client
}

var _ speech.Synthesizer = (*Backend)(nil)

// New creates a new ElevenLabs Backend. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Backend, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	b := &Backend{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// ---- WebSocket message types ----

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded audio chunk
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"` // error or info
}

// boiMessage is used for the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	OutputFormat  string         `json:"output_format,omitempty"`
}

// Synthesize opens a WebSocket to ElevenLabs, sends the utterance and a flush
// command, and collects the returned audio chunks into one clip. req.Voice is
// the ElevenLabs voice ID.
func (b *Backend) Synthesize(ctx context.Context, req speech.Request) (*speech.Clip, error) {
	if req.Text == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}
	if req.Voice == "" {
		return nil, errors.New("elevenlabs: voice must not be empty")
	}

	wsURL := buildURLForVoice(req.Voice, b.model)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Send the initial BOI message to authenticate and configure the stream.
	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	boi := boiMessage{
		Text:          " ", // ElevenLabs requires a non-empty first text value
		VoiceSettings: vs,
		XiAPIKey:      b.apiKey,
		OutputFormat:  b.outputFormat,
	}
	boiBytes, _ := json.Marshal(boi)
	if err := conn.Write(ctx, websocket.MessageText, boiBytes); err != nil {
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	// The whole utterance goes out as one fragment, followed by the flush
	// command that makes ElevenLabs render and close out the stream.
	msgBytes, err := buildWSMessage(req.Text, vs)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode text: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, msgBytes); err != nil {
		return nil, fmt.Errorf("elevenlabs: send text: %w", err)
	}
	flushBytes, _ := buildWSMessage("", nil)
	if err := conn.Write(ctx, websocket.MessageText, flushBytes); err != nil {
		return nil, fmt.Errorf("elevenlabs: send flush: %w", err)
	}

	// Drain audio chunks until the server marks the stream final or closes it.
	var audio bytes.Buffer
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			return nil, fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			audio.Write(chunk)
		}
		if resp.IsFinal {
			break
		}
	}
	if audio.Len() == 0 {
		return nil, errors.New("elevenlabs: no audio in response")
	}

	return &speech.Clip{Audio: audio.Bytes(), Format: formatExt(b.outputFormat)}, nil
}

// ---- Voices ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
}

// Voices returns the voice IDs available for the configured API key, in the
// order the API lists them. The IDs are what Synthesize expects in req.Voice.
func (b *Backend) Voices(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", b.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}

	ids := make([]string, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		ids = append(ids, v.VoiceID)
	}
	return ids, nil
}

// ---- helpers ----

// buildWSMessage constructs the JSON text payload for a single text fragment.
// Used by tests to verify the payload shape without opening a real connection.
func buildWSMessage(text string, vs *voiceSettings) ([]byte, error) {
	return json.Marshal(textMessage{Text: text, VoiceSettings: vs})
}

// buildURLForVoice constructs the WebSocket URL for a given voice and model.
func buildURLForVoice(voiceID, model string) string {
	return fmt.Sprintf(wsEndpointFmt, voiceID, model)
}

// formatExt derives the clip file extension from an ElevenLabs output format
// name: "mp3_44100_128" yields "mp3", "pcm_16000" yields "pcm".
func formatExt(outputFormat string) string {
	if i := strings.IndexByte(outputFormat, '_'); i > 0 {
		return outputFormat[:i]
	}
	return outputFormat
}

// parseVoices parses a raw JSON byte slice (matching the ElevenLabs
// /v1/voices response) into the list of voice IDs.
func parseVoices(data []byte) ([]string, error) {
	var vr voicesResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		ids = append(ids, v.VoiceID)
	}
	return ids, nil
}
