// Package config provides the configuration schema, loader, layered parameter
// resolution, and provider registry for the duolog dialogue runner.
package config

import "time"

// LogLevel controls log verbosity for the duolog process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for duolog.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Empty defaults to "info".
	LogLevel LogLevel `yaml:"log_level"`

	// Defaults holds file-level generation parameter defaults applied to both
	// participants unless overridden per participant.
	Defaults DefaultsConfig `yaml:"defaults"`

	// Providers declares the AI vendors available to participants and to
	// playback, keyed by provider name (e.g., "openai", "anthropic", "grok").
	Providers map[string]ProviderEntry `yaml:"providers"`

	// Participants configures the two speakers. Exactly two entries are
	// required; the first is participant A (credited with the seed prompt),
	// the second is participant B (first to reply).
	Participants []ParticipantConfig `yaml:"participants"`

	// Conversation configures the session itself.
	Conversation ConversationConfig `yaml:"conversation"`

	// Playback configures optional text-to-speech performance of a finished
	// transcript.
	Playback PlaybackConfig `yaml:"playback"`
}

// DefaultsConfig holds file-level generation parameter defaults. Unset fields
// fall back to the built-in defaults (see [DefaultTemperature] and
// [DefaultMaxTokens]).
type DefaultsConfig struct {
	// Temperature is the sampling temperature in [0, 2] applied to both
	// participants unless overridden.
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens caps the completion length for both participants unless
	// overridden. Must be positive when set.
	MaxTokens *int `yaml:"max_tokens"`
}

// ProviderEntry is the configuration block for one AI vendor. The map key in
// [Config.Providers] selects the registered factory in the [Registry].
type ProviderEntry struct {
	// APIKey is the authentication key for the provider's API. When empty,
	// the provider's conventional environment variable is consulted at
	// construction time (see [EnvAPIKey]).
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects the default model for this provider (e.g., "gpt-4o-mini").
	// A participant's model setting takes precedence.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or
	// nested maps.
	Options map[string]any `yaml:"options"`
}

// ParticipantConfig describes one side of the dialogue.
type ParticipantConfig struct {
	// Name is the participant's display name (e.g., "Policy Expert").
	// Required and must differ from the other participant's name.
	Name string `yaml:"name"`

	// Glyph is an optional decorative prefix shown before Name in transcripts
	// and console output (conventionally an emoji).
	Glyph string `yaml:"glyph"`

	// Provider references a key of [Config.Providers]. Required.
	Provider string `yaml:"provider"`

	// Fallbacks lists additional provider references tried in order when the
	// primary provider keeps failing. Optional.
	Fallbacks []string `yaml:"fallbacks"`

	// Model overrides the provider entry's model for this participant.
	Model string `yaml:"model"`

	// SystemPrompt is the persona instruction sent with every backend call.
	SystemPrompt string `yaml:"system_prompt"`

	// Temperature overrides the file-level default for this participant.
	// Must be in [0, 2] when set.
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens overrides the file-level default for this participant.
	// Must be positive when set.
	MaxTokens *int `yaml:"max_tokens"`
}

// ConversationConfig holds the session-level settings.
type ConversationConfig struct {
	// SeedPrompt opens the conversation, recorded as participant A's first
	// utterance. Required.
	SeedPrompt string `yaml:"seed_prompt"`

	// Turns is the number of reply pairs to run. Zero yields a transcript
	// holding only the seed.
	Turns int `yaml:"turns"`

	// DelaySeconds throttles the call rate: a synchronous pause after each
	// backend reply. Fractional values are allowed.
	DelaySeconds float64 `yaml:"delay_seconds"`

	// SavePath, when set, is the file the finished transcript is written to.
	// Missing parent directories are created.
	SavePath string `yaml:"save_path"`

	// Display enables the rich per-reply console output while the session
	// runs.
	Display bool `yaml:"display"`
}

// Delay returns DelaySeconds as a [time.Duration].
func (c ConversationConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

// PlaybackConfig configures text-to-speech performance of a saved transcript.
type PlaybackConfig struct {
	// Provider references a key of [Config.Providers] used for speech
	// synthesis. Required for playback mode.
	Provider string `yaml:"provider"`

	// OutputDir is the directory clip files are written to. Created when
	// missing. Empty defaults to "clips".
	OutputDir string `yaml:"output_dir"`

	// Player is an optional external command (e.g., "afplay", "mpv") run for
	// each clip file. When empty, clips are only written to disk.
	Player string `yaml:"player"`

	// Voices maps speaker names to provider voice identifiers. The special
	// key "_default" sets the voice for every speaker not listed explicitly;
	// without it, unmapped speakers are assigned voices round-robin from the
	// provider's voice list.
	Voices map[string]string `yaml:"voices"`
}
