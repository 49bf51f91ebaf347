package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"chat":   {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "grok", "llamacpp", "llamafile"},
	"speech": {"openai", "elevenlabs"},
}

// EnvAPIKey maps provider names to the environment variable consulted when a
// provider entry has no api_key. Providers without an entry (local runtimes
// like ollama) need no key.
var EnvAPIKey = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"deepseek":   "DEEPSEEK_API_KEY",
	"mistral":    "MISTRAL_API_KEY",
	"groq":       "GROQ_API_KEY",
	"grok":       "XAI_API_KEY",
	"elevenlabs": "ELEVENLABS_API_KEY",
}

// ResolveAPIKey returns the API key for the provider entry registered under
// name: the entry's api_key when set, otherwise the provider's conventional
// environment variable per [EnvAPIKey].
func ResolveAPIKey(name string, entry ProviderEntry) string {
	if entry.APIKey != "" {
		return entry.APIKey
	}
	if env, ok := EnvAPIKey[name]; ok {
		return os.Getenv(env)
	}
	return ""
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
//
// Everything a session cannot start with is an error here: the process must
// reject a bad configuration before the first backend call, never absorb it
// into the transcript. Legal-but-suspicious values only log a warning.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	errs = append(errs, validateGeneration("defaults", cfg.Defaults.Temperature, cfg.Defaults.MaxTokens)...)

	for name := range cfg.Providers {
		validateProviderName(name)
	}

	if len(cfg.Participants) != 2 {
		errs = append(errs, fmt.Errorf("participants must list exactly two speakers, got %d", len(cfg.Participants)))
	}

	namesSeen := make(map[string]int, len(cfg.Participants))
	for i, p := range cfg.Participants {
		prefix := fmt.Sprintf("participants[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := namesSeen[p.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of participants[%d]", prefix, p.Name, prev))
			}
			namesSeen[p.Name] = i
		}

		if p.Provider == "" {
			errs = append(errs, fmt.Errorf("%s.provider is required", prefix))
		} else if err := providerRef(cfg, p.Provider); err != nil {
			errs = append(errs, fmt.Errorf("%s.provider: %w", prefix, err))
		} else if resolveModel(cfg, p) == "" {
			errs = append(errs, fmt.Errorf("%s: no model configured and provider %q has no built-in default", prefix, p.Provider))
		}

		for j, fb := range p.Fallbacks {
			if err := providerRef(cfg, fb); err != nil {
				errs = append(errs, fmt.Errorf("%s.fallbacks[%d]: %w", prefix, j, err))
			}
		}

		errs = append(errs, validateGeneration(prefix, p.Temperature, p.MaxTokens)...)

		if p.SystemPrompt == "" {
			slog.Warn("participant has no system prompt; the backend will answer without a persona",
				"participant", p.Name,
			)
		}
	}

	if strings.TrimSpace(cfg.Conversation.SeedPrompt) == "" {
		errs = append(errs, errors.New("conversation.seed_prompt is required"))
	}
	if cfg.Conversation.Turns < 0 {
		errs = append(errs, fmt.Errorf("conversation.turns %d must not be negative", cfg.Conversation.Turns))
	}
	if cfg.Conversation.DelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("conversation.delay_seconds %.2f must not be negative", cfg.Conversation.DelaySeconds))
	}

	if cfg.Playback.Provider != "" {
		if err := providerRef(cfg, cfg.Playback.Provider); err != nil {
			errs = append(errs, fmt.Errorf("playback.provider: %w", err))
		}
	}

	for name, entry := range cfg.Providers {
		env, needsKey := EnvAPIKey[name]
		if needsKey && entry.APIKey == "" && os.Getenv(env) == "" {
			slog.Warn("provider has no API key configured; construction will fail unless the environment supplies one",
				"provider", name,
				"env", env,
			)
		}
	}

	return errors.Join(errs...)
}

// validateGeneration range-checks an optional temperature/max_tokens pair.
// prefix names the config section in error messages.
func validateGeneration(prefix string, temperature *float64, maxTokens *int) []error {
	var errs []error
	if temperature != nil && (*temperature < 0 || *temperature > 2) {
		errs = append(errs, fmt.Errorf("%s.temperature %.2f is out of range [0, 2]", prefix, *temperature))
	}
	if maxTokens != nil && *maxTokens <= 0 {
		errs = append(errs, fmt.Errorf("%s.max_tokens %d must be positive", prefix, *maxTokens))
	}
	return errs
}

// providerRef checks that name is a key of cfg.Providers.
func providerRef(cfg *Config, name string) error {
	if _, ok := cfg.Providers[name]; ok {
		return nil
	}
	declared := make([]string, 0, len(cfg.Providers))
	for k := range cfg.Providers {
		declared = append(declared, k)
	}
	slices.Sort(declared)
	return fmt.Errorf("references undeclared provider %q; declared: %v", name, declared)
}

// validateProviderName logs a warning if name is not found in any
// [ValidProviderNames] list.
func validateProviderName(name string) {
	for _, known := range ValidProviderNames {
		if slices.Contains(known, name) {
			return
		}
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"name", name,
		"known_chat", ValidProviderNames["chat"],
		"known_speech", ValidProviderNames["speech"],
	)
}
