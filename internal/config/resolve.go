package config

// Built-in generation parameter defaults, applied when neither the file-level
// defaults block nor the participant sets a value.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500
)

// DefaultModels maps provider names to the model used when neither the
// provider entry nor the participant selects one. Providers without an entry
// here require an explicit model in the configuration.
var DefaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-sonnet-4-20250514",
	"ollama":    "llama2",
	"grok":      "grok-4",
}

// ResolvedParticipant is a participant with every layered setting flattened
// to a concrete value. Resolution happens exactly once, before the session is
// constructed; nothing re-reads the configuration mid-session.
type ResolvedParticipant struct {
	Name         string
	Glyph        string
	Provider     string
	Fallbacks    []string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// ResolveParticipant flattens the configuration layering for p.
//
// Generation parameters layer built-in default, then the file-level defaults
// block, then the participant's own setting; later layers win. The model
// layers the provider's built-in default (see [DefaultModels]), then the
// provider entry, then the participant.
func (c *Config) ResolveParticipant(p ParticipantConfig) ResolvedParticipant {
	r := ResolvedParticipant{
		Name:         p.Name,
		Glyph:        p.Glyph,
		Provider:     p.Provider,
		Fallbacks:    p.Fallbacks,
		Model:        resolveModel(c, p),
		SystemPrompt: p.SystemPrompt,
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
	}
	if c.Defaults.Temperature != nil {
		r.Temperature = *c.Defaults.Temperature
	}
	if p.Temperature != nil {
		r.Temperature = *p.Temperature
	}
	if c.Defaults.MaxTokens != nil {
		r.MaxTokens = *c.Defaults.MaxTokens
	}
	if p.MaxTokens != nil {
		r.MaxTokens = *p.MaxTokens
	}
	return r
}

// resolveModel applies the model layering for p: built-in per-provider
// default, then the provider entry's model, then the participant's.
// Returns "" when no layer supplies one.
func resolveModel(c *Config, p ParticipantConfig) string {
	model := DefaultModels[p.Provider]
	if entry, ok := c.Providers[p.Provider]; ok && entry.Model != "" {
		model = entry.Model
	}
	if p.Model != "" {
		model = p.Model
	}
	return model
}
