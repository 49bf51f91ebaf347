// Command duolog runs a turn-based conversation between two AI personas and
// can voice a saved transcript aloud.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/duolog/internal/app"
	"github.com/MrWong99/duolog/internal/config"
	"github.com/MrWong99/duolog/pkg/provider/chat"
	"github.com/MrWong99/duolog/pkg/provider/chat/anyllm"
	oaichat "github.com/MrWong99/duolog/pkg/provider/chat/openai"
	"github.com/MrWong99/duolog/pkg/provider/speech"
	"github.com/MrWong99/duolog/pkg/provider/speech/elevenlabs"
	oaispeech "github.com/MrWong99/duolog/pkg/provider/speech/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	turns := flag.Int("turns", -1, "override the configured number of turn pairs")
	savePath := flag.String("save", "", "override the configured transcript save path")
	performPath := flag.String("perform", "", "voice the saved transcript at this path instead of running a session")
	quiet := flag.Bool("quiet", false, "suppress the rich console display")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "duolog: config file %q not found; copy configs/debate.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "duolog: %v\n", err)
		}
		return 1
	}

	if *turns >= 0 {
		cfg.Conversation.Turns = *turns
	}
	if *savePath != "" {
		cfg.Conversation.SavePath = *savePath
	}
	if *quiet {
		cfg.Conversation.Display = false
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("duolog starting",
		"config", *configPath,
		"turns", cfg.Conversation.Turns,
		"log_level", cfg.LogLevel,
	)

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Startup summary ───────────────────────────────────────────────────────
	if cfg.Conversation.Display {
		printStartupSummary(cfg)
	}

	// A performance needs no chat backends, so their credentials are not
	// required to voice an existing transcript.
	var appOpts []app.Option
	if *performPath != "" {
		appOpts = append(appOpts, app.PerformOnly())
	}

	application, err := app.New(ctx, cfg, reg, appOpts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Session or performance ────────────────────────────────────────────────
	var runErr error
	if *performPath != "" {
		runErr = application.Perform(ctx, *performPath)
	} else {
		_, runErr = application.Run(ctx)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinChatProviders lists the chat vendors that ship with duolog. Used for
// startup logging.
var builtinChatProviders = []string{
	"openai", "grok", "anthropic", "gemini", "ollama",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the backend
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Chat ──────────────────────────────────────────────────────────────────
	// anthropic, gemini, deepseek, mistral, groq, llamacpp and llamafile all
	// share the any-llm adapter: optional APIKey + optional BaseURL.
	for _, name := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterChat(name, func(entry config.ProviderEntry) (chat.Backend, error) {
			var opts []anyllmlib.Option
			if key := config.ResolveAPIKey(name, entry); key != "" {
				opts = append(opts, anyllmlib.WithAPIKey(key))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterChat("ollama", func(entry config.ProviderEntry) (chat.Backend, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// openai talks to the chat-completions endpoint directly.
	reg.RegisterChat("openai", func(entry config.ProviderEntry) (chat.Backend, error) {
		var opts []oaichat.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaichat.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaichat.WithOrganization(org))
		}
		return oaichat.New(config.ResolveAPIKey("openai", entry), entry.Model, opts...)
	})

	// grok speaks the OpenAI dialect against the xAI endpoint.
	reg.RegisterChat("grok", func(entry config.ProviderEntry) (chat.Backend, error) {
		var opts []oaichat.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaichat.WithBaseURL(entry.BaseURL))
		}
		return oaichat.NewGrok(config.ResolveAPIKey("grok", entry), entry.Model, opts...)
	})

	// ── Speech ────────────────────────────────────────────────────────────────

	reg.RegisterSpeech("openai", func(entry config.ProviderEntry) (speech.Synthesizer, error) {
		var opts []oaispeech.Option
		if entry.Model != "" {
			opts = append(opts, oaispeech.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oaispeech.WithBaseURL(entry.BaseURL))
		}
		return oaispeech.New(config.ResolveAPIKey("openai", entry), opts...)
	})

	reg.RegisterSpeech("elevenlabs", func(entry config.ProviderEntry) (speech.Synthesizer, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if f := optString(entry.Options, "output_format"); f != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(f))
		}
		return elevenlabs.New(config.ResolveAPIKey("elevenlabs", entry), opts...)
	})

	// Debug log of all registered providers.
	for _, name := range builtinChatProviders {
		slog.Debug("registered provider", "kind", "chat", "name", name)
	}
	for _, name := range []string{"openai", "elevenlabs"} {
		slog.Debug("registered provider", "kind", "speech", "name", name)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═════════════════════════════════════════╗")
	fmt.Println("║         duolog startup summary          ║")
	fmt.Println("╠═════════════════════════════════════════╣")
	for i, p := range cfg.Participants {
		rp := cfg.ResolveParticipant(p)
		printRow(fmt.Sprintf("Speaker %c", 'A'+i), rp.Name)
		printRow(fmt.Sprintf("Backend %c", 'A'+i), rp.Provider+" / "+rp.Model)
	}
	printRow("Turns", strconv.Itoa(cfg.Conversation.Turns))
	if cfg.Conversation.DelaySeconds > 0 {
		printRow("Delay", cfg.Conversation.Delay().String())
	}
	if cfg.Conversation.SavePath != "" {
		printRow("Save to", cfg.Conversation.SavePath)
	}
	if cfg.Playback.Provider != "" {
		printRow("Playback", cfg.Playback.Provider)
	}
	fmt.Println("╚═════════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 25 {
		value = value[:22] + "…"
	}
	fmt.Printf("║  %-10s : %-25s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
