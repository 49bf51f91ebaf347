// Package app wires the duolog subsystems into a running application.
//
// The App struct owns the full lifecycle: New resolves the configuration,
// builds both participants' chat backends through the provider registry, and
// constructs the dialogue session. Run executes the session and persists the
// transcript, Perform voices a saved transcript, and Shutdown flushes the
// observability exporters.
//
// For testing, register mock factories on the registry and inject metrics or
// observers via functional options. When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/MrWong99/duolog/internal/config"
	"github.com/MrWong99/duolog/internal/console"
	"github.com/MrWong99/duolog/internal/dialogue"
	"github.com/MrWong99/duolog/internal/observe"
	"github.com/MrWong99/duolog/internal/playback"
	"github.com/MrWong99/duolog/internal/resilience"
	"github.com/MrWong99/duolog/internal/transcript"
	"github.com/MrWong99/duolog/pkg/provider/chat"
	"github.com/MrWong99/duolog/pkg/provider/speech"
)

// App owns the session lifecycle and the resources behind it.
type App struct {
	cfg      *config.Config
	registry *config.Registry

	// Subsystems — initialised in New, torn down in Shutdown.
	metrics  *observe.Metrics
	printer  *console.Printer
	observer dialogue.Observer
	a, b     dialogue.Participant
	session  *dialogue.Session
	synth    speech.Synthesizer

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once

	// performOnly skips chat backend construction; see [PerformOnly].
	performOnly bool
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects a metrics instance instead of initialising the global
// OpenTelemetry providers.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithObserver injects a session observer instead of the console printer.
func WithObserver(o dialogue.Observer) Option {
	return func(a *App) { a.observer = o }
}

// WithSynthesizer injects a speech synthesizer instead of creating one from
// the playback provider entry.
func WithSynthesizer(s speech.Synthesizer) Option {
	return func(a *App) { a.synth = s }
}

// PerformOnly skips participant and session construction. A performance
// consumes nothing but the transcript file and the playback settings, so it
// must not require the chat vendors' credentials. Run is unavailable on an
// App built this way.
func PerformOnly() Option {
	return func(a *App) { a.performOnly = true }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from a validated config. The registry supplies the
// backend factories (populated by main.go). Use Option functions to inject
// test doubles.
//
// Construction is fail-fast: unknown provider references, missing API keys,
// and invalid session settings all surface here, before the first backend
// call is made.
func New(ctx context.Context, cfg *config.Config, registry *config.Registry, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		registry: registry,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Observability ─────────────────────────────────────────────────
	if err := a.initObservability(ctx); err != nil {
		return nil, fmt.Errorf("app: init observability: %w", err)
	}

	// ── 2. Console output ────────────────────────────────────────────────
	if a.observer == nil && cfg.Conversation.Display {
		a.printer = console.New(os.Stdout)
		a.observer = a.printer
	}

	// ── 3. Participants + session ────────────────────────────────────────
	if !a.performOnly {
		if err := a.initSession(); err != nil {
			return nil, fmt.Errorf("app: init session: %w", err)
		}
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initObservability sets up the global OTel providers, unless a metrics
// instance was injected.
func (a *App) initObservability(ctx context.Context) error {
	if a.metrics != nil {
		return nil // injected
	}

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "duolog",
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, shutdown)
	a.metrics = observe.DefaultMetrics()
	return nil
}

// initSession builds both participants' backends and constructs the session.
func (a *App) initSession() error {
	if n := len(a.cfg.Participants); n != 2 {
		return fmt.Errorf("config declares %d participants, need exactly 2", n)
	}

	var err error
	if a.a, err = a.buildParticipant(a.cfg.Participants[0]); err != nil {
		return err
	}
	if a.b, err = a.buildParticipant(a.cfg.Participants[1]); err != nil {
		return err
	}

	opts := []dialogue.Option{dialogue.WithMetrics(a.metrics)}
	if a.observer != nil {
		opts = append(opts, dialogue.WithObserver(a.observer))
	}
	sess, err := dialogue.New(a.a, a.b, dialogue.Config{
		SeedPrompt: a.cfg.Conversation.SeedPrompt,
		Turns:      a.cfg.Conversation.Turns,
		Delay:      a.cfg.Conversation.Delay(),
	}, opts...)
	if err != nil {
		return err
	}
	a.session = sess
	return nil
}

// buildParticipant flattens the configuration layering for p and builds its
// chat backend, including the failover chain when fallbacks are configured.
func (a *App) buildParticipant(p config.ParticipantConfig) (dialogue.Participant, error) {
	rp := a.cfg.ResolveParticipant(p)

	backend, backendName, err := a.buildBackend(rp)
	if err != nil {
		return dialogue.Participant{}, fmt.Errorf("participant %q: %w", rp.Name, err)
	}

	return dialogue.Participant{
		Name:         rp.Name,
		Glyph:        rp.Glyph,
		SystemPrompt: rp.SystemPrompt,
		Temperature:  rp.Temperature,
		MaxTokens:    rp.MaxTokens,
		Backend:      backend,
		BackendName:  backendName,
	}, nil
}

// buildBackend creates the chat backend for rp. With fallbacks configured,
// the primary and each fallback get their own circuit breaker inside a
// failover chain. The returned name always identifies the primary
// (e.g., "openai/gpt-4o-mini"), which is what logs and metrics report.
func (a *App) buildBackend(rp config.ResolvedParticipant) (chat.Backend, string, error) {
	entry := a.cfg.Providers[rp.Provider]
	entry.Model = rp.Model
	primary, err := a.registry.CreateChat(rp.Provider, entry)
	if err != nil {
		return nil, "", err
	}
	primaryName := rp.Provider + "/" + rp.Model

	if len(rp.Fallbacks) == 0 {
		return primary, primaryName, nil
	}

	entries := []resilience.ChainEntry{{Name: primaryName, Backend: primary}}
	for _, name := range rp.Fallbacks {
		fbEntry := a.cfg.Providers[name]
		if fbEntry.Model == "" {
			fbEntry.Model = config.DefaultModels[name]
		}
		if fbEntry.Model == "" {
			return nil, "", fmt.Errorf("fallback %q: no model configured and no built-in default", name)
		}
		backend, err := a.registry.CreateChat(name, fbEntry)
		if err != nil {
			return nil, "", fmt.Errorf("fallback %q: %w", name, err)
		}
		entries = append(entries, resilience.ChainEntry{
			Name:    name + "/" + fbEntry.Model,
			Backend: backend,
		})
	}

	chain, err := resilience.NewChain(resilience.BreakerConfig{}, entries...)
	if err != nil {
		return nil, "", err
	}
	return chain, primaryName, nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run executes the session to completion and persists the transcript when a
// save path is configured. Backend failures are absorbed into the transcript
// entries; the returned error reflects interruption or persistence problems
// only.
//
// The transcript built so far is saved even when the session is interrupted,
// so a cancelled run still leaves a readable file behind.
func (a *App) Run(ctx context.Context) (dialogue.Transcript, error) {
	if a.session == nil {
		return nil, errors.New("app: no session; App was built with PerformOnly")
	}
	t, runErr := a.session.Run(ctx)

	if path := a.cfg.Conversation.SavePath; path != "" && len(t) > 0 {
		records := transcript.FromTranscript(t, a.a, a.b)
		if err := transcript.Save(path, records); err != nil {
			return t, errors.Join(runErr, err)
		}
		slog.Info("transcript saved", "path", path, "entries", len(records))
		if a.printer != nil {
			a.printer.SessionSaved(path)
		}
	}

	return t, runErr
}

// ─── Perform ─────────────────────────────────────────────────────────────────

// Perform voices the saved transcript at path using the configured playback
// provider. Clips are written to the playback output directory and optionally
// piped through an external player command.
func (a *App) Perform(ctx context.Context, path string) error {
	synth := a.synth
	if synth == nil {
		name := a.cfg.Playback.Provider
		if name == "" {
			return errors.New("app: playback.provider is required for a performance")
		}
		s, err := a.registry.CreateSpeech(name, a.cfg.Providers[name])
		if err != nil {
			return fmt.Errorf("app: create speech backend %q: %w", name, err)
		}
		synth = s
	}

	records, err := transcript.Load(path)
	if err != nil {
		return err
	}

	cfg := playback.Config{
		OutputDir: a.cfg.Playback.OutputDir,
		Player:    a.cfg.Playback.Player,
		Voices:    a.cfg.Playback.Voices,
	}
	if a.printer != nil {
		cfg.OnUtterance = a.printer.UtterancePlayed
	}

	runner, err := playback.NewRunner(&meteredSynthesizer{next: synth, metrics: a.metrics}, cfg)
	if err != nil {
		return err
	}
	return runner.Run(ctx, records)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown flushes and closes the observability exporters. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(ctx); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
