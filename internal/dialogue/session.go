package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/duolog/internal/observe"
	"github.com/MrWong99/duolog/pkg/provider/chat"
)

// Participant is one side of a session, fully resolved before construction.
// Layered configuration defaults are flattened into these fields up front;
// the turn loop never consults configuration mid-session.
type Participant struct {
	// Name is the display name (e.g., "Policy Expert"). Also used verbatim
	// in the recorded text of an absorbed backend failure.
	Name string

	// Glyph is an optional decorative prefix shown before Name in transcripts
	// and console output (conventionally an emoji).
	Glyph string

	// SystemPrompt is the persona instruction sent with every backend call.
	SystemPrompt string

	// Temperature is the resolved sampling temperature in [0, 2].
	Temperature float64

	// MaxTokens is the resolved completion token cap. Zero leaves the cap to
	// the backend.
	MaxTokens int

	// Backend produces this participant's replies.
	Backend chat.Backend

	// BackendName identifies the backend in logs and metrics
	// (e.g., "openai/gpt-4o-mini").
	BackendName string
}

// Label returns the participant's transcript label: the glyph and name
// separated by a space, or the bare name when no glyph is set.
func (p Participant) Label() string {
	if p.Glyph != "" {
		return p.Glyph + " " + p.Name
	}
	return p.Name
}

// Observer receives progress callbacks as a session advances. Callbacks run
// on the session goroutine between backend calls, so implementations should
// return quickly.
type Observer interface {
	// SeedPosted is called once per session, right after the transcript is
	// seeded and before any backend call. p is participant A, which the seed
	// is attributed to.
	SeedPosted(p Participant, text string)

	// ReplyPosted is called after each reply (or absorbed failure) is
	// appended. pair is the 1-based turn-pair index.
	ReplyPosted(p Participant, pair int, text string)
}

// nopObserver ignores every callback. It is the default when no observer is
// configured.
type nopObserver struct{}

func (nopObserver) SeedPosted(Participant, string)       {}
func (nopObserver) ReplyPosted(Participant, int, string) {}

// Config holds the session-level settings of a dialogue run.
type Config struct {
	// SeedPrompt opens the conversation. It is recorded as participant A's
	// first utterance; see [Seed].
	SeedPrompt string

	// Turns is the number of turn-pairs to run (one B reply plus one A reply
	// each). Zero is valid and produces a transcript holding only the seed.
	Turns int

	// Delay is an optional synchronous pause after each backend call, to
	// throttle request rate against vendor rate limits. It is not a retry or
	// scheduling mechanism.
	Delay time.Duration
}

// Session drives one two-party conversation to completion. It owns the
// canonical transcript exclusively; nothing else mutates it.
//
// A Session is single-use and not safe for concurrent use: construct with
// [New], call [Session.Run] once, keep the returned transcript.
type Session struct {
	a, b       Participant
	cfg        Config
	transcript Transcript
	obs        Observer
	metrics    *observe.Metrics
	started    bool
}

// Option configures a [Session] during construction.
type Option func(*Session)

// WithObserver sets the progress observer. A nil observer is ignored.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.obs = o
		}
	}
}

// WithMetrics overrides the metrics instance, mainly so tests can isolate
// instruments. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New validates the participants and settings and constructs a Session.
//
// Validation fails fast, before any turn can execute: the returned error
// joins every problem found (missing names or backends, identical names,
// out-of-range generation parameters, empty seed, negative turn budget or
// delay). Nothing is ever absorbed here; a misconfigured session never
// starts.
func New(a, b Participant, cfg Config, opts ...Option) (*Session, error) {
	var errs []error
	errs = append(errs, validateParticipant("participant A", a)...)
	errs = append(errs, validateParticipant("participant B", b)...)
	if a.Name != "" && a.Name == b.Name {
		errs = append(errs, fmt.Errorf("participants must have distinct names, both are %q", a.Name))
	}
	if strings.TrimSpace(cfg.SeedPrompt) == "" {
		errs = append(errs, errors.New("seed prompt is required"))
	}
	if cfg.Turns < 0 {
		errs = append(errs, fmt.Errorf("turns %d must not be negative", cfg.Turns))
	}
	if cfg.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay %s must not be negative", cfg.Delay))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("dialogue: invalid session: %w", err)
	}

	s := &Session{
		a:       a,
		b:       b,
		cfg:     cfg,
		obs:     nopObserver{},
		metrics: observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// validateParticipant collects every configuration problem of p. prefix names
// the participant in error messages.
func validateParticipant(prefix string, p Participant) []error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, fmt.Errorf("%s: name is required", prefix))
	}
	if p.Backend == nil {
		errs = append(errs, fmt.Errorf("%s: backend is required", prefix))
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		errs = append(errs, fmt.Errorf("%s: temperature %.2f is out of range [0, 2]", prefix, p.Temperature))
	}
	if p.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("%s: max tokens %d must not be negative", prefix, p.MaxTokens))
	}
	return errs
}

// Run executes the configured number of turn-pairs and returns the final
// transcript.
//
// The lifecycle is fixed: the transcript is seeded with the opening prompt
// attributed to participant A, then every turn-pair projects the transcript
// for B, calls B's backend, appends the reply, and does the same for A.
// Execution is strictly sequential; each projection depends on the entry the
// previous call appended. A backend failure never aborts the run: the
// descriptive error text is recorded as the failing participant's utterance,
// the peer sees it like any other message on its next turn, and the loop
// continues. After an uninterrupted Run the transcript holds exactly
// 1+2*Turns entries.
//
// The only early exit is ctx cancellation, checked before each backend call;
// Run then returns the transcript accumulated so far alongside the context
// error. Run must be called at most once.
func (s *Session) Run(ctx context.Context) (Transcript, error) {
	if s.started {
		return s.transcript, errors.New("dialogue: Run called twice")
	}
	s.started = true

	ctx, span := observe.StartSpan(ctx, "dialogue.session", trace.WithAttributes(
		observe.Attr("participant_a", s.a.Name),
		observe.Attr("participant_b", s.b.Name),
		attribute.Int("turns", s.cfg.Turns),
	))
	defer span.End()

	start := time.Now()
	s.metrics.ActiveSessions.Add(ctx, 1)
	defer func() {
		s.metrics.ActiveSessions.Add(ctx, -1)
		s.metrics.RecordSession(ctx, time.Since(start))
	}()

	s.transcript = Seed(s.cfg.SeedPrompt)
	s.metrics.RecordEntry(ctx, string(SpeakerA))
	s.obs.SeedPosted(s.a, s.cfg.SeedPrompt)
	observe.Logger(ctx).Debug("session seeded",
		"participant_a", s.a.Name,
		"participant_b", s.b.Name,
		"turns", s.cfg.Turns,
	)

	for pair := 1; pair <= s.cfg.Turns; pair++ {
		if err := s.step(ctx, pair, SpeakerB, s.b); err != nil {
			return s.transcript, err
		}
		if err := s.step(ctx, pair, SpeakerA, s.a); err != nil {
			return s.transcript, err
		}
		s.metrics.RecordTurnPair(ctx)
	}

	observe.Logger(ctx).Info("session finished",
		"entries", len(s.transcript),
		"pairs", s.transcript.CompletedPairs(),
		"duration", time.Since(start),
	)
	return s.transcript, nil
}

// step runs one half of a turn-pair: project the transcript for the given
// speaker, obtain a reply (or absorb a failure), append it, then apply the
// throttle delay.
func (s *Session) step(ctx context.Context, pair int, who Speaker, p Participant) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("dialogue: session interrupted in pair %d: %w", pair, err)
	}
	text := s.respond(ctx, p, s.transcript.View(who))
	s.transcript = append(s.transcript, Entry{Speaker: who, Text: text})
	s.metrics.RecordEntry(ctx, string(who))
	s.obs.ReplyPosted(p, pair, text)
	s.pause(ctx)
	return nil
}

// respond calls p's backend with the projected view and p's resolved
// generation parameters. A failed call is absorbed: the descriptive error
// text becomes the reply, so a single bad turn cannot destroy an otherwise
// useful transcript.
func (s *Session) respond(ctx context.Context, p Participant, view []chat.Message) string {
	ctx, span := observe.StartSpan(ctx, "dialogue.respond", trace.WithAttributes(
		observe.Attr("participant", p.Name),
		observe.Attr("backend", p.BackendName),
	))
	defer span.End()

	start := time.Now()
	text, err := p.Backend.Respond(ctx, chat.Request{
		SystemPrompt: p.SystemPrompt,
		Messages:     view,
		Temperature:  p.Temperature,
		MaxTokens:    p.MaxTokens,
	})
	s.metrics.RecordBackendCall(ctx, p.BackendName, p.Name, time.Since(start), err)
	if err != nil {
		s.metrics.RecordAbsorbedFailure(ctx, p.BackendName, p.Name)
		observe.Logger(ctx).Warn("backend call failed, recording the failure as the reply",
			"participant", p.Name,
			"backend", p.BackendName,
			"error", err,
		)
		return fmt.Sprintf("Error getting response from %s: %v", p.Name, err)
	}
	return text
}

// pause sleeps for the configured inter-call delay. The sleep ends early when
// ctx is cancelled; the cancellation itself is handled at the next step
// boundary.
func (s *Session) pause(ctx context.Context) {
	if s.cfg.Delay <= 0 {
		return
	}
	t := time.NewTimer(s.cfg.Delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
