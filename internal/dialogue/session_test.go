package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/duolog/pkg/provider/chat"
	chatmock "github.com/MrWong99/duolog/pkg/provider/chat/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func testParticipant(name string, backend chat.Backend) Participant {
	return Participant{
		Name:         name,
		Glyph:        "🤖",
		SystemPrompt: "You are " + name + ".",
		Temperature:  0.7,
		MaxTokens:    500,
		Backend:      backend,
		BackendName:  "mock/" + strings.ToLower(name),
	}
}

func mustSession(t *testing.T, a, b Participant, cfg Config, opts ...Option) *Session {
	t.Helper()
	s, err := New(a, b, cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// recordingObserver captures observer callbacks for assertion.
type recordingObserver struct {
	seeds   []string
	replies []string // "name/pair/text"
}

func (r *recordingObserver) SeedPosted(p Participant, text string) {
	r.seeds = append(r.seeds, text)
}

func (r *recordingObserver) ReplyPosted(p Participant, pair int, text string) {
	r.replies = append(r.replies, fmt.Sprintf("%s/%d/%s", p.Name, pair, text))
}

// ── Construction validation ──────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	valid := func() (Participant, Participant, Config) {
		return testParticipant("Alpha", &chatmock.Backend{}),
			testParticipant("Beta", &chatmock.Backend{}),
			Config{SeedPrompt: "hello", Turns: 1}
	}

	t.Run("valid session", func(t *testing.T) {
		t.Parallel()
		a, b, cfg := valid()
		if _, err := New(a, b, cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	cases := []struct {
		name    string
		mutate  func(a, b *Participant, cfg *Config)
		wantSub string
	}{
		{
			name:    "missing name",
			mutate:  func(a, b *Participant, cfg *Config) { a.Name = "" },
			wantSub: "participant A: name is required",
		},
		{
			name:    "missing backend",
			mutate:  func(a, b *Participant, cfg *Config) { b.Backend = nil },
			wantSub: "participant B: backend is required",
		},
		{
			name:    "identical names",
			mutate:  func(a, b *Participant, cfg *Config) { b.Name = a.Name },
			wantSub: "distinct names",
		},
		{
			name:    "temperature below range",
			mutate:  func(a, b *Participant, cfg *Config) { a.Temperature = -0.1 },
			wantSub: "temperature",
		},
		{
			name:    "temperature above range",
			mutate:  func(a, b *Participant, cfg *Config) { b.Temperature = 2.5 },
			wantSub: "temperature",
		},
		{
			name:    "negative max tokens",
			mutate:  func(a, b *Participant, cfg *Config) { a.MaxTokens = -1 },
			wantSub: "max tokens",
		},
		{
			name:    "blank seed",
			mutate:  func(a, b *Participant, cfg *Config) { cfg.SeedPrompt = "   \n" },
			wantSub: "seed prompt is required",
		},
		{
			name:    "negative turns",
			mutate:  func(a, b *Participant, cfg *Config) { cfg.Turns = -2 },
			wantSub: "turns",
		},
		{
			name:    "negative delay",
			mutate:  func(a, b *Participant, cfg *Config) { cfg.Delay = -time.Second },
			wantSub: "delay",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a, b, cfg := valid()
			tc.mutate(&a, &b, &cfg)
			_, err := New(a, b, cfg)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error should mention %q, got: %v", tc.wantSub, err)
			}
		})
	}

	t.Run("all problems reported at once", func(t *testing.T) {
		t.Parallel()
		_, err := New(Participant{}, Participant{}, Config{Turns: -1})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		for _, sub := range []string{"participant A: name", "participant B: name", "backend is required", "seed prompt", "turns"} {
			if !strings.Contains(err.Error(), sub) {
				t.Errorf("joined error should mention %q, got: %v", sub, err)
			}
		}
	})
}

// ── Transcript shape ─────────────────────────────────────────────────────────

func TestRun_TranscriptLength(t *testing.T) {
	t.Parallel()

	for _, turns := range []int{0, 1, 2, 5} {
		t.Run(fmt.Sprintf("turns=%d", turns), func(t *testing.T) {
			t.Parallel()
			aBack := &chatmock.Backend{Response: "from A"}
			bBack := &chatmock.Backend{Response: "from B"}
			s := mustSession(t,
				testParticipant("Alpha", aBack),
				testParticipant("Beta", bBack),
				Config{SeedPrompt: "go", Turns: turns},
			)

			tr, err := s.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if want := 1 + 2*turns; len(tr) != want {
				t.Fatalf("transcript length %d, want %d", len(tr), want)
			}
			if len(aBack.RespondCalls) != turns {
				t.Errorf("A called %d times, want %d", len(aBack.RespondCalls), turns)
			}
			if len(bBack.RespondCalls) != turns {
				t.Errorf("B called %d times, want %d", len(bBack.RespondCalls), turns)
			}
		})
	}
}

func TestRun_ZeroTurns(t *testing.T) {
	t.Parallel()

	aBack := &chatmock.Backend{}
	bBack := &chatmock.Backend{}
	s := mustSession(t,
		testParticipant("Alpha", aBack),
		testParticipant("Beta", bBack),
		Config{SeedPrompt: "only the seed", Turns: 0},
	)

	tr, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(tr) != 1 {
		t.Fatalf("transcript length %d, want 1", len(tr))
	}
	if tr[0].Speaker != SpeakerA || tr[0].Text != "only the seed" {
		t.Errorf("unexpected seed entry: %+v", tr[0])
	}
	if len(aBack.RespondCalls)+len(bBack.RespondCalls) != 0 {
		t.Error("no backend calls may occur for a zero-turn session")
	}
}

func TestRun_SpeakerAlternation(t *testing.T) {
	t.Parallel()

	s := mustSession(t,
		testParticipant("Alpha", &chatmock.Backend{Response: "a"}),
		testParticipant("Beta", &chatmock.Backend{Response: "b"}),
		Config{SeedPrompt: "go", Turns: 3},
	)

	tr, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr[0].Speaker != SpeakerA {
		t.Errorf("entry 0 must be the seed from A, got %s", tr[0].Speaker)
	}
	for i := 1; i < len(tr); i++ {
		want := SpeakerB
		if i%2 == 0 {
			want = SpeakerA
		}
		if tr[i].Speaker != want {
			t.Errorf("entry %d speaker = %s, want %s", i, tr[i].Speaker, want)
		}
	}
}

// ── Projection seen by the backends ──────────────────────────────────────────

func TestRun_ProjectedViews(t *testing.T) {
	t.Parallel()

	aBack := &chatmock.Backend{Script: []chatmock.Reply{{Text: "reply2"}, {Text: "reply4"}}}
	bBack := &chatmock.Backend{Script: []chatmock.Reply{{Text: "reply1"}, {Text: "reply3"}}}

	a := testParticipant("Policy Expert", aBack)
	b := testParticipant("Ethics Researcher", bBack)
	s := mustSession(t, a, b, Config{SeedPrompt: "Let's discuss AI safety.", Turns: 2})

	tr, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantTexts := []string{"Let's discuss AI safety.", "reply1", "reply2", "reply3", "reply4"}
	if len(tr) != len(wantTexts) {
		t.Fatalf("transcript length %d, want %d", len(tr), len(wantTexts))
	}
	for i, want := range wantTexts {
		if tr[i].Text != want {
			t.Errorf("entry %d text = %q, want %q", i, tr[i].Text, want)
		}
	}

	// B's first call sees only the seed, as a peer utterance.
	assertMessagesEqual(t, []chat.Message{
		{Role: chat.RolePeer, Text: "Let's discuss AI safety."},
	}, bBack.RespondCalls[0].Req.Messages)

	// B's second call: seed peer, own reply self, A's reply peer.
	assertMessagesEqual(t, []chat.Message{
		{Role: chat.RolePeer, Text: "Let's discuss AI safety."},
		{Role: chat.RoleSelf, Text: "reply1"},
		{Role: chat.RolePeer, Text: "reply2"},
	}, bBack.RespondCalls[1].Req.Messages)

	// A's first call: the seed stands in for A's own first turn.
	assertMessagesEqual(t, []chat.Message{
		{Role: chat.RoleSelf, Text: "Let's discuss AI safety."},
		{Role: chat.RolePeer, Text: "reply1"},
	}, aBack.RespondCalls[0].Req.Messages)

	// A's second call covers the whole history so far.
	assertMessagesEqual(t, []chat.Message{
		{Role: chat.RoleSelf, Text: "Let's discuss AI safety."},
		{Role: chat.RolePeer, Text: "reply1"},
		{Role: chat.RoleSelf, Text: "reply2"},
		{Role: chat.RolePeer, Text: "reply3"},
	}, aBack.RespondCalls[1].Req.Messages)
}

func TestRun_RequestParameters(t *testing.T) {
	t.Parallel()

	aBack := &chatmock.Backend{Response: "ok"}
	bBack := &chatmock.Backend{Response: "ok"}

	a := testParticipant("Alpha", aBack)
	a.Temperature = 1.3
	a.MaxTokens = 42
	b := testParticipant("Beta", bBack)
	b.Temperature = 0
	b.MaxTokens = 900

	s := mustSession(t, a, b, Config{SeedPrompt: "go", Turns: 1})
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	gotA := aBack.RespondCalls[0].Req
	if gotA.SystemPrompt != a.SystemPrompt {
		t.Errorf("A system prompt = %q, want %q", gotA.SystemPrompt, a.SystemPrompt)
	}
	if gotA.Temperature != 1.3 || gotA.MaxTokens != 42 {
		t.Errorf("A parameters not passed through: %+v", gotA)
	}

	gotB := bBack.RespondCalls[0].Req
	if gotB.SystemPrompt != b.SystemPrompt {
		t.Errorf("B system prompt = %q, want %q", gotB.SystemPrompt, b.SystemPrompt)
	}
	if gotB.Temperature != 0 || gotB.MaxTokens != 900 {
		t.Errorf("B parameters not passed through: %+v", gotB)
	}
}

// ── Failure absorption ───────────────────────────────────────────────────────

func TestRun_FailureAbsorbed(t *testing.T) {
	t.Parallel()

	bBack := &chatmock.Backend{Script: []chatmock.Reply{
		{Text: "fine"},
		{Err: errors.New("rate limited")},
		{Text: "recovered"},
	}}
	aBack := &chatmock.Backend{Response: "steady"}

	s := mustSession(t,
		testParticipant("Alpha", aBack),
		testParticipant("Beta", bBack),
		Config{SeedPrompt: "go", Turns: 3},
	)

	tr, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(tr) != 7 {
		t.Fatalf("transcript length %d, want 7", len(tr))
	}

	want := "Error getting response from Beta: rate limited"
	if tr[3].Text != want {
		t.Errorf("absorbed entry = %q, want %q", tr[3].Text, want)
	}
	if tr[3].Speaker != SpeakerB {
		t.Errorf("absorbed entry speaker = %s, want B", tr[3].Speaker)
	}

	// The loop went on: B recovered and A kept answering throughout.
	if tr[5].Text != "recovered" {
		t.Errorf("entry 5 = %q, want %q", tr[5].Text, "recovered")
	}
	if len(aBack.RespondCalls) != 3 {
		t.Errorf("A called %d times, want 3", len(aBack.RespondCalls))
	}

	// The next speaker sees the absorbed text as an ordinary peer utterance.
	aView := aBack.RespondCalls[1].Req.Messages
	last := aView[len(aView)-1]
	if last.Role != chat.RolePeer || last.Text != want {
		t.Errorf("A should see the failure text as peer, got %+v", last)
	}
}

func TestRun_ErrorStringReply(t *testing.T) {
	t.Parallel()

	// A backend honouring the never-fail contract returns the condition as
	// text; the loop records it verbatim like any reply.
	bBack := &chatmock.Backend{Response: "ERROR: blocked"}
	aBack := &chatmock.Backend{Response: "moving on"}

	s := mustSession(t,
		testParticipant("Alpha", aBack),
		testParticipant("Beta", bBack),
		Config{SeedPrompt: "go", Turns: 2},
	)

	tr, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(tr) != 5 {
		t.Fatalf("transcript length %d, want 5", len(tr))
	}
	for i := 1; i < len(tr); i += 2 {
		if tr[i].Text != "ERROR: blocked" {
			t.Errorf("B entry %d = %q, want the literal error text", i, tr[i].Text)
		}
	}
	for _, call := range aBack.RespondCalls {
		msgs := call.Req.Messages
		last := msgs[len(msgs)-1]
		if last.Role != chat.RolePeer || last.Text != "ERROR: blocked" {
			t.Errorf("A's view should end with the peer-tagged error text, got %+v", last)
		}
	}
}

// ── Delay, cancellation, reuse ───────────────────────────────────────────────

func TestRun_DelayThrottles(t *testing.T) {
	t.Parallel()

	s := mustSession(t,
		testParticipant("Alpha", &chatmock.Backend{Response: "a"}),
		testParticipant("Beta", &chatmock.Backend{Response: "b"}),
		Config{SeedPrompt: "go", Turns: 1, Delay: 20 * time.Millisecond},
	)

	start := time.Now()
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("two delayed replies finished in %s, want >= 40ms", elapsed)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	aBack := &chatmock.Backend{}
	bBack := &chatmock.Backend{}
	s := mustSession(t,
		testParticipant("Alpha", aBack),
		testParticipant("Beta", bBack),
		Config{SeedPrompt: "go", Turns: 4},
	)

	tr, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if len(tr) != 1 {
		t.Errorf("cancelled-before-start run should hold only the seed, got %d entries", len(tr))
	}
	if len(aBack.RespondCalls)+len(bBack.RespondCalls) != 0 {
		t.Error("no backend calls may happen after cancellation")
	}
}

func TestRun_CalledTwice(t *testing.T) {
	t.Parallel()

	s := mustSession(t,
		testParticipant("Alpha", &chatmock.Backend{Response: "a"}),
		testParticipant("Beta", &chatmock.Backend{Response: "b"}),
		Config{SeedPrompt: "go", Turns: 1},
	)
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("second Run must fail")
	}
}

// ── Observer ─────────────────────────────────────────────────────────────────

func TestRun_ObserverCallbacks(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	s := mustSession(t,
		testParticipant("Alpha", &chatmock.Backend{Script: []chatmock.Reply{{Text: "a1"}, {Text: "a2"}}}),
		testParticipant("Beta", &chatmock.Backend{Script: []chatmock.Reply{{Text: "b1"}, {Text: "b2"}}}),
		Config{SeedPrompt: "kick-off", Turns: 2},
		WithObserver(obs),
	)

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(obs.seeds) != 1 || obs.seeds[0] != "kick-off" {
		t.Errorf("seeds = %v, want exactly the seed prompt", obs.seeds)
	}
	want := []string{"Beta/1/b1", "Alpha/1/a1", "Beta/2/b2", "Alpha/2/a2"}
	if len(obs.replies) != len(want) {
		t.Fatalf("replies = %v, want %v", obs.replies, want)
	}
	for i := range want {
		if obs.replies[i] != want[i] {
			t.Errorf("reply %d = %q, want %q", i, obs.replies[i], want[i])
		}
	}
}

// ── Labels ───────────────────────────────────────────────────────────────────

func TestParticipantLabel(t *testing.T) {
	t.Parallel()

	p := Participant{Name: "Skeptic", Glyph: "🔍"}
	if got := p.Label(); got != "🔍 Skeptic" {
		t.Errorf("Label = %q", got)
	}
	p.Glyph = ""
	if got := p.Label(); got != "Skeptic" {
		t.Errorf("glyphless Label = %q", got)
	}
}
