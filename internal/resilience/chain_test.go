package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/duolog/pkg/provider/chat"
	chatmock "github.com/MrWong99/duolog/pkg/provider/chat/mock"
)

func testRequest() chat.Request {
	return chat.Request{
		SystemPrompt: "persona",
		Messages:     []chat.Message{{Role: chat.RolePeer, Text: "hello"}},
		Temperature:  0.7,
		MaxTokens:    100,
	}
}

func TestNewChain_Validation(t *testing.T) {
	if _, err := NewChain(BreakerConfig{}); err == nil {
		t.Fatal("empty chain should be rejected")
	}
	if _, err := NewChain(BreakerConfig{}, ChainEntry{Name: "primary"}); err == nil {
		t.Fatal("nil backend should be rejected")
	}
	c, err := NewChain(BreakerConfig{},
		ChainEntry{Name: "primary", Backend: &chatmock.Backend{}},
		ChainEntry{Name: "backup", Backend: &chatmock.Backend{}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := c.Names()
	if len(names) != 2 || names[0] != "primary" || names[1] != "backup" {
		t.Errorf("Names() = %v", names)
	}
}

func TestChain_PrimarySuccess(t *testing.T) {
	primary := &chatmock.Backend{Response: "from primary"}
	backup := &chatmock.Backend{Response: "from backup"}
	c, err := NewChain(BreakerConfig{MaxFailures: 3},
		ChainEntry{Name: "primary", Backend: primary},
		ChainEntry{Name: "backup", Backend: backup},
	)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	text, err := c.Respond(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "from primary" {
		t.Errorf("text = %q, want primary's reply", text)
	}
	if len(backup.RespondCalls) != 0 {
		t.Error("backup must not be called when primary succeeds")
	}
}

func TestChain_FailoverToBackup(t *testing.T) {
	primary := &chatmock.Backend{Err: errTest}
	backup := &chatmock.Backend{Response: "from backup"}
	c, err := NewChain(BreakerConfig{MaxFailures: 3},
		ChainEntry{Name: "primary", Backend: primary},
		ChainEntry{Name: "backup", Backend: backup},
	)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	text, err := c.Respond(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "from backup" {
		t.Errorf("text = %q, want backup's reply", text)
	}

	// The request reaches the backup unchanged.
	got := backup.RespondCalls[0].Req
	if got.SystemPrompt != "persona" || len(got.Messages) != 1 {
		t.Errorf("backup saw altered request: %+v", got)
	}
}

func TestChain_AllFail(t *testing.T) {
	c, err := NewChain(BreakerConfig{MaxFailures: 3},
		ChainEntry{Name: "primary", Backend: &chatmock.Backend{Err: errTest}},
		ChainEntry{Name: "backup", Backend: &chatmock.Backend{Err: errTest}},
	)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	_, err = c.Respond(context.Background(), testRequest())
	if !errors.Is(err, ErrAllBackendsFailed) {
		t.Fatalf("err = %v, want ErrAllBackendsFailed", err)
	}
}

func TestChain_OpenBreakerSkipsBackend(t *testing.T) {
	primary := &chatmock.Backend{Err: errTest}
	backup := &chatmock.Backend{Response: "from backup"}
	c, err := NewChain(BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
		ChainEntry{Name: "primary", Backend: primary},
		ChainEntry{Name: "backup", Backend: backup},
	)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	// Two failing rounds open the primary's breaker.
	for i := 0; i < 2; i++ {
		if _, err := c.Respond(context.Background(), testRequest()); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
	}
	primaryCalls := len(primary.RespondCalls)

	// Further rounds must not touch the primary at all.
	for i := 0; i < 3; i++ {
		text, err := c.Respond(context.Background(), testRequest())
		if err != nil {
			t.Fatalf("post-open round %d: %v", i, err)
		}
		if text != "from backup" {
			t.Errorf("text = %q, want backup's reply", text)
		}
	}
	if len(primary.RespondCalls) != primaryCalls {
		t.Errorf("primary was called %d more times with an open breaker",
			len(primary.RespondCalls)-primaryCalls)
	}
}

func TestChain_ContextCancelledStopsFailover(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &chatmock.Backend{}
	backup := &chatmock.Backend{}
	c, err := NewChain(BreakerConfig{},
		ChainEntry{Name: "primary", Backend: primary},
		ChainEntry{Name: "backup", Backend: backup},
	)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	_, err = c.Respond(ctx, testRequest())
	if !errors.Is(err, ErrAllBackendsFailed) {
		t.Fatalf("err = %v, want ErrAllBackendsFailed", err)
	}
	if len(primary.RespondCalls)+len(backup.RespondCalls) != 0 {
		t.Error("no backend may be called after cancellation")
	}
}
