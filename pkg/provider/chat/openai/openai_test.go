package openai

import (
	"testing"

	"github.com/MrWong99/duolog/pkg/provider/chat"
)

// ── Constructor ───────────────────────────────────────────────────────────────

// TestNew_MissingAPIKey ensures the constructor rejects an empty API key.
func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New("", "gpt-4o-mini")
	if err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

// TestNew_MissingModel ensures the constructor rejects an empty model.
func TestNew_MissingModel(t *testing.T) {
	_, err := New("sk-test", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_Valid checks that a backend constructs without network access.
func TestNew_Valid(t *testing.T) {
	b, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.model != "gpt-4o-mini" {
		t.Errorf("expected model gpt-4o-mini, got %q", b.model)
	}
}

// TestNewGrok checks that the Grok constructor accepts the same arguments.
func TestNewGrok(t *testing.T) {
	b, err := NewGrok("xai-test", "grok-4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.model != "grok-4" {
		t.Errorf("expected model grok-4, got %q", b.model)
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

// TestBuildParams_SystemPromptFirst checks that the persona instruction leads
// the message list as a system message.
func TestBuildParams_SystemPromptFirst(t *testing.T) {
	b := &Backend{model: "gpt-4o-mini"}
	params := b.buildParams(chat.Request{
		SystemPrompt: "Be terse.",
		Messages:     []chat.Message{{Role: chat.RolePeer, Text: "Hello"}},
	})
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Fatal("expected OfSystem to be set on the first message")
	}
	if params.Messages[1].OfUser == nil {
		t.Fatal("expected OfUser to be set on the second message")
	}
}

// TestBuildParams_NoSystemPrompt checks that an empty persona adds no system message.
func TestBuildParams_NoSystemPrompt(t *testing.T) {
	b := &Backend{model: "gpt-4o-mini"}
	params := b.buildParams(chat.Request{
		Messages: []chat.Message{{Role: chat.RolePeer, Text: "Hello"}},
	})
	if len(params.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem != nil {
		t.Fatal("unexpected system message")
	}
}

// TestBuildParams_RoleMapping checks that self turns become assistant messages
// and peer turns become user messages, in order.
func TestBuildParams_RoleMapping(t *testing.T) {
	b := &Backend{model: "gpt-4o-mini"}
	params := b.buildParams(chat.Request{
		Messages: []chat.Message{
			{Role: chat.RolePeer, Text: "first"},
			{Role: chat.RoleSelf, Text: "second"},
			{Role: chat.RolePeer, Text: "third"},
		},
	})
	if len(params.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].OfUser == nil {
		t.Fatal("expected OfUser on message 0")
	}
	if params.Messages[1].OfAssistant == nil {
		t.Fatal("expected OfAssistant on message 1")
	}
	if got := params.Messages[1].OfAssistant.Content.OfString.Value; got != "second" {
		t.Errorf("expected assistant content %q, got %q", "second", got)
	}
	if params.Messages[2].OfUser == nil {
		t.Fatal("expected OfUser on message 2")
	}
}

// TestBuildParams_Temperature checks that the resolved temperature is always
// sent, including an explicit zero for greedy decoding.
func TestBuildParams_Temperature(t *testing.T) {
	b := &Backend{model: "gpt-4o-mini"}

	params := b.buildParams(chat.Request{
		Temperature: 0.9,
		Messages:    []chat.Message{{Role: chat.RolePeer, Text: "Hello"}},
	})
	if !params.Temperature.Valid() || params.Temperature.Value != 0.9 {
		t.Errorf("expected temperature 0.9, got %v", params.Temperature)
	}

	params = b.buildParams(chat.Request{
		Temperature: 0,
		Messages:    []chat.Message{{Role: chat.RolePeer, Text: "Hello"}},
	})
	if !params.Temperature.Valid() || params.Temperature.Value != 0 {
		t.Errorf("expected temperature 0 to be sent, got %v", params.Temperature)
	}
}

// TestBuildParams_MaxTokens checks that the cap is only sent when positive.
func TestBuildParams_MaxTokens(t *testing.T) {
	b := &Backend{model: "gpt-4o-mini"}

	params := b.buildParams(chat.Request{
		Messages: []chat.Message{{Role: chat.RolePeer, Text: "Hello"}},
	})
	if params.MaxCompletionTokens.Valid() {
		t.Errorf("expected MaxCompletionTokens to be omitted, got %d", params.MaxCompletionTokens.Value)
	}

	params = b.buildParams(chat.Request{
		MaxTokens: 300,
		Messages:  []chat.Message{{Role: chat.RolePeer, Text: "Hello"}},
	})
	if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != 300 {
		t.Errorf("expected MaxCompletionTokens 300, got %v", params.MaxCompletionTokens)
	}
}

// TestBuildParams_Model checks that the configured model is carried through.
func TestBuildParams_Model(t *testing.T) {
	b := &Backend{model: "grok-4"}
	params := b.buildParams(chat.Request{
		Messages: []chat.Message{{Role: chat.RolePeer, Text: "Hello"}},
	})
	if string(params.Model) != "grok-4" {
		t.Errorf("expected model grok-4, got %q", params.Model)
	}
}
