package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/duolog/pkg/provider/chat"
)

// ── Constructor ───────────────────────────────────────────────────────────────

// TestNew_EmptyProviderName checks that an empty provider name returns an error.
func TestNew_EmptyProviderName(t *testing.T) {
	_, err := New("", "gpt-4o-mini")
	if err == nil {
		t.Fatal("expected error for empty providerName")
	}
}

// TestNew_EmptyModel checks that an empty model name returns an error.
func TestNew_EmptyModel(t *testing.T) {
	_, err := New("openai", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_UnsupportedProvider checks that an unsupported provider returns an error.
func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy"))
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

// TestNew_OpenAI_WithAPIKey checks that the backend constructs with an API key.
func TestNew_OpenAI_WithAPIKey(t *testing.T) {
	b, err := New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil {
		t.Fatal("expected non-nil backend")
	}
	if b.model != "gpt-4o-mini" {
		t.Errorf("expected model gpt-4o-mini, got %q", b.model)
	}
}

// TestNew_Ollama_NoAPIKey checks that Ollama works without an API key.
func TestNew_Ollama_NoAPIKey(t *testing.T) {
	b, err := NewOllama("llama2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil {
		t.Fatal("expected non-nil backend")
	}
}

// TestConvenienceConstructors checks that convenience constructors delegate correctly.
func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (*Backend, error)
	}{
		{"NewAnthropic", func() (*Backend, error) {
			return NewAnthropic("claude-sonnet-4-20250514", anyllmlib.WithAPIKey("sk-ant-test"))
		}},
		{"NewOllama", func() (*Backend, error) { return NewOllama("llama2") }},
		{"NewLlamaCpp", func() (*Backend, error) { return NewLlamaCpp("llama2") }},
		{"NewLlamaFile", func() (*Backend, error) { return NewLlamaFile("llama2") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.fn()
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.name, err)
			}
			if b == nil {
				t.Fatalf("%s: expected non-nil backend", tt.name)
			}
		})
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

// TestBuildParams_SystemPromptFirst checks that the persona instruction leads
// the message list as a system-role message.
func TestBuildParams_SystemPromptFirst(t *testing.T) {
	b := &Backend{model: "gpt-4o-mini"}
	params := b.buildParams(chat.Request{
		SystemPrompt: "Be terse.",
		Messages:     []chat.Message{{Role: chat.RolePeer, Text: "Hello"}},
	})
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("expected leading system message, got role %q", params.Messages[0].Role)
	}
	if params.Messages[0].ContentString() != "Be terse." {
		t.Errorf("unexpected system content: %q", params.Messages[0].ContentString())
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
	if params.Messages[0].Role == anyllmlib.RoleSystem {
		t.Error("unexpected system message")
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
	wantRoles := []string{"user", "assistant", "user"}
	if len(params.Messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(params.Messages))
	}
	for i, want := range wantRoles {
		if params.Messages[i].Role != want {
			t.Errorf("message %d: expected role %q, got %q", i, want, params.Messages[i].Role)
		}
	}
	if params.Messages[1].ContentString() != "second" {
		t.Errorf("unexpected content: %q", params.Messages[1].ContentString())
	}
}

// TestBuildParams_TemperatureAlwaysSet checks that the resolved temperature is
// always sent, including an explicit zero for greedy decoding.
func TestBuildParams_TemperatureAlwaysSet(t *testing.T) {
	b := &Backend{model: "gpt-4o-mini"}
	params := b.buildParams(chat.Request{
		Temperature: 0,
		Messages:    []chat.Message{{Role: chat.RolePeer, Text: "Hello"}},
	})
	if params.Temperature == nil {
		t.Fatal("expected temperature to be set")
	}
	if *params.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", *params.Temperature)
	}
}

// TestBuildParams_MaxTokens checks that the cap is only sent when positive.
func TestBuildParams_MaxTokens(t *testing.T) {
	b := &Backend{model: "gpt-4o-mini"}

	params := b.buildParams(chat.Request{
		Messages: []chat.Message{{Role: chat.RolePeer, Text: "Hello"}},
	})
	if params.MaxTokens != nil {
		t.Errorf("expected nil MaxTokens for zero cap, got %d", *params.MaxTokens)
	}

	params = b.buildParams(chat.Request{
		MaxTokens: 300,
		Messages:  []chat.Message{{Role: chat.RolePeer, Text: "Hello"}},
	})
	if params.MaxTokens == nil || *params.MaxTokens != 300 {
		t.Errorf("expected MaxTokens 300, got %v", params.MaxTokens)
	}
}
