// Package chat defines the Backend interface for turn-based text completion.
//
// A chat backend wraps a remote or local model API (e.g., OpenAI GPT-4o,
// Anthropic Claude, or an Ollama instance) and exposes a single respond
// operation that the duolog orchestrator calls once per turn. Conversation
// history is role-tagged from the responding participant's point of view: its
// own prior turns carry RoleSelf and the other participant's carry RolePeer.
// How those two roles map onto a vendor's native role vocabulary
// (assistant/user and so on) is each backend's private concern; the
// orchestrator never sees vendor roles.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package chat

import "context"

// Role tags a history message from the standpoint of the participant the
// request is built for.
type Role string

const (
	// RoleSelf marks a message the responding participant produced itself.
	RoleSelf Role = "self"

	// RolePeer marks a message produced by the other participant.
	RolePeer Role = "peer"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	return r == RoleSelf || r == RolePeer
}

// Message is one role-tagged utterance of the conversation history.
type Message struct {
	// Role is the utterance's origin relative to the responding participant.
	Role Role

	// Text is the utterance content.
	Text string
}

// Request carries everything a backend needs to produce one reply.
// Callers should treat a zero-value request as invalid; at minimum Messages
// must be non-empty.
type Request struct {
	// SystemPrompt is the responding participant's persona instruction,
	// injected ahead of the conversation history. Providers without a
	// dedicated system slot should prepend it as a system-role message.
	SystemPrompt string

	// Messages is the ordered conversation history as seen by the responding
	// participant. The last message is always RolePeer: a participant speaks
	// in reply to its peer, never to itself.
	Messages []Message

	// Temperature controls output randomness in the range [0.0, 2.0].
	// A value of 0.0 requests greedy (argmax) decoding.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int
}

// Backend is the abstraction over any chat completion vendor.
//
// Implementations must be safe for concurrent use from multiple goroutines
// and must return promptly when ctx is cancelled.
type Backend interface {
	// Respond sends req to the model and returns the full text of the reply.
	//
	// A non-nil error covers every failure class: authentication, network,
	// content filtering, malformed payloads. Callers that must keep going
	// regardless (the dialogue loop does) are expected to convert the error
	// into recorded text themselves; Respond never panics and never blocks
	// past ctx.
	Respond(ctx context.Context, req Request) (string, error)
}
