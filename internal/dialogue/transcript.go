// Package dialogue implements the role-perspective conversation model behind
// duolog: one canonical transcript tagged by absolute speaker, re-projected on
// demand into the two-role view (self/peer) each chat backend expects.
//
// The canonical transcript is the single source of truth for a session. It is
// append-only and speaker-tagged; no per-participant copy is ever stored.
// Before each backend call the transcript is projected for the participant
// about to speak: its own entries become [chat.RoleSelf], the other
// participant's become [chat.RolePeer]. The projection is a pure transform
// and never mutates stored entries.
package dialogue

import "github.com/MrWong99/duolog/pkg/provider/chat"

// Speaker identifies one of the two participants in the canonical transcript.
type Speaker string

const (
	SpeakerA Speaker = "A"
	SpeakerB Speaker = "B"
)

// IsValid reports whether s is a recognised speaker.
func (s Speaker) IsValid() bool {
	return s == SpeakerA || s == SpeakerB
}

// Other returns the opposite speaker.
func (s Speaker) Other() Speaker {
	if s == SpeakerA {
		return SpeakerB
	}
	return SpeakerA
}

// Entry is one utterance of the canonical transcript, tagged by the absolute
// speaker that produced it. Entries are created once when a backend returns
// (or fails), never mutated afterwards, and never deleted during a session.
type Entry struct {
	Speaker Speaker
	Text    string
}

// Transcript is the canonical, append-only conversation log in conversational
// order. Order is load-bearing: it defines turn numbers and drives the
// perspective projection.
type Transcript []Entry

// Seed returns a new transcript holding only the opening prompt.
//
// The seed is attributed to [SpeakerA] by fixed orchestration policy: A never
// generates its own first turn, the seed stands in for it. Consequently the
// first generated reply of every session belongs to B, which sees the seed as
// a peer utterance.
func Seed(prompt string) Transcript {
	return Transcript{{Speaker: SpeakerA, Text: prompt}}
}

// View projects the transcript into viewer's two-role perspective: entries
// spoken by viewer carry [chat.RoleSelf], all others [chat.RolePeer].
//
// The projection preserves entry count and order exactly and leaves the
// transcript untouched. Both participants' views are derived from the same
// canonical log; calling View twice with opposite viewers yields mirrored
// role tags over identical texts.
func (t Transcript) View(viewer Speaker) []chat.Message {
	msgs := make([]chat.Message, len(t))
	for i, e := range t {
		role := chat.RolePeer
		if e.Speaker == viewer {
			role = chat.RoleSelf
		}
		msgs[i] = chat.Message{Role: role, Text: e.Text}
	}
	return msgs
}

// CompletedPairs returns the number of completed turn-pairs recorded in t.
// A seeded transcript with no replies has zero pairs; each pair adds one B
// entry and one A entry.
func (t Transcript) CompletedPairs() int {
	if len(t) == 0 {
		return 0
	}
	return (len(t) - 1) / 2
}

// Last returns the most recent entry, or a zero Entry for an empty transcript.
func (t Transcript) Last() Entry {
	if len(t) == 0 {
		return Entry{}
	}
	return t[len(t)-1]
}
