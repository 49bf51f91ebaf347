// Package transcript serializes finished dialogues to flat text files and
// reads them back.
//
// The format is the one consumed by the playback command: one block per
// utterance, each headed by a speaker label, blocks separated by blank lines:
//
//	🎭 Persuader
//
//	I see your point, but consider the incentives.
//
//	🔍 Skeptic
//
//	Incentives cut both ways.
//
// A label line is a glyph (one or more non-letter, non-digit runes, typically
// an emoji), whitespace, then the speaker's name. [Read] recognizes labels of
// exactly that shape; anything before the first label is skipped, and all
// lines between two labels form the utterance text, trimmed of surrounding
// whitespace with interior blank lines preserved.
//
// Round trip: reading back what [Write] produced yields the same
// (label, text) pairs, provided no text line itself looks like a label. A
// text line starting with punctuation followed by a word (for example a
// "- item" bullet) is indistinguishable from a label and will split the
// record; Write does not reject such text.
package transcript

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/MrWong99/duolog/internal/dialogue"
)

// DefaultGlyph prefixes speakers that have no glyph of their own. Every
// written label needs one so that [Read] can recognize it.
const DefaultGlyph = "🤖"

// labelPattern matches a trimmed speaker label line: a glyph run, whitespace,
// then a name starting with a letter or digit.
var labelPattern = regexp.MustCompile(`^[^\p{L}\p{N}]+\s+[\p{L}\p{N}]`)

// Record is one transcript block: a speaker label and the utterance text.
type Record struct {
	// Label is the speaker's display identity, a glyph followed by the name
	// (e.g., "🎭 Persuader").
	Label string

	// Text is the utterance. Stored trimmed; leading and trailing whitespace
	// does not survive a round trip.
	Text string
}

// FromTranscript converts a dialogue transcript into records ready for
// [Write] or [Save]. Entries are attributed to a or b by speaker. A
// participant without a glyph is labelled with [DefaultGlyph] so the written
// file stays parseable.
func FromTranscript(t dialogue.Transcript, a, b dialogue.Participant) []Record {
	records := make([]Record, 0, len(t))
	for _, e := range t {
		p := a
		if e.Speaker == dialogue.SpeakerB {
			p = b
		}
		if p.Glyph == "" {
			p.Glyph = DefaultGlyph
		}
		records = append(records, Record{Label: p.Label(), Text: e.Text})
	}
	return records
}

// SpeakerName returns the display name of a label with its glyph prefix
// removed: "🎭 Persuader" yields "Persuader". A label without any letter or
// digit is returned trimmed as-is.
func SpeakerName(label string) string {
	trimmed := strings.TrimSpace(label)
	i := strings.IndexFunc(trimmed, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	})
	if i < 0 {
		return trimmed
	}
	return trimmed[i:]
}

// isLabel reports whether a trimmed line is a speaker label.
func isLabel(trimmed string) bool {
	return labelPattern.MatchString(trimmed)
}
