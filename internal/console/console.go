// Package console renders dialogue progress and transcript performances on a
// terminal.
//
// A Printer implements dialogue.Observer: the seed prompt gets its own panel
// and every reply is printed under a colored speaker header, each participant
// in their own color. Styling runs through termenv color profiles, so output
// degrades to plain text on terminals (or writers) without color support.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/coder/pretty"
	"github.com/muesli/termenv"

	"github.com/MrWong99/duolog/internal/dialogue"
)

const ruleWidth = 80

// speakerPalette holds the header colors handed out to speakers in order of
// first appearance.
var speakerPalette = []string{
	"#2FA8FF", // sky blue
	"#FFA94D", // amber
	"#9D7CFF", // violet, for transcripts with more than two speakers
}

const (
	seedColor = "#29D3D3" // bright cyan
	dimColor  = "#808080" // gray
)

// Printer writes styled dialogue output to one writer. Safe for concurrent
// use, although the session calls it sequentially.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	profile termenv.Profile
	colors  map[string]string
	next    int
}

var _ dialogue.Observer = (*Printer)(nil)

// Option is a functional option for Printer.
type Option func(*Printer)

// WithProfile overrides the detected terminal color profile. Tests pass
// termenv.Ascii for plain deterministic output.
func WithProfile(profile termenv.Profile) Option {
	return func(p *Printer) {
		p.profile = profile
	}
}

// New creates a Printer writing to out. The color profile defaults to the
// one termenv detects for the current process.
func New(out io.Writer, opts ...Option) *Printer {
	p := &Printer{
		out:     out,
		profile: termenv.ColorProfile(),
		colors:  make(map[string]string),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SeedPosted prints the seed prompt panel. The seed opens the conversation
// but belongs to no single persona on screen, so it gets its own header.
func (p *Printer) SeedPosted(_ dialogue.Participant, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printRuled(seedColor, "🤔 INITIAL PROMPT")
	fmt.Fprintf(p.out, "%s\n", text)
}

// ReplyPosted prints one reply under the speaker's colored header.
func (p *Printer) ReplyPosted(participant dialogue.Participant, pair int, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	title := strings.ToUpper(participant.Name)
	if participant.Glyph != "" {
		title = participant.Glyph + " " + title
	}
	p.printRuled(p.speakerColor(participant.Name), fmt.Sprintf("%s - Turn %d", title, pair))
	fmt.Fprintf(p.out, "%s\n", text)
}

// UtterancePlayed prints one performed utterance; wire it to
// playback.Config.OnUtterance.
func (p *Printer) UtterancePlayed(index, total int, speaker, voice, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cprintf(p.speakerColor(speaker), "\n🔊 [%d/%d] %s (%s)\n", index+1, total, speaker, voice)
	fmt.Fprintf(p.out, "%s\n", text)
}

// SessionSaved prints where the finished transcript was written.
func (p *Printer) SessionSaved(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cprintf(dimColor, "\nConversation saved to %s\n", path)
}

// printRuled prints a title between two rule lines, all in one color.
func (p *Printer) printRuled(hex, title string) {
	rule := strings.Repeat("─", ruleWidth)
	p.cprintf(hex, "\n%s\n%s\n%s\n\n", rule, title, rule)
}

// cprintf prints with a foreground color under the active profile, or plain
// when the profile has no colors to offer.
func (p *Printer) cprintf(hex, format string, args ...any) {
	if p.profile == termenv.Ascii {
		fmt.Fprintf(p.out, format, args...)
		return
	}
	pretty.Fprintf(p.out, pretty.FgColor(p.profile.Color(hex)), format, args...)
}

// speakerColor returns the speaker's header color, assigning the next
// palette color on first appearance.
func (p *Printer) speakerColor(name string) string {
	if c, ok := p.colors[name]; ok {
		return c
	}
	c := speakerPalette[p.next%len(speakerPalette)]
	p.next++
	p.colors[name] = c
	return c
}
