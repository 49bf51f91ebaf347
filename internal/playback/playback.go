// Package playback performs a finished transcript aloud.
//
// A Runner walks the transcript in order, synthesizes each utterance with the
// configured speech provider, writes the clip into the output directory as
// NNN-<speaker>.<ext>, and optionally hands it to an external player command.
// To hide synthesis latency the next utterance is synthesized while the
// current clip plays, one clip of lookahead, without ever reordering turns.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/duolog/internal/transcript"
	"github.com/MrWong99/duolog/pkg/provider/speech"
)

// DefaultOutputDir is where clips are written when no directory is configured.
const DefaultOutputDir = "clips"

// Config controls how a transcript is performed.
type Config struct {
	// OutputDir is the directory clip files are written to. It is created if
	// missing. Empty means DefaultOutputDir.
	OutputDir string

	// Player is the external command the clips are piped through, e.g.
	// "afplay" on macOS or "mpv --no-terminal". The clip path is appended as
	// the last argument. Empty means clips are written but not played.
	Player string

	// Voices maps speaker names to provider voice identifiers. The
	// DefaultVoiceKey entry covers all speakers without their own entry;
	// otherwise unmapped speakers rotate through the provider's voice list.
	Voices map[string]string

	// OnUtterance, if non-nil, is called in transcript order right before
	// each clip is written and played.
	OnUtterance func(index, total int, speaker, voice, text string)
}

// Runner performs transcripts with one speech synthesizer.
type Runner struct {
	synth speech.Synthesizer
	cfg   Config
}

// NewRunner creates a Runner for the given synthesizer.
func NewRunner(synth speech.Synthesizer, cfg Config) (*Runner, error) {
	if synth == nil {
		return nil, errors.New("playback: synthesizer is required")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	return &Runner{synth: synth, cfg: cfg}, nil
}

// utterance is one transcript record resolved for synthesis.
type utterance struct {
	index   int
	speaker string
	text    string
	voice   string
}

// clipItem is one synthesized utterance handed from the synthesis stage to
// the playback stage.
type clipItem struct {
	utterance
	clip *speech.Clip
}

// Run performs records in order. Voices are resolved up front so the
// round-robin follows first appearance in the transcript, then synthesis and
// playback run as a two-stage pipeline.
//
// The returned error is the first stage failure; a failed utterance stops the
// performance rather than being skipped.
func (r *Runner) Run(ctx context.Context, records []transcript.Record) error {
	if len(records) == 0 {
		return errors.New("playback: transcript has no records")
	}

	assigner := newVoiceAssigner(r.synth, r.cfg.Voices)
	utterances := make([]utterance, 0, len(records))
	for i, rec := range records {
		speaker := transcript.SpeakerName(rec.Label)
		voice, err := assigner.voiceFor(ctx, speaker)
		if err != nil {
			return err
		}
		utterances = append(utterances, utterance{
			index:   i,
			speaker: speaker,
			text:    rec.Text,
			voice:   voice,
		})
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("playback: create output dir %s: %w", r.cfg.OutputDir, err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	clips := make(chan clipItem, 1) // one utterance of lookahead

	// ── stage 1: synthesis ──────────────────────────────────────────────────
	eg.Go(func() error {
		defer close(clips)
		for _, u := range utterances {
			if err := egCtx.Err(); err != nil {
				return err
			}
			clip, err := r.synth.Synthesize(egCtx, speech.Request{Text: u.text, Voice: u.voice})
			if err != nil {
				return fmt.Errorf("playback: synthesize utterance %d (%s): %w", u.index+1, u.speaker, err)
			}
			select {
			case clips <- clipItem{utterance: u, clip: clip}:
			case <-egCtx.Done():
				return egCtx.Err()
			}
		}
		return nil
	})

	// ── stage 2: write and play ─────────────────────────────────────────────
	total := len(utterances)
	eg.Go(func() error {
		for item := range clips {
			if r.cfg.OnUtterance != nil {
				r.cfg.OnUtterance(item.index, total, item.speaker, item.voice, item.text)
			}
			path := filepath.Join(r.cfg.OutputDir, clipFileName(item.index, item.speaker, item.clip.Format))
			if err := os.WriteFile(path, item.clip.Audio, 0o644); err != nil {
				return fmt.Errorf("playback: write clip %s: %w", path, err)
			}
			slog.Debug("clip written",
				"path", path,
				"speaker", item.speaker,
				"voice", item.voice,
				"bytes", len(item.clip.Audio))
			if r.cfg.Player != "" {
				if err := r.play(egCtx, path); err != nil {
					return err
				}
			}
		}
		return nil
	})

	return eg.Wait()
}

// play runs the configured player command with the clip path appended.
func (r *Runner) play(ctx context.Context, path string) error {
	executable, args := splitCommand(r.cfg.Player)
	if executable == "" {
		return fmt.Errorf("playback: player command %q is empty", r.cfg.Player)
	}
	cmd := exec.CommandContext(ctx, executable, append(args, path)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("playback: player %q on %s: %w (output: %s)",
			executable, path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// clipFileName builds "NNN-<speaker>.<ext>" with the speaker reduced to
// filename-safe runes.
func clipFileName(index int, speaker, format string) string {
	return fmt.Sprintf("%03d-%s.%s", index+1, sanitizeName(speaker), format)
}

// sanitizeName maps a speaker name onto filename-safe runes.
func sanitizeName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '-'
	}, strings.TrimSpace(name))
	mapped = strings.Trim(mapped, "-")
	if mapped == "" {
		return "speaker"
	}
	return mapped
}

// splitCommand splits a player command string into executable and arguments.
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
