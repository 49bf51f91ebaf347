package playback

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/duolog/pkg/provider/speech"
)

// DefaultVoiceKey is the reserved voices-map key whose value is used for
// every speaker without an explicit entry. Without it, unmapped speakers
// rotate through the provider's voice list instead.
const DefaultVoiceKey = "_default"

// voiceAssigner resolves which voice speaks for a given transcript speaker.
//
// Resolution order: explicit per-speaker entry, then the "_default" entry,
// then a stable round-robin over the provider's voice list. Round-robin
// assignments stick for the rest of the run, so a speaker keeps one voice
// across all of their turns.
type voiceAssigner struct {
	synth    speech.Synthesizer
	explicit map[string]string
	fallback string

	rotation []string
	fetched  bool
	assigned map[string]string
	next     int
}

func newVoiceAssigner(synth speech.Synthesizer, voices map[string]string) *voiceAssigner {
	va := &voiceAssigner{
		synth:    synth,
		explicit: make(map[string]string, len(voices)),
		assigned: make(map[string]string),
	}
	for speaker, voice := range voices {
		if speaker == DefaultVoiceKey {
			va.fallback = voice
			continue
		}
		va.explicit[speaker] = voice
	}
	return va
}

// voiceFor returns the voice for speaker. The provider's voice list is only
// fetched once a speaker actually needs the rotation.
func (va *voiceAssigner) voiceFor(ctx context.Context, speaker string) (string, error) {
	if v, ok := va.explicit[speaker]; ok {
		return v, nil
	}
	if va.fallback != "" {
		return va.fallback, nil
	}
	if v, ok := va.assigned[speaker]; ok {
		return v, nil
	}

	if !va.fetched {
		voices, err := va.synth.Voices(ctx)
		if err != nil {
			return "", fmt.Errorf("playback: list voices: %w", err)
		}
		va.rotation = voices
		va.fetched = true
	}
	if len(va.rotation) == 0 {
		return "", errors.New("playback: provider offers no voices and no voice is configured")
	}

	v := va.rotation[va.next%len(va.rotation)]
	va.next++
	va.assigned[speaker] = v
	return v, nil
}
