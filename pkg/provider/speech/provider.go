// Package speech defines the Synthesizer interface for text-to-speech
// backends used to perform finished transcripts aloud.
//
// A synthesizer wraps a speech service (e.g., OpenAI's audio endpoint or
// ElevenLabs) and turns one utterance into one audio clip. Playback of a
// transcript is a sequence of whole-utterance synthesis calls, not a live
// stream; the interface therefore stays request/response.
//
// Implementations must be safe for concurrent use: the playback runner
// synthesizes the next utterance while the current clip is playing.
package speech

import "context"

// Request is the input of one synthesis call.
type Request struct {
	// Text is the utterance to speak.
	Text string

	// Voice is the provider-specific voice identifier (e.g., "nova").
	// Implementations should return an error for voices they do not offer.
	Voice string
}

// Clip is a fully synthesised utterance.
type Clip struct {
	// Audio is the encoded audio data.
	Audio []byte

	// Format is the audio container format, as a lowercase file extension
	// without the dot (e.g., "mp3", "wav").
	Format string
}

// Synthesizer is the abstraction over any text-to-speech backend.
type Synthesizer interface {
	// Synthesize renders req.Text in req.Voice and returns the complete clip.
	// Returns a non-nil *Clip on success.
	Synthesize(ctx context.Context, req Request) (*Clip, error)

	// Voices returns the voice identifiers this provider offers, in a stable
	// order. The playback voice rotation assigns these to speakers that have
	// no configured voice.
	Voices(ctx context.Context) ([]string, error)
}
