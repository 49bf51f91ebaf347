// Package mock provides a test double for the speech.Synthesizer interface.
//
// Use Synthesizer in unit tests to verify the exact utterances and voices the
// playback runner requests without a live speech API. All fields are safe to
// set before calling any method; mutating them during a concurrent call is
// the caller's responsibility.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/duolog/pkg/provider/speech"
)

// Result is one scripted outcome of a Synthesize call.
type Result struct {
	// Clip is returned when Err is nil.
	Clip *speech.Clip
	// Err, if non-nil, is returned instead of a clip.
	Err error
}

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Req is the Request passed to Synthesize.
	Req speech.Request
}

// Synthesizer is a mock implementation of speech.Synthesizer.
//
// A zero-value Synthesizer fabricates a deterministic clip per request
// ("audio:<voice>:<text>" as MP3 bytes) and offers no voices.
type Synthesizer struct {
	mu   sync.Mutex
	next int

	// --- Configurable responses ---

	// Script is consumed one entry per Synthesize call, in order. Once the
	// script is exhausted (or was never set), Clip and Err apply to every
	// further call.
	Script []Result

	// Clip is returned by Synthesize when no scripted result remains. If nil
	// and Err is nil, a clip is fabricated from the request.
	Clip *speech.Clip

	// Err, if non-nil, is returned by Synthesize when no scripted result
	// remains.
	Err error

	// VoiceList is returned by Voices.
	VoiceList []string

	// VoicesErr, if non-nil, is returned by Voices instead of VoiceList.
	VoicesErr error

	// --- Call records (read after test) ---

	// SynthesizeCalls records every invocation of Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// VoicesCalls counts the invocations of Voices.
	VoicesCalls int
}

var _ speech.Synthesizer = (*Synthesizer)(nil)

// Synthesize records the call and returns the next scripted result, falling
// back to Clip, Err and finally a fabricated clip.
func (s *Synthesizer) Synthesize(ctx context.Context, req speech.Request) (*speech.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SynthesizeCalls = append(s.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Req: req})
	if s.next < len(s.Script) {
		r := s.Script[s.next]
		s.next++
		return r.Clip, r.Err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Clip != nil {
		return s.Clip, nil
	}
	return &speech.Clip{
		Audio:  []byte("audio:" + req.Voice + ":" + req.Text),
		Format: "mp3",
	}, nil
}

// Voices returns VoiceList or VoicesErr and counts the call.
func (s *Synthesizer) Voices(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.VoicesCalls++
	if s.VoicesErr != nil {
		return nil, s.VoicesErr
	}
	return s.VoiceList, nil
}

// Reset clears all recorded calls and rewinds the script. Thread-safe.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = 0
	s.SynthesizeCalls = nil
	s.VoicesCalls = 0
}
