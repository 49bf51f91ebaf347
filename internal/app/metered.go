package app

import (
	"context"
	"time"

	"github.com/MrWong99/duolog/internal/observe"
	"github.com/MrWong99/duolog/pkg/provider/speech"
)

// meteredSynthesizer wraps a synthesizer and records a duration sample and
// clip counter for every synthesis call. Chat backends need no such wrapper;
// the session records backend call metrics itself.
type meteredSynthesizer struct {
	next    speech.Synthesizer
	metrics *observe.Metrics
}

var _ speech.Synthesizer = (*meteredSynthesizer)(nil)

func (m *meteredSynthesizer) Synthesize(ctx context.Context, req speech.Request) (*speech.Clip, error) {
	start := time.Now()
	clip, err := m.next.Synthesize(ctx, req)
	m.metrics.RecordSynthesis(ctx, req.Voice, time.Since(start), err)
	return clip, err
}

func (m *meteredSynthesizer) Voices(ctx context.Context) ([]string, error) {
	return m.next.Voices(ctx)
}
