package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/duolog/pkg/provider/chat"
)

// ErrAllBackendsFailed is returned by [Chain.Respond] when every backend in
// the chain fails or has an open breaker.
var ErrAllBackendsFailed = errors.New("all chat backends failed")

// ChainEntry names one backend of a [Chain].
type ChainEntry struct {
	// Name identifies the backend in logs (e.g., "openai", "anthropic").
	Name string

	// Backend produces replies. Required.
	Backend chat.Backend
}

// chainEntry pairs a configured backend with its dedicated breaker.
type chainEntry struct {
	name    string
	backend chat.Backend
	breaker *Breaker
}

// Chain is a failover sequence of chat backends behind a single
// [chat.Backend] face. The first entry is the participant's primary vendor;
// the rest are fallbacks tried in order. Each entry has its own [Breaker], so
// a vendor that keeps failing is skipped outright until its reset timeout
// elapses.
//
// A Chain never absorbs failures itself. When every entry fails the joined
// error propagates to the turn loop, which records it in the transcript; a
// mid-chain success is indistinguishable from a primary success to the
// caller.
type Chain struct {
	entries []chainEntry
}

// Ensure Chain satisfies the chat.Backend interface at compile time.
var _ chat.Backend = (*Chain)(nil)

// NewChain builds a failover chain over entries, in order. At least one entry
// with a non-nil backend is required.
func NewChain(cfg BreakerConfig, entries ...ChainEntry) (*Chain, error) {
	if len(entries) == 0 {
		return nil, errors.New("resilience: chain needs at least one backend")
	}
	c := &Chain{entries: make([]chainEntry, 0, len(entries))}
	for _, e := range entries {
		if e.Backend == nil {
			return nil, fmt.Errorf("resilience: chain entry %q has no backend", e.Name)
		}
		bc := cfg
		bc.Name = e.Name
		c.entries = append(c.entries, chainEntry{
			name:    e.Name,
			backend: e.Backend,
			breaker: NewBreaker(bc),
		})
	}
	return c, nil
}

// Names returns the backend names in failover order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

// Respond tries each backend in order until one returns a reply. Entries
// whose breaker is open are skipped without a call. Once ctx is cancelled no
// further entries are tried.
//
// Returns [ErrAllBackendsFailed] wrapped with the last error when the whole
// chain is exhausted.
func (c *Chain) Respond(ctx context.Context, req chat.Request) (string, error) {
	var lastErr error
	for i := range c.entries {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		e := &c.entries[i]
		var text string
		err := e.breaker.Execute(func() error {
			var callErr error
			text, callErr = e.backend.Respond(ctx, req)
			return callErr
		})
		if err == nil {
			if i > 0 {
				slog.Info("fallback backend answered", "backend", e.name)
			}
			return text, nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping backend, breaker open", "backend", e.name)
		} else {
			slog.Warn("backend failed, trying next", "backend", e.name, "error", err)
		}
	}
	return "", fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}
