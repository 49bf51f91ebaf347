// Package mock provides a test double for the chat.Backend interface.
//
// Use Backend in unit tests to verify the exact Requests the dialogue loop
// builds (system prompt, projected history, generation parameters) and to feed
// controlled replies without a live vendor API. All fields are safe to set
// before calling any method; mutating them during a concurrent call is the
// caller's responsibility.
//
// Example:
//
//	b := &mock.Backend{
//	    Script: []mock.Reply{{Text: "Hello!"}, {Err: errors.New("rate limited")}},
//	}
//	text, err := b.Respond(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/duolog/pkg/provider/chat"
)

// Reply is one scripted outcome of a Respond call.
type Reply struct {
	// Text is the reply returned when Err is nil.
	Text string
	// Err, if non-nil, is returned instead of a reply.
	Err error
}

// RespondCall records a single invocation of Respond.
type RespondCall struct {
	// Ctx is the context passed to Respond.
	Ctx context.Context
	// Req is the Request passed to Respond.
	Req chat.Request
}

// Backend is a mock implementation of chat.Backend.
// Zero values cause Respond to return "" and a nil error.
type Backend struct {
	mu   sync.Mutex
	next int

	// --- Configurable responses ---

	// Script is consumed one entry per Respond call, in order. Once the
	// script is exhausted (or was never set), Response and Err apply to
	// every further call.
	Script []Reply

	// Response is returned by Respond when no scripted reply remains.
	Response string

	// Err, if non-nil, is returned by Respond when no scripted reply remains.
	Err error

	// --- Call records (read after test) ---

	// RespondCalls records every invocation of Respond in order.
	RespondCalls []RespondCall
}

// Respond records the call and returns the next scripted reply, falling back
// to Response, Err once the script is exhausted.
func (b *Backend) Respond(ctx context.Context, req chat.Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.RespondCalls = append(b.RespondCalls, RespondCall{Ctx: ctx, Req: req})
	if b.next < len(b.Script) {
		r := b.Script[b.next]
		b.next++
		return r.Text, r.Err
	}
	return b.Response, b.Err
}

// Reset clears all recorded calls and rewinds the script. Thread-safe.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.RespondCalls = nil
	b.next = 0
}

// Ensure Backend implements chat.Backend at compile time.
var _ chat.Backend = (*Backend)(nil)
