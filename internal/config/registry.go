package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/duolog/pkg/provider/chat"
	"github.com/MrWong99/duolog/pkg/provider/speech"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	chat   map[string]func(ProviderEntry) (chat.Backend, error)
	speech map[string]func(ProviderEntry) (speech.Synthesizer, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		chat:   make(map[string]func(ProviderEntry) (chat.Backend, error)),
		speech: make(map[string]func(ProviderEntry) (speech.Synthesizer, error)),
	}
}

// RegisterChat registers a chat backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterChat(name string, factory func(ProviderEntry) (chat.Backend, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat[name] = factory
}

// RegisterSpeech registers a speech synthesizer factory under name.
func (r *Registry) RegisterSpeech(name string, factory func(ProviderEntry) (speech.Synthesizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speech[name] = factory
}

// CreateChat instantiates a chat backend using the factory registered under
// name, passing it the provider entry from the configuration.
// Returns [ErrProviderNotRegistered] if no factory has been registered.
func (r *Registry) CreateChat(name string, entry ProviderEntry) (chat.Backend, error) {
	r.mu.RLock()
	factory, ok := r.chat[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: chat/%q", ErrProviderNotRegistered, name)
	}
	return factory(entry)
}

// CreateSpeech instantiates a speech synthesizer using the factory registered
// under name.
// Returns [ErrProviderNotRegistered] if no factory has been registered.
func (r *Registry) CreateSpeech(name string, entry ProviderEntry) (speech.Synthesizer, error) {
	r.mu.RLock()
	factory, ok := r.speech[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: speech/%q", ErrProviderNotRegistered, name)
	}
	return factory(entry)
}
