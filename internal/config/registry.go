package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/speechlab/pronounce/pkg/provider/acoustic"
	"github.com/speechlab/pronounce/pkg/provider/g2p"
	"github.com/speechlab/pronounce/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each of
// the three external collaborators: the acoustic model, the G2P reference
// synthesizer, and the optional LLM feedback narrator. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	acoustic map[string]func(ProviderEntry) (acoustic.Provider, error)
	g2p      map[string]func(ProviderEntry) (g2p.Provider, error)
	narrator map[string]func(ProviderEntry) (llm.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		acoustic: make(map[string]func(ProviderEntry) (acoustic.Provider, error)),
		g2p:      make(map[string]func(ProviderEntry) (g2p.Provider, error)),
		narrator: make(map[string]func(ProviderEntry) (llm.Provider, error)),
	}
}

// RegisterAcoustic registers an acoustic model provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterAcoustic(name string, factory func(ProviderEntry) (acoustic.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acoustic[name] = factory
}

// RegisterG2P registers a G2P provider factory under name.
func (r *Registry) RegisterG2P(name string, factory func(ProviderEntry) (g2p.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.g2p[name] = factory
}

// RegisterNarrator registers an LLM feedback-narrator provider factory under name.
func (r *Registry) RegisterNarrator(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.narrator[name] = factory
}

// CreateAcoustic instantiates an acoustic model provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateAcoustic(entry ProviderEntry) (acoustic.Provider, error) {
	r.mu.RLock()
	factory, ok := r.acoustic[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: acoustic/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateG2P instantiates a G2P provider using the factory registered under entry.Name.
func (r *Registry) CreateG2P(entry ProviderEntry) (g2p.Provider, error) {
	r.mu.RLock()
	factory, ok := r.g2p[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: g2p/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateNarrator instantiates an LLM provider for feedback narration using
// the factory registered under entry.Name. A zero-value entry.Name means
// narration is disabled; callers should check that before calling this.
func (r *Registry) CreateNarrator(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.narrator[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: narrator/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
