package resilience

import (
	"context"

	"github.com/speechlab/pronounce/pkg/provider/g2p"
)

// G2PFallback wraps a g2p.Provider with automatic failover across named
// backup instances, backed by a circuit breaker per instance.
type G2PFallback struct {
	group *FallbackGroup[g2p.Provider]
}

var _ g2p.Provider = (*G2PFallback)(nil)

// NewG2PFallback creates a G2PFallback around the given primary provider.
func NewG2PFallback(primary g2p.Provider, primaryName string, cfg FallbackConfig) *G2PFallback {
	return &G2PFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional named provider instance to fail over to
// when earlier instances return an error or have an open breaker.
func (f *G2PFallback) AddFallback(name string, provider g2p.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize generates the reference phoneme sequence using the first
// healthy instance in the group.
func (f *G2PFallback) Synthesize(ctx context.Context, text string, voice g2p.Voice) ([]g2p.Event, error) {
	return ExecuteWithResult(f.group, func(p g2p.Provider) ([]g2p.Event, error) {
		return p.Synthesize(ctx, text, voice)
	})
}
