package resilience

import (
	"context"

	"github.com/speechlab/pronounce/pkg/provider/acoustic"
)

// AcousticFallback wraps an acoustic.Provider with automatic failover across
// named backup instances, backed by a circuit breaker per instance.
type AcousticFallback struct {
	group *FallbackGroup[acoustic.Provider]
}

var _ acoustic.Provider = (*AcousticFallback)(nil)

// NewAcousticFallback creates an AcousticFallback around the given primary
// provider.
func NewAcousticFallback(primary acoustic.Provider, primaryName string, cfg FallbackConfig) *AcousticFallback {
	return &AcousticFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional named provider instance to fail over to
// when earlier instances return an error or have an open breaker.
func (f *AcousticFallback) AddFallback(name string, provider acoustic.Provider) {
	f.group.AddFallback(name, provider)
}

// Predict runs inference against the first healthy instance in the group.
func (f *AcousticFallback) Predict(ctx context.Context, samples []float32) (acoustic.Logits, error) {
	return ExecuteWithResult(f.group, func(p acoustic.Provider) (acoustic.Logits, error) {
		return p.Predict(ctx, samples)
	})
}
