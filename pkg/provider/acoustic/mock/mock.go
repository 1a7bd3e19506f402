// Package mock provides a deterministic acoustic.Provider test double.
package mock

import (
	"context"
	"sync"

	"github.com/speechlab/pronounce/pkg/provider/acoustic"
)

// PredictCall records a single invocation of Provider.Predict.
type PredictCall struct {
	Samples []float32
}

// Provider is a scripted acoustic.Provider: each call to Predict pops the
// next entry off Logits (once Logits is exhausted it repeats the last entry
// if Repeat is true), so tests can control exactly what the CTC decoder
// sees without a live model.
type Provider struct {
	mu sync.Mutex

	// Logits is the queue of responses returned in order.
	Logits []acoustic.Logits

	// Repeat, if true, keeps returning the last entry of Logits once
	// exhausted instead of returning empty Logits (with a nil error).
	Repeat bool

	// PredictErr, if non-nil, is returned as the error from every Predict call.
	PredictErr error

	// PredictCalls records every call to Predict.
	PredictCalls []PredictCall

	next int
}

// Predict records the call and returns the next scripted response.
func (p *Provider) Predict(ctx context.Context, samples []float32) (acoustic.Logits, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := make([]float32, len(samples))
	copy(cp, samples)
	p.PredictCalls = append(p.PredictCalls, PredictCall{Samples: cp})

	if p.PredictErr != nil {
		return acoustic.Logits{}, p.PredictErr
	}
	if len(p.Logits) == 0 {
		return acoustic.Logits{}, nil
	}
	idx := p.next
	if idx >= len(p.Logits) {
		if p.Repeat {
			idx = len(p.Logits) - 1
		} else {
			return acoustic.Logits{}, nil
		}
	} else {
		p.next++
	}
	return p.Logits[idx], nil
}

// Reset clears all recorded calls and rewinds the response queue.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PredictCalls = nil
	p.next = 0
}

// Ensure Provider implements acoustic.Provider at compile time.
var _ acoustic.Provider = (*Provider)(nil)
