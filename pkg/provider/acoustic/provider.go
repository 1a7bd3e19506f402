// Package acoustic defines the Provider interface for the neural acoustic
// model collaborator (spec §6: "Acoustic model (consumed)"): a pure function
// from a fixed-length, normalized sample window to a per-frame logits
// tensor.
package acoustic

import (
	"context"
	"math"
)

// WindowSamples is the fixed chunk length the acoustic model accepts: 5
// seconds at 16 kHz mono.
const WindowSamples = 80000

// SampleRate is the required input sample rate in Hz.
const SampleRate = 16000

// VarianceEpsilon is added to the variance during normalization to avoid a
// division by zero on silent (all-zero) chunks.
const VarianceEpsilon = 1e-5

// Logits is a [T, V] frame-logits tensor: one row of V vocabulary scores per
// output frame.
type Logits struct {
	// Frames holds T rows of V scores each, row-major.
	Frames [][]float64
	// VocabSize is V, the width of every row.
	VocabSize int
}

// Provider is the abstraction over any acoustic-model backend.
//
// Predict must be a pure function of samples: it receives exactly
// WindowSamples zero-mean, unit-variance normalized float32 samples (the
// caller is responsible for normalization and zero-padding per spec §6) and
// returns the model's per-frame logits. Implementations must be safe for
// concurrent use, since chunk inference may run in parallel (§5).
type Provider interface {
	Predict(ctx context.Context, samples []float32) (Logits, error)
}

// Normalize applies the spec's required zero-mean, unit-variance
// normalization to a window of samples, in place conceptually (it returns a
// new slice). Padding beyond real audio must already be zero before calling
// Normalize; zero-padding after normalization would bias the mean.
func Normalize(samples []float32) []float32 {
	if len(samples) == 0 {
		return samples
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	mean := sum / float64(len(samples))

	var variance float64
	for _, s := range samples {
		d := float64(s) - mean
		variance += d * d
	}
	variance /= float64(len(samples))
	stddev := math.Sqrt(variance + VarianceEpsilon)

	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32((float64(s) - mean) / stddev)
	}
	return out
}
