// Package engine wires the full pronunciation-scoring pipeline together: the
// G2P reference generator, the CTC decoder, the duplicate/artifact filter,
// and the per-dialect aligner/scorer/arbiter. Evaluator is the single entry
// point callers use.
package engine

import (
	"context"
	"fmt"

	"github.com/speechlab/pronounce/internal/pronounce"
	"github.com/speechlab/pronounce/internal/pronounce/arbiter"
	"github.com/speechlab/pronounce/internal/pronounce/ctc"
	"github.com/speechlab/pronounce/internal/pronounce/filter"
	"github.com/speechlab/pronounce/internal/pronounce/reference"
	"github.com/speechlab/pronounce/internal/pronounce/similarity"
)

// FilterFunc removes decode artifacts before alignment; see the filter
// package for the default implementation.
type FilterFunc func([]pronounce.PhonemePrediction) []pronounce.PhonemePrediction

// Evaluator runs a full target-sentence-against-audio scoring call. It holds
// only read-only, process-lifetime collaborators (a decoder, a reference
// generator, a similarity oracle) and is safe to call concurrently — the
// scorer and aligner it wires together are pure functions of their
// arguments.
type Evaluator struct {
	decoder   *ctc.Decoder
	reference *reference.Generator
	filter    FilterFunc
	oracle    *similarity.Oracle
}

// Option is a functional option for New.
type Option func(*Evaluator)

// WithFilter overrides the default duplicate/artifact filter.
func WithFilter(f FilterFunc) Option {
	return func(e *Evaluator) { e.filter = f }
}

// WithOracle overrides the default similarity oracle. Exposed mainly for
// tests that want to inject a stub.
func WithOracle(o *similarity.Oracle) Option {
	return func(e *Evaluator) { e.oracle = o }
}

// New constructs an Evaluator over the given decoder and reference
// generator, applying sensible defaults for the filter and oracle.
func New(decoder *ctc.Decoder, ref *reference.Generator, opts ...Option) *Evaluator {
	e := &Evaluator{
		decoder:   decoder,
		reference: ref,
		filter:    filter.Filter,
		oracle:    similarity.New(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate runs the full pipeline: generate dialect references for
// targetSentence, decode samples into a phoneme prediction sequence, filter
// decode artifacts, then align/score/arbitrate across dialects.
//
// Error handling follows §7: a G2P or acoustic-model failure is surfaced to
// the caller with no partial result; an empty target sentence or an empty
// decoded phoneme list each produce a defined zero-score result instead of
// an error.
func (e *Evaluator) Evaluate(ctx context.Context, targetSentence string, samples []float32) (pronounce.PronunciationEvalResult, error) {
	references, err := e.reference.Generate(ctx, targetSentence)
	if err != nil {
		return pronounce.PronunciationEvalResult{}, fmt.Errorf("engine: generate reference: %w", err)
	}
	if len(references) == 0 {
		// Empty reference (no words in the target sentence).
		return pronounce.PronunciationEvalResult{TotalScore: 0, Words: nil}, nil
	}
	if totalPhonemeCount(references) == 0 {
		return pronounce.PronunciationEvalResult{}, fmt.Errorf("engine: g2p failure: no dialect produced any phonemes for %q", targetSentence)
	}

	preds, err := e.decoder.Decode(ctx, samples)
	if err != nil {
		return pronounce.PronunciationEvalResult{}, fmt.Errorf("engine: decode audio: %w", err)
	}
	if len(preds) == 0 {
		return emptyAudioResult(references), nil
	}

	filtered := e.filter(preds)

	result, err := arbiter.Arbitrate(ctx, e.oracle, references, filtered)
	if err != nil {
		return pronounce.PronunciationEvalResult{}, fmt.Errorf("engine: arbitrate: %w", err)
	}
	return result, nil
}

// totalPhonemeCount sums the phoneme count across every word of every
// dialect's reference, used to detect a G2P collaborator that produced
// references for every dialect but with no actual phoneme content.
func totalPhonemeCount(references map[pronounce.Dialect][]pronounce.PhonemeGroup) int {
	n := 0
	for _, words := range references {
		for _, w := range words {
			n += len(w.Phonemes)
		}
	}
	return n
}

// emptyAudioResult implements the §7 EmptyAudio fallback: a zero-score
// result with a Delete record, annotated "no audio", for every phoneme of
// every target word. The US dialect's reference is used when present, since
// the per-word structure is identical across dialects in the common case;
// any available dialect otherwise.
func emptyAudioResult(references map[pronounce.Dialect][]pronounce.PhonemeGroup) pronounce.PronunciationEvalResult {
	words, ok := references[pronounce.DialectUS]
	if !ok {
		for _, w := range references {
			words = w
			break
		}
	}

	result := pronounce.PronunciationEvalResult{TotalScore: 0}
	for _, w := range words {
		aligned := make([]pronounce.AlignedPhoneme, len(w.Phonemes))
		for i, ph := range w.Phonemes {
			aligned[i] = pronounce.AlignedPhoneme{Kind: pronounce.Delete, Target: ph, Score: 0, Note: "no audio"}
		}
		result.Words = append(result.Words, pronounce.WordScore{Word: w.Word, Score: 0, Aligned: aligned})
	}
	return result
}
