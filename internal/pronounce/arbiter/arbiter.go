// Package arbiter implements the dialect arbiter (§4.H): it scores the same
// decoded phoneme sequence against every reference dialect in parallel and
// merges the results, taking the per-word maximum (US wins ties).
package arbiter

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/speechlab/pronounce/internal/pronounce"
	"github.com/speechlab/pronounce/internal/pronounce/align"
	"github.com/speechlab/pronounce/internal/pronounce/score"
	"github.com/speechlab/pronounce/internal/pronounce/similarity"
)

// dialectResult is one dialect's independent scoring pass.
type dialectResult struct {
	dialect pronounce.Dialect
	words   []pronounce.WordScore
	total   float64
}

// Arbitrate runs §4.F+§4.G independently for every dialect in
// references (keyed as produced by the reference generator), then merges the
// per-word results by taking the maximum score at each word position. When
// the dialects disagree on word count (§7 ReferenceMismatch), per-word
// merging is impossible; the arbiter instead falls back to the single dialect
// with the highest whole-sentence mean.
func Arbitrate(ctx context.Context, oracle *similarity.Oracle, references map[pronounce.Dialect][]pronounce.PhonemeGroup, actual []pronounce.PhonemePrediction) (pronounce.PronunciationEvalResult, error) {
	actualPhonemes := make([]string, len(actual))
	for i, p := range actual {
		actualPhonemes[i] = p.Phoneme
	}

	eg, _ := errgroup.WithContext(ctx)
	results := make([]dialectResult, len(pronounce.AllDialects))

	for i, dialect := range pronounce.AllDialects {
		i, dialect := i, dialect
		words, ok := references[dialect]
		if !ok {
			continue
		}
		eg.Go(func() error {
			targetPhonemes := flatten(words)
			ops := align.Align(oracle, targetPhonemes, actualPhonemes)
			wordScores := score.Score(oracle, words, actual, ops)
			results[i] = dialectResult{dialect: dialect, words: wordScores, total: mean(wordScores)}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return pronounce.PronunciationEvalResult{}, fmt.Errorf("arbiter: %w", err)
	}

	present := results[:0]
	for _, r := range results {
		if r.words != nil || r.dialect != "" {
			present = append(present, r)
		}
	}
	if len(present) == 0 {
		return pronounce.PronunciationEvalResult{}, nil
	}

	if !sameWordCount(present) {
		best := present[0]
		for _, r := range present[1:] {
			if r.total > best.total {
				best = r
			}
		}
		return pronounce.PronunciationEvalResult{TotalScore: best.total, Words: best.words}, nil
	}

	merged := mergeMax(present)
	return pronounce.PronunciationEvalResult{TotalScore: mean(merged), Words: merged}, nil
}

// flatten concatenates every word's phonemes into a single target sequence.
func flatten(words []pronounce.PhonemeGroup) []string {
	var out []string
	for _, w := range words {
		out = append(out, w.Phonemes...)
	}
	return out
}

// sameWordCount reports whether every dialect result has the same number of
// per-word scores.
func sameWordCount(results []dialectResult) bool {
	if len(results) == 0 {
		return true
	}
	n := len(results[0].words)
	for _, r := range results[1:] {
		if len(r.words) != n {
			return false
		}
	}
	return true
}

// mergeMax takes, for each word position, the WordScore with the highest
// score across dialects. results is iterated in pronounce.AllDialects order
// (US first), so equal scores keep the earliest dialect's record, giving US
// the tie-break per §4.H.
func mergeMax(results []dialectResult) []pronounce.WordScore {
	n := len(results[0].words)
	merged := make([]pronounce.WordScore, n)
	for i := 0; i < n; i++ {
		best := results[0].words[i]
		for _, r := range results[1:] {
			if r.words[i].Score > best.Score {
				best = r.words[i]
			}
		}
		merged[i] = best
	}
	return merged
}

// mean returns the arithmetic mean of every WordScore's Score, or 0 for an
// empty slice.
func mean(words []pronounce.WordScore) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Score
	}
	return sum / float64(len(words))
}
