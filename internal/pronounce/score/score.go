// Package score implements the scorer (§4.G): it walks the aligner's opcode
// sequence, assigns per-phoneme credit using the similarity oracle and the
// phonetic rule tables, and aggregates per-word scores with insertion and
// mispronunciation penalties.
package score

import (
	"github.com/speechlab/pronounce/internal/pronounce"
	"github.com/speechlab/pronounce/internal/pronounce/align"
	"github.com/speechlab/pronounce/internal/pronounce/phon"
	"github.com/speechlab/pronounce/internal/pronounce/rules"
	"github.com/speechlab/pronounce/internal/pronounce/similarity"
)

// coalescedForms are the actual tokens that can result from a d/t/s/z + j
// coarticulation coalescence ahead of a deleted consonant.
var coalescedForms = map[string]bool{"dʒ": true, "tʃ": true, "ʃ": true, "ʒ": true}

// coalescingDeletes are the target consonants eligible for the
// coarticulation-coalescence Delete credit.
var coalescingDeletes = map[string]bool{"d": true, "t": true, "s": true, "z": true}

// accumulator holds the per-word running state of §4.G.
type accumulator struct {
	sum           float64
	count         int
	insertions    int
	mispronTotal  int
	mispronVowel  int
	aligned       []pronounce.AlignedPhoneme
}

// Score runs the full scorer over one dialect's alignment: words is the
// target's per-word phoneme groups, actual is the filtered decoded
// prediction sequence that produced the actual side of ops, and ops is the
// aligner's opcode sequence over (flattened target, actual-phoneme-strings).
// The oracle is re-consulted per Replace with full word/position/strict
// context, unlike the lenient context-free call the aligner made for cost
// purposes.
func Score(oracle *similarity.Oracle, words []pronounce.PhonemeGroup, actual []pronounce.PhonemePrediction, ops []align.Op) []pronounce.WordScore {
	if len(words) == 0 {
		return nil
	}

	flatTarget := make([]string, 0)
	for _, w := range words {
		flatTarget = append(flatTarget, w.Phonemes...)
	}

	var results []pronounce.WordScore
	acc := &accumulator{}
	wordIdx := 0
	wordStart := 0
	pendingFlush := false

	flush := func() {
		results = append(results, finalize(words[wordIdx].Word, acc))
		acc = &accumulator{}
	}

	advanceIfPending := func(nextTargetIdx int) {
		if !pendingFlush {
			return
		}
		flush()
		wordIdx++
		if wordIdx >= len(words) {
			wordIdx = len(words) - 1
		}
		wordStart = nextTargetIdx
		pendingFlush = false
	}

	// actualCursor tracks how far into actual the walk has progressed, for
	// scoreDelete's nearby-coalescence lookback/lookahead; Delete ops don't
	// advance it themselves.
	actualCursor := 0

	for _, op := range ops {
		switch op.Kind {
		case align.OpMatch, align.OpReplace:
			for t, a := op.TargetStart, op.ActualStart; t < op.TargetEnd; t, a = t+1, a+1 {
				advanceIfPending(t)
				word := words[wordIdx]
				posInWord := t - wordStart
				isWordFinal := posInWord == len(word.Phonemes)-1
				strict := !rules.IsLenientWord(word.Word)

				targetPh := flatTarget[t]
				actualPh := actual[a].Phoneme
				conf := actual[a].Confidence

				if targetPh == actualPh {
					acc.sum += conf
					acc.count++
					acc.aligned = append(acc.aligned, pronounce.AlignedPhoneme{
						Kind: pronounce.Match, Target: targetPh, Actual: actualPh, Score: conf,
					})
				} else {
					scoreReplace(oracle, acc, word.Word, targetPh, actualPh, conf, strict, isWordFinal)
				}

				if posInWord+1 == len(word.Phonemes) {
					pendingFlush = true
				}
			}
			actualCursor = op.ActualEnd

		case align.OpDelete:
			for t := op.TargetStart; t < op.TargetEnd; t++ {
				advanceIfPending(t)
				word := words[wordIdx]
				posInWord := t - wordStart

				scoreDelete(acc, flatTarget, t, actual, actualCursor)

				if posInWord+1 == len(word.Phonemes) {
					pendingFlush = true
				}
			}

		case align.OpInsert:
			for a := op.ActualStart; a < op.ActualEnd; a++ {
				acc.insertions++
				acc.aligned = append(acc.aligned, pronounce.AlignedPhoneme{
					Kind: pronounce.Insert, Actual: actual[a].Phoneme, Score: actual[a].Confidence,
				})
			}
			actualCursor = op.ActualEnd
		}
	}

	// acc always holds the not-yet-flushed current word (the last word's
	// flush never happens inside the loop, since that only triggers when a
	// later target-consuming op begins).
	flush()

	return results
}

// scoreReplace implements the §4.G Replace branch.
func scoreReplace(o *similarity.Oracle, acc *accumulator, word, target, actual string, confidence float64, strict, isWordFinal bool) {
	kind := o.Classify(target, actual, word, strict, isWordFinal)
	if kind == similarity.NoMatch && !isWordFinal && o.ClassifyMidWordVoicing(target, actual) {
		kind = similarity.MidWordVoicing
	}

	maxC, minC, threshold, matched := creditBand(kind, strict)
	if matched && confidence >= threshold {
		credit := clamp(confidence, minC, maxC)
		acc.sum += credit
		acc.count++
		acc.aligned = append(acc.aligned, pronounce.AlignedPhoneme{
			Kind: pronounce.Match, Target: target, Actual: actual, Score: credit, Note: noteFor(kind),
		})
		return
	}

	acc.count++
	acc.mispronTotal++
	if phon.IsVowel(target) {
		acc.mispronVowel++
	}
	acc.aligned = append(acc.aligned, pronounce.AlignedPhoneme{
		Kind: pronounce.Replace, Target: target, Actual: actual, Score: 0,
	})
}

// scoreDelete implements the §4.G Delete branch: coarticulation coalescence,
// then cross-word gemination, then a plain deletion (skipped entirely from
// the accumulators when the phoneme is unimportant).
func scoreDelete(acc *accumulator, flatTarget []string, targetIdx int, actual []pronounce.PhonemePrediction, actualIdx int) {
	deleted := flatTarget[targetIdx]

	var nextTarget string
	if targetIdx+1 < len(flatTarget) {
		nextTarget = flatTarget[targetIdx+1]
	}

	if coalescingDeletes[deleted] && nextTarget == "j" && nearbyCoalesced(actual, actualIdx) {
		acc.sum += 0.60
		acc.count++
		acc.aligned = append(acc.aligned, pronounce.AlignedPhoneme{
			Kind: pronounce.Match, Target: deleted, Score: 0.60, Note: "coarticulation",
		})
		return
	}

	if nextTarget != "" && (deleted == nextTarget || rules.WordFinalVoicingVariant(deleted, nextTarget) || rules.MidWordVoicingVariant(deleted, nextTarget)) {
		acc.sum += 0.70
		acc.count++
		acc.aligned = append(acc.aligned, pronounce.AlignedPhoneme{
			Kind: pronounce.Match, Target: deleted, Score: 0.70, Note: "gemination",
		})
		return
	}

	acc.aligned = append(acc.aligned, pronounce.AlignedPhoneme{Kind: pronounce.Delete, Target: deleted, Score: 0})
	if rules.IsUnimportant(deleted) {
		return
	}
	acc.count++
	acc.mispronTotal++
	if phon.IsVowel(deleted) {
		acc.mispronVowel++
	}
}

// nearbyCoalesced reports whether the actual token just consumed or about to
// be consumed around actualIdx is one of the coalesced consonant forms.
func nearbyCoalesced(actual []pronounce.PhonemePrediction, actualIdx int) bool {
	if actualIdx-1 >= 0 && actualIdx-1 < len(actual) && coalescedForms[actual[actualIdx-1].Phoneme] {
		return true
	}
	if actualIdx >= 0 && actualIdx < len(actual) && coalescedForms[actual[actualIdx].Phoneme] {
		return true
	}
	return false
}

// creditBand returns the credit clamp range and confidence threshold for a
// classified similarity kind, per the §4.G credit-band table. matched is
// false for similarity.NoMatch, signalling a genuine mispronunciation.
func creditBand(kind similarity.Kind, strict bool) (maxC, minC, threshold float64, matched bool) {
	switch kind {
	case similarity.SplitRhotic, similarity.Rhotic, similarity.WordFinalVoicing:
		return 0.85, 0.55, 0.10, true
	case similarity.FunctionWord:
		return 0.85, 0.50, 0.10, true
	case similarity.CoreDialect:
		return 0.90, 0.60, 0.10, true
	case similarity.UnstressedReduction:
		return 0.80, 0.50, 0.10, true
	case similarity.MidWordVoicing:
		return 0.60, 0.35, 0.10, true
	case similarity.Exact, similarity.Stripped, similarity.GeneralEquivalent, similarity.StrippedRhoticBase:
		if strict {
			return 0.50, 0.30, 0.30, true
		}
		return 0.70, 0.40, 0.30, true
	default:
		return 0, 0, 0, false
	}
}

// noteFor annotates a credited Replace-turned-Match with its variant class.
// Purely informational (§7: "must not affect downstream score aggregation").
func noteFor(kind similarity.Kind) string {
	switch kind {
	case similarity.SplitRhotic:
		return "split-rhotic"
	case similarity.Rhotic:
		return "rhotic variant"
	case similarity.FunctionWord:
		return "function-word reduction"
	case similarity.CoreDialect:
		return "core dialect equivalence"
	case similarity.UnstressedReduction:
		return "unstressed reduction"
	case similarity.WordFinalVoicing:
		return "word-final voicing"
	case similarity.MidWordVoicing:
		return "mid-word voicing"
	default:
		return ""
	}
}

// finalize applies the §4.G word-boundary formula to acc and returns the
// completed WordScore for word.
func finalize(word string, acc *accumulator) pronounce.WordScore {
	var raw float64
	if acc.count > 0 {
		raw = acc.sum / float64(acc.count)
	}

	freeInsertions := acc.insertions - 1
	if freeInsertions < 0 {
		freeInsertions = 0
	}
	raw -= float64(freeInsertions) * 0.05

	strict := !rules.IsLenientWord(word)
	if strict {
		raw -= float64(acc.mispronVowel) * 0.25
		raw -= float64(acc.mispronTotal-acc.mispronVowel) * 0.20
	} else {
		raw -= float64(acc.mispronTotal) * 0.15
	}

	if raw < 0 {
		raw = 0
	}
	return pronounce.WordScore{Word: word, Score: raw, Aligned: acc.aligned}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
