// Package filter implements the duplicate/artifact filter (§4.E): it removes
// model-artifact consecutive duplicate phoneme predictions and merges split
// rhotic vowels, walking the decoded sequence left to right.
//
// The heuristics below are ordered if/else chains by design (§9: "The source
// implements these as ordered if/else chains; preserve exactly that
// ordering" — conflicting heuristics, such as a legitimate cross-word
// geminate versus a word-start artifact, are resolved by evaluation order,
// not by a more principled rule).
package filter

import (
	"github.com/speechlab/pronounce/internal/pronounce"
	"github.com/speechlab/pronounce/internal/pronounce/phon"
)

// nearStartThreshold is the "filtered prefix ≤ 2" tunable from §9: a
// duplicate this close to the start of the already-filtered output is
// treated as a model artifact rather than a legitimate geminate.
const nearStartThreshold = 2

// Filter removes consecutive-duplicate artifacts and merges split rhotic
// vowel pairs in preds, returning the filtered sequence.
func Filter(preds []pronounce.PhonemePrediction) []pronounce.PhonemePrediction {
	var out []pronounce.PhonemePrediction

	for i := 0; i < len(preds); i++ {
		cur := preds[i]

		// Split-rhotic merge: current is a vowel and the next prediction is a
		// bare rhotic approximant -> keep current, skip next (they are matched
		// together against a rhotic target downstream).
		if phon.IsVowel(cur.Phoneme) && i+1 < len(preds) && phon.IsRhoticApproximant(preds[i+1].Phoneme) {
			out = append(out, cur)
			i++
			continue
		}

		if len(out) == 0 || out[len(out)-1].Phoneme != cur.Phoneme {
			out = append(out, cur)
			continue
		}

		// cur is a duplicate of the last emitted phoneme.

		if phon.IsVowel(cur.Phoneme) {
			// Duplicate vowel -> always drop (English does not repeat vowels).
			continue
		}

		prevPrevVowel := len(out) >= 2 && phon.IsVowel(out[len(out)-2].Phoneme)
		nextIsVowel := i+1 < len(preds) && phon.IsVowel(preds[i+1].Phoneme)
		isLast := i == len(preds)-1

		if prevPrevVowel && nextIsVowel {
			// V C C V pattern (cross-word gemination) -> keep.
			out = append(out, cur)
			continue
		}
		if prevPrevVowel && !nextIsVowel {
			// V C C with no following vowel -> drop second C.
			continue
		}
		if len(out) <= nearStartThreshold {
			// Near word start -> drop.
			continue
		}
		if isLast && !nextIsVowel {
			// Trailing consonant at end with no following vowel -> drop.
			continue
		}
		// Otherwise -> drop (default).
	}

	return out
}
