// Package similarity implements the layered phonetic similarity oracle:
// a pure decision procedure, applied in a fixed order, that decides whether
// two phoneme tokens should be treated as acceptable variants of each other
// in a given context.
//
// The oracle is consulted twice per mismatch: once during alignment (always
// in lenient, word-context-free mode, so the alignment stays stable across
// words — see the align package) and once during scoring, in the mode and
// word context that actually apply, to classify the variant for credit
// assignment.
package similarity

import (
	"github.com/speechlab/pronounce/internal/pronounce/phon"
	"github.com/speechlab/pronounce/internal/pronounce/rules"
)

// Kind classifies which layer of the oracle matched, used by the scorer to
// pick a credit band. Exact and Stripped are returned for tokens that differ
// only in Unicode composition or in length/stress markers; the scorer's
// Replace-credit logic credits them in its general "other similar" band.
type Kind int

const (
	// NoMatch indicates no layer matched; the pair is a genuine mispronunciation.
	NoMatch Kind = iota
	Exact
	Stripped
	FunctionWord
	SplitRhotic
	Rhotic
	CoreDialect
	UnstressedReduction
	WordFinalVoicing
	MidWordVoicing
	GeneralEquivalent
	StrippedRhoticBase
)

// Oracle implements the §4.B similar() decision procedure. It is stateless
// and holds no configuration of its own — all tunables live in the rules
// package's tables — so a single zero-value Oracle may be shared freely.
type Oracle struct{}

// New constructs an Oracle. There is currently nothing to configure; the
// constructor exists so callers have a stable injection point and so the
// type can grow options later without breaking call sites.
func New() *Oracle {
	return &Oracle{}
}

// Similar runs the full layered decision procedure and reports whether
// actual is an acceptable realization of target. word and isWordFinal may be
// zero-valued when alignment-time, context-free similarity is wanted
// (§4.F: "called in non-strict, no-word-context mode for the cost
// function").
func (o *Oracle) Similar(target, actual, word string, strict, isWordFinal bool) bool {
	return o.Classify(target, actual, word, strict, isWordFinal) != NoMatch
}

// Classify runs the same layered procedure as Similar but returns which
// layer matched, so the scorer can pick the right credit band. Layers are
// evaluated in §4.B order, except that layer 6 (unstressed reduction) runs
// after layer 7 and only in lenient mode; the first match wins.
func (o *Oracle) Classify(target, actual, word string, strict, isWordFinal bool) Kind {
	// 1. Exact equality after Unicode NFC normalization.
	normT, normA := phon.Normalize(target), phon.Normalize(actual)
	if normT == normA {
		return Exact
	}

	// 2. Equality after stripping length/stress markers.
	stripT, stripA := phon.Strip(normT), phon.Strip(normA)
	if stripT == stripA {
		return Stripped
	}

	// 3. Word-specific variant.
	if word != "" && rules.FnWordVariant(word, target, actual) {
		return FunctionWord
	}

	// 4. Rhotic-vowel variant.
	if rules.RhoticVariant(target, actual) || rules.RhoticVariant(stripT, stripA) {
		return Rhotic
	}

	// 5. Core dialect equivalence (direct and stripped, both directions).
	if rules.CoreEquivalent(target, actual) || rules.CoreEquivalent(stripT, stripA) {
		return CoreDialect
	}

	// 7. Word-final voicing variant, only if is_word_final.
	if isWordFinal && rules.WordFinalVoicingVariant(stripT, stripA) {
		return WordFinalVoicing
	}

	if strict {
		return NoMatch
	}

	// Lenient-only layers (function words, or explicit lenient calls).

	// 6. Unstressed vowel reduction (direct and stripped). Gated to lenient
	// mode: the reduction table encodes connected-speech reductions of
	// function words, not acceptable vowel substitutions in stressed content
	// syllables (e.g. "food" /fuːd/ said as /fʊd/ is a genuine
	// mispronunciation, not a reduction, even though ʊ/uː appears in the
	// table for cases like reduced "to").
	if rules.ReductionVariant(target, actual) || rules.ReductionVariant(stripT, stripA) {
		return UnstressedReduction
	}

	// 8. General dialect equivalents.
	if rules.GeneralEquivalent(stripT, stripA) {
		return GeneralEquivalent
	}

	// 9. Base forms with trailing ɹ/r stripped.
	baseT, okT := trimTrailingRhotic(stripT)
	baseA, okA := trimTrailingRhotic(stripA)
	if okT || okA {
		if baseT == baseA {
			return StrippedRhoticBase
		}
	}

	return NoMatch
}

// ClassifyMidWordVoicing additionally checks the scorer's mid-word voicing
// credit band (§4.G Replace credit bands), which applies the same pair
// table as word-final voicing but at a lower credit irrespective of
// is_word_final. It is only meaningful once Classify has already returned
// NoMatch, since word-final voicing takes priority when applicable.
func (o *Oracle) ClassifyMidWordVoicing(target, actual string) bool {
	stripT, stripA := phon.Strip(phon.Normalize(target)), phon.Strip(phon.Normalize(actual))
	return rules.MidWordVoicingVariant(stripT, stripA)
}

func trimTrailingRhotic(s string) (string, bool) {
	for _, suffix := range []string{"ɹ", "r"} {
		if len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix {
			return s[:len(s)-len(suffix)], true
		}
	}
	return s, false
}
