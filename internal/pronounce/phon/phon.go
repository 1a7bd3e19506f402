// Package phon provides the small set of phoneme-token utilities shared by
// every stage of the scoring pipeline: Unicode normalization, length/stress
// marker stripping, and the vowel predicate used by the artifact filter and
// the rhotic-merge logic.
package phon

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// lengthStressMarkers are the IPA diacritics that the core strips for
// comparison purposes: length (ː) and primary/secondary stress (ˈ ˌ).
const lengthStressMarkers = "ːˈˌ"

// vowelFirstChars is the fixed "is vowel" predicate set from the artifact
// filter: a phoneme is a vowel if its first rune is one of these.
var vowelFirstChars = map[rune]struct{}{
	'a': {}, 'e': {}, 'i': {}, 'o': {}, 'u': {},
	'ɪ': {}, 'ʊ': {}, 'ɛ': {}, 'ɔ': {}, 'æ': {}, 'ʌ': {},
	'ə': {}, 'ɑ': {}, 'ɒ': {}, 'ɜ': {}, 'ɝ': {}, 'ɚ': {}, 'ᵻ': {}, 'ɐ': {},
}

// Normalize applies Unicode NFC normalization to a phoneme token. This is the
// first, most literal, layer of the similarity oracle: two tokens that
// normalize to the same string are exactly equal regardless of how their
// diacritics were composed.
func Normalize(token string) string {
	return norm.NFC.String(token)
}

// Strip removes length and stress markers from a normalized phoneme token,
// leaving the bare segmental content (e.g. "ɔːɹˈ" -> "ɔɹ").
func Strip(token string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(lengthStressMarkers, r) {
			return -1
		}
		return r
	}, token)
}

// NormalizeStrip composes Normalize and Strip, the pairing used throughout
// the similarity oracle's "stripped" comparison layers.
func NormalizeStrip(token string) string {
	return Strip(Normalize(token))
}

// IsVowel reports whether token's first rune belongs to the fixed vowel set.
// An empty token is never a vowel.
func IsVowel(token string) bool {
	for _, r := range token {
		_, ok := vowelFirstChars[r]
		return ok
	}
	return false
}

// IsRhoticApproximant reports whether token is a bare r-sound, i.e. the
// consonant ɹ or its common ASCII-substitute spelling r.
func IsRhoticApproximant(token string) bool {
	switch NormalizeStrip(token) {
	case "ɹ", "r":
		return true
	default:
		return false
	}
}

// HasTrailingRhotic reports whether token ends in ɹ or r after stripping
// length/stress markers, and returns the base form with the trailing rhotic
// removed.
func HasTrailingRhotic(token string) (base string, ok bool) {
	s := NormalizeStrip(token)
	for _, suffix := range []string{"ɹ", "r"} {
		if strings.HasSuffix(s, suffix) && s != suffix {
			return strings.TrimSuffix(s, suffix), true
		}
	}
	return s, false
}

// IsUnicodeLetter reports whether r is a letter, used by the reference
// generator's punctuation-stripping pass (strip everything except letters,
// digits, apostrophes, and hyphens).
func IsUnicodeLetter(r rune) bool {
	return unicode.IsLetter(r)
}
