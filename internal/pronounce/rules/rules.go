// Package rules holds the five static phonetic-rule tables the scoring
// engine is built on: core dialect equivalences, rhotic vowel pairs,
// unstressed vowel reductions, word-final voicing pairs, and per-function-
// word reductions. All tables are read-only package-level data, built once
// at init and never mutated afterward — they are process-wide singletons,
// exactly like the vocabulary and rule-table handles they sit alongside.
//
// Pair lookups are symmetric by construction: the pair tables are consulted
// in both directions, since the reference and the actual tokens can appear
// on either side of a dialect or reduction pair. The function-word table is
// the exception: it maps a target phoneme to its accepted realizations and
// is consulted from target to actual only.
package rules

import "strings"

// unimportantPhonemes are the reduced/epenthetic segments whose deletion is
// not counted against a word's mispronunciation total.
var unimportantPhonemes = map[string]struct{}{
	"ə": {}, "ɚ": {}, "ᵻ": {}, "ʔ": {},
}

// IsUnimportant reports whether a deleted target phoneme should be excluded
// from the mispronunciation counters.
func IsUnimportant(phoneme string) bool {
	_, ok := unimportantPhonemes[phoneme]
	return ok
}

// setTable is a symmetric Map<Phoneme, Set<Phoneme>> with both-direction
// lookup, the shape used by core equivalences, reductions, and voicing
// pairs (§4.A.1, 4.A.3, 4.A.4).
type setTable map[string]map[string]struct{}

func newSetTable(pairs [][2]string) setTable {
	t := make(setTable)
	for _, p := range pairs {
		t.add(p[0], p[1])
	}
	return t
}

func (t setTable) add(a, b string) {
	if t[a] == nil {
		t[a] = make(map[string]struct{})
	}
	t[a][b] = struct{}{}
}

// addGroup registers every unordered pair within members as equivalent,
// used for tables specified as clusters rather than pairs.
func (t setTable) addGroup(members ...string) {
	for i, a := range members {
		for j, b := range members {
			if i != j {
				t.add(a, b)
			}
		}
	}
}

// contains reports whether b is registered as a equivalent to a, in either
// direction (the lookup tries both directions per §4.A.1: "symmetry is not
// assumed; the lookup tries both directions").
func (t setTable) contains(a, b string) bool {
	if set, ok := t[a]; ok {
		if _, ok := set[b]; ok {
			return true
		}
	}
	if set, ok := t[b]; ok {
		if _, ok := set[a]; ok {
			return true
		}
	}
	return false
}

// core is the UK<->US phoneme-category identity table (§4.A.1): true dialect
// equivalences, not mere "similar sounding" pairs.
var core = newSetTable([][2]string{
	{"əʊ", "oʊ"},      // GOAT
	{"ɒ", "ɑː"},       // LOT (British rounded open back vs American unrounded)
	{"ɒ", "ɑ"},
	{"æ", "a"},        // TRAP, broad transcription variant
	{"e", "ɛ"},        // DRESS, notation variant
	{"ɪ", "i"},        // KIT, lax/tense notation variant in unstressed position
	{"ʌ", "ɐ"},        // STRUT, some phonetic transcriptions
	{"ɜː", "ɝ"},       // NURSE: non-rhotic length vs rhotic r-colored notation
	{"ə", "ɚ"},        // schwa vs rhotic schwa notation
	{"ɾ", "t"},        // American flap vs underlying /t/
	{"ɾ", "d"},        // American flap vs underlying /d/
	{"t", "tʰ"},       // aspirated vs plain stop notation
	{"d", "d̥"},
	{"l", "ɫ"},        // clear vs dark L notation
	{"r", "ɹ"},        // orthographic vs IPA approximant notation
	{"ɔː", "ɔ"},       // THOUGHT length-marking variant
	{"iː", "i"},       // FLEECE length-marking variant
	{"uː", "u"},       // GOOSE length-marking variant
	{"ɑː", "ɑ"},       // PALM length-marking variant
	{"eɪ", "eː"},      // FACE, monophthongal Scottish/Northern variant
	{"aɪ", "ʌɪ"},      // PRICE, Scottish Vowel Length Rule variant
	{"aʊ", "ʌʊ"},      // MOUTH, Scottish variant
	{"ŋg", "ŋ"},       // -ing with/without audible g-release
	{"hw", "w"},       // wh-/w- merger
	{"x", "k"},        // loch-type velar fricative vs stop substitution
})

// rhoticPair is one entry of the rhotic vowel table (§4.A.2): a non-rhotic
// (typically British) vowel and the set of rhotic (typically American)
// realizations it corresponds to.
type rhoticPair struct {
	NonRhotic string
	Rhotic    []string
}

// rhoticTable covers NORTH/FORCE, START, NURSE, NEAR, SQUARE, CURE, and the
// rhotic schwa, per §4.A.2.
var rhoticTable = []rhoticPair{
	{NonRhotic: "ɔː", Rhotic: []string{"ɔːɹ", "ɔɹ", "oːɹ"}},   // NORTH/FORCE
	{NonRhotic: "ɑː", Rhotic: []string{"ɑːɹ", "ɑɹ"}},           // START
	{NonRhotic: "ɜː", Rhotic: []string{"ɜːɹ", "ɝ", "ɝː", "ɚ"}}, // NURSE
	{NonRhotic: "ɪə", Rhotic: []string{"ɪɹ", "iːɹ", "ɪəɹ"}},    // NEAR
	{NonRhotic: "ɛə", Rhotic: []string{"ɛɹ", "eːɹ", "ɛəɹ"}},    // SQUARE
	{NonRhotic: "ʊə", Rhotic: []string{"ʊɹ", "ʊəɹ", "ɔːɹ"}},    // CURE
	{NonRhotic: "ə", Rhotic: []string{"ɚ", "əɹ"}},              // rhotic schwa
}

// RhoticVariant reports whether a and b are related by the rhotic table:
// a direct (non-rhotic, rhotic) pair in either order, the derived rule
// "x and x+ɹ/r are equivalent", both tokens sitting in the same pair's
// rhotic cluster, or (for the centering diphthongs NEAR/SQUARE/CURE) a bare
// vowel nucleus left behind once the duplicate filter's split-rhotic merge
// has dropped the trailing ɹ/r prediction.
func RhoticVariant(a, b string) bool {
	if rhoticDerived(a, b) || rhoticDerived(b, a) {
		return true
	}
	for _, pair := range rhoticTable {
		aIn := a == pair.NonRhotic || containsString(pair.Rhotic, a)
		bIn := b == pair.NonRhotic || containsString(pair.Rhotic, b)
		if nucleus, ok := centeringNucleus(pair); ok {
			aIn = aIn || a == nucleus
			bIn = bIn || b == nucleus
		}
		if aIn && bIn {
			return true
		}
	}
	return false
}

// centeringNucleus returns the bare vowel nucleus of a centering-diphthong
// non-rhotic form (NEAR ɪə, SQUARE ɛə, CURE ʊə — each a vowel quality plus a
// schwa glide), since the split-rhotic filter merge leaves exactly that
// nucleus behind as the actual token.
func centeringNucleus(pair rhoticPair) (string, bool) {
	runes := []rune(pair.NonRhotic)
	if len(runes) == 2 && runes[1] == 'ə' {
		return string(runes[0]), true
	}
	return "", false
}

// rhoticDerived implements "x and x+ɹ/r are equivalent" in one direction:
// base is the bare vowel, withR is base plus a trailing rhotic consonant.
func rhoticDerived(base, withR string) bool {
	for _, suffix := range []string{"ɹ", "r"} {
		if strings.HasSuffix(withR, suffix) && strings.TrimSuffix(withR, suffix) == base && base != "" {
			return true
		}
	}
	return false
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// reductions is the unstressed-vowel-reduction table (§4.A.3): bidirectional
// ə<->ɪ, ɛ->ə/ɪ, ʌ<->ə, ʊ<->u/uː.
var reductions = newSetTable([][2]string{
	{"ə", "ɪ"},
	{"ɛ", "ə"},
	{"ɛ", "ɪ"},
	{"ʌ", "ə"},
	{"ʊ", "u"},
	{"ʊ", "uː"},
})

// ReductionVariant reports whether a and b are related by the unstressed
// vowel reduction table.
func ReductionVariant(a, b string) bool {
	return reductions.contains(a, b)
}

// wfVoicing is the word-final voicing pair table (§4.A.4): sibilant,
// fricative, stop, and affricate voicing pairs.
var wfVoicing = newSetTable([][2]string{
	{"s", "z"},
	{"f", "v"},
	{"θ", "ð"},
	{"ʃ", "ʒ"},
	{"p", "b"},
	{"t", "d"},
	{"k", "g"},
	{"tʃ", "dʒ"},
})

// WordFinalVoicingVariant reports whether a and b form a word-final voicing
// pair. Callers are responsible for checking is_word_final first (§4.B.7).
func WordFinalVoicingVariant(a, b string) bool {
	return wfVoicing.contains(a, b)
}

// MidWordVoicingVariant is the same table, used by the scorer's mid-word
// voicing credit band (§4.G), which grants a lower credit than the word-
// final variant.
func MidWordVoicingVariant(a, b string) bool {
	return wfVoicing.contains(a, b)
}

// CoreEquivalent reports whether a and b are a core dialect equivalence,
// checked directly and after length/stress stripping, both directions — the
// caller (the similarity oracle) is responsible for supplying both the raw
// and stripped forms per §4.B.5.
func CoreEquivalent(a, b string) bool {
	return core.contains(a, b)
}

// generalEquivalents is the broader, lenient-only table of §4.B.8: looser
// cross-variety approximations beyond the core table, consulted only in
// lenient mode (function words, or explicit lenient calls).
var generalEquivalents = newSetTable([][2]string{
	{"æ", "ɛ"},   // TRAP/DRESS overlap in some varieties (e.g. NZ English)
	{"ɒ", "ʌ"},   // unrounded LOT approximations
	{"ʊ", "ə"},   // reduced FOOT
	{"ɪ", "ə"},   // reduced KIT
	{"v", "w"},   // non-native v/w approximation
	{"θ", "f"},   // th-fronting
	{"ð", "v"},   // th-fronting, voiced
	{"ð", "d"},   // th-stopping
	{"θ", "t"},   // th-stopping
	{"ɫ", "w"},   // L-vocalization
	{"n", "ŋ"},   // alveolar/velar nasal approximation in -ing
})

// GeneralEquivalent reports whether a and b are related by the lenient-only
// broader equivalence table.
func GeneralEquivalent(a, b string) bool {
	return generalEquivalents.contains(a, b)
}

// FnWordRule is one word's accepted per-phoneme substitution map: target
// phoneme -> accepted actual realizations.
type FnWordRule map[string][]string

// fnWords is the function-word reduction table (§4.A.5): per-word, per-
// phoneme acceptable substitutions for articles, prepositions, conjunctions,
// auxiliaries, modals, pronouns, and common adverbs. Its key set is also the
// lenient-mode word set — every other word uses strict mode.
//
// Classify calls FnWordVariant one phoneme pair at a time (it runs inside
// the per-phoneme alignment/scoring loop, not over whole-word strings), so
// each entry maps a single target phoneme of that word's dictionary form to
// the realizations accepted as a connected-speech reduction — almost always
// the stressed vowel collapsing to schwa, per the standard English
// function-word weak-form pattern.
var fnWords = map[string]FnWordRule{
	"a":       {"eɪ": {"ə"}},
	"an":      {"æ": {"ə"}},
	"the":     {"iː": {"ə", "i"}},
	"and":     {"æ": {"ə"}},
	"or":      {"ɔː": {"ə"}},
	"but":     {"ʌ": {"ə"}},
	"to":      {"uː": {"ə", "ʊ", "u"}},
	"of":      {"ɒ": {"ə", "ʌ"}},
	"for":     {"ɔː": {"ə"}},
	"from":    {"ʌ": {"ə"}},
	"at":      {"æ": {"ə"}},
	"in":      {"n": {"ŋ"}},
	"on":      {"ɒ": {"ə"}},
	"with":    {"ð": {"θ", "d"}},
	"as":      {"æ": {"ə"}},
	"than":    {"æ": {"ə"}},
	"that":    {"æ": {"ə"}},
	"this":    {"s": {"z"}},
	"is":      {"ɪ": {"ə"}},
	"am":      {"æ": {"ə"}},
	"are":     {"ɑː": {"ə"}},
	"was":     {"ɒ": {"ə"}},
	"were":    {"ɜː": {"ə"}},
	"be":      {"iː": {"i"}},
	"been":    {"iː": {"ɪ"}},
	"do":      {"uː": {"ə", "ʊ"}},
	"does":    {"ʌ": {"ə"}},
	"did":     {"ɪ": {"ə"}},
	"have":    {"æ": {"ə"}},
	"has":     {"æ": {"ə"}},
	"had":     {"æ": {"ə"}},
	"will":    {"ɪ": {"ə"}},
	"would":   {"ʊ": {"ə"}},
	"can":     {"æ": {"ə"}},
	"could":   {"ʊ": {"ə"}},
	"shall":   {"æ": {"ə"}},
	"should":  {"ʊ": {"ə"}},
	"must":    {"ʌ": {"ə"}},
	"i":       {"aɪ": {"ə"}},
	"you":     {"uː": {"ə", "ʊ"}},
	"he":      {"iː": {"i"}},
	"she":     {"iː": {"i"}},
	"it":      {"ɪ": {"ə"}},
	"we":      {"iː": {"i"}},
	"they":    {"eɪ": {"e"}},
	"him":     {"ɪ": {"ə"}},
	"her":     {"ɜː": {"ə"}},
	"them":    {"ɛ": {"ə"}},
	"us":      {"ʌ": {"ə"}},
	"my":      {"aɪ": {"ə"}},
	"your":    {"ɔː": {"ə"}},
	"our":     {"aʊ": {"ɑː", "ə"}},
	"their":   {"ɛ": {"ə"}},
	"some":    {"ʌ": {"ə"}},
	"so":      {"oʊ": {"ə"}},
	"just":    {"ʌ": {"ə"}},
	"not":     {"ɒ": {"ʌ", "ə"}},
}

// FnWordVariant reports whether actual is an accepted realization of target
// for the given orthographic word, per the function-word table. word is
// matched case-insensitively; callers are expected to have already
// lower-cased it (the reference generator's normalization pass does this).
func FnWordVariant(word, target, actual string) bool {
	rule, ok := fnWords[strings.ToLower(word)]
	if !ok {
		return false
	}
	accepted, ok := rule[target]
	if !ok {
		return false
	}
	return containsString(accepted, actual)
}

// IsLenientWord reports whether word belongs to the function-word table and
// therefore uses lenient scoring mode; every other word uses strict mode.
func IsLenientWord(word string) bool {
	_, ok := fnWords[strings.ToLower(word)]
	return ok
}

// FnWordCorrection is one entry of fnWordCorrections, the context-aware
// function-word corrections applied by the reference generator (§4.C step 4): a fixed list of
// unstressed realizations keyed by word, with "the" additionally
// conditioned on whether the next word starts with a vowel.
type FnWordCorrection struct {
	Default      string
	BeforeVowel  string // if non-empty, used when the following word is vowel-initial
}

var fnWordCorrections = map[string]FnWordCorrection{
	"a":    {Default: "ə"},
	"the":  {Default: "ðə", BeforeVowel: "ðiː"},
	"to":   {Default: "tə"},
	"and":  {Default: "ənd"},
	"of":   {Default: "əv"},
	"a's":  {Default: "əz"},
	"an":   {Default: "ən"},
	"for":  {Default: "fɚ"},
	"or":   {Default: "ɚ"},
	"than": {Default: "ðən"},
	"that": {Default: "ðət"},
	"as":   {Default: "əz"},
	"but":  {Default: "bət"},
}

// FnWordCorrectionFor looks up the reference-generator correction for word,
// choosing the before-vowel form when nextStartsWithVowel is true and one is
// defined. ok is false if word has no defined correction.
func FnWordCorrectionFor(word string, nextStartsWithVowel bool) (phoneme string, ok bool) {
	c, exists := fnWordCorrections[strings.ToLower(word)]
	if !exists {
		return "", false
	}
	if nextStartsWithVowel && c.BeforeVowel != "" {
		return c.BeforeVowel, true
	}
	return c.Default, true
}
