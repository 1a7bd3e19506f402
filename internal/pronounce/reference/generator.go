// Package reference implements the grapheme-to-phoneme reference generator
// (§4.C): given a target sentence, it produces one phoneme list per
// orthographic word, for each of the three arbitration dialects, applying
// context-aware reductions to high-frequency function words.
package reference

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/speechlab/pronounce/internal/pronounce"
	"github.com/speechlab/pronounce/internal/pronounce/phon"
	"github.com/speechlab/pronounce/internal/pronounce/rules"
	"github.com/speechlab/pronounce/pkg/provider/g2p"
)

// dialectVoice maps the core's Dialect type onto the G2P provider's Voice
// type; the two are kept distinct because the provider boundary (§6) names
// its voice parameter independently of the core's dialect vocabulary.
var dialectVoice = map[pronounce.Dialect]g2p.Voice{
	pronounce.DialectUS:      g2p.VoiceUS,
	pronounce.DialectUK:      g2p.VoiceUK,
	pronounce.DialectNeutral: g2p.VoiceNeutral,
}

// Generator produces word-aligned dialect references from a target
// sentence, consuming a g2p.Provider.
type Generator struct {
	synth g2p.Provider
}

// New constructs a Generator over the given G2P provider.
func New(synth g2p.Provider) *Generator {
	return &Generator{synth: synth}
}

// Generate runs the full §4.C pipeline and returns phoneme groups for every
// dialect in pronounce.AllDialects. The outer word count is identical across
// dialects in the common case; per-dialect mismatches are surfaced to the
// caller (the engine), whose dialect arbiter falls back to independent
// scoring per §4.H/§7 ReferenceMismatch.
func (g *Generator) Generate(ctx context.Context, sentence string) (map[pronounce.Dialect][]pronounce.PhonemeGroup, error) {
	words := tokenize(sentence)
	if len(words) == 0 {
		return map[pronounce.Dialect][]pronounce.PhonemeGroup{}, nil
	}

	out := make(map[pronounce.Dialect][]pronounce.PhonemeGroup, len(pronounce.AllDialects))
	for _, dialect := range pronounce.AllDialects {
		voice, ok := dialectVoice[dialect]
		if !ok {
			continue
		}
		groups, err := g.generateDialect(ctx, words, voice)
		if err != nil {
			return nil, fmt.Errorf("reference: generate %s: %w", dialect, err)
		}
		out[dialect] = groups
	}
	return out, nil
}

// generateDialect synthesizes every word of words for one voice, applying
// function-word context corrections before falling back to raw synthesis.
func (g *Generator) generateDialect(ctx context.Context, words []string, voice g2p.Voice) ([]pronounce.PhonemeGroup, error) {
	groups := make([]pronounce.PhonemeGroup, len(words))
	for i, word := range words {
		emphatic := i == 0 || i == len(words)-1
		nextStartsVowel := i+1 < len(words) && startsWithVowelSound(words[i+1])

		var phonemes []string
		if !emphatic {
			if corrected, ok := rules.FnWordCorrectionFor(word, nextStartsVowel); ok {
				phonemes = splitCorrection(corrected)
			}
		}

		if phonemes == nil {
			events, err := g.synth.Synthesize(ctx, word, voice)
			if err != nil {
				return nil, fmt.Errorf("synthesize %q: %w", word, err)
			}
			phonemes = eventsToPhonemes(events)
		}

		groups[i] = pronounce.PhonemeGroup{Word: word, Phonemes: phonemes}
	}
	return groups, nil
}

// eventsToPhonemes drops word-boundary markers and stress markers from a raw
// synthesizer event stream, per §4.C step 3 ("dropping stress markers and
// separators").
func eventsToPhonemes(events []g2p.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.IsBoundary {
			continue
		}
		stripped := phon.Strip(phon.Normalize(ev.Phoneme))
		if stripped == "" {
			continue
		}
		out = append(out, stripped)
	}
	return out
}

// splitCorrection splits a context-correction IPA string into individual
// phoneme tokens using the same multi-rune precedence the synthesizer mock
// uses, since corrections are specified as plain IPA strings in the rules
// table.
func splitCorrection(ipa string) []string {
	multi := []string{
		"tʃ", "dʒ", "oʊ", "aʊ", "aɪ", "eɪ", "ɔːɹ", "ɑːɹ", "ɜːɹ", "ɪə", "ɛə", "ʊə",
		"iː", "uː", "ɔː", "ɑː", "ɜː",
	}
	var out []string
	for len(ipa) > 0 {
		matched := false
		for _, m := range multi {
			if strings.HasPrefix(ipa, m) {
				out = append(out, m)
				ipa = ipa[len(m):]
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		r := []rune(ipa)[0]
		out = append(out, string(r))
		ipa = ipa[len(string(r)):]
	}
	return out
}

// tokenize implements §4.C steps 1-2: strip punctuation except apostrophes
// and hyphens, lowercase, and split on whitespace only. Word boundaries here
// must match the scorer's word boundaries exactly (§9).
func tokenize(sentence string) []string {
	var sb strings.Builder
	for _, r := range sentence {
		switch {
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		case phon.IsUnicodeLetter(r) || r == '\'' || r == '-' || unicode.IsDigit(r):
			sb.WriteRune(unicode.ToLower(r))
		default:
			sb.WriteRune(' ')
		}
	}
	return strings.Fields(sb.String())
}

// startsWithVowelSound is a crude orthographic approximation used only to
// pick the "the" correction's vowel-initial form; it is not a phonetic
// analysis and deliberately errs toward the common case (a/e/i/o/u spelling
// implies a vowel-initial pronunciation).
func startsWithVowelSound(word string) bool {
	if word == "" {
		return false
	}
	switch rune(strings.ToLower(word)[0]) {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	default:
		return false
	}
}
