// Package mock provides a deterministic, dictionary-backed g2p.Provider test
// double, plus a call-recording wrapper in the style of the other provider
// mocks in this module.
//
// Provider needs no network access and no embedded synthesizer binary: it
// resolves common words from a small built-in dictionary and falls back to a
// longest-match grapheme rule table for anything else, so pipeline and
// engine tests can run against a deterministic G2P without a live model.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/speechlab/pronounce/pkg/provider/g2p"
)

// usDict and ukDict hold IPA transcriptions for common words, keyed
// lower-case. Entries are drawn from closed-class function words (which the
// reference generator applies its own context corrections to regardless)
// and a handful of frequent content words used in the end-to-end test
// scenarios.
var usDict = map[string]string{
	"hello": "həloʊ",
	"world": "wɜːɹld",
	"to":    "tuː",
	"the":   "ðiː",
	"store": "stɔːɹ",
	"car":   "kɑːɹ",
	"food":  "fuːd",
	"hear":  "hɪɹ",
	"yes":   "jɛs",
	"a":     "eɪ",
	"and":   "ænd",
	"of":    "ʌv",
}

var ukDict = map[string]string{
	"hello": "həˈləʊ",
	"world": "wɜːld",
	"to":    "tuː",
	"the":   "ðiː",
	"store": "stɔː",
	"car":   "kɑː",
	"food":  "fuːd",
	"hear":  "hɪə",
	"yes":   "jɛs",
	"a":     "eɪ",
	"and":   "ænd",
	"of":    "ɒv",
}

// g2pRules is a longest-match grapheme-to-phoneme fallback, consulted letter
// cluster first, for words not present in the dictionary. It is intentionally
// small: unknown words are a test fixture concern, not a production
// guarantee (that is the job of the real embedded synthesizer this mocks).
var g2pRules = []struct {
	grapheme string
	phoneme  string
}{
	{"tion", "ʃən"},
	{"sion", "ʒən"},
	{"ing", "ɪŋ"},
	{"th", "θ"},
	{"sh", "ʃ"},
	{"ch", "tʃ"},
	{"ph", "f"},
	{"ee", "iː"},
	{"oo", "uː"},
	{"ou", "aʊ"},
	{"oa", "oʊ"},
	{"ar", "ɑːɹ"},
	{"er", "ɚ"},
	{"or", "ɔːɹ"},
	{"a", "æ"},
	{"e", "ɛ"},
	{"i", "ɪ"},
	{"o", "ɒ"},
	{"u", "ʌ"},
	{"b", "b"}, {"c", "k"}, {"d", "d"}, {"f", "f"}, {"g", "g"},
	{"h", "h"}, {"j", "dʒ"}, {"k", "k"}, {"l", "l"}, {"m", "m"},
	{"n", "n"}, {"p", "p"}, {"q", "k"}, {"r", "ɹ"}, {"s", "s"},
	{"t", "t"}, {"v", "v"}, {"w", "w"}, {"x", "ks"}, {"y", "j"}, {"z", "z"},
}

func ruleBased(word string) string {
	var sb strings.Builder
	for len(word) > 0 {
		matched := false
		for _, rule := range g2pRules {
			if strings.HasPrefix(word, rule.grapheme) {
				sb.WriteString(rule.phoneme)
				word = word[len(rule.grapheme):]
				matched = true
				break
			}
		}
		if !matched {
			word = word[1:]
		}
	}
	return sb.String()
}

// SynthesizeCall records a single invocation of Provider.Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice g2p.Voice
}

// Provider is a deterministic dictionary-backed g2p.Provider.
type Provider struct {
	mu sync.Mutex

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// SynthesizeCalls records every call to Synthesize.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize looks up text (a single word, per the reference generator's
// contract) in the dictionary for voice, falling back to the grapheme rule
// table. It emits one phoneme Event per IPA rune cluster plus a trailing
// boundary event, matching the shape a real embedded synthesizer emits.
func (p *Provider) Synthesize(ctx context.Context, text string, voice g2p.Voice) ([]g2p.Event, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	err := p.SynthesizeErr
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	word := strings.ToLower(text)
	dict := usDict
	if voice == g2p.VoiceUK {
		dict = ukDict
	}

	ipa, ok := dict[word]
	if !ok {
		ipa = ruleBased(word)
	}

	events := make([]g2p.Event, 0, len(ipa)+1)
	for _, r := range splitPhonemes(ipa) {
		events = append(events, g2p.Event{Phoneme: r})
	}
	events = append(events, g2p.Event{IsBoundary: true})
	return events, nil
}

// splitPhonemes splits an IPA transcription into individual phoneme tokens.
// Multi-rune affricates and diphthongs (tʃ, dʒ, oʊ, aɪ, etc.) are kept
// compiled, matched by a small precedence list before falling back to
// single runes.
func splitPhonemes(ipa string) []string {
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

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}

// Ensure Provider implements g2p.Provider at compile time.
var _ g2p.Provider = (*Provider)(nil)
