package score

import (
	"math"
	"testing"

	"github.com/speechlab/pronounce/internal/pronounce"
	"github.com/speechlab/pronounce/internal/pronounce/align"
	"github.com/speechlab/pronounce/internal/pronounce/similarity"
)

func close(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func scoreAll(t *testing.T, o *similarity.Oracle, words []pronounce.PhonemeGroup, actual []pronounce.PhonemePrediction) []pronounce.WordScore {
	t.Helper()
	var target []string
	for _, w := range words {
		target = append(target, w.Phonemes...)
	}
	var actualPhonemes []string
	for _, p := range actual {
		actualPhonemes = append(actualPhonemes, p.Phoneme)
	}
	ops := align.Align(o, target, actualPhonemes)
	return Score(o, words, actual, ops)
}

func pred(phoneme string, confidence float64) pronounce.PhonemePrediction {
	return pronounce.PhonemePrediction{Phoneme: phoneme, Confidence: confidence}
}

// TestScore_PerfectMatch covers a clean, phoneme-for-phoneme match: every
// word scores exactly its decoded confidence.
func TestScore_PerfectMatch(t *testing.T) {
	o := similarity.New()
	words := []pronounce.PhonemeGroup{{Word: "hello", Phonemes: []string{"h", "ə", "l", "oʊ"}}}
	actual := []pronounce.PhonemePrediction{pred("h", 0.95), pred("ə", 0.95), pred("l", 0.95), pred("oʊ", 0.95)}

	got := scoreAll(t, o, words, actual)
	if len(got) != 1 {
		t.Fatalf("expected 1 word score, got %d", len(got))
	}
	if !close(got[0].Score, 0.95) {
		t.Fatalf("expected score 0.95, got %v", got[0].Score)
	}
}

// TestScore_FunctionWordReduction covers "to the store" decoded with both
// function words reduced to schwa: each reduction is credited via the
// function-word table, while the content word "store" scores at its
// decoded confidence.
func TestScore_FunctionWordReduction(t *testing.T) {
	o := similarity.New()
	words := []pronounce.PhonemeGroup{
		{Word: "to", Phonemes: []string{"t", "uː"}},
		{Word: "the", Phonemes: []string{"ð", "iː"}},
		{Word: "store", Phonemes: []string{"s", "t", "ɔːɹ"}},
	}
	actual := []pronounce.PhonemePrediction{
		pred("t", 0.9), pred("ə", 0.9),
		pred("ð", 0.9), pred("ə", 0.9),
		pred("s", 0.9), pred("t", 0.9), pred("ɔːɹ", 0.9),
	}

	got := scoreAll(t, o, words, actual)
	if len(got) != 3 {
		t.Fatalf("expected 3 word scores, got %d: %+v", len(got), got)
	}
	if !close(got[0].Score, 0.875) {
		t.Fatalf("expected \"to\" score 0.875, got %v", got[0].Score)
	}
	if !close(got[1].Score, 0.875) {
		t.Fatalf("expected \"the\" score 0.875, got %v", got[1].Score)
	}
	if !close(got[2].Score, 0.9) {
		t.Fatalf("expected \"store\" score 0.9, got %v", got[2].Score)
	}

	var sawReduction bool
	for _, ap := range got[0].Aligned {
		if ap.Note == "function-word reduction" {
			sawReduction = true
		}
	}
	if !sawReduction {
		t.Fatalf("expected a function-word reduction note on \"to\", got %+v", got[0].Aligned)
	}
}

// TestScore_VowelMispronunciation covers "food" decoded as /fʊd/: the vowel
// substitution is a genuine strict-mode mispronunciation, not a credited
// unstressed reduction, even though the reduction table pairs ʊ with uː.
func TestScore_VowelMispronunciation(t *testing.T) {
	o := similarity.New()
	words := []pronounce.PhonemeGroup{{Word: "food", Phonemes: []string{"f", "uː", "d"}}}
	actual := []pronounce.PhonemePrediction{pred("f", 0.9), pred("ʊ", 0.9), pred("d", 0.9)}

	got := scoreAll(t, o, words, actual)
	if len(got) != 1 {
		t.Fatalf("expected 1 word score, got %d", len(got))
	}
	if !close(got[0].Score, 0.35) {
		t.Fatalf("expected \"food\" score 0.35, got %v", got[0].Score)
	}
}

// TestScore_SplitRhotic covers "hear" /hɪə/ decoded as [h, ɪ] (the rhotic
// approximant already dropped by the duplicate filter upstream): the bare
// vowel nucleus left behind is still credited as a rhotic variant.
func TestScore_SplitRhotic(t *testing.T) {
	o := similarity.New()
	words := []pronounce.PhonemeGroup{{Word: "hear", Phonemes: []string{"h", "ɪə"}}}
	actual := []pronounce.PhonemePrediction{pred("h", 0.9), pred("ɪ", 0.9)}

	got := scoreAll(t, o, words, actual)
	if len(got) != 1 {
		t.Fatalf("expected 1 word score, got %d", len(got))
	}
	if got[0].Score < 0.75 {
		t.Fatalf("expected \"hear\" score >= 0.75, got %v", got[0].Score)
	}

	var sawRhotic bool
	for _, ap := range got[0].Aligned {
		if ap.Note == "rhotic variant" {
			sawRhotic = true
		}
	}
	if !sawRhotic {
		t.Fatalf("expected a rhotic variant note, got %+v", got[0].Aligned)
	}
}

// TestScore_InsertionBudget covers "yes" /jɛs/ decoded with two trailing
// extra phonemes: the first insertion is free, the second costs 0.05.
func TestScore_InsertionBudget(t *testing.T) {
	o := similarity.New()
	words := []pronounce.PhonemeGroup{{Word: "yes", Phonemes: []string{"j", "ɛ", "s"}}}
	actual := []pronounce.PhonemePrediction{
		pred("j", 0.9), pred("ɛ", 0.9), pred("s", 0.9), pred("s", 0.9), pred("h", 0.9),
	}

	got := scoreAll(t, o, words, actual)
	if len(got) != 1 {
		t.Fatalf("expected 1 word score, got %d", len(got))
	}
	if !close(got[0].Score, 0.85) {
		t.Fatalf("expected \"yes\" score 0.85, got %v", got[0].Score)
	}

	var insertCount int
	for _, ap := range got[0].Aligned {
		if ap.Kind == pronounce.Insert {
			insertCount++
		}
	}
	if insertCount != 2 {
		t.Fatalf("expected 2 insert records, got %d: %+v", insertCount, got[0].Aligned)
	}
}

// TestScore_BoundedRange checks the §8 invariant that every word score lands
// in [0, 1] across a mixed sentence with matches, a mispronunciation, and
// insertions.
func TestScore_BoundedRange(t *testing.T) {
	o := similarity.New()
	words := []pronounce.PhonemeGroup{
		{Word: "the", Phonemes: []string{"ð", "iː"}},
		{Word: "cat", Phonemes: []string{"k", "æ", "t"}},
	}
	actual := []pronounce.PhonemePrediction{
		pred("ð", 0.3), pred("ə", 0.3),
		pred("g", 0.2), pred("ɛ", 0.2), pred("t", 0.2), pred("s", 0.2),
	}

	got := scoreAll(t, o, words, actual)
	for _, w := range got {
		if w.Score < 0 || w.Score > 1 {
			t.Fatalf("word %q score out of bounds: %v", w.Word, w.Score)
		}
	}
}
