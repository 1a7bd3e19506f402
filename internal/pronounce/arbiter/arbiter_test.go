package arbiter

import (
	"context"
	"testing"

	"github.com/speechlab/pronounce/internal/pronounce"
	"github.com/speechlab/pronounce/internal/pronounce/similarity"
)

func pred(phoneme string, confidence float64) pronounce.PhonemePrediction {
	return pronounce.PhonemePrediction{Phoneme: phoneme, Confidence: confidence}
}

// TestArbitrate_RhoticDialectSwap covers "car" decoded as the full rhotic
// form /kɑːɹ/: it is an exact match against the US reference and only a
// credited rhotic variant against the UK reference, so the arbiter must
// pick the US dialect's higher score.
func TestArbitrate_RhoticDialectSwap(t *testing.T) {
	o := similarity.New()
	references := map[pronounce.Dialect][]pronounce.PhonemeGroup{
		pronounce.DialectUS: {{Word: "car", Phonemes: []string{"k", "ɑːɹ"}}},
		pronounce.DialectUK: {{Word: "car", Phonemes: []string{"k", "ɑː"}}},
	}
	actual := []pronounce.PhonemePrediction{pred("k", 0.95), pred("ɑːɹ", 0.95)}

	result, err := Arbitrate(context.Background(), o, references, actual)
	if err != nil {
		t.Fatalf("Arbitrate returned error: %v", err)
	}
	if len(result.Words) != 1 {
		t.Fatalf("expected 1 word, got %d", len(result.Words))
	}
	if result.Words[0].Score < 0.95 {
		t.Fatalf("expected \"car\" score >= 0.95 (US dialect winning), got %v", result.Words[0].Score)
	}
	if result.TotalScore < 0.95 {
		t.Fatalf("expected total score >= 0.95, got %v", result.TotalScore)
	}
}

// TestArbitrate_ReferenceMismatchFallback covers dialects whose G2P output
// disagrees on word count (e.g. a contraction expanded differently): the
// arbiter cannot merge per word, so it falls back to the single dialect
// with the highest whole-sentence mean.
func TestArbitrate_ReferenceMismatchFallback(t *testing.T) {
	o := similarity.New()
	references := map[pronounce.Dialect][]pronounce.PhonemeGroup{
		pronounce.DialectUS: {
			{Word: "can", Phonemes: []string{"k", "æ", "n"}},
			{Word: "not", Phonemes: []string{"n", "ɒ", "t"}},
		},
		pronounce.DialectUK: {
			{Word: "cannot", Phonemes: []string{"k", "æ", "n", "ɒ", "t"}},
		},
	}
	actual := []pronounce.PhonemePrediction{
		pred("k", 0.9), pred("æ", 0.9), pred("n", 0.9), pred("ɒ", 0.9), pred("t", 0.9),
	}

	result, err := Arbitrate(context.Background(), o, references, actual)
	if err != nil {
		t.Fatalf("Arbitrate returned error: %v", err)
	}
	if len(result.Words) != 1 && len(result.Words) != 2 {
		t.Fatalf("expected the fallback to keep one dialect's word shape intact, got %d words", len(result.Words))
	}
}

// TestArbitrate_DialectDominance checks the §8 invariant that adding a
// dialect reference can never decrease the arbitrated score for a word that
// already matched perfectly against another dialect.
func TestArbitrate_DialectDominance(t *testing.T) {
	o := similarity.New()
	actual := []pronounce.PhonemePrediction{pred("k", 0.9), pred("æ", 0.9), pred("t", 0.9)}

	onlyUS := map[pronounce.Dialect][]pronounce.PhonemeGroup{
		pronounce.DialectUS: {{Word: "cat", Phonemes: []string{"k", "æ", "t"}}},
	}
	usOnly, err := Arbitrate(context.Background(), o, onlyUS, actual)
	if err != nil {
		t.Fatalf("Arbitrate returned error: %v", err)
	}

	withUK := map[pronounce.Dialect][]pronounce.PhonemeGroup{
		pronounce.DialectUS: {{Word: "cat", Phonemes: []string{"k", "æ", "t"}}},
		pronounce.DialectUK: {{Word: "cat", Phonemes: []string{"k", "ɑː", "t"}}},
	}
	usAndUK, err := Arbitrate(context.Background(), o, withUK, actual)
	if err != nil {
		t.Fatalf("Arbitrate returned error: %v", err)
	}

	if usAndUK.Words[0].Score < usOnly.Words[0].Score {
		t.Fatalf("adding a dialect decreased the score: %v -> %v", usOnly.Words[0].Score, usAndUK.Words[0].Score)
	}
}
