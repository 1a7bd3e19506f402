package history

import (
	"github.com/speechlab/pronounce/internal/pronounce"
	"github.com/speechlab/pronounce/internal/pronounce/vocab"
)

// BuildErrorProfile computes a fixed-length mispronunciation-profile
// embedding from a scoring result: one component per vocabulary phoneme ID,
// holding that phoneme's error rate (fraction of its target occurrences
// aligned as Replace or Delete rather than Match) across the result's words.
// Phonemes that never occur as a Target in result are left at 0.
//
// The resulting vector's length always equals v.Size(), so it can be stored
// directly as a pgvector column sized to the vocabulary.
func BuildErrorProfile(result pronounce.PronunciationEvalResult, v *vocab.Vocabulary) []float32 {
	total := make([]int, v.Size())
	errs := make([]int, v.Size())

	for _, w := range result.Words {
		for _, a := range w.Aligned {
			if a.Target == "" {
				continue
			}
			id, ok := v.ID(a.Target)
			if !ok {
				continue
			}
			total[id]++
			if a.Kind == pronounce.Replace || a.Kind == pronounce.Delete {
				errs[id]++
			}
		}
	}

	profile := make([]float32, v.Size())
	for id := range profile {
		if total[id] == 0 {
			continue
		}
		profile[id] = float32(errs[id]) / float32(total[id])
	}
	return profile
}
