// Package history defines the result-history store interface: an ambient
// enrichment layered outside the stateless scoring core (the core's
// Evaluate call never reads or writes it) that persists past
// PronunciationEvalResults so a caller can track a speaker's progress over
// time and find past attempts with a similar mispronunciation profile.
package history

import (
	"context"
	"time"

	"github.com/speechlab/pronounce/internal/pronounce"
)

// Record is one persisted scoring attempt.
type Record struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Sentence  string                            `json:"sentence"`
	Timestamp time.Time                         `json:"timestamp"`
	Result    pronounce.PronunciationEvalResult `json:"result"`
}

// SimilarRecord is one result of a SimilarProfiles query: a past Record plus
// its cosine distance from the query profile (smaller is more similar).
type SimilarRecord struct {
	Record   Record  `json:"record"`
	Distance float64 `json:"distance"`
}

// Store is the result-history persistence boundary. Implementations must be
// safe for concurrent use.
type Store interface {
	// Save persists rec along with the mispronunciation-profile embedding
	// computed from rec.Result.
	Save(ctx context.Context, rec Record) error

	// Recent returns the user's most recent records, newest first, up to
	// limit entries.
	Recent(ctx context.Context, userID string, limit int) ([]Record, error)

	// SimilarProfiles finds other attempts (by any user) whose
	// mispronunciation-profile embedding is closest to rec's, ordered by
	// ascending distance, up to topK entries. Used to surface "other
	// learners who struggled with similar phonemes."
	SimilarProfiles(ctx context.Context, rec Record, topK int) ([]SimilarRecord, error)

	// PhonemeErrorRates aggregates every persisted record for userID into a
	// cumulative per-phoneme error rate: phoneme token -> fraction of
	// occurrences scored as Replace or Delete rather than Match.
	PhonemeErrorRates(ctx context.Context, userID string) (map[string]float64, error)

	// Close releases any resources held by the store.
	Close()
}
