// Package mock provides an in-memory test double for [history.Store].
package mock

import (
	"context"
	"sync"

	"github.com/speechlab/pronounce/pkg/history"
)

// Store is an in-memory [history.Store]. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	records []history.Record

	// SaveErr, if non-nil, is returned from every Save call.
	SaveErr error

	// SimilarResult is returned verbatim by SimilarProfiles.
	SimilarResult []history.SimilarRecord
}

var _ history.Store = (*Store)(nil)

// Save implements [history.Store].
func (s *Store) Save(_ context.Context, rec history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.records = append(s.records, rec)
	return nil
}

// Recent implements [history.Store]: returns the userID's records newest
// first, capped at limit.
func (s *Store) Recent(_ context.Context, userID string, limit int) ([]history.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []history.Record
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].UserID != userID {
			continue
		}
		out = append(out, s.records[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SimilarProfiles implements [history.Store]: returns SimilarResult verbatim.
func (s *Store) SimilarProfiles(_ context.Context, _ history.Record, _ int) ([]history.SimilarRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SimilarResult, nil
}

// PhonemeErrorRates implements [history.Store]: aggregates every stored
// record for userID, matching the postgres implementation's semantics.
func (s *Store) PhonemeErrorRates(_ context.Context, userID string) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := make(map[string]int)
	errs := make(map[string]int)
	for _, rec := range s.records {
		if rec.UserID != userID {
			continue
		}
		for _, w := range rec.Result.Words {
			for _, a := range w.Aligned {
				if a.Target == "" {
					continue
				}
				total[a.Target]++
				if a.Kind.String() == "replace" || a.Kind.String() == "delete" {
					errs[a.Target]++
				}
			}
		}
	}

	rates := make(map[string]float64, len(total))
	for phoneme, n := range total {
		rates[phoneme] = float64(errs[phoneme]) / float64(n)
	}
	return rates, nil
}

// Close is a no-op.
func (s *Store) Close() {}
