// Package postgres provides a PostgreSQL-backed implementation of
// [history.Store]: attempts are persisted with a pgvector embedding of their
// per-phoneme mispronunciation profile, so similar past attempts can be
// found with a single ORDER BY ... <=> query.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, vocabulary)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Save(ctx, rec)
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/speechlab/pronounce/internal/pronounce"
	"github.com/speechlab/pronounce/internal/pronounce/vocab"
	"github.com/speechlab/pronounce/pkg/history"
)

// Compile-time interface check.
var _ history.Store = (*Store)(nil)

// Store is the PostgreSQL-backed result-history store. It holds a single
// [pgxpool.Pool] and the vocabulary used to compute mispronunciation-profile
// embeddings. Safe for concurrent use.
type Store struct {
	pool  *pgxpool.Pool
	vocab *vocab.Vocabulary
}

// NewStore creates a Store, establishes a connection pool to dsn, registers
// pgvector types on every connection, and runs [Migrate].
//
// v's Size() determines the embedding column width; it must be the same
// vocabulary the acoustic decoder and reference generator use, since
// [history.BuildErrorProfile] indexes the embedding by vocabulary ID.
func NewStore(ctx context.Context, dsn string, v *vocab.Vocabulary) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history postgres: parse dsn: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history postgres: ping: %w", err)
	}

	if err := Migrate(ctx, pool, v.Size()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history postgres: migrate: %w", err)
	}

	return &Store{pool: pool, vocab: v}, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Save implements [history.Store].
func (s *Store) Save(ctx context.Context, rec history.Record) error {
	words, err := json.Marshal(rec.Result.Words)
	if err != nil {
		return fmt.Errorf("history postgres: marshal words: %w", err)
	}

	profile := history.BuildErrorProfile(rec.Result, s.vocab)
	vec := pgvector.NewVector(profile)

	const q = `
		INSERT INTO attempts (user_id, session_id, sentence, total_score, words, profile, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.pool.Exec(ctx, q,
		rec.UserID, rec.SessionID, rec.Sentence, rec.Result.TotalScore, words, vec, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("history postgres: save: %w", err)
	}
	return nil
}

// Recent implements [history.Store].
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]history.Record, error) {
	const q = `
		SELECT user_id, session_id, sentence, total_score, words, timestamp
		FROM   attempts
		WHERE  user_id = $1
		ORDER  BY timestamp DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("history postgres: recent: %w", err)
	}

	recs, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("history postgres: scan rows: %w", err)
	}
	if recs == nil {
		recs = []history.Record{}
	}
	return recs, nil
}

// SimilarProfiles implements [history.Store].
func (s *Store) SimilarProfiles(ctx context.Context, rec history.Record, topK int) ([]history.SimilarRecord, error) {
	profile := history.BuildErrorProfile(rec.Result, s.vocab)
	vec := pgvector.NewVector(profile)

	const q = `
		SELECT user_id, session_id, sentence, total_score, words, timestamp,
		       profile <=> $1 AS distance
		FROM   attempts
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("history postgres: similar profiles: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.SimilarRecord, error) {
		var sr history.SimilarRecord
		r, err := scanRecordRow(row, &sr.Distance)
		sr.Record = r
		return sr, err
	})
	if err != nil {
		return nil, fmt.Errorf("history postgres: scan rows: %w", err)
	}
	if results == nil {
		results = []history.SimilarRecord{}
	}
	return results, nil
}

// PhonemeErrorRates implements [history.Store].
func (s *Store) PhonemeErrorRates(ctx context.Context, userID string) (map[string]float64, error) {
	const q = `
		SELECT user_id, session_id, sentence, total_score, words, timestamp
		FROM   attempts
		WHERE  user_id = $1`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("history postgres: phoneme error rates: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("history postgres: scan rows: %w", err)
	}

	total := make(map[string]int)
	errs := make(map[string]int)
	for _, rec := range recs {
		for _, w := range rec.Result.Words {
			for _, a := range w.Aligned {
				if a.Target == "" {
					continue
				}
				total[a.Target]++
				if a.Kind == pronounce.Replace || a.Kind == pronounce.Delete {
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

func scanRecord(row pgx.CollectableRow) (history.Record, error) {
	return scanRecordRow(row)
}

// scanRecordRow scans the common attempt columns, plus an optional trailing
// distance column into extra (used by SimilarProfiles).
func scanRecordRow(row pgx.CollectableRow, extra ...*float64) (history.Record, error) {
	var (
		rec   history.Record
		words []byte
	)
	dests := []any{
		&rec.UserID, &rec.SessionID, &rec.Sentence, &rec.Result.TotalScore, &words, &rec.Timestamp,
	}
	for _, e := range extra {
		dests = append(dests, e)
	}
	if err := row.Scan(dests...); err != nil {
		return history.Record{}, err
	}
	if err := json.Unmarshal(words, &rec.Result.Words); err != nil {
		return history.Record{}, fmt.Errorf("unmarshal words: %w", err)
	}
	return rec, nil
}
