package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlAttempts returns the table DDL with the embedding dimension baked into
// the vector column type, mirroring how the teacher's memory store bakes its
// chunk-embedding dimension into the L2 schema at migration time.
func ddlAttempts(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS attempts (
    id          BIGSERIAL    PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    session_id  TEXT         NOT NULL DEFAULT '',
    sentence    TEXT         NOT NULL,
    total_score DOUBLE PRECISION NOT NULL,
    words       JSONB        NOT NULL,
    profile     vector(%d)   NOT NULL,
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_attempts_user_id
    ON attempts (user_id);

CREATE INDEX IF NOT EXISTS idx_attempts_user_timestamp
    ON attempts (user_id, timestamp DESC);

CREATE INDEX IF NOT EXISTS idx_attempts_profile
    ON attempts USING hnsw (profile vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the attempts table and the pgvector extension
// exist. Idempotent; safe to call on every application start.
//
// embeddingDimensions must match the vocabulary size used to build
// [history.BuildErrorProfile] embeddings. Changing it after the first
// migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlAttempts(embeddingDimensions)); err != nil {
		return fmt.Errorf("history postgres migrate: %w", err)
	}
	return nil
}
