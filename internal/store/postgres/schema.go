package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	// All DDL runs in a single call, which PostgreSQL executes inside an
	// implicit transaction. IF NOT EXISTS keeps this idempotent; once the
	// schema needs destructive changes, switch to a migration tool.
	ddl := `
CREATE TABLE IF NOT EXISTS documents (
    id         TEXT PRIMARY KEY,
    doc_type   TEXT NOT NULL,
    doc        JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_type ON documents (doc_type);
CREATE INDEX IF NOT EXISTS idx_documents_doc ON documents USING GIN (doc);

CREATE TABLE IF NOT EXISTS assets (
    id         TEXT PRIMARY KEY,
    kind       TEXT NOT NULL,
    filename   TEXT DEFAULT '',
    sha256     TEXT NOT NULL,
    size       BIGINT NOT NULL,
    data       BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
