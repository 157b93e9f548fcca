package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/content"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/store"
)

func (c *Client) Create(ctx context.Context, doc map[string]any) (string, error) {
	if err := store.CheckWriteDepth(doc); err != nil {
		return "", fmt.Errorf("creating document: %w", err)
	}

	id, _ := doc["_id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	stored := store.CopyDocument(doc)
	stored["_id"] = id
	docType, _ := stored["_type"].(string)

	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("marshaling document: %w", err)
	}

	_, err = c.pool.Exec(ctx,
		`INSERT INTO documents (id, doc_type, doc) VALUES ($1, $2, $3)`,
		id, docType, data)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("creating document %s: %w", id, store.ErrAlreadyExists)
		}
		return "", fmt.Errorf("creating document %s: %w", id, err)
	}
	return id, nil
}

func (c *Client) CreateOrReplace(ctx context.Context, doc map[string]any) (string, error) {
	id, _ := doc["_id"].(string)
	if id == "" {
		return "", fmt.Errorf("replacing document: _id is required")
	}
	docType, _ := doc["_type"].(string)

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshaling document: %w", err)
	}

	_, err = c.pool.Exec(ctx, `
INSERT INTO documents (id, doc_type, doc) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
    doc_type = EXCLUDED.doc_type,
    doc = EXCLUDED.doc,
    updated_at = now()`,
		id, docType, data)
	if err != nil {
		return "", fmt.Errorf("replacing document %s: %w", id, err)
	}
	return id, nil
}

func (c *Client) Get(ctx context.Context, id string) (map[string]any, error) {
	var data []byte
	err := c.pool.QueryRow(ctx, `SELECT doc FROM documents WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("getting document %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", id, err)
	}
	return doc, nil
}

func (c *Client) PatchSet(ctx context.Context, id string, set map[string]any) (map[string]any, error) {
	for path, value := range set {
		if err := store.CheckWriteDepth(value); err != nil {
			return nil, fmt.Errorf("patching %s at %s: %w", id, path, err)
		}
	}

	return c.patch(ctx, id, func(doc map[string]any) error {
		paths := make([]string, 0, len(set))
		for p := range set {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, path := range paths {
			if err := content.Set(doc, path, set[path]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Client) PatchAppend(ctx context.Context, id string, path string, items []any) (map[string]any, error) {
	if err := store.CheckWriteDepth(items); err != nil {
		return nil, fmt.Errorf("appending to %s at %s: %w", id, path, err)
	}

	return c.patch(ctx, id, func(doc map[string]any) error {
		return content.AppendAt(doc, path, items...)
	})
}

// patch applies fn to the stored document inside a transaction, with the
// row locked, so concurrent patches serialize instead of clobbering.
func (c *Client) patch(ctx context.Context, id string, fn func(doc map[string]any) error) (map[string]any, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning patch transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var data []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM documents WHERE id = $1 FOR UPDATE`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patching document %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("patching document %s: %w", id, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", id, err)
	}

	if err := fn(doc); err != nil {
		return nil, fmt.Errorf("patching document %s: %w", id, err)
	}

	updated, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling document %s: %w", id, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE documents SET doc = $1, updated_at = now() WHERE id = $2`,
		updated, id); err != nil {
		return nil, fmt.Errorf("updating document %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing patch for %s: %w", id, err)
	}
	return doc, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting document %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (c *Client) Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	filter, err := store.ParseQuery(query, params)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}

	sqlQuery := `SELECT doc FROM documents ORDER BY id`
	args := []any{}
	if docType := filter.DocType(); docType != "" {
		sqlQuery = `SELECT doc FROM documents WHERE doc_type = $1 ORDER BY id`
		args = append(args, docType)
	}

	rows, err := c.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	results := make([]map[string]any, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding document row: %w", err)
		}
		if filter.Matches(doc) {
			results = append(results, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return results, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
