package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

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

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO documents (id, doc_type, doc) VALUES (?, ?, ?)`,
		id, docType, string(data))
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

	_, err = c.db.ExecContext(ctx, `
INSERT INTO documents (id, doc_type, doc) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    doc_type = excluded.doc_type,
    doc = excluded.doc,
    updated_at = datetime('now')`,
		id, docType, string(data))
	if err != nil {
		return "", fmt.Errorf("replacing document %s: %w", id, err)
	}
	return id, nil
}

func (c *Client) Get(ctx context.Context, id string) (map[string]any, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, `SELECT doc FROM documents WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting document %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
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

// patch applies fn to the stored document inside a transaction so that
// concurrent patches serialize on the row.
func (c *Client) patch(ctx context.Context, id string, fn func(doc map[string]any) error) (map[string]any, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning patch transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT doc FROM documents WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("patching document %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("patching document %s: %w", id, err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", id, err)
	}

	if err := fn(doc); err != nil {
		return nil, fmt.Errorf("patching document %s: %w", id, err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling document %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET doc = ?, updated_at = datetime('now') WHERE id = ?`,
		string(data), id); err != nil {
		return nil, fmt.Errorf("updating document %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing patch for %s: %w", id, err)
	}
	return doc, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if affected == 0 {
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
		sqlQuery = `SELECT doc FROM documents WHERE doc_type = ? ORDER BY id`
		args = append(args, docType)
	}

	rows, err := c.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	results := make([]map[string]any, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
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
	// modernc.org/sqlite reports constraint failures in the error text;
	// there is no exported errno for this through database/sql.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
