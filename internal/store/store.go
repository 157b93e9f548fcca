// Package store defines the document-store client used by the action
// pipeline, with postgres, sqlite, and in-memory backends.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrTooDeep       = errors.New("write exceeds maximum nesting depth")
)

// MaxWriteDepth is the deepest literal a single create or patch write may
// carry. A full section->row->column->content tree far exceeds it, which
// is why pages are built shell-then-fill rather than in one call.
const MaxWriteDepth = 4

// DraftPrefix marks the editable variant of a document. The draft and the
// published variant coexist; edits always land on the draft.
const DraftPrefix = "drafts."

func IsDraftID(id string) bool { return strings.HasPrefix(id, DraftPrefix) }

func DraftID(id string) string {
	if IsDraftID(id) {
		return id
	}
	return DraftPrefix + id
}

func PublishedID(id string) string { return strings.TrimPrefix(id, DraftPrefix) }

// AssetMeta describes an uploaded binary.
type AssetMeta struct {
	Filename string
	Source   string
}

// AssetRef is the stored reference returned by an upload.
type AssetRef struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Filename string `json:"filename,omitempty"`
	SHA256   string `json:"sha256"`
	Size     int    `json:"size"`
	URL      string `json:"url"`
}

// Store is the document-store client consumed by the executor, builder,
// and undo manager. Create and the patch primitives enforce MaxWriteDepth;
// CreateOrReplace is the restore path used by undo and is exempt so a
// captured snapshot can always be replayed.
type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	Create(ctx context.Context, doc map[string]any) (string, error)
	CreateOrReplace(ctx context.Context, doc map[string]any) (string, error)
	Get(ctx context.Context, id string) (map[string]any, error)
	PatchSet(ctx context.Context, id string, set map[string]any) (map[string]any, error)
	PatchAppend(ctx context.Context, id string, path string, items []any) (map[string]any, error)
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	UploadAsset(ctx context.Context, kind string, data []byte, meta AssetMeta) (*AssetRef, error)
}

// ValueDepth returns the nesting depth of a JSON-shaped value. Scalars are
// depth zero; each enclosing object or array adds one.
func ValueDepth(v any) int {
	switch t := v.(type) {
	case map[string]any:
		max := 0
		for _, inner := range t {
			if d := ValueDepth(inner); d > max {
				max = d
			}
		}
		return max + 1
	case []any:
		max := 0
		for _, inner := range t {
			if d := ValueDepth(inner); d > max {
				max = d
			}
		}
		return max + 1
	default:
		return 0
	}
}

// CheckWriteDepth rejects values nested deeper than MaxWriteDepth.
func CheckWriteDepth(v any) error {
	if d := ValueDepth(v); d > MaxWriteDepth {
		return fmt.Errorf("%w: literal depth %d, maximum %d", ErrTooDeep, d, MaxWriteDepth)
	}
	return nil
}

// CopyDocument returns a deep copy of a document so callers can hold
// snapshots without sharing mutable state with the backend.
func CopyDocument(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		// Documents are JSON round-trippable by construction.
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
