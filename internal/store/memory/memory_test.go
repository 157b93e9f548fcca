package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/store"
)

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	c := New()

	t.Run("create assigns id", func(t *testing.T) {
		id, err := c.Create(ctx, map[string]any{"_type": "page", "name": "Home"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id == "" {
			t.Fatalf("expected generated id")
		}
		doc, err := c.Get(ctx, id)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if doc["name"] != "Home" || doc["_id"] != id {
			t.Fatalf("unexpected doc: %#v", doc)
		}
	})

	t.Run("create honors caller id and rejects duplicates", func(t *testing.T) {
		if _, err := c.Create(ctx, map[string]any{"_id": "fixed1", "_type": "page"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		_, err := c.Create(ctx, map[string]any{"_id": "fixed1", "_type": "page"})
		if !errors.Is(err, store.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("create enforces depth ceiling", func(t *testing.T) {
		deep := map[string]any{
			"_type": "page",
			"children": []any{map[string]any{
				"rows": []any{map[string]any{
					"columns": []any{map[string]any{"content": []any{}}},
				}},
			}},
		}
		_, err := c.Create(ctx, deep)
		if !errors.Is(err, store.ErrTooDeep) {
			t.Fatalf("expected ErrTooDeep, got %v", err)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := c.Get(ctx, "absent")
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("get returns a copy", func(t *testing.T) {
		id, _ := c.Create(ctx, map[string]any{"_type": "page", "name": "Copy"})
		doc, _ := c.Get(ctx, id)
		doc["name"] = "Mutated"
		again, _ := c.Get(ctx, id)
		if again["name"] != "Copy" {
			t.Fatalf("stored doc was mutated through a read copy")
		}
	})
}

func TestPatch(t *testing.T) {
	ctx := context.Background()
	c := New()

	id, err := c.Create(ctx, map[string]any{"_type": "page", "name": "Home", "children": []any{}})
	if err != nil {
		t.Fatalf("creating page: %v", err)
	}
	if _, err := c.PatchAppend(ctx, id, "children", []any{
		map[string]any{"key": "sec111111111", "type": "section", "rows": []any{}},
	}); err != nil {
		t.Fatalf("appending section: %v", err)
	}

	t.Run("set through key path", func(t *testing.T) {
		doc, err := c.PatchSet(ctx, id, map[string]any{
			`children[key=="sec111111111"].background`: "dark",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		children := doc["children"].([]any)
		if children[0].(map[string]any)["background"] != "dark" {
			t.Fatalf("patch did not apply: %#v", children[0])
		}
	})

	t.Run("set unknown key fails", func(t *testing.T) {
		if _, err := c.PatchSet(ctx, id, map[string]any{`children[key=="nope"].x`: 1}); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("append enforces depth ceiling", func(t *testing.T) {
		deep := []any{map[string]any{
			"key": "k", "type": "section",
			"rows": []any{map[string]any{
				"columns": []any{map[string]any{"content": []any{map[string]any{}}}},
			}},
		}}
		_, err := c.PatchAppend(ctx, id, "children", deep)
		if !errors.Is(err, store.ErrTooDeep) {
			t.Fatalf("expected ErrTooDeep, got %v", err)
		}
	})

	t.Run("patch missing doc", func(t *testing.T) {
		_, err := c.PatchSet(ctx, "absent", map[string]any{"a": 1})
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteAndQuery(t *testing.T) {
	ctx := context.Background()
	c := New()

	aboutID, _ := c.Create(ctx, map[string]any{"_type": "page", "slug": "about"})
	c.Create(ctx, map[string]any{"_type": "page", "slug": "home"})
	c.Create(ctx, map[string]any{"_type": "post", "slug": "hello"})

	t.Run("query by type", func(t *testing.T) {
		results, err := c.Query(ctx, `*[_type=="page"]`, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 pages, got %d", len(results))
		}
	})

	t.Run("query with conjunction", func(t *testing.T) {
		results, err := c.Query(ctx, `*[_type=="page" && slug=="about"]`, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(results) != 1 || results[0]["_id"] != aboutID {
			t.Fatalf("unexpected results: %#v", results)
		}
	})

	t.Run("delete then query", func(t *testing.T) {
		if err := c.Delete(ctx, aboutID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := c.Delete(ctx, aboutID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		results, _ := c.Query(ctx, `*[_type=="page"]`, nil)
		if len(results) != 1 {
			t.Fatalf("expected 1 page after delete, got %d", len(results))
		}
	})
}

func TestCreateOrReplace(t *testing.T) {
	ctx := context.Background()
	c := New()

	id, _ := c.Create(ctx, map[string]any{"_type": "page", "name": "v1"})

	t.Run("replaces existing", func(t *testing.T) {
		if _, err := c.CreateOrReplace(ctx, map[string]any{"_id": id, "_type": "page", "name": "v2"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		doc, _ := c.Get(ctx, id)
		if doc["name"] != "v2" {
			t.Fatalf("replace did not apply: %#v", doc)
		}
	})

	t.Run("restores a deep snapshot", func(t *testing.T) {
		snapshot := map[string]any{
			"_id": "restored", "_type": "page",
			"children": []any{map[string]any{
				"key": "s1", "type": "section",
				"rows": []any{map[string]any{
					"key": "r1", "type": "row",
					"columns": []any{map[string]any{
						"key": "c1", "type": "column",
						"content": []any{map[string]any{"key": "b1", "type": "text", "text": "x"}},
					}},
				}},
			}},
		}
		if _, err := c.CreateOrReplace(ctx, snapshot); err != nil {
			t.Fatalf("expected restore to bypass depth ceiling, got %v", err)
		}
	})

	t.Run("requires id", func(t *testing.T) {
		if _, err := c.CreateOrReplace(ctx, map[string]any{"_type": "page"}); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestUploadAsset(t *testing.T) {
	ctx := context.Background()
	c := New()

	ref, err := c.UploadAsset(ctx, "image", []byte("png-bytes"), store.AssetMeta{Filename: "hero.png"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ref.ID == "" || ref.SHA256 == "" || ref.Size != len("png-bytes") {
		t.Fatalf("unexpected ref: %#v", ref)
	}
	if _, err := c.UploadAsset(ctx, "image", nil, store.AssetMeta{}); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}
