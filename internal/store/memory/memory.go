// Package memory is an in-memory document store backend, used for dry
// runs and as the fixture for pipeline tests.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/content"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/store"
)

var _ store.Store = (*Client)(nil)

type Client struct {
	mu     sync.RWMutex
	docs   map[string]map[string]any
	assets map[string]*store.AssetRef
}

func New() *Client {
	return &Client{
		docs:   make(map[string]map[string]any),
		assets: make(map[string]*store.AssetRef),
	}
}

func (c *Client) Close(ctx context.Context) error        { return nil }
func (c *Client) EnsureSchema(ctx context.Context) error { return nil }

func (c *Client) Create(ctx context.Context, doc map[string]any) (string, error) {
	if err := store.CheckWriteDepth(doc); err != nil {
		return "", fmt.Errorf("creating document: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id, _ := doc["_id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := c.docs[id]; exists {
		return "", fmt.Errorf("creating document %s: %w", id, store.ErrAlreadyExists)
	}

	stored := store.CopyDocument(doc)
	stored["_id"] = id
	c.docs[id] = stored
	return id, nil
}

func (c *Client) CreateOrReplace(ctx context.Context, doc map[string]any) (string, error) {
	id, _ := doc["_id"].(string)
	if id == "" {
		return "", fmt.Errorf("replacing document: _id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs[id] = store.CopyDocument(doc)
	return id, nil
}

func (c *Client) Get(ctx context.Context, id string) (map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("getting document %s: %w", id, store.ErrNotFound)
	}
	return store.CopyDocument(doc), nil
}

func (c *Client) PatchSet(ctx context.Context, id string, set map[string]any) (map[string]any, error) {
	for path, value := range set {
		if err := store.CheckWriteDepth(value); err != nil {
			return nil, fmt.Errorf("patching %s at %s: %w", id, path, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("patching document %s: %w", id, store.ErrNotFound)
	}

	patched := store.CopyDocument(doc)
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if err := content.Set(patched, path, set[path]); err != nil {
			return nil, fmt.Errorf("patching document %s: %w", id, err)
		}
	}

	c.docs[id] = patched
	return store.CopyDocument(patched), nil
}

func (c *Client) PatchAppend(ctx context.Context, id string, path string, items []any) (map[string]any, error) {
	if err := store.CheckWriteDepth(items); err != nil {
		return nil, fmt.Errorf("appending to %s at %s: %w", id, path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("appending to document %s: %w", id, store.ErrNotFound)
	}

	patched := store.CopyDocument(doc)
	if err := content.AppendAt(patched, path, items...); err != nil {
		return nil, fmt.Errorf("appending to document %s: %w", id, err)
	}

	c.docs[id] = patched
	return store.CopyDocument(patched), nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return fmt.Errorf("deleting document %s: %w", id, store.ErrNotFound)
	}
	delete(c.docs, id)
	return nil
}

func (c *Client) Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	filter, err := store.ParseQuery(query, params)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]map[string]any, 0)
	for _, id := range ids {
		if filter.Matches(c.docs[id]) {
			results = append(results, store.CopyDocument(c.docs[id]))
		}
	}
	return results, nil
}

func (c *Client) UploadAsset(ctx context.Context, kind string, data []byte, meta store.AssetMeta) (*store.AssetRef, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("uploading asset: empty payload")
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	id := kind + "-" + hash[:16]

	ref := &store.AssetRef{
		ID:       id,
		Kind:     kind,
		Filename: meta.Filename,
		SHA256:   hash,
		Size:     len(data),
		URL:      "/assets/" + id + "/" + meta.Filename,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets[id] = ref
	return ref, nil
}
