package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/store"
)

func (c *Client) UploadAsset(ctx context.Context, kind string, data []byte, meta store.AssetMeta) (*store.AssetRef, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("uploading asset: empty payload")
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	id := kind + "-" + hash[:16]

	_, err := c.pool.Exec(ctx, `
INSERT INTO assets (id, kind, filename, sha256, size, data) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`,
		id, kind, meta.Filename, hash, len(data), data)
	if err != nil {
		return nil, fmt.Errorf("uploading asset %s: %w", id, err)
	}

	return &store.AssetRef{
		ID:       id,
		Kind:     kind,
		Filename: meta.Filename,
		SHA256:   hash,
		Size:     len(data),
		URL:      "/assets/" + id + "/" + meta.Filename,
	}, nil
}
