// Package assets moves binary payloads into the document store: direct
// uploads, frames exported from the external design tool, and assets
// imported from arbitrary URLs.
package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/store"
)

// maxFetchBytes caps what a single external fetch may pull in.
const maxFetchBytes = 32 << 20

type Pipeline struct {
	store        store.Store
	client       *http.Client
	frameBaseURL string
	log          *zap.Logger
}

func New(st store.Store, frameBaseURL string, timeout time.Duration, log *zap.Logger) *Pipeline {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		store:        st,
		client:       &http.Client{Timeout: timeout},
		frameBaseURL: frameBaseURL,
		log:          log,
	}
}

// Upload stores raw bytes as an asset. Data arrives base64-encoded when it
// was carried inside a text action payload.
func (p *Pipeline) Upload(ctx context.Context, kind string, data []byte, filename string) (*store.AssetRef, error) {
	if kind == "" {
		kind = "file"
	}
	ref, err := p.store.UploadAsset(ctx, kind, data, store.AssetMeta{Filename: filename, Source: "upload"})
	if err != nil {
		return nil, fmt.Errorf("uploading asset: %w", err)
	}
	p.log.Info("uploaded asset", zap.String("asset", ref.ID), zap.Int("size", ref.Size))
	return ref, nil
}

// UploadEncoded decodes a base64 payload and uploads it.
func (p *Pipeline) UploadEncoded(ctx context.Context, kind, encoded, filename string) (*store.AssetRef, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding asset payload: %w", err)
	}
	return p.Upload(ctx, kind, data, filename)
}

// FetchFrame pulls a rendered frame export from the design tool and
// stores it as a frame asset.
func (p *Pipeline) FetchFrame(ctx context.Context, fileKey, frameID string) (*store.AssetRef, error) {
	if p.frameBaseURL == "" {
		return nil, fmt.Errorf("fetching frame: no frame base URL configured")
	}
	if fileKey == "" || frameID == "" {
		return nil, fmt.Errorf("fetching frame: fileKey and frameId are required")
	}

	url := fmt.Sprintf("%s/files/%s/frames/%s", p.frameBaseURL, fileKey, frameID)
	data, err := p.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching frame %s: %w", frameID, err)
	}

	ref, err := p.store.UploadAsset(ctx, "frame", data, store.AssetMeta{
		Filename: frameID + ".png",
		Source:   url,
	})
	if err != nil {
		return nil, fmt.Errorf("storing frame %s: %w", frameID, err)
	}
	p.log.Info("fetched frame", zap.String("asset", ref.ID), zap.String("frame", frameID))
	return ref, nil
}

// ImportExternal downloads an asset from a URL and stores it.
func (p *Pipeline) ImportExternal(ctx context.Context, url, filename, kind string) (*store.AssetRef, error) {
	if url == "" {
		return nil, fmt.Errorf("importing asset: url is required")
	}
	if kind == "" {
		kind = "image"
	}

	data, err := p.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("importing asset from %s: %w", url, err)
	}

	ref, err := p.store.UploadAsset(ctx, kind, data, store.AssetMeta{
		Filename: filename,
		Source:   url,
	})
	if err != nil {
		return nil, fmt.Errorf("storing imported asset: %w", err)
	}
	p.log.Info("imported asset", zap.String("asset", ref.ID), zap.String("source", url))
	return ref, nil
}

func (p *Pipeline) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return data, nil
}
