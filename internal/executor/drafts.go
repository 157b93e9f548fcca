package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/store"
)

// PublishDocument copies the draft variant over the published id and
// removes the draft. It returns the published document id.
func (e *Executor) PublishDocument(ctx context.Context, id string) (string, error) {
	draftID := store.DraftID(id)
	publishedID := store.PublishedID(id)

	draft, err := e.store.Get(ctx, draftID)
	if err != nil {
		return "", fmt.Errorf("publishing %s: %w", publishedID, err)
	}

	published := store.CopyDocument(draft)
	published["_id"] = publishedID
	if _, err := e.store.CreateOrReplace(ctx, published); err != nil {
		return "", fmt.Errorf("publishing %s: %w", publishedID, err)
	}
	if err := e.store.Delete(ctx, draftID); err != nil {
		return "", fmt.Errorf("removing draft after publish: %w", err)
	}

	e.log.Info("published document", zap.String("document", publishedID))
	return publishedID, nil
}

// DiscardDraft drops the draft variant, leaving the published document
// untouched.
func (e *Executor) DiscardDraft(ctx context.Context, id string) error {
	draftID := store.DraftID(id)
	if err := e.store.Delete(ctx, draftID); err != nil {
		return fmt.Errorf("discarding draft %s: %w", draftID, err)
	}
	e.log.Info("discarded draft", zap.String("document", draftID))
	return nil
}
