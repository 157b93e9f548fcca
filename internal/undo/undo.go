// Package undo snapshots documents before mutating actions run and
// replays those snapshots on request. Snapshots live in a side table
// keyed by action ID; an undone action cannot be undone again.
package undo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/action"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/executor"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/store"
)

// ErrNoSnapshot means the action has no captured pre-state, either
// because it never mutated anything or because it was already undone.
var ErrNoSnapshot = errors.New("no snapshot for action")

type snapshot struct {
	documentID string
	doc        map[string]any
}

type Manager struct {
	store store.Store
	exec  *executor.Executor
	log   *zap.Logger

	mu        sync.Mutex
	snapshots map[string]snapshot
}

func New(st store.Store, exec *executor.Executor, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:     st,
		exec:      exec,
		log:       log,
		snapshots: make(map[string]snapshot),
	}
}

// CaptureAndExecute snapshots the action's target document, runs the
// action, and attaches the snapshot to the result on success. Actions
// that do not mutate state pass straight through.
func (m *Manager) CaptureAndExecute(ctx context.Context, a *action.ParsedAction) action.Result {
	snap, ok := m.capture(ctx, a)

	result := m.exec.Execute(ctx, a)
	if !result.Success || !ok {
		return result
	}

	m.mu.Lock()
	m.snapshots[a.ID] = snap
	m.mu.Unlock()

	result.PreState = store.CopyDocument(snap.doc)
	a.Result = &result
	return result
}

// RunAll captures and executes actions in order, stopping at the first
// failure.
func (m *Manager) RunAll(ctx context.Context, actions []*action.ParsedAction) []action.Result {
	results := make([]action.Result, 0, len(actions))
	for _, a := range actions {
		result := m.CaptureAndExecute(ctx, a)
		results = append(results, result)
		if !result.Success {
			break
		}
	}
	return results
}

// capture fetches the pre-state for a mutating action. Deletes snapshot
// the document as stored; updates snapshot the editable variant the
// patch will land on, which may not exist yet as a draft.
func (m *Manager) capture(ctx context.Context, a *action.ParsedAction) (snapshot, bool) {
	if !a.Mutates() || a.Payload.DocumentID == "" {
		return snapshot{}, false
	}

	switch a.Type {
	case action.TypeDelete:
		doc, err := m.store.Get(ctx, a.Payload.DocumentID)
		if err != nil {
			return snapshot{}, false
		}
		return snapshot{documentID: a.Payload.DocumentID, doc: doc}, true

	case action.TypeUpdate:
		draftID := store.DraftID(a.Payload.DocumentID)
		if doc, err := m.store.Get(ctx, draftID); err == nil {
			return snapshot{documentID: draftID, doc: doc}, true
		}
		published, err := m.store.Get(ctx, store.PublishedID(a.Payload.DocumentID))
		if err != nil {
			return snapshot{}, false
		}
		doc := store.CopyDocument(published)
		doc["_id"] = draftID
		return snapshot{documentID: draftID, doc: doc}, true

	default:
		return snapshot{}, false
	}
}

// Undo replays the snapshot captured for a, restoring the document to
// its pre-action state, and clears the snapshot so a second undo fails.
func (m *Manager) Undo(ctx context.Context, a *action.ParsedAction) (action.Result, error) {
	m.mu.Lock()
	snap, ok := m.snapshots[a.ID]
	m.mu.Unlock()
	if !ok {
		return action.Result{}, fmt.Errorf("undoing action %s: %w", a.ID, ErrNoSnapshot)
	}

	current, err := m.store.Get(ctx, snap.documentID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return action.Result{}, fmt.Errorf("undoing action %s: %w", a.ID, err)
	}

	if _, err := m.store.CreateOrReplace(ctx, snap.doc); err != nil {
		return action.Result{}, fmt.Errorf("undoing action %s: %w", a.ID, err)
	}

	m.mu.Lock()
	delete(m.snapshots, a.ID)
	m.mu.Unlock()
	if a.Result != nil {
		a.Result.PreState = nil
	}

	m.log.Info("undid action",
		zap.String("action", a.ID), zap.String("document", snap.documentID))

	return action.Result{
		Success:    true,
		Message:    fmt.Sprintf("restored %s\n%s", snap.documentID, diffSummary(current, snap.doc)),
		DocumentID: snap.documentID,
	}, nil
}

// diffSummary renders a compact patch from the replaced state to the
// restored snapshot.
func diffSummary(replaced, restored map[string]any) string {
	before, err := json.MarshalIndent(replaced, "", "  ")
	if err != nil {
		return ""
	}
	after, err := json.MarshalIndent(restored, "", "  ")
	if err != nil {
		return ""
	}

	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(string(before), string(after))
	if len(patches) == 0 {
		return "no changes"
	}
	return dmp.PatchToText(patches)
}
