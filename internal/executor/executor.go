// Package executor runs parsed actions against the document store. Every
// outcome, including panics, is normalized into an action result; errors
// never escape the dispatch boundary.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/action"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/assets"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/builder"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/store"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/validate"
)

type Executor struct {
	store    store.Store
	builder  *builder.Builder
	assets   *assets.Pipeline
	vcfg     validate.Config
	log      *zap.Logger
	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

func New(st store.Store, b *builder.Builder, p *assets.Pipeline, vcfg validate.Config, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		store:    st,
		builder:  b,
		assets:   p,
		vcfg:     vcfg,
		log:      log,
		inflight: make(map[string]context.CancelFunc),
	}
}

// Execute runs one action and records the outcome on it. The action ends
// in exactly one of completed, failed, or cancelled.
func (e *Executor) Execute(ctx context.Context, a *action.ParsedAction) action.Result {
	runCtx, cancel := context.WithCancel(ctx)
	e.register(a.ID, cancel)
	defer e.unregister(a.ID)
	defer cancel()

	a.Status = action.StatusExecuting
	e.log.Info("executing action",
		zap.String("action", a.ID), zap.String("type", string(a.Type)))

	result := e.dispatch(runCtx, a)

	// A mutation that committed despite a late cancel keeps its result;
	// only a run that actually aborted is reported as cancelled.
	if !result.Success && errors.Is(runCtx.Err(), context.Canceled) && ctx.Err() == nil {
		a.Status = action.StatusCancelled
		result = action.Result{Success: false, Message: "action cancelled"}
	} else if result.Success {
		a.Status = action.StatusCompleted
	} else {
		a.Status = action.StatusFailed
		a.Error = result.Message
		e.log.Warn("action failed",
			zap.String("action", a.ID), zap.String("message", result.Message))
	}

	a.Result = &result
	return result
}

// Cancel aborts an in-flight action. It reports whether the action was
// actually running.
func (e *Executor) Cancel(actionID string) bool {
	e.mu.Lock()
	cancel, ok := e.inflight[actionID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// RunAll executes actions in their extraction order and stops at the
// first failure, so an action that depends on an earlier query never runs
// against missing state. Results are returned for the actions that ran.
func (e *Executor) RunAll(ctx context.Context, actions []*action.ParsedAction) []action.Result {
	results := make([]action.Result, 0, len(actions))
	for _, a := range actions {
		result := e.Execute(ctx, a)
		results = append(results, result)
		if !result.Success {
			break
		}
	}
	return results
}

func (e *Executor) register(id string, cancel context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight[id] = cancel
}

func (e *Executor) unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, id)
}

func (e *Executor) dispatch(ctx context.Context, a *action.ParsedAction) (result action.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = fail(fmt.Sprintf("action panicked: %v", r))
		}
	}()

	switch a.Type {
	case action.TypeCreate:
		return e.create(ctx, a)
	case action.TypeUpdate:
		return e.update(ctx, a)
	case action.TypeDelete:
		return e.delete(ctx, a)
	case action.TypeQuery:
		return e.query(ctx, a)
	case action.TypeNavigate:
		return e.navigate(ctx, a)
	case action.TypeExplain:
		return action.Result{Success: true, Message: a.Payload.Explanation}
	case action.TypeUploadAsset:
		return e.uploadAsset(ctx, a)
	case action.TypeFetchExternalFrame:
		return e.fetchFrame(ctx, a)
	case action.TypeUploadExternalAsset:
		return e.importAsset(ctx, a)
	default:
		return fail(fmt.Sprintf("unknown action type %q", a.Type))
	}
}

func (e *Executor) create(ctx context.Context, a *action.ParsedAction) action.Result {
	p := a.Payload

	// Page creates with section trees go through the incremental builder;
	// a flat page literal would exceed the backend write depth anyway.
	if len(p.Sections) > 0 || p.Title != "" || p.Slug != "" {
		built, err := e.builder.BuildPage(ctx, builder.PageSpec{
			Title:    p.Title,
			Slug:     p.Slug,
			Sections: p.Sections,
		})
		if err != nil {
			return fail(fmt.Sprintf("building page: %v", err))
		}
		return action.Result{
			Success:    true,
			Message:    fmt.Sprintf("created page in %d steps", built.Steps),
			DocumentID: built.DocumentID,
		}
	}

	doc := map[string]any{}
	for field, value := range p.Fields {
		doc[field] = value
	}
	if p.DocumentType != "" {
		doc["_type"] = p.DocumentType
	}
	if p.DocumentID != "" {
		doc["_id"] = p.DocumentID
	}

	id, err := e.store.Create(ctx, doc)
	if err != nil {
		return fail(fmt.Sprintf("creating document: %v", err))
	}
	return action.Result{
		Success:    true,
		Message:    fmt.Sprintf("created %s document %s", p.DocumentType, id),
		DocumentID: id,
	}
}

func (e *Executor) update(ctx context.Context, a *action.ParsedAction) action.Result {
	if err := validate.UpdateAction(a, e.vcfg); err != nil {
		return fail(err.Error())
	}
	if a.Payload.DocumentID == "" {
		return fail("update requires a documentId")
	}
	if len(a.Payload.Fields) == 0 {
		return fail("update requires at least one field")
	}

	draftID, err := e.materializeDraft(ctx, a.Payload.DocumentID)
	if err != nil {
		return fail(fmt.Sprintf("resolving editable document: %v", err))
	}

	if _, err := e.store.PatchSet(ctx, draftID, a.Payload.Fields); err != nil {
		return fail(fmt.Sprintf("updating document %s: %v", draftID, err))
	}
	return action.Result{
		Success:    true,
		Message:    fmt.Sprintf("updated %d field(s) on %s", len(a.Payload.Fields), draftID),
		DocumentID: draftID,
	}
}

// materializeDraft resolves the editable variant of id. If only the
// published variant exists it is copied under the drafts prefix first, so
// edits never touch the live document directly.
func (e *Executor) materializeDraft(ctx context.Context, id string) (string, error) {
	draftID := store.DraftID(id)

	_, err := e.store.Get(ctx, draftID)
	if err == nil {
		return draftID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	published, err := e.store.Get(ctx, store.PublishedID(id))
	if err != nil {
		return "", err
	}

	draft := store.CopyDocument(published)
	draft["_id"] = draftID
	if _, err := e.store.CreateOrReplace(ctx, draft); err != nil {
		return "", fmt.Errorf("materializing draft %s: %w", draftID, err)
	}
	e.log.Info("materialized draft", zap.String("document", draftID))
	return draftID, nil
}

func (e *Executor) delete(ctx context.Context, a *action.ParsedAction) action.Result {
	id := a.Payload.DocumentID
	if id == "" {
		return fail("delete requires a documentId")
	}
	if err := validate.DocumentID(id); err != nil {
		return fail(err.Error())
	}
	if err := e.store.Delete(ctx, id); err != nil {
		return fail(fmt.Sprintf("deleting document %s: %v", id, err))
	}
	return action.Result{
		Success:    true,
		Message:    fmt.Sprintf("deleted document %s", id),
		DocumentID: id,
	}
}

func (e *Executor) query(ctx context.Context, a *action.ParsedAction) action.Result {
	if a.Payload.Query == "" {
		return fail("query requires a query string")
	}
	docs, err := e.store.Query(ctx, a.Payload.Query, nil)
	if err != nil {
		return fail(fmt.Sprintf("running query: %v", err))
	}
	return action.Result{
		Success: true,
		Message: fmt.Sprintf("query returned %d document(s)", len(docs)),
		Data:    docs,
	}
}

func (e *Executor) navigate(ctx context.Context, a *action.ParsedAction) action.Result {
	path := a.Payload.Path
	if path == "" && a.Payload.DocumentID != "" {
		doc, err := e.store.Get(ctx, a.Payload.DocumentID)
		if err != nil {
			return fail(fmt.Sprintf("resolving navigation target: %v", err))
		}
		slug, _ := doc["slug"].(string)
		if slug == "" {
			return fail(fmt.Sprintf("document %s has no slug to navigate to", a.Payload.DocumentID))
		}
		path = "/" + slug
	}
	if path == "" {
		return fail("navigate requires a path or a documentId")
	}

	data := map[string]any{"path": path}
	if a.Payload.DocumentID != "" {
		data["documentId"] = a.Payload.DocumentID
	}
	return action.Result{
		Success:    true,
		Message:    fmt.Sprintf("navigate to %s", path),
		DocumentID: a.Payload.DocumentID,
		Data:       data,
	}
}

func (e *Executor) uploadAsset(ctx context.Context, a *action.ParsedAction) action.Result {
	encoded, _ := a.Payload.Fields["data"].(string)
	if encoded == "" {
		return fail("uploadAsset requires base64 data in fields.data")
	}
	ref, err := e.assets.UploadEncoded(ctx, a.Payload.AssetKind, encoded, a.Payload.Filename)
	if err != nil {
		return fail(err.Error())
	}
	return assetResult(ref.ID, fmt.Sprintf("uploaded asset %s (%d bytes)", ref.ID, ref.Size), ref)
}

func (e *Executor) fetchFrame(ctx context.Context, a *action.ParsedAction) action.Result {
	ref, err := e.assets.FetchFrame(ctx, a.Payload.FileKey, a.Payload.FrameID)
	if err != nil {
		return fail(err.Error())
	}
	return assetResult(ref.ID, fmt.Sprintf("fetched frame as asset %s", ref.ID), ref)
}

func (e *Executor) importAsset(ctx context.Context, a *action.ParsedAction) action.Result {
	ref, err := e.assets.ImportExternal(ctx, a.Payload.AssetURL, a.Payload.Filename, a.Payload.AssetKind)
	if err != nil {
		return fail(err.Error())
	}
	return assetResult(ref.ID, fmt.Sprintf("imported asset %s from %s", ref.ID, a.Payload.AssetURL), ref)
}

func assetResult(id, message string, data any) action.Result {
	return action.Result{Success: true, Message: message, DocumentID: id, Data: data}
}

func fail(message string) action.Result {
	return action.Result{Success: false, Message: message}
}
