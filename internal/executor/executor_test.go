package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/action"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/assets"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/builder"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/store"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/store/memory"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/validate"
)

func newTestExecutor(st store.Store) *Executor {
	return New(st,
		builder.New(st, 4, nil),
		assets.New(st, "", time.Second, nil),
		validate.Config{MinKeyLength: validate.DefaultMinKeyLength},
		nil)
}

func TestExecuteCreate(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e := newTestExecutor(st)

	t.Run("flat document", func(t *testing.T) {
		a := action.New(action.TypeCreate, "new post", action.Payload{
			DocumentType: "post",
			Fields:       map[string]any{"name": "Hello"},
		})
		result := e.Execute(ctx, a)
		require.True(t, result.Success, result.Message)
		require.NotEmpty(t, result.DocumentID)
		require.Equal(t, action.StatusCompleted, a.Status)

		doc, err := st.Get(ctx, result.DocumentID)
		require.NoError(t, err)
		require.Equal(t, "post", doc["_type"])
	})

	t.Run("page with sections uses the builder", func(t *testing.T) {
		a := action.New(action.TypeCreate, "new page", action.Payload{
			Title: "About",
			Slug:  "about",
			Sections: []map[string]any{
				{"rows": []any{map[string]any{
					"columns": []any{map[string]any{
						"content": []any{map[string]any{"type": "heading", "text": "About"}},
					}},
				}}},
			},
		})
		result := e.Execute(ctx, a)
		require.True(t, result.Success, result.Message)

		doc, err := st.Get(ctx, result.DocumentID)
		require.NoError(t, err)
		children := doc["children"].([]any)
		require.Len(t, children, 1)
	})
}

func TestExecuteUpdate(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e := newTestExecutor(st)

	id, err := st.Create(ctx, map[string]any{
		"_id": "homepage", "_type": "page", "slug": "home",
		"children": []any{map[string]any{
			"key": "a1b2c3d4e5f6", "type": "section", "rows": []any{},
		}},
	})
	require.NoError(t, err)

	t.Run("materializes draft from published", func(t *testing.T) {
		a := action.New(action.TypeUpdate, "set background", action.Payload{
			DocumentID: id,
			Fields: map[string]any{
				`children[key=="a1b2c3d4e5f6"].background`: "dark",
			},
		})
		result := e.Execute(ctx, a)
		require.True(t, result.Success, result.Message)
		require.Equal(t, "drafts.homepage", result.DocumentID)

		draft, err := st.Get(ctx, "drafts.homepage")
		require.NoError(t, err)
		section := draft["children"].([]any)[0].(map[string]any)
		require.Equal(t, "dark", section["background"])

		published, err := st.Get(ctx, "homepage")
		require.NoError(t, err)
		require.Nil(t, published["children"].([]any)[0].(map[string]any)["background"])
	})

	t.Run("reuses existing draft", func(t *testing.T) {
		a := action.New(action.TypeUpdate, "retitle", action.Payload{
			DocumentID: "drafts.homepage",
			Fields:     map[string]any{"title": "Home v2"},
		})
		result := e.Execute(ctx, a)
		require.True(t, result.Success, result.Message)

		draft, err := st.Get(ctx, "drafts.homepage")
		require.NoError(t, err)
		require.Equal(t, "Home v2", draft["title"])
		section := draft["children"].([]any)[0].(map[string]any)
		require.Equal(t, "dark", section["background"], "earlier draft edits must survive")
	})

	t.Run("rejects numeric index before any network call", func(t *testing.T) {
		a := action.New(action.TypeUpdate, "bad path", action.Payload{
			DocumentID: "absent-doc",
			Fields:     map[string]any{"children[0].background": "dark"},
		})
		result := e.Execute(ctx, a)
		require.False(t, result.Success)
		require.Equal(t, action.StatusFailed, a.Status)
		require.Contains(t, result.Message, "numeric")
	})

	t.Run("rejects fabricated key", func(t *testing.T) {
		a := action.New(action.TypeUpdate, "guessed key", action.Payload{
			DocumentID: id,
			Fields:     map[string]any{`children[key=="hero"].background`: "dark"},
		})
		result := e.Execute(ctx, a)
		require.False(t, result.Success)
		require.Contains(t, result.Message, "Query the document")
	})

	t.Run("missing target", func(t *testing.T) {
		a := action.New(action.TypeUpdate, "nowhere", action.Payload{
			DocumentID: "ghost",
			Fields:     map[string]any{"title": "x"},
		})
		result := e.Execute(ctx, a)
		require.False(t, result.Success)
	})
}

func TestExecuteDeleteQueryNavigateExplain(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e := newTestExecutor(st)

	st.Create(ctx, map[string]any{"_id": "p1", "_type": "page", "slug": "one"})
	st.Create(ctx, map[string]any{"_id": "p2", "_type": "page", "slug": "two"})

	t.Run("query", func(t *testing.T) {
		a := action.New(action.TypeQuery, "pages", action.Payload{Query: `*[_type=="page"]`})
		result := e.Execute(ctx, a)
		require.True(t, result.Success, result.Message)
		require.Contains(t, result.Message, "2 document(s)")
		require.Len(t, result.Data.([]map[string]any), 2)
	})

	t.Run("navigate derives path from slug", func(t *testing.T) {
		a := action.New(action.TypeNavigate, "go", action.Payload{DocumentID: "p1"})
		result := e.Execute(ctx, a)
		require.True(t, result.Success, result.Message)
		data := result.Data.(map[string]any)
		require.Equal(t, "/one", data["path"])
		require.Equal(t, "p1", data["documentId"])
		require.Equal(t, "p1", result.DocumentID)
	})

	t.Run("navigate with explicit path", func(t *testing.T) {
		a := action.New(action.TypeNavigate, "go", action.Payload{Path: "/pricing"})
		result := e.Execute(ctx, a)
		require.True(t, result.Success)
		require.Equal(t, "/pricing", result.Data.(map[string]any)["path"])
	})

	t.Run("explain echoes", func(t *testing.T) {
		a := action.New(action.TypeExplain, "", action.Payload{Explanation: "because"})
		result := e.Execute(ctx, a)
		require.True(t, result.Success)
		require.Equal(t, "because", result.Message)
	})

	t.Run("delete", func(t *testing.T) {
		a := action.New(action.TypeDelete, "drop p2", action.Payload{DocumentID: "p2"})
		result := e.Execute(ctx, a)
		require.True(t, result.Success, result.Message)

		again := e.Execute(ctx, action.New(action.TypeDelete, "", action.Payload{DocumentID: "p2"}))
		require.False(t, again.Success)
	})

	t.Run("delete rejects a guessed slug id", func(t *testing.T) {
		a := action.New(action.TypeDelete, "", action.Payload{DocumentID: "page-about-us"})
		result := e.Execute(ctx, a)
		require.False(t, result.Success)
		require.Contains(t, result.Message, "Query for the document")
	})
}

func TestRunAllStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e := newTestExecutor(st)

	actions := []*action.ParsedAction{
		action.New(action.TypeCreate, "", action.Payload{DocumentType: "page", Fields: map[string]any{"slug": "a"}}),
		action.New(action.TypeDelete, "", action.Payload{DocumentID: "missing"}),
		action.New(action.TypeCreate, "", action.Payload{DocumentType: "page", Fields: map[string]any{"slug": "b"}}),
	}

	results := e.RunAll(ctx, actions)
	require.Len(t, results, 2)
	require.True(t, results[0].Success)
	require.False(t, results[1].Success)
	require.Equal(t, action.StatusPending, actions[2].Status, "later actions must not run")
}

type blockingStore struct {
	*memory.Client
	started chan struct{}
}

func (s *blockingStore) Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	close(s.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCancel(t *testing.T) {
	st := &blockingStore{Client: memory.New(), started: make(chan struct{})}
	e := newTestExecutor(st)

	a := action.New(action.TypeQuery, "slow", action.Payload{Query: "*"})
	done := make(chan action.Result, 1)
	go func() { done <- e.Execute(context.Background(), a) }()

	<-st.started
	require.True(t, e.Cancel(a.ID))

	result := <-done
	require.False(t, result.Success)
	require.Equal(t, action.StatusCancelled, a.Status)

	require.False(t, e.Cancel("unknown"), "cancel of unknown action reports false")
}

type cancelRacingStore struct {
	*memory.Client
	started   chan struct{}
	cancelled chan struct{}
}

func (s *cancelRacingStore) Delete(ctx context.Context, id string) error {
	close(s.started)
	<-s.cancelled
	return s.Client.Delete(context.Background(), id)
}

func TestCancelAfterCommitKeepsResult(t *testing.T) {
	st := &cancelRacingStore{
		Client:    memory.New(),
		started:   make(chan struct{}),
		cancelled: make(chan struct{}),
	}
	e := newTestExecutor(st)

	ctx := context.Background()
	_, err := st.Client.Create(ctx, map[string]any{"_id": "victim12go", "_type": "page"})
	require.NoError(t, err)

	a := action.New(action.TypeDelete, "", action.Payload{DocumentID: "victim12go"})
	done := make(chan action.Result, 1)
	go func() { done <- e.Execute(ctx, a) }()

	<-st.started
	require.True(t, e.Cancel(a.ID))
	close(st.cancelled)

	result := <-done
	require.True(t, result.Success, "a mutation that committed must not be reported as cancelled")
	require.Equal(t, action.StatusCompleted, a.Status)

	_, err = st.Client.Get(ctx, "victim12go")
	require.Error(t, err, "the delete really happened")
}

func TestPublishAndDiscard(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e := newTestExecutor(st)

	st.Create(ctx, map[string]any{"_id": "home", "_type": "page", "title": "v1"})
	st.CreateOrReplace(ctx, map[string]any{"_id": "drafts.home", "_type": "page", "title": "v2"})

	t.Run("publish copies draft and removes it", func(t *testing.T) {
		id, err := e.PublishDocument(ctx, "home")
		require.NoError(t, err)
		require.Equal(t, "home", id)

		published, err := st.Get(ctx, "home")
		require.NoError(t, err)
		require.Equal(t, "v2", published["title"])

		_, err = st.Get(ctx, "drafts.home")
		require.Error(t, err)
	})

	t.Run("publish without draft fails", func(t *testing.T) {
		_, err := e.PublishDocument(ctx, "home")
		require.Error(t, err)
	})

	t.Run("discard drops only the draft", func(t *testing.T) {
		st.CreateOrReplace(ctx, map[string]any{"_id": "drafts.home", "_type": "page", "title": "v3"})
		require.NoError(t, e.DiscardDraft(ctx, "home"))

		published, err := st.Get(ctx, "home")
		require.NoError(t, err)
		require.Equal(t, "v2", published["title"])
	})
}
