package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/assets"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/builder"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/executor"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/extract"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/store/memory"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/undo"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/validate"
)

func newTestServer() (*Server, *memory.Client) {
	st := memory.New()
	b := builder.New(st, 4, nil)
	exec := executor.New(st, b,
		assets.New(st, "", time.Second, nil),
		validate.Config{MinKeyLength: validate.DefaultMinKeyLength},
		nil)
	um := undo.New(st, exec, nil)
	return NewServer(st, extract.New(nil), b, exec, um, "test", nil), st
}

const replyWithActions = "Creating the page now.\n\n```action\n" +
	`{"type": "create", "description": "new page", "payload": {"documentType": "page", "fields": {"slug": "about"}}}` +
	"\n```\n\nDone."

func TestHandleExtractActions(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer()

	t.Run("extracts without executing", func(t *testing.T) {
		_, out, err := s.handleExtractActions(ctx, nil, ExtractActionsInput{Reply: replyWithActions})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(out.Actions) != 1 {
			t.Fatalf("expected 1 action, got %d", len(out.Actions))
		}
		if out.Actions[0].Type != "create" || out.Actions[0].Status != "pending" {
			t.Fatalf("unexpected action: %#v", out.Actions[0])
		}
		if strings.Contains(out.Cleaned, "```action") {
			t.Fatalf("cleaned text still contains action markup: %q", out.Cleaned)
		}
	})

	t.Run("empty reply", func(t *testing.T) {
		if _, _, err := s.handleExtractActions(ctx, nil, ExtractActionsInput{}); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestHandleRunActions(t *testing.T) {
	ctx := context.Background()
	s, st := newTestServer()

	_, out, err := s.handleRunActions(ctx, nil, RunActionsInput{Reply: replyWithActions})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out.Results))
	}
	result := out.Results[0]
	if !result.Success || result.Status != "completed" {
		t.Fatalf("unexpected result: %#v", result)
	}

	doc, err := st.Get(ctx, result.DocumentID)
	if err != nil {
		t.Fatalf("created document missing: %v", err)
	}
	if doc["slug"] != "about" {
		t.Fatalf("unexpected document: %#v", doc)
	}
}

func TestHandleBuildAndAppend(t *testing.T) {
	ctx := context.Background()
	s, st := newTestServer()

	_, built, err := s.handleBuildPage(ctx, nil, BuildPageInput{
		Title: "Pricing",
		Slug:  "pricing",
		Sections: []map[string]any{
			{"rows": []any{map[string]any{
				"columns": []any{map[string]any{
					"content": []any{map[string]any{"type": "heading", "text": "Plans"}},
				}},
			}}},
		},
	})
	if err != nil {
		t.Fatalf("building page: %v", err)
	}
	if len(built.SectionKeys) != 1 {
		t.Fatalf("expected 1 section key, got %#v", built.SectionKeys)
	}

	_, appended, err := s.handleAppendSection(ctx, nil, AppendSectionInput{
		DocumentID: built.DocumentID,
		Section:    map[string]any{"rows": []any{}},
	})
	if err != nil {
		t.Fatalf("appending section: %v", err)
	}
	if appended.DocumentID != built.DocumentID {
		t.Fatalf("append targeted wrong document: %s", appended.DocumentID)
	}

	doc, _ := st.Get(ctx, built.DocumentID)
	if len(doc["children"].([]any)) != 2 {
		t.Fatalf("expected 2 sections, got %#v", doc["children"])
	}

	if _, _, err := s.handleBuildPage(ctx, nil, BuildPageInput{}); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestHandleGetAndQuery(t *testing.T) {
	ctx := context.Background()
	s, st := newTestServer()

	st.Create(ctx, map[string]any{"_id": "p1", "_type": "page", "slug": "one"})
	st.Create(ctx, map[string]any{"_id": "n1", "_type": "post", "slug": "hello"})

	t.Run("get", func(t *testing.T) {
		_, out, err := s.handleGetDocument(ctx, nil, GetDocumentInput{ID: "p1"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Document["slug"] != "one" {
			t.Fatalf("unexpected document: %#v", out.Document)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		if _, _, err := s.handleGetDocument(ctx, nil, GetDocumentInput{ID: "nope"}); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("query", func(t *testing.T) {
		_, out, err := s.handleQueryDocuments(ctx, nil, QueryDocumentsInput{Query: `*[_type=="page"]`})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Count != 1 {
			t.Fatalf("expected 1 document, got %d", out.Count)
		}
	})
}

func TestHandleUndoAction(t *testing.T) {
	ctx := context.Background()
	s, st := newTestServer()

	st.Create(ctx, map[string]any{"_id": "home", "_type": "page", "title": "v1"})

	reply := "```action\n" +
		`{"type": "update", "description": "retitle", "payload": {"documentId": "home", "fields": {"title": "v2"}}}` +
		"\n```"
	_, out, err := s.handleRunActions(ctx, nil, RunActionsInput{Reply: reply})
	if err != nil {
		t.Fatalf("running actions: %v", err)
	}

	_, undone, err := s.handleUndoAction(ctx, nil, UndoActionInput{ActionID: out.Results[0].ID})
	if err != nil {
		t.Fatalf("undoing: %v", err)
	}
	if undone.DocumentID != "drafts.home" {
		t.Fatalf("unexpected undo target: %s", undone.DocumentID)
	}

	draft, _ := st.Get(ctx, "drafts.home")
	if draft["title"] != "v1" {
		t.Fatalf("draft not restored: %#v", draft)
	}

	t.Run("unknown action", func(t *testing.T) {
		if _, _, err := s.handleUndoAction(ctx, nil, UndoActionInput{ActionID: "nope"}); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestHandlePublishDocument(t *testing.T) {
	ctx := context.Background()
	s, st := newTestServer()

	st.Create(ctx, map[string]any{"_id": "home", "_type": "page", "title": "v1"})
	st.CreateOrReplace(ctx, map[string]any{"_id": "drafts.home", "_type": "page", "title": "v2"})

	_, out, err := s.handlePublishDocument(ctx, nil, PublishDocumentInput{DocumentID: "home"})
	if err != nil {
		t.Fatalf("publishing: %v", err)
	}
	if out.DocumentID != "home" {
		t.Fatalf("unexpected id: %s", out.DocumentID)
	}

	published, _ := st.Get(ctx, "home")
	if published["title"] != "v2" {
		t.Fatalf("publish did not copy draft: %#v", published)
	}
	if _, err := st.Get(ctx, "drafts.home"); err == nil {
		t.Fatalf("draft should be removed after publish")
	}
}
