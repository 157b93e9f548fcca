package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/action"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/builder"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/extract"
)

type ExtractActionsInput struct {
	Reply string `json:"reply" jsonschema:"assistant reply text to scan for actions"`
}

type RunActionsInput struct {
	Reply string `json:"reply" jsonschema:"assistant reply text whose actions should be executed"`
}

type BuildPageInput struct {
	Title    string           `json:"title" jsonschema:"page title"`
	Slug     string           `json:"slug" jsonschema:"page slug"`
	Sections []map[string]any `json:"sections,omitempty" jsonschema:"section subtrees to build"`
}

type AppendSectionInput struct {
	DocumentID string         `json:"documentId" jsonschema:"page document id"`
	Section    map[string]any `json:"section" jsonschema:"section subtree to append"`
}

type GetDocumentInput struct {
	ID string `json:"id" jsonschema:"document id, drafts. prefix for the draft variant"`
}

type QueryDocumentsInput struct {
	Query string `json:"query" jsonschema:"document filter query"`
}

type UndoActionInput struct {
	ActionID string `json:"actionId" jsonschema:"id of a previously executed action"`
}

type PublishDocumentInput struct {
	DocumentID string `json:"documentId" jsonschema:"published document id"`
}

type ActionOutput struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
}

type ActionRunOutput struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DocumentID string `json:"documentId,omitempty"`
}

type ExtractActionsOutput struct {
	Actions []ActionOutput `json:"actions"`
	Cleaned string         `json:"cleaned"`
}

type RunActionsOutput struct {
	Results []ActionRunOutput `json:"results"`
}

type BuildOutput struct {
	DocumentID  string   `json:"documentId"`
	SectionKeys []string `json:"sectionKeys"`
	Steps       int      `json:"steps"`
}

type GetDocumentOutput struct {
	Document map[string]any `json:"document"`
}

type QueryDocumentsOutput struct {
	Documents []map[string]any `json:"documents"`
	Count     int              `json:"count"`
}

type UndoActionOutput struct {
	Message    string `json:"message"`
	DocumentID string `json:"documentId"`
}

type PublishDocumentOutput struct {
	DocumentID string `json:"documentId"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "extract_actions",
		Description: "Parse action blocks out of assistant reply text without executing them",
	}, s.handleExtractActions)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "run_actions",
		Description: "Extract and execute the actions in assistant reply text, stopping at the first failure",
	}, s.handleRunActions)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "build_page",
		Description: "Build a page document incrementally from section subtrees",
	}, s.handleBuildPage)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "append_section",
		Description: "Append one section subtree to an existing page",
	}, s.handleAppendSection)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_document",
		Description: "Fetch a document by id",
	}, s.handleGetDocument)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "query_documents",
		Description: "List documents matching a filter query",
	}, s.handleQueryDocuments)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "undo_action",
		Description: "Restore the document state captured before an executed action",
	}, s.handleUndoAction)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "publish_document",
		Description: "Copy the draft variant over the published document and drop the draft",
	}, s.handlePublishDocument)
}

func (s *Server) handleExtractActions(ctx context.Context, req *sdk.CallToolRequest, input ExtractActionsInput) (*sdk.CallToolResult, ExtractActionsOutput, error) {
	if input.Reply == "" {
		return nil, ExtractActionsOutput{}, fmt.Errorf("reply is required")
	}

	actions := s.extractor.Extract(input.Reply)
	output := make([]ActionOutput, 0, len(actions))
	for _, a := range actions {
		output = append(output, ActionOutput{
			ID:          a.ID,
			Type:        string(a.Type),
			Description: a.Description,
			Status:      string(a.Status),
		})
	}
	return nil, ExtractActionsOutput{
		Actions: output,
		Cleaned: extract.StripActionMarkup(input.Reply),
	}, nil
}

func (s *Server) handleRunActions(ctx context.Context, req *sdk.CallToolRequest, input RunActionsInput) (*sdk.CallToolResult, RunActionsOutput, error) {
	if input.Reply == "" {
		return nil, RunActionsOutput{}, fmt.Errorf("reply is required")
	}

	actions := s.extractor.Extract(input.Reply)
	s.remember(actions)

	results := s.undo.RunAll(ctx, actions)
	output := make([]ActionRunOutput, 0, len(results))
	for i, result := range results {
		a := actions[i]
		output = append(output, ActionRunOutput{
			ID:         a.ID,
			Type:       string(a.Type),
			Status:     string(a.Status),
			Success:    result.Success,
			Message:    result.Message,
			DocumentID: result.DocumentID,
		})
	}
	return nil, RunActionsOutput{Results: output}, nil
}

func (s *Server) handleBuildPage(ctx context.Context, req *sdk.CallToolRequest, input BuildPageInput) (*sdk.CallToolResult, BuildOutput, error) {
	if input.Title == "" && input.Slug == "" {
		return nil, BuildOutput{}, fmt.Errorf("title or slug is required")
	}

	result, err := s.builder.BuildPage(ctx, builder.PageSpec{
		Title:    input.Title,
		Slug:     input.Slug,
		Sections: input.Sections,
	})
	if err != nil {
		return nil, BuildOutput{}, err
	}
	return nil, buildOutputFromResult(result), nil
}

func (s *Server) handleAppendSection(ctx context.Context, req *sdk.CallToolRequest, input AppendSectionInput) (*sdk.CallToolResult, BuildOutput, error) {
	if input.DocumentID == "" {
		return nil, BuildOutput{}, fmt.Errorf("documentId is required")
	}

	result, err := s.builder.AppendSection(ctx, input.DocumentID, input.Section)
	if err != nil {
		return nil, BuildOutput{}, err
	}
	return nil, buildOutputFromResult(result), nil
}

func (s *Server) handleGetDocument(ctx context.Context, req *sdk.CallToolRequest, input GetDocumentInput) (*sdk.CallToolResult, GetDocumentOutput, error) {
	if input.ID == "" {
		return nil, GetDocumentOutput{}, fmt.Errorf("id is required")
	}

	doc, err := s.db.Get(ctx, input.ID)
	if err != nil {
		return nil, GetDocumentOutput{}, err
	}
	return nil, GetDocumentOutput{Document: doc}, nil
}

func (s *Server) handleQueryDocuments(ctx context.Context, req *sdk.CallToolRequest, input QueryDocumentsInput) (*sdk.CallToolResult, QueryDocumentsOutput, error) {
	if input.Query == "" {
		return nil, QueryDocumentsOutput{}, fmt.Errorf("query is required")
	}

	docs, err := s.db.Query(ctx, input.Query, nil)
	if err != nil {
		return nil, QueryDocumentsOutput{}, err
	}
	return nil, QueryDocumentsOutput{Documents: docs, Count: len(docs)}, nil
}

func (s *Server) handleUndoAction(ctx context.Context, req *sdk.CallToolRequest, input UndoActionInput) (*sdk.CallToolResult, UndoActionOutput, error) {
	if input.ActionID == "" {
		return nil, UndoActionOutput{}, fmt.Errorf("actionId is required")
	}

	s.mu.Lock()
	a, ok := s.actions[input.ActionID]
	s.mu.Unlock()
	if !ok {
		return nil, UndoActionOutput{}, fmt.Errorf("unknown action %s", input.ActionID)
	}

	result, err := s.undo.Undo(ctx, a)
	if err != nil {
		return nil, UndoActionOutput{}, err
	}
	return nil, UndoActionOutput{
		Message:    result.Message,
		DocumentID: result.DocumentID,
	}, nil
}

func (s *Server) handlePublishDocument(ctx context.Context, req *sdk.CallToolRequest, input PublishDocumentInput) (*sdk.CallToolResult, PublishDocumentOutput, error) {
	if input.DocumentID == "" {
		return nil, PublishDocumentOutput{}, fmt.Errorf("documentId is required")
	}

	id, err := s.exec.PublishDocument(ctx, input.DocumentID)
	if err != nil {
		return nil, PublishDocumentOutput{}, err
	}
	return nil, PublishDocumentOutput{DocumentID: id}, nil
}

func (s *Server) remember(actions []*action.ParsedAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range actions {
		s.actions[a.ID] = a
	}
}

func buildOutputFromResult(result *builder.BuildResult) BuildOutput {
	return BuildOutput{
		DocumentID:  result.DocumentID,
		SectionKeys: result.SectionKeys,
		Steps:       result.Steps,
	}
}
