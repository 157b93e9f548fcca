// Package builder constructs page trees against a backend that caps how
// deeply a single write may nest. A full page literal would exceed that
// cap, so pages are built shell first: the page with empty children, then
// section shells, row shells, column shells, and finally content blocks
// in small batches. Every write stays shallow.
package builder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/content"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/store"
)

// DefaultBatchSize is how many content blocks go into one append when the
// config does not say otherwise.
const DefaultBatchSize = 4

// PageSpec describes a page to build. Section maps follow the document
// tree shape (rows/columns/content); any key fields they carry are
// ignored and replaced with fresh random keys.
type PageSpec struct {
	Title    string
	Slug     string
	Sections []map[string]any
}

// SectionSpec is one section subtree for AppendSection.
type SectionSpec map[string]any

// BuildResult reports what a successful build produced.
type BuildResult struct {
	DocumentID  string
	SectionKeys []string
	Steps       int
}

// StepError is a build failure. The document named by DocumentID exists in
// whatever partial state the completed steps left it; builds are not
// transactional.
type StepError struct {
	Step       string
	DocumentID string
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v (partial document %s)", e.Step, e.Err, e.DocumentID)
}

func (e *StepError) Unwrap() error { return e.Err }

type Builder struct {
	store     store.Store
	batchSize int
	log       *zap.Logger
}

func New(st store.Store, batchSize int, log *zap.Logger) *Builder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{store: st, batchSize: batchSize, log: log}
}

// BuildPage creates the page document and fills it section by section.
// The first failing step aborts the build; the partial document is left
// in place and named in the returned error.
func (b *Builder) BuildPage(ctx context.Context, spec PageSpec) (*BuildResult, error) {
	for i, section := range spec.Sections {
		if err := checkBlockKinds(section); err != nil {
			return nil, fmt.Errorf("validating section %d: %w", i, err)
		}
	}

	doc := map[string]any{
		"_type":    "page",
		"title":    spec.Title,
		"slug":     spec.Slug,
		"children": []any{},
	}
	docID, err := b.store.Create(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("creating page shell: %w", err)
	}
	b.log.Info("created page shell", zap.String("document", docID))

	result := &BuildResult{DocumentID: docID, Steps: 1}
	for i, section := range spec.Sections {
		key, err := b.fillSection(ctx, docID, section, result)
		if err != nil {
			return nil, &StepError{
				Step:       fmt.Sprintf("building section %d", i),
				DocumentID: docID,
				Err:        err,
			}
		}
		result.SectionKeys = append(result.SectionKeys, key)
	}
	return result, nil
}

// AppendSection adds one section to an existing page, shell first. The
// insertion index is whatever the current section count is at read time.
func (b *Builder) AppendSection(ctx context.Context, docID string, spec SectionSpec) (*BuildResult, error) {
	if err := checkBlockKinds(spec); err != nil {
		return nil, fmt.Errorf("validating section: %w", err)
	}

	doc, err := b.store.Get(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("reading page %s: %w", docID, err)
	}
	children, _ := doc["children"].([]any)
	b.log.Info("appending section",
		zap.String("document", docID),
		zap.Int("index", len(children)))

	result := &BuildResult{DocumentID: docID}
	key, err := b.fillSection(ctx, docID, spec, result)
	if err != nil {
		return nil, &StepError{
			Step:       fmt.Sprintf("appending section at index %d", len(children)),
			DocumentID: docID,
			Err:        err,
		}
	}
	result.SectionKeys = append(result.SectionKeys, key)
	return result, nil
}

// fillSection appends the section shell and then descends level by level:
// rows, columns, content. Context is checked between levels only, so a
// cancelled build still leaves a structurally consistent shell.
func (b *Builder) fillSection(ctx context.Context, docID string, section map[string]any, result *BuildResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	shell, sectionKey := shellNode(section, content.TypeSection, "rows")
	if _, err := b.store.PatchAppend(ctx, docID, "children", []any{shell}); err != nil {
		return "", fmt.Errorf("appending section shell: %w", err)
	}
	result.Steps++
	b.log.Debug("appended section shell",
		zap.String("document", docID), zap.String("section", sectionKey))

	rows := arrayField(section, "rows")
	sectionPath := fmt.Sprintf("children[key==%q]", sectionKey)

	if err := ctx.Err(); err != nil {
		return sectionKey, err
	}
	rowKeys := make([]string, 0, len(rows))
	rowShells := make([]any, 0, len(rows))
	for _, row := range rows {
		shell, key := shellNode(row, content.TypeRow, "columns")
		rowShells = append(rowShells, shell)
		rowKeys = append(rowKeys, key)
	}
	if len(rowShells) > 0 {
		if _, err := b.store.PatchAppend(ctx, docID, sectionPath+".rows", rowShells); err != nil {
			return sectionKey, fmt.Errorf("appending row shells: %w", err)
		}
		result.Steps++
	}

	if err := ctx.Err(); err != nil {
		return sectionKey, err
	}
	type columnSlot struct {
		path   string
		blocks []any
	}
	var slots []columnSlot
	for ri, row := range rows {
		columns := arrayField(row, "columns")
		rowPath := fmt.Sprintf("%s.rows[key==%q]", sectionPath, rowKeys[ri])
		columnShells := make([]any, 0, len(columns))
		for _, col := range columns {
			shell, key := shellNode(col, content.TypeColumn, "content")
			columnShells = append(columnShells, shell)
			slots = append(slots, columnSlot{
				path:   fmt.Sprintf("%s.columns[key==%q].content", rowPath, key),
				blocks: blockNodes(arrayField(col, "content")),
			})
		}
		if len(columnShells) > 0 {
			if _, err := b.store.PatchAppend(ctx, docID, rowPath+".columns", columnShells); err != nil {
				return sectionKey, fmt.Errorf("appending column shells: %w", err)
			}
			result.Steps++
		}
	}

	if err := ctx.Err(); err != nil {
		return sectionKey, err
	}
	for _, slot := range slots {
		for start := 0; start < len(slot.blocks); start += b.batchSize {
			end := start + b.batchSize
			if end > len(slot.blocks) {
				end = len(slot.blocks)
			}
			if _, err := b.store.PatchAppend(ctx, docID, slot.path, slot.blocks[start:end]); err != nil {
				return sectionKey, fmt.Errorf("appending content blocks: %w", err)
			}
			result.Steps++
			b.log.Debug("appended content batch",
				zap.String("document", docID),
				zap.String("path", slot.path),
				zap.Int("count", end-start))
		}
	}
	return sectionKey, nil
}

// shellNode copies the scalar fields of src into a new node with a fresh
// key, the given structural type, and an empty child array. The child
// array and any caller-supplied key are dropped; children are appended in
// later, shallower writes.
func shellNode(src map[string]any, nodeType, childArray string) (map[string]any, string) {
	key := content.NewKey()
	node := map[string]any{
		"key":      key,
		"type":     nodeType,
		childArray: []any{},
	}
	for field, value := range src {
		if field == "key" || field == "type" || field == childArray {
			continue
		}
		node[field] = value
	}
	return node, key
}

// checkBlockKinds rejects a section subtree whose content blocks carry an
// unknown type tag, so a bad create never reaches the store. Blocks
// without a type are allowed; blockNodes defaults them to text.
func checkBlockKinds(section map[string]any) error {
	for _, row := range arrayField(section, "rows") {
		for _, col := range arrayField(row, "columns") {
			for _, block := range arrayField(col, "content") {
				t, _ := block["type"].(string)
				if t == "" {
					continue
				}
				if !content.IsBlockType(t) {
					return fmt.Errorf("content block type %q is not a known block kind", t)
				}
			}
		}
	}
	return nil
}

// blockNodes rekeys content blocks. Unlike structural shells, blocks keep
// their own type tag; a block without one defaults to text.
func blockNodes(src []map[string]any) []any {
	blocks := make([]any, 0, len(src))
	for _, raw := range src {
		block := map[string]any{"key": content.NewKey()}
		for field, value := range raw {
			if field == "key" {
				continue
			}
			block[field] = value
		}
		if t, _ := block["type"].(string); t == "" {
			block["type"] = "text"
		}
		blocks = append(blocks, block)
	}
	return blocks
}

func arrayField(node map[string]any, field string) []map[string]any {
	raw, _ := node[field].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	// Sections sometimes arrive with already-typed slices after a JSON
	// round trip through []map[string]any.
	if len(out) == 0 {
		if typed, ok := node[field].([]map[string]any); ok {
			return typed
		}
	}
	return out
}
