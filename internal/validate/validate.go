// Package validate checks candidate mutations against the structural
// invariants of the document tree before anything is sent to the backend.
// Every check is pure and synchronous: a rejected action never costs a
// network call, and the message is written for the LLM to self-correct.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/action"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/content"
)

const (
	CodeNumericIndex  = "numeric_index_path"
	CodeFabricatedKey = "fabricated_key"
	CodeFabricatedID  = "fabricated_document_id"
	CodeNodeShape     = "invalid_node_shape"
	CodeMalformedPath = "malformed_field_path"
)

// Error is a validation failure with a machine code and a corrective,
// human-readable message. The message is surfaced verbatim to the
// operator and the LLM.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Config tunes the fabrication heuristics.
type Config struct {
	// MinKeyLength is the shortest key-predicate value accepted without
	// being flagged as fabricated. Generated keys are length 12; the
	// floor is configurable because short legitimate tokens exist in
	// older documents.
	MinKeyLength int
}

const DefaultMinKeyLength = 10

func (c Config) minKeyLength() int {
	if c.MinKeyLength > 0 {
		return c.MinKeyLength
	}
	return DefaultMinKeyLength
}

var (
	wordLikeKeyPattern  = regexp.MustCompile(`^[a-z]+(-[a-z]+)*$`)
	fabricatedIDPattern = regexp.MustCompile(`^(page|post|article|section|block)-[a-z-]+$`)
)

// UpdateAction validates an update action's field paths and payload
// values. Checks run in a fixed order and short-circuit on the first
// failure: numeric index paths, fabricated keys, fabricated document IDs,
// then nested node shape. A nil return means the action may be executed.
func UpdateAction(a *action.ParsedAction, cfg Config) *Error {
	paths := sortedPaths(a.Payload.Fields)

	parsed := make(map[string]content.Path, len(paths))
	for _, raw := range paths {
		p, err := content.ParsePath(raw)
		if err != nil {
			return &Error{
				Code: CodeMalformedPath,
				Message: fmt.Sprintf("field path %q could not be parsed: %v. "+
					"Use dotted paths with [key==\"...\"] selectors for array elements.", raw, err),
			}
		}
		parsed[raw] = p
	}

	for _, raw := range paths {
		if parsed[raw].HasNumericIndex() {
			return &Error{
				Code: CodeNumericIndex,
				Message: fmt.Sprintf("field path %q addresses an array element by numeric index. "+
					"Array order can differ between client and server, so a numeric index may silently hit "+
					"the wrong element. Query the document and address elements with [key==\"...\"] instead.", raw),
			}
		}
	}

	minLen := cfg.minKeyLength()
	for _, raw := range paths {
		for _, key := range parsed[raw].Keys() {
			if looksFabricated(key, minLen) {
				return &Error{
					Code: CodeFabricatedKey,
					Message: fmt.Sprintf("field path %q uses key %q, which looks like an invented name rather "+
						"than a real node key. Real keys are random alphanumeric tokens of %d+ characters. "+
						"Query the document first and reuse the keys it returns.", raw, key, minLen),
				}
			}
		}
	}

	if err := documentID(a.Payload.DocumentID); err != nil {
		return err
	}

	for _, raw := range paths {
		if err := walkValue(fmt.Sprintf("fields[%q]", raw), a.Payload.Fields[raw]); err != nil {
			return err
		}
	}

	return nil
}

// DocumentID rejects IDs that match the type-prefixed slug shape the LLM
// produces when it guesses instead of querying. Draft prefixes are
// stripped before matching.
func DocumentID(id string) *Error { return documentID(id) }

func documentID(id string) *Error {
	bare := strings.TrimPrefix(id, "drafts.")
	if fabricatedIDPattern.MatchString(bare) {
		return &Error{
			Code: CodeFabricatedID,
			Message: fmt.Sprintf("document ID %q looks like a guessed slug, not a real identifier. "+
				"Query for the document first and use the _id the backend returns.", id),
		}
	}
	return nil
}

// looksFabricated flags short, hyphenated, lowercase word-like keys such
// as "hero" or "hero-row". A token carrying digits or at or above the
// length floor passes.
func looksFabricated(key string, minLen int) bool {
	return len(key) < minLen && wordLikeKeyPattern.MatchString(key)
}

// walkValue recursively inspects a payload value. Elements of the four
// structurally-typed arrays must carry both a random key and a known type
// tag; the generic placeholder "object" is never a valid type.
func walkValue(path string, value any) *Error {
	switch v := value.(type) {
	case map[string]any:
		for _, field := range sortedKeys(v) {
			inner := v[field]
			fieldPath := fmt.Sprintf("%s.%s", path, field)
			if _, structural := content.StructuralArrays[field]; structural {
				if arr, ok := inner.([]any); ok {
					if err := walkArray(fieldPath, field, arr); err != nil {
						return err
					}
					continue
				}
			}
			if err := walkValue(fieldPath, inner); err != nil {
				return err
			}
		}
	case []any:
		for i, el := range v {
			if err := walkValue(fmt.Sprintf("%s[%d]", path, i), el); err != nil {
				return err
			}
		}
	}
	return nil
}

func walkArray(path, field string, arr []any) *Error {
	for i, el := range arr {
		elPath := fmt.Sprintf("%s[%d]", path, i)
		node, ok := el.(map[string]any)
		if !ok {
			return &Error{
				Code:    CodeNodeShape,
				Message: fmt.Sprintf("%s must be an object with type %s and a random key.", elPath, content.ExpectedTypeLabel(field)),
			}
		}

		typ, _ := node["type"].(string)
		if typ == "" || typ == "object" || !content.KnownNodeType(field, typ) {
			return &Error{
				Code: CodeNodeShape,
				Message: fmt.Sprintf("%s has type %q but elements of %q must have type %s.",
					elPath, typ, field, content.ExpectedTypeLabel(field)),
			}
		}

		key, _ := node["key"].(string)
		if key == "" {
			return &Error{
				Code:    CodeNodeShape,
				Message: fmt.Sprintf("%s is missing its key. Every node in a structural array needs a random key.", elPath),
			}
		}

		if err := walkValue(elPath, map[string]any(node)); err != nil {
			return err
		}
	}
	return nil
}

func sortedPaths(fields map[string]any) []string {
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
