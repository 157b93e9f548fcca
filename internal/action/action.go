package action

import (
	"strings"

	"github.com/google/uuid"
)

// Type identifies what an extracted action asks the engine to do.
type Type string

const (
	TypeCreate              Type = "create"
	TypeUpdate              Type = "update"
	TypeDelete              Type = "delete"
	TypeQuery               Type = "query"
	TypeNavigate            Type = "navigate"
	TypeExplain             Type = "explain"
	TypeUploadAsset         Type = "uploadAsset"
	TypeFetchExternalFrame  Type = "fetchExternalFrame"
	TypeUploadExternalAsset Type = "uploadExternalAsset"
)

var knownTypes = map[Type]struct{}{
	TypeCreate:              {},
	TypeUpdate:              {},
	TypeDelete:              {},
	TypeQuery:               {},
	TypeNavigate:            {},
	TypeExplain:             {},
	TypeUploadAsset:         {},
	TypeFetchExternalFrame:  {},
	TypeUploadExternalAsset: {},
}

// KnownType reports whether s names an action type the engine executes.
func KnownType(s string) bool {
	_, ok := knownTypes[Type(strings.TrimSpace(s))]
	return ok
}

// Status is the lifecycle state of a parsed action. Every action terminates
// in completed, failed, or cancelled; executing is the only transient state
// after pending.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Payload carries the type-specific arguments of an action. Exactly the
// fields relevant to the action type are meaningful; the executor ignores
// the rest.
type Payload struct {
	DocumentType string         `json:"documentType,omitempty"`
	DocumentID   string         `json:"documentId,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
	Query        string         `json:"query,omitempty"`
	Path         string         `json:"path,omitempty"`
	Explanation  string         `json:"explanation,omitempty"`

	// Asset actions.
	AssetKind string `json:"assetKind,omitempty"`
	AssetURL  string `json:"assetUrl,omitempty"`
	Filename  string `json:"filename,omitempty"`
	FileKey   string `json:"fileKey,omitempty"`
	FrameID   string `json:"frameId,omitempty"`

	// Create actions may carry a full page tree for the incremental builder.
	Title    string           `json:"title,omitempty"`
	Slug     string           `json:"slug,omitempty"`
	Sections []map[string]any `json:"sections,omitempty"`
}

// Result is the normalized outcome of executing an action. Execution never
// propagates errors past this shape.
type Result struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	DocumentID string         `json:"documentId,omitempty"`
	Data       any            `json:"data,omitempty"`
	PreState   map[string]any `json:"preState,omitempty"`
}

// ParsedAction is one structured command recovered from assistant reply
// text. The extractor creates it; only the executor mutates status, result,
// and error, and only the undo manager touches Result.PreState.
type ParsedAction struct {
	ID          string  `json:"id"`
	Type        Type    `json:"type"`
	Description string  `json:"description"`
	Status      Status  `json:"status"`
	Payload     Payload `json:"payload"`
	Result      *Result `json:"result,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// New returns a pending action with a fresh opaque ID.
func New(t Type, description string, payload Payload) *ParsedAction {
	return &ParsedAction{
		ID:          uuid.NewString(),
		Type:        t,
		Description: description,
		Status:      StatusPending,
		Payload:     payload,
	}
}

// Mutates reports whether executing the action changes backend state, which
// is what decides if a pre-state snapshot is worth capturing.
func (a *ParsedAction) Mutates() bool {
	switch a.Type {
	case TypeCreate, TypeUpdate, TypeDelete:
		return true
	default:
		return false
	}
}
