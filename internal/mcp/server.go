// Package mcp exposes the action pipeline as MCP tools for the host
// chat integration.
package mcp

import (
	"context"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/action"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/builder"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/executor"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/extract"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/store"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/undo"
)

type Server struct {
	db        store.Store
	extractor *extract.Extractor
	builder   *builder.Builder
	exec      *executor.Executor
	undo      *undo.Manager
	log       *zap.Logger
	mcp       *sdk.Server

	// Executed actions by ID, so undo_action can refer back to them.
	mu      sync.Mutex
	actions map[string]*action.ParsedAction
}

func NewServer(db store.Store, extractor *extract.Extractor, b *builder.Builder, exec *executor.Executor, um *undo.Manager, version string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		db:        db,
		extractor: extractor,
		builder:   b,
		exec:      exec,
		undo:      um,
		log:       log,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "mast",
			Version: version,
		}, nil),
		actions: make(map[string]*action.ParsedAction),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
