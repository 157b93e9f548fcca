package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/assets"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/builder"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/config"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/executor"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/extract"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/logging"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/store"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/store/memory"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/store/postgres"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/store/sqlite"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/undo"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/validate"
)

func openStore(ctx context.Context, cfg *config.ProjectConfig) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return postgres.New(ctx, cfg.Database.DSN)
	case "sqlite":
		return sqlite.New(ctx, cfg.Database.DSN)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}
}

// pipeline bundles the engine components the commands share.
type pipeline struct {
	cfg       *config.ProjectConfig
	db        store.Store
	extractor *extract.Extractor
	builder   *builder.Builder
	exec      *executor.Executor
	undo      *undo.Manager
	log       *zap.Logger
}

func newPipeline(ctx context.Context) (*pipeline, error) {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(logLevel)
	if err != nil {
		return nil, err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close(ctx)
		return nil, err
	}

	b := builder.New(db, cfg.Build.BatchSize, log)
	ap := assets.New(db, cfg.Assets.FrameBaseURL,
		time.Duration(cfg.Assets.FetchTimeoutSeconds)*time.Second, log)
	exec := executor.New(db, b, ap,
		validate.Config{MinKeyLength: cfg.Validation.MinKeyLength}, log)

	return &pipeline{
		cfg:       cfg,
		db:        db,
		extractor: extract.New(log),
		builder:   b,
		exec:      exec,
		undo:      undo.New(db, exec, log),
		log:       log,
	}, nil
}

func (p *pipeline) close(ctx context.Context) {
	_ = p.db.Close(ctx)
	_ = p.log.Sync()
}
