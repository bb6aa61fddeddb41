// Package app assembles pagecraft from its configuration: storage, the
// editor, the revision protocol and their background workers.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pagecraft/internal/config"
	"pagecraft/internal/domain"
	mcpserver "pagecraft/internal/mcp"
	"pagecraft/internal/registry"
	"pagecraft/internal/revision"
	"pagecraft/internal/service"
	"pagecraft/internal/storage"
	"pagecraft/internal/storage/mongostore"
	"pagecraft/internal/tree"
)

const shutdownGrace = 5 * time.Second

// Backend is what the app needs from a storage driver.
type Backend interface {
	domain.CompositionStore
	revision.Store
}

// App holds the wired components of one pagecraft process.
type App struct {
	cfg *config.Config
	log *zap.Logger

	store   Backend
	closeDB func(context.Context) error
	undo    service.UndoHistory

	Emitter     service.EventEmitter
	Editor      *service.Editor
	Agent       *mcpserver.AgentQueue
	Revisions   *revision.Protocol
	Watcher     *service.Watcher
	Maintenance *service.Maintenance
}

// New creates an App. Nothing is opened until Startup.
func New(cfg *config.Config, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{cfg: cfg, log: log, Emitter: service.ZapEmitter{Log: log.Named("events")}}
}

// Startup opens storage and builds the editor and revision protocol.
func (a *App) Startup(ctx context.Context) error {
	if err := a.openStore(ctx); err != nil {
		return err
	}

	model := tree.NewModel(registry.Default(), nil)
	opts := []service.EditorOption{
		service.WithEmitter(a.Emitter),
		service.WithLogger(a.log.Named("editor")),
	}
	if a.undo != nil {
		opts = append(opts, service.WithUndo(a.undo))
	}
	editor, err := service.NewEditor(a.store, model, opts...)
	if err != nil {
		a.Shutdown(ctx)
		return err
	}
	a.Editor = editor
	a.Agent = mcpserver.NewAgentQueue()
	a.Revisions = revision.New(a.store, a.Agent, editor, revision.WithLogger(a.log.Named("revision")))

	interval, err := a.cfg.WatchInterval()
	if err != nil {
		a.Shutdown(ctx)
		return err
	}
	wopts := []service.WatcherOption{service.WatcherLogger(a.log.Named("watcher"))}
	if a.cfg.Watcher.WatchFile && a.cfg.Storage.Driver == domain.DatabaseDriverSQLite {
		wopts = append(wopts, service.WatchFile(a.cfg.SQLitePath()))
	}
	a.Watcher = service.NewWatcher(editor, interval, wopts...)

	stuck, err := a.cfg.StuckAfter()
	if err != nil {
		a.Shutdown(ctx)
		return err
	}
	a.Maintenance = service.NewMaintenance(a.undo, a.store, stuck, a.Emitter, a.log.Named("maintenance"))
	return nil
}

func (a *App) openStore(ctx context.Context) error {
	conn := a.cfg.Connection()
	switch conn.Driver {
	case domain.DatabaseDriverMongoDB:
		ms, err := mongostore.Open(ctx, conn, a.log.Named("mongo"))
		if err != nil {
			return fmt.Errorf("open mongodb: %w", err)
		}
		a.store = ms
		a.closeDB = ms.Close
	default:
		db, err := storage.Open(ctx, conn)
		if err != nil {
			return fmt.Errorf("open %s: %w", conn.Driver, err)
		}
		st := storage.NewStore(db, a.cfg.Editor.UndoLimit)
		a.store = st
		a.undo = st.Undo
		a.closeDB = func(context.Context) error { return st.Close() }
	}
	a.log.Info("storage opened", zap.String("driver", string(conn.Driver)))
	return nil
}

// Store exposes the opened backend.
func (a *App) Store() Backend { return a.store }

// Shutdown closes storage.
func (a *App) Shutdown(ctx context.Context) {
	if a.closeDB == nil {
		return
	}
	if err := a.closeDB(ctx); err != nil {
		a.log.Warn("close storage", zap.Error(err))
	}
	a.closeDB = nil
}

// Run starts the background workers and blocks until ctx is cancelled or
// one of them fails. serve, when non-nil, runs alongside them; its return
// ends the run.
func (a *App) Run(ctx context.Context, serve func(ctx context.Context) error) error {
	if a.Editor == nil {
		return errors.New("app: Run before Startup")
	}
	if a.cfg.Maintenance.Enabled {
		if err := a.Maintenance.Start(ctx, a.cfg.Maintenance.Schedule); err != nil {
			return err
		}
		defer a.Maintenance.Stop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// The protocol outlives ctx so Close can apply queued completions.
	revCtx, stopRevisions := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRevisions()
	g.Go(func() error {
		if err := a.Revisions.Run(revCtx); err != nil && !errors.Is(err, revision.ErrClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.forwardRevisionEvents(ctx)
		return nil
	})
	g.Go(func() error { return a.Watcher.Run(ctx) })
	if serve != nil {
		g.Go(func() error {
			defer cancel()
			return serve(ctx)
		})
	}

	<-ctx.Done()
	closeCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer stop()
	if err := a.Revisions.Close(closeCtx); err != nil {
		a.log.Warn("close revisions", zap.Error(err))
	}
	stopRevisions()
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// forwardRevisionEvents republishes comment status changes on the emitter.
func (a *App) forwardRevisionEvents(ctx context.Context) {
	events := a.Revisions.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Err != nil {
				a.log.Warn("comment stuck", zap.String("commentId", ev.Comment.ID), zap.Error(ev.Err))
			}
			a.Emitter.Emit(ctx, revision.EventStatus, ev)
		}
	}
}

// MCPServer builds the MCP server over the wired components.
func (a *App) MCPServer(version string) *mcpserver.Server {
	return mcpserver.New(mcpserver.Deps{
		Editor:    a.Editor,
		Revisions: a.Revisions,
		Agent:     a.Agent,
		UserID:    a.cfg.Editor.UserID,
		Logger:    a.log.Named("mcp"),
		Version:   version,
	})
}
