package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"pagecraft/internal/dnd"
	"pagecraft/internal/domain"
	"pagecraft/internal/selection"
	"pagecraft/internal/storage"
	"pagecraft/internal/tree"
	"pagecraft/internal/variant"
)

// ─────────────────────────────────────────────────────────────
// Editor: live compositions backed by the composition store
// ─────────────────────────────────────────────────────────────

// UndoHistory is the undo tree an Editor records into. storage.UndoStore
// implements it; a nil history disables undo.
type UndoHistory interface {
	PushNode(ctx context.Context, pageID, label string, c domain.Composition) (*storage.UndoNode, error)
	Current(ctx context.Context, pageID string) (*storage.UndoNode, error)
	Node(ctx context.Context, id string) (*storage.UndoNode, error)
	UndoTarget(ctx context.Context, pageID string) (*storage.UndoNode, error)
	RedoTarget(ctx context.Context, pageID string) (*storage.UndoNode, error)
	GoTo(ctx context.Context, pageID, nodeID string) (*storage.UndoNode, error)
	LoadTree(ctx context.Context, pageID string) (*storage.UndoTree, error)
	ClearPage(ctx context.Context, pageID string) error
	PruneAll(ctx context.Context) (int, error)
}

var _ UndoHistory = (*storage.UndoStore)(nil)

// Session is the in-memory state of one open page. Its composition is only
// replaced after the store accepted the write.
type Session struct {
	mu    sync.Mutex
	comp  domain.Composition
	stale bool
	props *selection.Editor
	drag  *dnd.Controller
}

// Editor owns one Session per open page and persists every committed
// mutation. A write that loses the optimistic version check marks the
// session stale, reloads it and rejects the mutation.
type Editor struct {
	store    domain.CompositionStore
	undo     UndoHistory
	model    *tree.Model
	variants *variant.Resolver
	emitter  EventEmitter
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

type EditorOption func(*Editor)

func WithUndo(u UndoHistory) EditorOption { return func(e *Editor) { e.undo = u } }

func WithEmitter(em EventEmitter) EditorOption { return func(e *Editor) { e.emitter = em } }

func WithLogger(l *zap.Logger) EditorOption { return func(e *Editor) { e.log = l } }

// WithVariants replaces the built-in variant catalogue.
func WithVariants(r *variant.Resolver) EditorOption { return func(e *Editor) { e.variants = r } }

// NewEditor creates an Editor over store.
func NewEditor(store domain.CompositionStore, model *tree.Model, opts ...EditorOption) (*Editor, error) {
	e := &Editor{
		store:    store,
		model:    model,
		emitter:  nopEmitter{},
		log:      zap.NewNop(),
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(e)
	}
	if e.variants == nil {
		r, err := variant.Default(model)
		if err != nil {
			return nil, fmt.Errorf("builtin variants: %w", err)
		}
		e.variants = r
	}
	return e, nil
}

func (e *Editor) Model() *tree.Model { return e.model }

func (e *Editor) Variants() *variant.Resolver { return e.variants }

// OpenPages lists the pages that currently have a session.
func (e *Editor) OpenPages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (e *Editor) session(ctx context.Context, pageID string) (*Session, error) {
	e.mu.Lock()
	s, ok := e.sessions[pageID]
	e.mu.Unlock()
	if ok {
		return s, nil
	}

	c, err := e.store.LoadComposition(ctx, pageID)
	if err != nil {
		return nil, err
	}
	fresh := &Session{comp: c, props: selection.NewEditor(e.model), drag: dnd.NewController(e.model)}

	e.mu.Lock()
	if s, ok = e.sessions[pageID]; !ok {
		e.sessions[pageID] = fresh
		s = fresh
	}
	e.mu.Unlock()

	if s == fresh {
		e.seedUndo(ctx, c)
	}
	return s, nil
}

// seedUndo records the loaded composition as the root of a page without
// history, so the first edit can be undone.
func (e *Editor) seedUndo(ctx context.Context, c domain.Composition) {
	if e.undo == nil {
		return
	}
	if _, err := e.undo.Current(ctx, c.PageID); err == nil || !errors.Is(err, domain.ErrNotFound) {
		return
	}
	if _, err := e.undo.PushNode(ctx, c.PageID, "open", c); err != nil {
		e.log.Warn("seed undo history", zap.String("pageId", c.PageID), zap.Error(err))
	}
}

// reload replaces the session composition with the stored one. Callers
// hold s.mu.
func (e *Editor) reload(ctx context.Context, pageID string, s *Session) error {
	c, err := e.store.LoadComposition(ctx, pageID)
	if err != nil {
		return err
	}
	s.comp = c
	s.stale = false
	s.props.Selected(c)
	return nil
}

// Composition returns a copy of the live composition of a page.
func (e *Editor) Composition(ctx context.Context, pageID string) (domain.Composition, error) {
	s, err := e.session(ctx, pageID)
	if err != nil {
		return domain.Composition{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		if err := e.reload(ctx, pageID, s); err != nil {
			return domain.Composition{}, err
		}
	}
	return s.comp.Clone(), nil
}

// Refresh reloads a page whose stored version moved on without this editor.
// It reports whether the session changed. Pages without a session are left
// alone.
func (e *Editor) Refresh(ctx context.Context, pageID string) (bool, error) {
	e.mu.Lock()
	s, ok := e.sessions[pageID]
	e.mu.Unlock()
	if !ok {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.comp.Version
	if err := e.reload(ctx, pageID, s); err != nil {
		return false, err
	}
	if s.comp.Version == before {
		return false, nil
	}
	e.log.Debug("page refreshed", zap.String("pageId", pageID), zap.Int64("from", before), zap.Int64("to", s.comp.Version))
	e.emitter.Emit(ctx, EventCompositionChanged, CompositionChanged{PageID: pageID, Version: s.comp.Version, Label: "refresh"})
	return true, nil
}

// Version returns the version the session of pageID holds, if open.
func (e *Editor) Version(pageID string) (int64, bool) {
	e.mu.Lock()
	s, ok := e.sessions[pageID]
	e.mu.Unlock()
	if !ok {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comp.Version, true
}

// Close drops the session of a page.
func (e *Editor) Close(pageID string) {
	e.mu.Lock()
	delete(e.sessions, pageID)
	e.mu.Unlock()
}

// conflict reloads a session whose write lost the version check and
// rejects the write. Callers hold s.mu.
func (e *Editor) conflict(ctx context.Context, pageID, label string, s *Session, cause error) (domain.Composition, error) {
	s.stale = true
	e.log.Warn("composition conflict, reloading",
		zap.String("pageId", pageID), zap.String("op", label), zap.Int64("version", s.comp.Version))
	if rerr := e.reload(ctx, pageID, s); rerr != nil {
		e.log.Error("reload after conflict", zap.String("pageId", pageID), zap.Error(rerr))
	}
	e.emitter.Emit(ctx, EventPageStale, CompositionChanged{PageID: pageID, Version: s.comp.Version, Label: label})
	return s.comp.Clone(), fmt.Errorf("%s: %w", label, cause)
}

// mutation computes the next composition from the current one. Returning
// changed=false skips the save. sel is a working copy of the session's
// selection; it replaces the live selection only once the save succeeds.
type mutation func(s *Session, sel *domain.Selection, c domain.Composition) (next domain.Composition, changed bool, err error)

// commit runs fn against the live composition and persists the result.
func (e *Editor) commit(ctx context.Context, pageID, label string, fn mutation) (domain.Composition, error) {
	s, err := e.session(ctx, pageID)
	if err != nil {
		return domain.Composition{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stale {
		if err := e.reload(ctx, pageID, s); err != nil {
			return domain.Composition{}, err
		}
	}
	sel := *s.props.Selection()
	next, changed, err := fn(s, &sel, s.comp)
	if err != nil {
		return s.comp.Clone(), err
	}
	if !changed {
		return s.comp.Clone(), nil
	}

	version, err := e.store.SaveComposition(ctx, next)
	if errors.Is(err, domain.ErrConflict) {
		return e.conflict(ctx, pageID, label, s, err)
	}
	if err != nil {
		return s.comp.Clone(), fmt.Errorf("%s: persist: %w", label, err)
	}
	next.Version = version
	s.comp = next
	*s.props.Selection() = sel

	if e.undo != nil {
		if _, err := e.undo.PushNode(ctx, pageID, label, next); err != nil {
			e.log.Warn("record undo", zap.String("pageId", pageID), zap.String("op", label), zap.Error(err))
		}
	}
	e.log.Debug("composition saved", zap.String("pageId", pageID), zap.String("op", label), zap.Int64("version", version))
	e.emitter.Emit(ctx, EventCompositionChanged, CompositionChanged{PageID: pageID, Version: version, Label: label})
	return next.Clone(), nil
}
