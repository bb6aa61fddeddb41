package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pagecraft/internal/domain"
)

// CreatePage stores a new empty page and returns it.
func (e *Editor) CreatePage(ctx context.Context, name string) (*domain.Page, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Fields: []domain.FieldError{{Field: "name", Reason: "required"}}}
	}
	p := &domain.Page{ID: uuid.New().String(), Name: name}
	if err := e.store.CreatePage(ctx, p, domain.NewComposition(p.ID)); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	e.log.Info("page created", zap.String("pageId", p.ID), zap.String("name", name))
	e.emitter.Emit(ctx, EventPagesChanged, p)
	return p, nil
}

func (e *Editor) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	return e.store.GetPage(ctx, id)
}

func (e *Editor) ListPages(ctx context.Context) ([]domain.Page, error) {
	return e.store.ListPages(ctx)
}

// DeletePage removes the page with its composition, comments and history,
// and closes its session.
func (e *Editor) DeletePage(ctx context.Context, id string) error {
	if err := e.store.DeletePage(ctx, id); err != nil {
		return err
	}
	e.Close(id)
	if e.undo != nil {
		if err := e.undo.ClearPage(ctx, id); err != nil {
			e.log.Warn("clear undo history", zap.String("pageId", id), zap.Error(err))
		}
	}
	e.emitter.Emit(ctx, EventPagesChanged, map[string]string{"deleted": id})
	return nil
}
