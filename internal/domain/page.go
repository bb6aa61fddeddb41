package domain

import (
	"context"
	"time"
)

type Page struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CompositionStore is the persistence collaborator for pages and their
// block compositions. SaveComposition is an atomic write that fails with
// ErrConflict when c.Version is not the stored version; on success it
// returns the new version.
type CompositionStore interface {
	CreatePage(ctx context.Context, p *Page, c Composition) error
	GetPage(ctx context.Context, id string) (*Page, error)
	ListPages(ctx context.Context) ([]Page, error)
	DeletePage(ctx context.Context, id string) error

	LoadComposition(ctx context.Context, pageID string) (Composition, error)
	SaveComposition(ctx context.Context, c Composition) (int64, error)
	CompositionVersion(ctx context.Context, pageID string) (int64, error)
}
