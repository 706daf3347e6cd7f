package facility

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/empathic/podiatry/internal/platform/db"
)

// ListFilter selects a page of facilities. Limit 0 returns every row.
type ListFilter struct {
	Scope  db.Scope
	Limit  int
	Offset int
}

// Repository persists facilities. Lookups that miss the requested scope
// return apperror.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, f *Facility) error
	Get(ctx context.Context, id uuid.UUID, scope db.Scope) (*Facility, error)
	Update(ctx context.Context, f *Facility) error
	Archive(ctx context.Context, id uuid.UUID, at time.Time) (*Facility, error)
	Restore(ctx context.Context, id uuid.UUID) (*Facility, error)
	Purge(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]*Facility, int, error)
}
