package child

import (
	"context"

	"github.com/google/uuid"
)

// ChildRepository defines the persistence interface for children. Every
// read is scoped to the owning parent.
type ChildRepository interface {
	Create(ctx context.Context, c *Child) error
	GetForParent(ctx context.Context, id, parentID uuid.UUID) (*Child, error)
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]*Child, error)
	CountByParent(ctx context.Context, parentID uuid.UUID) (int, error)
}
