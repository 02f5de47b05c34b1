package vaccination

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScheduleRepository defines the persistence interface for vaccination
// schedules. Status writes are compare-and-swap: they only apply while the
// row still holds the expected status.
type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	GetView(ctx context.Context, id uuid.UUID) (*View, error)

	// UpdateStatus moves the schedule from one status to another. It
	// reports false when the row no longer holds from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)
	// Delete removes the schedule while it still holds status.
	Delete(ctx context.Context, id uuid.UUID, status Status) (bool, error)
	// MarkMissed moves every scheduled row dated before cutoff to missed
	// and returns the rows it changed.
	MarkMissed(ctx context.Context, cutoff time.Time) ([]*Schedule, error)

	ListForParent(ctx context.Context, parentID uuid.UUID) ([]*View, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*View, error)
	ListPending(ctx context.Context) ([]*View, error)
	List(ctx context.Context, status Status, limit, offset int) ([]*View, int, error)

	// ParentCounts returns the parent's scheduled entries dated on or after
	// from, and its pending entries.
	ParentCounts(ctx context.Context, parentID uuid.UUID, from time.Time) (upcoming, pending int, err error)

	HasLiveByVaccine(ctx context.Context, id uuid.UUID) (bool, error)
	HasLiveByRegion(ctx context.Context, id uuid.UUID) (bool, error)
	HasLiveByVenue(ctx context.Context, id uuid.UUID) (bool, error)
}
