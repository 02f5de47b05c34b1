package feedback

import (
	"context"
)

type FeedbackRepository interface {
	Create(ctx context.Context, f *Feedback) error
	// List returns entries newest first with the total count.
	List(ctx context.Context, limit, offset int) ([]*Entry, int, error)
}
