package identity

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository defines the persistence interface for user accounts.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, role string, limit, offset int) ([]*User, int, error)

	// DoctorInUse reports whether a region or any schedule references the doctor.
	DoctorInUse(ctx context.Context, doctorID uuid.UUID) (bool, error)
	// HasLiveSchedules reports whether the parent owns a scheduled or
	// pending schedule.
	HasLiveSchedules(ctx context.Context, parentID uuid.UUID) (bool, error)
}
