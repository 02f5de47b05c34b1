package reference

import (
	"context"

	"github.com/google/uuid"
)

type VaccineRepository interface {
	Create(ctx context.Context, v *Vaccine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Vaccine, error)
	Update(ctx context.Context, v *Vaccine) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Vaccine, error)
}

type VenueRepository interface {
	Create(ctx context.Context, v *Venue) error
	GetByID(ctx context.Context, id uuid.UUID) (*Venue, error)
	Update(ctx context.Context, v *Venue) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Venue, error)
}

type RegionRepository interface {
	Create(ctx context.Context, r *Region) error
	GetByID(ctx context.Context, id uuid.UUID) (*Region, error)
	Update(ctx context.Context, r *Region) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*RegionView, error)
	ExistsForVenue(ctx context.Context, venueID uuid.UUID) (bool, error)
}

// ScheduleUsage reports whether a live (scheduled or pending) vaccination
// schedule references a reference record. The vaccination repository
// implements it.
type ScheduleUsage interface {
	HasLiveByVaccine(ctx context.Context, id uuid.UUID) (bool, error)
	HasLiveByRegion(ctx context.Context, id uuid.UUID) (bool, error)
	HasLiveByVenue(ctx context.Context, id uuid.UUID) (bool, error)
}

// DoctorLookup resolves a user id to its role.
type DoctorLookup interface {
	RoleOf(ctx context.Context, id uuid.UUID) (string, error)
}
