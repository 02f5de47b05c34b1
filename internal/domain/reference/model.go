package reference

import (
	"time"

	"github.com/google/uuid"
)

// Vaccine is a vaccine the service can schedule. The age band is advisory.
type Vaccine struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	Doses          int       `json:"doses"`
	MinAgeInMonths int       `json:"min_age_in_months"`
	MaxAgeInMonths *int      `json:"max_age_in_months,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// WithinAgeBand reports whether a child of the given age falls in the
// vaccine's recommended band.
func (v *Vaccine) WithinAgeBand(ageInMonths int) bool {
	if ageInMonths < v.MinAgeInMonths {
		return false
	}
	return v.MaxAgeInMonths == nil || ageInMonths <= *v.MaxAgeInMonths
}

// Venue is a physical vaccination site.
type Venue struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Region binds one doctor and one venue as the fulfillment site for the
// schedules requested against it.
type Region struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	VenueID   uuid.UUID `json:"venue_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegionView is a region with its doctor and venue names resolved.
type RegionView struct {
	Region
	DoctorName   *string `json:"doctor_name"`
	VenueName    *string `json:"venue_name"`
	VenueContact *string `json:"venue_contact"`
}

type VaccineRequest struct {
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	Doses          int     `json:"doses"`
	MinAgeInMonths int     `json:"min_age_in_months"`
	MaxAgeInMonths *int    `json:"max_age_in_months"`
}

type VenueRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type RegionRequest struct {
	Name     string `json:"name"`
	DoctorID string `json:"doctor"`
	VenueID  string `json:"venue"`
}
