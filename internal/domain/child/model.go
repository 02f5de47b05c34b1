package child

import (
	"time"

	"github.com/google/uuid"
)

// Genders accepted for a child record.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

func validGender(g string) bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

// Child belongs to exactly one parent account.
type Child struct {
	ID          uuid.UUID `json:"id"`
	ParentID    uuid.UUID `json:"parent_id"`
	Name        string    `json:"name"`
	DateOfBirth time.Time `json:"dob"`
	Gender      string    `json:"gender"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateRequest struct {
	Name   string `json:"name"`
	DOB    string `json:"dob"`
	Gender string `json:"gender"`
}

// AgeInMonths returns the number of whole months between the child's birth
// and at.
func (c *Child) AgeInMonths(at time.Time) int {
	return MonthsBetween(c.DateOfBirth, at)
}

// MonthsBetween counts whole calendar months from start to end. A month is
// only counted once its day-of-month has been reached.
func MonthsBetween(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	months := (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	if end.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
