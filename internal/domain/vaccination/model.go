package vaccination

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a vaccination schedule.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusScheduled       Status = "scheduled"
	StatusCompleted       Status = "completed"
	StatusMissed          Status = "missed"
	StatusCancelled       Status = "cancelled"
	StatusRejectedByAdmin Status = "rejected_by_admin"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusScheduled, StatusCompleted, StatusMissed, StatusCancelled, StatusRejectedByAdmin:
		return true
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Live statuses block deletion of the reference data a schedule points at.
func (s Status) Live() bool {
	return s == StatusPendingApproval || s == StatusScheduled
}

// Schedule is one requested vaccination. DoctorID and VenueID are copied
// from the region when the schedule is created and never follow later
// region edits.
type Schedule struct {
	ID        uuid.UUID `json:"id"`
	ChildID   uuid.UUID `json:"child_id"`
	ParentID  uuid.UUID `json:"parent_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	VenueID   uuid.UUID `json:"venue_id"`
	RegionID  uuid.UUID `json:"region_id"`
	VaccineID uuid.UUID `json:"vaccine_id"`
	Date      time.Time `json:"date"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View is a schedule with its references resolved. Names of reference
// records deleted after the schedule finished are null.
type View struct {
	Schedule
	ChildName      *string    `json:"child_name"`
	ChildDOB       *time.Time `json:"child_dob"`
	ChildGender    *string    `json:"child_gender"`
	ParentName     *string    `json:"parent_name"`
	ParentEmail    *string    `json:"parent_email"`
	DoctorName     *string    `json:"doctor_name"`
	VenueName      *string    `json:"venue_name"`
	VenueContact   *string    `json:"venue_contact"`
	RegionName     *string    `json:"region_name"`
	VaccineName    *string    `json:"vaccine_name"`
	VaccineDoses   *int       `json:"vaccine_doses"`
	MinAgeInMonths *int       `json:"min_age_in_months"`
	MaxAgeInMonths *int       `json:"max_age_in_months"`
}

// ReviewView adds the decision-support fields shown to admins. They never
// block a review.
type ReviewView struct {
	View
	AgeInMonths   *int  `json:"age_in_months"`
	WithinAgeBand *bool `json:"within_age_band"`
}

type CreateRequest struct {
	Child   string `json:"child"`
	Vaccine string `json:"vaccine"`
	Region  string `json:"region"`
	Date    string `json:"date"`
}

// Decision is an admin's verdict on a pending schedule.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type ReviewRequest struct {
	Decision Decision `json:"decision"`
}

// Dashboard summarizes a parent's account.
type Dashboard struct {
	ChildrenCount        int `json:"childrenCount"`
	UpcomingVaccinations int `json:"upcomingVaccinations"`
	PendingApproval      int `json:"pendingApproval"`
}

// Event types published on every transition.
const (
	EventStatusChanged = "vaccination.schedule.status_changed"
)

// ScheduleEvent describes one status transition.
type ScheduleEvent struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	ChildID    uuid.UUID `json:"child_id"`
	ParentID   uuid.UUID `json:"parent_id"`
	DoctorID   uuid.UUID `json:"doctor_id"`
	From       Status    `json:"from,omitempty"`
	To         Status    `json:"to"`
	Action     Action    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}
