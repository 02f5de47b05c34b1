package vaccination

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxtrack/vaxtrack/internal/domain/child"
	"github.com/vaxtrack/vaxtrack/internal/domain/reference"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/clock"
	"github.com/vaxtrack/vaxtrack/internal/platform/db"
	"github.com/vaxtrack/vaxtrack/internal/platform/events"
)

// ChildLookup resolves children scoped to their parent.
type ChildLookup interface {
	GetChild(ctx context.Context, id, parentID uuid.UUID) (*child.Child, error)
	CountChildren(ctx context.Context, parentID uuid.UUID) (int, error)
}

// ReferenceLookup resolves regions and vaccines.
type ReferenceLookup interface {
	GetRegion(ctx context.Context, id uuid.UUID) (*reference.Region, error)
	GetVaccine(ctx context.Context, id uuid.UUID) (*reference.Vaccine, error)
}

// RoleLookup resolves a user id to its role.
type RoleLookup interface {
	RoleOf(ctx context.Context, id uuid.UUID) (string, error)
}

// Observer receives transition and publish-failure counts.
type Observer interface {
	ObserveTransition(from, to string)
	ObservePublishFailure()
}

type Service struct {
	schedules ScheduleRepository
	children  ChildLookup
	refs      ReferenceLookup
	users     RoleLookup
	publisher events.Publisher
	observer  Observer
	clock     clock.Clock
	logger    zerolog.Logger
}

type Deps struct {
	Schedules ScheduleRepository
	Children  ChildLookup
	Refs      ReferenceLookup
	Users     RoleLookup
	Publisher events.Publisher
	Observer  Observer
	Clock     clock.Clock
	Logger    zerolog.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		schedules: d.Schedules,
		children:  d.Children,
		refs:      d.Refs,
		users:     d.Users,
		publisher: d.Publisher,
		observer:  d.Observer,
		clock:     d.Clock,
		logger:    d.Logger.With().Str("component", "vaccination").Logger(),
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.publisher == nil {
		s.publisher = events.NewLogPublisher(d.Logger)
	}
	return s
}

// RequestSchedule creates a pending schedule for one of the parent's
// children. The region's doctor and venue are copied onto the schedule.
func (s *Service) RequestSchedule(ctx context.Context, parentID uuid.UUID, req CreateRequest) (*Schedule, error) {
	if req.Child == "" || req.Vaccine == "" || req.Region == "" || req.Date == "" {
		return nil, apperr.Validation("Please provide all required details (child, vaccine, region, date).")
	}
	date, err := clock.ParseDate(req.Date)
	if err != nil {
		return nil, apperr.Validation("Invalid schedule date.")
	}
	if date.Before(clock.Today(s.clock)) {
		return nil, apperr.Validation("Schedule date cannot be in the past.")
	}

	childID, err := uuid.Parse(req.Child)
	if err != nil {
		return nil, apperr.NotFound("Child not found or doesn't belong to the parent")
	}
	regionID, err := uuid.Parse(req.Region)
	if err != nil {
		return nil, apperr.NotFound("Region not found")
	}
	vaccineID, err := uuid.Parse(req.Vaccine)
	if err != nil {
		return nil, apperr.NotFound("Vaccine not found")
	}

	c, err := s.children.GetChild(ctx, childID, parentID)
	if err != nil {
		return nil, err
	}
	region, err := s.refs.GetRegion(ctx, regionID)
	if err != nil {
		return nil, err
	}
	role, err := s.users.RoleOf(ctx, region.DoctorID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if err != nil || role != auth.RoleDoctor {
		return nil, apperr.Validation("Doctor assigned to the region not found or is not a valid doctor.")
	}
	if _, err := s.refs.GetVaccine(ctx, vaccineID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("Vaccine not found")
		}
		return nil, err
	}

	status, err := Next("", ActionRequest)
	if err != nil {
		return nil, err
	}
	sched := &Schedule{
		ChildID:   c.ID,
		ParentID:  parentID,
		DoctorID:  region.DoctorID,
		VenueID:   region.VenueID,
		RegionID:  region.ID,
		VaccineID: vaccineID,
		Date:      date,
		Status:    status,
	}
	if err := s.schedules.Create(ctx, sched); err != nil {
		return nil, err
	}
	s.transitioned(ctx, sched, "", ActionRequest)
	return sched, nil
}

// ReviewSchedule approves or rejects a pending schedule. The returned view
// carries the child's age at the scheduled date and the vaccine's band.
func (s *Service) ReviewSchedule(ctx context.Context, id uuid.UUID, decision Decision) (*ReviewView, error) {
	var action Action
	switch decision {
	case DecisionApprove:
		action = ActionApprove
	case DecisionReject:
		action = ActionReject
	default:
		return nil, apperr.Validation("Decision must be 'approve' or 'reject'.")
	}

	sched, err := s.get(ctx, id, "Vaccination schedule not found.")
	if err != nil {
		return nil, err
	}
	if !Allowed(sched.Status, action) {
		return nil, apperr.Conflict("Only vaccinations with status 'pending_approval' can be reviewed. Current status: %s", sched.Status)
	}
	if err := s.move(ctx, sched, action); err != nil {
		return nil, err
	}

	view, err := s.schedules.GetView(ctx, id)
	if err != nil {
		return nil, err
	}
	return withAge(view), nil
}

// CompleteSchedule marks a scheduled vaccination done. Only the schedule's
// own doctor may complete it; anyone else sees it as missing.
func (s *Service) CompleteSchedule(ctx context.Context, doctorID, id uuid.UUID) (*Schedule, error) {
	const notFound = "vaccination schedule not found or not authorized."
	sched, err := s.get(ctx, id, notFound)
	if err != nil {
		return nil, err
	}
	if sched.DoctorID != doctorID {
		return nil, apperr.NotFound("%s", notFound)
	}
	if !Allowed(sched.Status, ActionComplete) {
		return nil, apperr.Conflict("Only vaccinations with status 'scheduled' can be completed. Current status: %s", sched.Status)
	}
	if err := s.move(ctx, sched, ActionComplete); err != nil {
		return nil, err
	}
	return sched, nil
}

// CancelSchedule cancels one of the parent's own pending or scheduled
// entries.
func (s *Service) CancelSchedule(ctx context.Context, parentID, id uuid.UUID) (*Schedule, error) {
	const notFound = "Vaccination schedule not found or not authorized."
	sched, err := s.get(ctx, id, notFound)
	if err != nil {
		return nil, err
	}
	if sched.ParentID != parentID {
		return nil, apperr.NotFound("%s", notFound)
	}
	if !Allowed(sched.Status, ActionCancel) {
		return nil, apperr.Conflict("Only vaccinations with status 'scheduled' or 'pending_approval' can be cancelled. Current status: %s", sched.Status)
	}
	if err := s.move(ctx, sched, ActionCancel); err != nil {
		return nil, err
	}
	return sched, nil
}

// DeleteSchedule permanently removes a schedule in a terminal status.
func (s *Service) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	sched, err := s.get(ctx, id, "Vaccination schedule not found.")
	if err != nil {
		return err
	}
	if !sched.Status.Terminal() {
		return apperr.Validation("Vaccination schedule cannot be deleted. Current status: %s", sched.Status)
	}
	ok, err := s.schedules.Delete(ctx, id, sched.Status)
	if err != nil {
		return err
	}
	if !ok {
		return s.raced(ctx, id, "delete")
	}
	s.logger.Info().Str("schedule_id", id.String()).Str("status", string(sched.Status)).Msg("schedule deleted")
	return nil
}

// Sweep marks every scheduled entry dated before today as missed and
// returns how many rows changed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	today := clock.Today(s.clock)
	marked, err := s.schedules.MarkMissed(ctx, today)
	if err != nil {
		return 0, err
	}
	for _, sched := range marked {
		s.transitioned(ctx, sched, StatusScheduled, ActionMiss)
	}
	return len(marked), nil
}

func (s *Service) ListForParent(ctx context.Context, parentID uuid.UUID) ([]*View, error) {
	return s.schedules.ListForParent(ctx, parentID)
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*View, error) {
	return s.schedules.ListForDoctor(ctx, doctorID)
}

// ListPending returns pending schedules with the age-band fields admins use
// to decide.
func (s *Service) ListPending(ctx context.Context) ([]*ReviewView, error) {
	views, err := s.schedules.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*ReviewView, 0, len(views))
	for _, v := range views {
		out = append(out, withAge(v))
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]*View, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperr.Validation("Invalid status: %s", status)
	}
	return s.schedules.List(ctx, status, limit, offset)
}

func (s *Service) Dashboard(ctx context.Context, parentID uuid.UUID) (*Dashboard, error) {
	children, err := s.children.CountChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}
	upcoming, pending, err := s.schedules.ParentCounts(ctx, parentID, clock.Today(s.clock))
	if err != nil {
		return nil, err
	}
	return &Dashboard{ChildrenCount: children, UpcomingVaccinations: upcoming, PendingApproval: pending}, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID, notFound string) (*Schedule, error) {
	sched, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("%s", notFound)
		}
		return nil, err
	}
	return sched, nil
}

// move applies action to sched with a compare-and-swap on its current
// status and updates sched in place.
func (s *Service) move(ctx context.Context, sched *Schedule, action Action) error {
	from := sched.Status
	to, err := Next(from, action)
	if err != nil {
		return err
	}
	ok, err := s.schedules.UpdateStatus(ctx, sched.ID, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return s.raced(ctx, sched.ID, string(action))
	}
	sched.Status = to
	s.transitioned(ctx, sched, from, action)
	return nil
}

// raced reports a write that lost to a concurrent change.
func (s *Service) raced(ctx context.Context, id uuid.UUID, action string) error {
	current, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return apperr.NotFound("Vaccination schedule not found.")
		}
		return err
	}
	return apperr.Conflict("Cannot %s a vaccination schedule with status '%s'.", action, current.Status)
}

// transitioned records a successful transition and publishes its event.
// Publishing is best-effort.
func (s *Service) transitioned(ctx context.Context, sched *Schedule, from Status, action Action) {
	if s.observer != nil {
		s.observer.ObserveTransition(string(from), string(sched.Status))
	}
	s.logger.Info().
		Str("schedule_id", sched.ID.String()).
		Str("from", string(from)).
		Str("to", string(sched.Status)).
		Str("action", string(action)).
		Msg("schedule transition")

	evt := ScheduleEvent{
		ScheduleID: sched.ID,
		ChildID:    sched.ChildID,
		ParentID:   sched.ParentID,
		DoctorID:   sched.DoctorID,
		From:       from,
		To:         sched.Status,
		Action:     action,
		OccurredAt: s.clock.Now().UTC(),
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), EventStatusChanged, evt); err != nil {
		if s.observer != nil {
			s.observer.ObservePublishFailure()
		}
		s.logger.Warn().Err(err).Str("schedule_id", sched.ID.String()).Msg("schedule event not published")
	}
}

// withAge derives the decision-support fields from a view.
func withAge(v *View) *ReviewView {
	rv := &ReviewView{View: *v}
	if v.ChildDOB == nil {
		return rv
	}
	age := child.MonthsBetween(*v.ChildDOB, v.Date)
	rv.AgeInMonths = &age
	if v.MinAgeInMonths != nil {
		band := reference.Vaccine{MinAgeInMonths: *v.MinAgeInMonths, MaxAgeInMonths: v.MaxAgeInMonths}
		within := band.WithinAgeBand(age)
		rv.WithinAgeBand = &within
	}
	return rv
}
