package vaccination

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vaxtrack/vaxtrack/internal/domain/child"
	"github.com/vaxtrack/vaxtrack/internal/domain/reference"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
)

// =========== Schedule repository ===========

type mockScheduleRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Schedule
	// children and vaccines back the joined views.
	children map[uuid.UUID]*child.Child
	vaccines map[uuid.UUID]*reference.Vaccine
	// beforeWrite runs inside UpdateStatus before the compare, to simulate a
	// concurrent writer.
	beforeWrite func(s *Schedule)
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{
		store:    make(map[uuid.UUID]*Schedule),
		children: make(map[uuid.UUID]*child.Child),
		vaccines: make(map[uuid.UUID]*reference.Vaccine),
	}
}

func (m *mockScheduleRepo) Create(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id uuid.UUID) (*Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, fmt.Errorf("get schedule: %w", pgx.ErrNoRows)
	}
	cp := *s
	return &cp, nil
}

func (m *mockScheduleRepo) view(s *Schedule) *View {
	v := &View{Schedule: *s}
	if c, ok := m.children[s.ChildID]; ok {
		v.ChildName = &c.Name
		dob := c.DateOfBirth
		v.ChildDOB = &dob
	}
	if vac, ok := m.vaccines[s.VaccineID]; ok {
		v.VaccineName = &vac.Name
		minAge := vac.MinAgeInMonths
		v.MinAgeInMonths = &minAge
		v.MaxAgeInMonths = vac.MaxAgeInMonths
	}
	return v
}

func (m *mockScheduleRepo) GetView(_ context.Context, id uuid.UUID) (*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, fmt.Errorf("get schedule view: %w", pgx.ErrNoRows)
	}
	return m.view(s), nil
}

func (m *mockScheduleRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return false, nil
	}
	if m.beforeWrite != nil {
		m.beforeWrite(s)
	}
	if s.Status != from {
		return false, nil
	}
	s.Status = to
	s.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockScheduleRepo) Delete(_ context.Context, id uuid.UUID, status Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.Status != status {
		return false, nil
	}
	delete(m.store, id)
	return true, nil
}

func (m *mockScheduleRepo) MarkMissed(_ context.Context, cutoff time.Time) ([]*Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var marked []*Schedule
	for _, s := range m.store {
		if s.Status == StatusScheduled && s.Date.Before(cutoff) {
			s.Status = StatusMissed
			cp := *s
			marked = append(marked, &cp)
		}
	}
	return marked, nil
}

func (m *mockScheduleRepo) filter(keep func(*Schedule) bool) []*View {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := []*View{}
	for _, s := range m.store {
		if keep(s) {
			views = append(views, m.view(s))
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Date.Before(views[j].Date) })
	return views
}

func (m *mockScheduleRepo) ListForParent(_ context.Context, parentID uuid.UUID) ([]*View, error) {
	return m.filter(func(s *Schedule) bool { return s.ParentID == parentID }), nil
}

func (m *mockScheduleRepo) ListForDoctor(_ context.Context, doctorID uuid.UUID) ([]*View, error) {
	return m.filter(func(s *Schedule) bool { return s.DoctorID == doctorID }), nil
}

func (m *mockScheduleRepo) ListPending(_ context.Context) ([]*View, error) {
	return m.filter(func(s *Schedule) bool { return s.Status == StatusPendingApproval }), nil
}

func (m *mockScheduleRepo) List(_ context.Context, status Status, limit, offset int) ([]*View, int, error) {
	views := m.filter(func(s *Schedule) bool { return status == "" || s.Status == status })
	total := len(views)
	if offset >= total {
		return []*View{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return views[offset:end], total, nil
}

func (m *mockScheduleRepo) ParentCounts(_ context.Context, parentID uuid.UUID, from time.Time) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var upcoming, pending int
	for _, s := range m.store {
		if s.ParentID != parentID {
			continue
		}
		if s.Status == StatusScheduled && !s.Date.Before(from) {
			upcoming++
		}
		if s.Status == StatusPendingApproval {
			pending++
		}
	}
	return upcoming, pending, nil
}

func (m *mockScheduleRepo) hasLive(match func(*Schedule) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.Status.Live() && match(s) {
			return true
		}
	}
	return false
}

func (m *mockScheduleRepo) HasLiveByVaccine(_ context.Context, id uuid.UUID) (bool, error) {
	return m.hasLive(func(s *Schedule) bool { return s.VaccineID == id }), nil
}

func (m *mockScheduleRepo) HasLiveByRegion(_ context.Context, id uuid.UUID) (bool, error) {
	return m.hasLive(func(s *Schedule) bool { return s.RegionID == id }), nil
}

func (m *mockScheduleRepo) HasLiveByVenue(_ context.Context, id uuid.UUID) (bool, error) {
	return m.hasLive(func(s *Schedule) bool { return s.VenueID == id }), nil
}

// =========== Lookups ===========

type mockChildren struct {
	repo *mockScheduleRepo
}

func (m mockChildren) GetChild(_ context.Context, id, parentID uuid.UUID) (*child.Child, error) {
	c, ok := m.repo.children[id]
	if !ok || c.ParentID != parentID {
		return nil, apperr.NotFound("Child not found or doesn't belong to the parent")
	}
	return c, nil
}

func (m mockChildren) CountChildren(_ context.Context, parentID uuid.UUID) (int, error) {
	n := 0
	for _, c := range m.repo.children {
		if c.ParentID == parentID {
			n++
		}
	}
	return n, nil
}

// memVaccines backs both the schedule service's lookups and a real
// reference.Service, so deletion guards run end to end.
type memVaccines struct {
	repo *mockScheduleRepo
}

func (m memVaccines) Create(_ context.Context, v *reference.Vaccine) error {
	v.ID = uuid.New()
	m.repo.vaccines[v.ID] = v
	return nil
}

func (m memVaccines) GetByID(_ context.Context, id uuid.UUID) (*reference.Vaccine, error) {
	v, ok := m.repo.vaccines[id]
	if !ok {
		return nil, fmt.Errorf("get vaccine: %w", pgx.ErrNoRows)
	}
	return v, nil
}

func (m memVaccines) Update(_ context.Context, v *reference.Vaccine) error {
	m.repo.vaccines[v.ID] = v
	return nil
}

func (m memVaccines) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.repo.vaccines, id)
	return nil
}

func (m memVaccines) List(_ context.Context) ([]*reference.Vaccine, error) {
	out := []*reference.Vaccine{}
	for _, v := range m.repo.vaccines {
		out = append(out, v)
	}
	return out, nil
}

type mockRefs struct {
	regions  map[uuid.UUID]*reference.Region
	vaccines memVaccines
}

func (m mockRefs) GetRegion(_ context.Context, id uuid.UUID) (*reference.Region, error) {
	r, ok := m.regions[id]
	if !ok {
		return nil, apperr.NotFound("Region not found")
	}
	return r, nil
}

func (m mockRefs) GetVaccine(ctx context.Context, id uuid.UUID) (*reference.Vaccine, error) {
	v, err := m.vaccines.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("Vaccine not found.")
	}
	return v, nil
}

type mockRoles map[uuid.UUID]string

func (m mockRoles) RoleOf(_ context.Context, id uuid.UUID) (string, error) {
	role, ok := m[id]
	if !ok {
		return "", apperr.NotFound("User not found.")
	}
	return role, nil
}

// =========== Publisher / observer ===========

type recordingPublisher struct {
	mu     sync.Mutex
	events []ScheduleEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, payload interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	evt, ok := payload.(ScheduleEvent)
	if !ok || eventType != EventStatusChanged {
		return errors.New("unexpected event")
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) actions() []Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Action, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

type countingObserver struct {
	mu             sync.Mutex
	transitions    map[string]int
	publishFailure int
	sweeps         int
	swept          int
	sweepErrs      int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{transitions: make(map[string]int)}
}

func (o *countingObserver) ObserveTransition(from, to string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions[from+"->"+to]++
}

func (o *countingObserver) ObservePublishFailure() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.publishFailure++
}

func (o *countingObserver) ObserveSweep(marked int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sweeps++
	o.swept += marked
	if err != nil {
		o.sweepErrs++
	}
}
