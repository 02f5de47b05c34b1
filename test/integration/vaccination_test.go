//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaxtrack/vaxtrack/internal/domain/child"
	"github.com/vaxtrack/vaxtrack/internal/domain/feedback"
	"github.com/vaxtrack/vaxtrack/internal/domain/identity"
	"github.com/vaxtrack/vaxtrack/internal/domain/reference"
	"github.com/vaxtrack/vaxtrack/internal/domain/vaccination"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/clock"
	"github.com/vaxtrack/vaxtrack/internal/platform/db"
)

type services struct {
	clock     *clock.Fixed
	users     *identity.Service
	refs      *reference.Service
	schedules *vaccination.Service
	repo      vaccination.ScheduleRepository
}

func newServices() *services {
	clk := clock.NewFixed(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	tokens := auth.NewTokenIssuer([]byte("integration"), "vaxtrack", time.Hour, clk)
	repo := vaccination.NewScheduleRepoPG(globalPool)

	s := &services{clock: clk, repo: repo}
	s.users = identity.NewService(identity.NewUserRepoPG(globalPool), tokens, nil, 4, zerolog.Nop())
	children := child.NewService(child.NewChildRepoPG(globalPool), clk)
	s.refs = reference.NewService(
		reference.NewVaccineRepoPG(globalPool),
		reference.NewVenueRepoPG(globalPool),
		reference.NewRegionRepoPG(globalPool),
		s.users,
		repo,
	)
	s.schedules = vaccination.NewService(vaccination.Deps{
		Schedules: repo,
		Children:  children,
		Refs:      s.refs,
		Users:     s.users,
		Clock:     clk,
		Logger:    zerolog.Nop(),
	})
	return s
}

func TestScheduleLifecycle(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	svc := newServices()

	parent := createUser(t, ctx, auth.RoleParent)
	doctor := createUser(t, ctx, auth.RoleDoctor)
	c := createChild(t, ctx, parent.ID, date(2023, 9, 1))
	rs := createReferences(t, ctx, doctor.ID)

	sched, err := svc.schedules.RequestSchedule(ctx, parent.ID, vaccination.CreateRequest{
		Child:   c.ID.String(),
		Vaccine: rs.vaccine.ID.String(),
		Region:  rs.region.ID.String(),
		Date:    "2024-06-10",
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if sched.DoctorID != doctor.ID || sched.VenueID != rs.venue.ID {
		t.Fatal("expected doctor and venue copied from the region")
	}

	pending, err := svc.schedules.ListPending(ctx)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending, got %d (%v)", len(pending), err)
	}
	p := pending[0]
	if p.ChildName == nil || *p.ChildName != "Mira" || p.VenueName == nil || *p.VenueName != "Clinic A" {
		t.Errorf("expected joined names, got %+v", p.View)
	}
	if p.AgeInMonths == nil || *p.AgeInMonths != 9 || p.WithinAgeBand == nil || !*p.WithinAgeBand {
		t.Errorf("unexpected age fields: %v %v", p.AgeInMonths, p.WithinAgeBand)
	}

	if _, err := svc.schedules.ReviewSchedule(ctx, sched.ID, vaccination.DecisionApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.schedules.CompleteSchedule(ctx, doctor.ID, sched.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = svc.schedules.CompleteSchedule(ctx, doctor.ID, sched.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict on second completion, got %v", err)
	}

	if err := svc.schedules.DeleteSchedule(ctx, sched.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.repo.GetByID(ctx, sched.ID); !db.IsNoRows(err) {
		t.Errorf("expected schedule gone, got %v", err)
	}
}

func TestUpdateStatus_CompareAndSwap(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	svc := newServices()

	parent := createUser(t, ctx, auth.RoleParent)
	doctor := createUser(t, ctx, auth.RoleDoctor)
	c := createChild(t, ctx, parent.ID, date(2023, 9, 1))
	rs := createReferences(t, ctx, doctor.ID)
	s := &vaccination.Schedule{
		ChildID: c.ID, ParentID: parent.ID, DoctorID: doctor.ID, VenueID: rs.venue.ID,
		RegionID: rs.region.ID, VaccineID: rs.vaccine.ID, Date: date(2024, 7, 1),
		Status: vaccination.StatusPendingApproval,
	}
	if err := svc.repo.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan bool, 2)
	for _, to := range []vaccination.Status{vaccination.StatusScheduled, vaccination.StatusRejectedByAdmin} {
		wg.Add(1)
		go func(to vaccination.Status) {
			defer wg.Done()
			ok, err := svc.repo.UpdateStatus(ctx, s.ID, vaccination.StatusPendingApproval, to)
			if err != nil {
				t.Errorf("update: %v", err)
			}
			results <- ok
		}(to)
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one winning write, got %d", wins)
	}
}

func TestMarkMissed(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	svc := newServices()

	parent := createUser(t, ctx, auth.RoleParent)
	doctor := createUser(t, ctx, auth.RoleDoctor)
	c := createChild(t, ctx, parent.ID, date(2023, 9, 1))
	rs := createReferences(t, ctx, doctor.ID)

	mk := func(d time.Time, status vaccination.Status) *vaccination.Schedule {
		s := &vaccination.Schedule{
			ChildID: c.ID, ParentID: parent.ID, DoctorID: doctor.ID, VenueID: rs.venue.ID,
			RegionID: rs.region.ID, VaccineID: rs.vaccine.ID, Date: d, Status: status,
		}
		if err := svc.repo.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
		return s
	}
	overdue := mk(date(2024, 6, 9), vaccination.StatusScheduled)
	mk(date(2024, 6, 10), vaccination.StatusScheduled)
	mk(date(2024, 6, 1), vaccination.StatusPendingApproval)

	n, err := svc.schedules.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one row marked, got %d (%v)", n, err)
	}
	got, _ := svc.repo.GetByID(ctx, overdue.ID)
	if got.Status != vaccination.StatusMissed {
		t.Errorf("expected missed, got %s", got.Status)
	}
	if n, _ := svc.schedules.Sweep(ctx); n != 0 {
		t.Errorf("second sweep marked %d", n)
	}

	upcoming, pending, err := svc.repo.ParentCounts(ctx, parent.ID, date(2024, 6, 10))
	if err != nil || upcoming != 1 || pending != 1 {
		t.Errorf("expected 1 upcoming and 1 pending, got %d/%d (%v)", upcoming, pending, err)
	}
}

func TestReferenceDeletionGuards(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	svc := newServices()

	parent := createUser(t, ctx, auth.RoleParent)
	doctor := createUser(t, ctx, auth.RoleDoctor)
	c := createChild(t, ctx, parent.ID, date(2023, 9, 1))
	rs := createReferences(t, ctx, doctor.ID)
	sched, err := svc.schedules.RequestSchedule(ctx, parent.ID, vaccination.CreateRequest{
		Child: c.ID.String(), Vaccine: rs.vaccine.ID.String(), Region: rs.region.ID.String(), Date: "2024-07-01",
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	for name, del := range map[string]func() error{
		"vaccine": func() error { return svc.refs.DeleteVaccine(ctx, rs.vaccine.ID) },
		"region":  func() error { return svc.refs.DeleteRegion(ctx, rs.region.ID) },
		"venue":   func() error { return svc.refs.DeleteVenue(ctx, rs.venue.ID) },
		"doctor":  func() error { return svc.users.DeleteUser(ctx, parent.ID, doctor.ID) },
	} {
		if err := del(); !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("%s: expected conflict, got %v", name, err)
		}
	}

	if _, err := svc.schedules.ReviewSchedule(ctx, sched.ID, vaccination.DecisionReject); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := svc.refs.DeleteVaccine(ctx, rs.vaccine.ID); err != nil {
		t.Errorf("vaccine should be deletable once no schedule is live: %v", err)
	}
}

func TestChildScopedToParent(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := child.NewChildRepoPG(globalPool)

	owner := createUser(t, ctx, auth.RoleParent)
	other := createUser(t, ctx, auth.RoleParent)
	c := createChild(t, ctx, owner.ID, date(2022, 1, 15))

	if _, err := repo.GetForParent(ctx, c.ID, other.ID); !db.IsNoRows(err) {
		t.Errorf("expected no rows for another parent, got %v", err)
	}
	got, err := repo.GetForParent(ctx, c.ID, owner.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.DateOfBirth.Equal(date(2022, 1, 15)) {
		t.Errorf("expected date of birth to round-trip, got %v", got.DateOfBirth)
	}
}

func TestUserEmailUnique(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	svc := newServices()

	req := identity.SignupRequest{Name: "Pat", Email: "pat@example.com", Password: "password1"}
	if _, err := svc.users.Signup(ctx, req); err != nil {
		t.Fatalf("signup: %v", err)
	}
	req.Email = "PAT@example.com"
	if _, err := svc.users.Signup(ctx, req); !errors.Is(err, apperr.ErrValidation) && !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected duplicate rejection, got %v", err)
	}
}

func TestFeedbackNewestFirst(t *testing.T) {
	resetDB(t)
	ctx := context.Background()
	repo := feedback.NewFeedbackRepoPG(globalPool)
	user := createUser(t, ctx, auth.RoleParent)

	for _, m := range []string{"first", "second"} {
		if err := repo.Create(ctx, &feedback.Feedback{UserID: user.ID, Message: m}); err != nil {
			t.Fatalf("create: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	entries, total, err := repo.List(ctx, 10, 0)
	if err != nil || total != 2 {
		t.Fatalf("expected 2 entries, got %d (%v)", total, err)
	}
	if entries[0].Message != "second" || entries[0].UserEmail == nil || *entries[0].UserEmail != user.Email {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
}
