package child

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/clock"
	"github.com/vaxtrack/vaxtrack/internal/platform/db"
)

type Service struct {
	children ChildRepository
	clock    clock.Clock
}

func NewService(children ChildRepository, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{children: children, clock: clk}
}

func (s *Service) AddChild(ctx context.Context, parentID uuid.UUID, req CreateRequest) (*Child, error) {
	name := strings.TrimSpace(req.Name)
	gender := strings.ToLower(strings.TrimSpace(req.Gender))
	if name == "" || req.DOB == "" || gender == "" {
		return nil, apperr.Validation("Please provide all details.")
	}
	if !validGender(gender) {
		return nil, apperr.Validation("Gender must be one of male, female or other.")
	}
	dob, err := clock.ParseDate(req.DOB)
	if err != nil {
		return nil, apperr.Validation("Invalid date of birth.")
	}
	if dob.After(clock.Today(s.clock)) {
		return nil, apperr.Validation("Date of birth cannot be in the future.")
	}

	c := &Child{ParentID: parentID, Name: name, DateOfBirth: dob, Gender: gender}
	if err := s.children.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetChild returns the child only when it belongs to parentID.
func (s *Service) GetChild(ctx context.Context, id, parentID uuid.UUID) (*Child, error) {
	c, err := s.children.GetForParent(ctx, id, parentID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("Child not found or doesn't belong to the parent")
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*Child, error) {
	return s.children.ListByParent(ctx, parentID)
}

func (s *Service) CountChildren(ctx context.Context, parentID uuid.UUID) (int, error) {
	return s.children.CountByParent(ctx, parentID)
}
