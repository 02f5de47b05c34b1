package reference

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/db"
)

type Service struct {
	vaccines VaccineRepository
	venues   VenueRepository
	regions  RegionRepository
	doctors  DoctorLookup
	usage    ScheduleUsage
}

func NewService(vaccines VaccineRepository, venues VenueRepository, regions RegionRepository, doctors DoctorLookup, usage ScheduleUsage) *Service {
	return &Service{vaccines: vaccines, venues: venues, regions: regions, doctors: doctors, usage: usage}
}

// translate maps repository errors onto the public taxonomy for kind.
func translate(err error, kind string) error {
	switch {
	case err == nil:
		return nil
	case db.IsNoRows(err):
		return apperr.NotFound("%s not found.", kind)
	case db.IsUniqueViolation(err):
		return apperr.Conflict("%s already exists.", kind)
	case db.IsForeignKeyViolation(err):
		return apperr.Conflict("%s cannot be deleted. It is still referenced.", kind)
	default:
		return err
	}
}

func inUse(kind string) error {
	return apperr.Conflict("%s cannot be deleted. It is part of active or pending vaccination schedules.", kind)
}

// -- Vaccine --

func buildVaccine(req VaccineRequest) (*Vaccine, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Doses == 0 {
		return nil, apperr.Validation("Please provide all required details.")
	}
	if req.Doses < 0 {
		return nil, apperr.Validation("Doses must be a positive number.")
	}
	if req.MinAgeInMonths < 0 {
		return nil, apperr.Validation("Minimum age cannot be negative.")
	}
	if req.MaxAgeInMonths != nil && *req.MaxAgeInMonths < req.MinAgeInMonths {
		return nil, apperr.Validation("Maximum age cannot be less than minimum age.")
	}
	v := &Vaccine{
		Name:           name,
		Doses:          req.Doses,
		MinAgeInMonths: req.MinAgeInMonths,
		MaxAgeInMonths: req.MaxAgeInMonths,
	}
	if req.Description != nil {
		if d := strings.TrimSpace(*req.Description); d != "" {
			v.Description = &d
		}
	}
	return v, nil
}

func (s *Service) CreateVaccine(ctx context.Context, req VaccineRequest) (*Vaccine, error) {
	v, err := buildVaccine(req)
	if err != nil {
		return nil, err
	}
	if err := s.vaccines.Create(ctx, v); err != nil {
		return nil, translate(err, "Vaccine")
	}
	return v, nil
}

func (s *Service) UpdateVaccine(ctx context.Context, id uuid.UUID, req VaccineRequest) (*Vaccine, error) {
	v, err := buildVaccine(req)
	if err != nil {
		return nil, err
	}
	v.ID = id
	if err := s.vaccines.Update(ctx, v); err != nil {
		return nil, translate(err, "Vaccine")
	}
	return v, nil
}

func (s *Service) GetVaccine(ctx context.Context, id uuid.UUID) (*Vaccine, error) {
	v, err := s.vaccines.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "Vaccine")
	}
	return v, nil
}

func (s *Service) ListVaccines(ctx context.Context) ([]*Vaccine, error) {
	return s.vaccines.List(ctx)
}

func (s *Service) DeleteVaccine(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetVaccine(ctx, id); err != nil {
		return err
	}
	live, err := s.usage.HasLiveByVaccine(ctx, id)
	if err != nil {
		return err
	}
	if live {
		return inUse("Vaccine")
	}
	return translate(s.vaccines.Delete(ctx, id), "Vaccine")
}

// -- Venue --

func buildVenue(req VenueRequest) (*Venue, error) {
	name, contact := strings.TrimSpace(req.Name), strings.TrimSpace(req.Contact)
	if name == "" || contact == "" {
		return nil, apperr.Validation("Please provide all required details.")
	}
	return &Venue{Name: name, Contact: contact}, nil
}

func (s *Service) CreateVenue(ctx context.Context, req VenueRequest) (*Venue, error) {
	v, err := buildVenue(req)
	if err != nil {
		return nil, err
	}
	if err := s.venues.Create(ctx, v); err != nil {
		return nil, translate(err, "Venue")
	}
	return v, nil
}

func (s *Service) UpdateVenue(ctx context.Context, id uuid.UUID, req VenueRequest) (*Venue, error) {
	v, err := buildVenue(req)
	if err != nil {
		return nil, err
	}
	v.ID = id
	if err := s.venues.Update(ctx, v); err != nil {
		return nil, translate(err, "Venue")
	}
	return v, nil
}

func (s *Service) ListVenues(ctx context.Context) ([]*Venue, error) {
	return s.venues.List(ctx)
}

// DeleteVenue refuses while any region is sited at the venue or a live
// schedule still points at it.
func (s *Service) DeleteVenue(ctx context.Context, id uuid.UUID) error {
	if _, err := s.venues.GetByID(ctx, id); err != nil {
		return translate(err, "Venue")
	}
	assigned, err := s.regions.ExistsForVenue(ctx, id)
	if err != nil {
		return err
	}
	if assigned {
		return apperr.Conflict("Venue cannot be deleted. It is assigned to one or more regions.")
	}
	live, err := s.usage.HasLiveByVenue(ctx, id)
	if err != nil {
		return err
	}
	if live {
		return inUse("Venue")
	}
	return translate(s.venues.Delete(ctx, id), "Venue")
}

// -- Region --

func (s *Service) buildRegion(ctx context.Context, req RegionRequest) (*Region, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.DoctorID == "" || req.VenueID == "" {
		return nil, apperr.Validation("Please provide all required details.")
	}
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return nil, apperr.Validation("Doctor assigned to the region not found or is not a valid doctor.")
	}
	venueID, err := uuid.Parse(req.VenueID)
	if err != nil {
		return nil, apperr.NotFound("Venue not found.")
	}

	role, err := s.doctors.RoleOf(ctx, doctorID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if err != nil || role != auth.RoleDoctor {
		return nil, apperr.Validation("Doctor assigned to the region not found or is not a valid doctor.")
	}
	if _, err := s.venues.GetByID(ctx, venueID); err != nil {
		return nil, translate(err, "Venue")
	}
	return &Region{Name: name, DoctorID: doctorID, VenueID: venueID}, nil
}

func (s *Service) CreateRegion(ctx context.Context, req RegionRequest) (*Region, error) {
	r, err := s.buildRegion(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.regions.Create(ctx, r); err != nil {
		return nil, translate(err, "Region")
	}
	return r, nil
}

// UpdateRegion rebinds a region. Schedules already created against it keep
// the doctor and venue they were created with.
func (s *Service) UpdateRegion(ctx context.Context, id uuid.UUID, req RegionRequest) (*Region, error) {
	r, err := s.buildRegion(ctx, req)
	if err != nil {
		return nil, err
	}
	r.ID = id
	if err := s.regions.Update(ctx, r); err != nil {
		return nil, translate(err, "Region")
	}
	return r, nil
}

func (s *Service) GetRegion(ctx context.Context, id uuid.UUID) (*Region, error) {
	r, err := s.regions.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("Region not found")
		}
		return nil, err
	}
	return r, nil
}

func (s *Service) ListRegions(ctx context.Context) ([]*RegionView, error) {
	return s.regions.List(ctx)
}

func (s *Service) DeleteRegion(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetRegion(ctx, id); err != nil {
		return err
	}
	live, err := s.usage.HasLiveByRegion(ctx, id)
	if err != nil {
		return err
	}
	if live {
		return inUse("Region")
	}
	return translate(s.regions.Delete(ctx, id), "Region")
}
