package reference

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaxtrack/vaxtrack/internal/platform/db"
)

func affectedOne(tag interface{ RowsAffected() int64 }, op string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, pgx.ErrNoRows)
	}
	return nil
}

// -- Vaccine --

type vaccineRepoPG struct {
	pool *pgxpool.Pool
}

func NewVaccineRepoPG(pool *pgxpool.Pool) VaccineRepository {
	return &vaccineRepoPG{pool: pool}
}

const vaccineCols = `id, name, description, doses, min_age_months, max_age_months, created_at, updated_at`

func scanVaccine(row pgx.Row) (*Vaccine, error) {
	var v Vaccine
	if err := row.Scan(&v.ID, &v.Name, &v.Description, &v.Doses, &v.MinAgeInMonths, &v.MaxAgeInMonths, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *vaccineRepoPG) Create(ctx context.Context, v *Vaccine) error {
	v.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO vaccines (id, name, description, doses, min_age_months, max_age_months)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		v.ID, v.Name, v.Description, v.Doses, v.MinAgeInMonths, v.MaxAgeInMonths,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert vaccine: %w", err)
	}
	return nil
}

func (r *vaccineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Vaccine, error) {
	v, err := scanVaccine(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+vaccineCols+` FROM vaccines WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get vaccine: %w", err)
	}
	return v, nil
}

func (r *vaccineRepoPG) Update(ctx context.Context, v *Vaccine) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE vaccines SET name = $2, description = $3, doses = $4,
			min_age_months = $5, max_age_months = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		v.ID, v.Name, v.Description, v.Doses, v.MinAgeInMonths, v.MaxAgeInMonths,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update vaccine: %w", err)
	}
	return nil
}

func (r *vaccineRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM vaccines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete vaccine: %w", err)
	}
	return affectedOne(tag, "delete vaccine")
}

func (r *vaccineRepoPG) List(ctx context.Context) ([]*Vaccine, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+vaccineCols+` FROM vaccines ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list vaccines: %w", err)
	}
	defer rows.Close()

	vaccines := []*Vaccine{}
	for rows.Next() {
		v, err := scanVaccine(rows)
		if err != nil {
			return nil, err
		}
		vaccines = append(vaccines, v)
	}
	return vaccines, rows.Err()
}

// -- Venue --

type venueRepoPG struct {
	pool *pgxpool.Pool
}

func NewVenueRepoPG(pool *pgxpool.Pool) VenueRepository {
	return &venueRepoPG{pool: pool}
}

const venueCols = `id, name, contact, created_at, updated_at`

func scanVenue(row pgx.Row) (*Venue, error) {
	var v Venue
	if err := row.Scan(&v.ID, &v.Name, &v.Contact, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *venueRepoPG) Create(ctx context.Context, v *Venue) error {
	v.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO venues (id, name, contact) VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		v.ID, v.Name, v.Contact,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert venue: %w", err)
	}
	return nil
}

func (r *venueRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Venue, error) {
	v, err := scanVenue(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+venueCols+` FROM venues WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get venue: %w", err)
	}
	return v, nil
}

func (r *venueRepoPG) Update(ctx context.Context, v *Venue) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE venues SET name = $2, contact = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		v.ID, v.Name, v.Contact,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update venue: %w", err)
	}
	return nil
}

func (r *venueRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM venues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete venue: %w", err)
	}
	return affectedOne(tag, "delete venue")
}

func (r *venueRepoPG) List(ctx context.Context) ([]*Venue, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+venueCols+` FROM venues ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	defer rows.Close()

	venues := []*Venue{}
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// -- Region --

type regionRepoPG struct {
	pool *pgxpool.Pool
}

func NewRegionRepoPG(pool *pgxpool.Pool) RegionRepository {
	return &regionRepoPG{pool: pool}
}

const regionCols = `id, name, doctor_id, venue_id, created_at, updated_at`

func scanRegion(row pgx.Row) (*Region, error) {
	var r Region
	if err := row.Scan(&r.ID, &r.Name, &r.DoctorID, &r.VenueID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *regionRepoPG) Create(ctx context.Context, reg *Region) error {
	reg.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO regions (id, name, doctor_id, venue_id) VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		reg.ID, reg.Name, reg.DoctorID, reg.VenueID,
	).Scan(&reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert region: %w", err)
	}
	return nil
}

func (r *regionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Region, error) {
	reg, err := scanRegion(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+regionCols+` FROM regions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get region: %w", err)
	}
	return reg, nil
}

func (r *regionRepoPG) Update(ctx context.Context, reg *Region) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE regions SET name = $2, doctor_id = $3, venue_id = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		reg.ID, reg.Name, reg.DoctorID, reg.VenueID,
	).Scan(&reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update region: %w", err)
	}
	return nil
}

func (r *regionRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM regions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete region: %w", err)
	}
	return affectedOne(tag, "delete region")
}

func (r *regionRepoPG) List(ctx context.Context) ([]*RegionView, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT r.id, r.name, r.doctor_id, r.venue_id, r.created_at, r.updated_at,
		       u.name, v.name, v.contact
		FROM regions r
		LEFT JOIN users u ON u.id = r.doctor_id
		LEFT JOIN venues v ON v.id = r.venue_id
		ORDER BY r.name`)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer rows.Close()

	regions := []*RegionView{}
	for rows.Next() {
		var rv RegionView
		if err := rows.Scan(&rv.ID, &rv.Name, &rv.DoctorID, &rv.VenueID, &rv.CreatedAt, &rv.UpdatedAt,
			&rv.DoctorName, &rv.VenueName, &rv.VenueContact); err != nil {
			return nil, err
		}
		regions = append(regions, &rv)
	}
	return regions, rows.Err()
}

func (r *regionRepoPG) ExistsForVenue(ctx context.Context, venueID uuid.UUID) (bool, error) {
	var ok bool
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM regions WHERE venue_id = $1)`, venueID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check venue regions: %w", err)
	}
	return ok, nil
}
