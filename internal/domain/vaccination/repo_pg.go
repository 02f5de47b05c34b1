package vaccination

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaxtrack/vaxtrack/internal/platform/db"
)

type scheduleRepoPG struct {
	pool *pgxpool.Pool
}

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository {
	return &scheduleRepoPG{pool: pool}
}

const scheduleCols = `id, child_id, parent_id, doctor_id, venue_id, region_id, vaccine_id,
	scheduled_date, status, created_at, updated_at`

// viewSelect joins every reference. vaccine, region and venue carry no
// foreign key, so all joins are outer.
const viewSelect = `
	SELECT s.id, s.child_id, s.parent_id, s.doctor_id, s.venue_id, s.region_id, s.vaccine_id,
	       s.scheduled_date, s.status, s.created_at, s.updated_at,
	       c.name, c.date_of_birth, c.gender,
	       p.name, p.email,
	       d.name,
	       ve.name, ve.contact,
	       r.name,
	       va.name, va.doses, va.min_age_months, va.max_age_months
	FROM vaccination_schedules s
	LEFT JOIN children c ON c.id = s.child_id
	LEFT JOIN users p ON p.id = s.parent_id
	LEFT JOIN users d ON d.id = s.doctor_id
	LEFT JOIN venues ve ON ve.id = s.venue_id
	LEFT JOIN regions r ON r.id = s.region_id
	LEFT JOIN vaccines va ON va.id = s.vaccine_id`

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	var status string
	err := row.Scan(&s.ID, &s.ChildID, &s.ParentID, &s.DoctorID, &s.VenueID, &s.RegionID, &s.VaccineID,
		&s.Date, &status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = Status(status)
	return &s, nil
}

func scanView(row pgx.Row) (*View, error) {
	var v View
	var status string
	err := row.Scan(&v.ID, &v.ChildID, &v.ParentID, &v.DoctorID, &v.VenueID, &v.RegionID, &v.VaccineID,
		&v.Date, &status, &v.CreatedAt, &v.UpdatedAt,
		&v.ChildName, &v.ChildDOB, &v.ChildGender,
		&v.ParentName, &v.ParentEmail,
		&v.DoctorName,
		&v.VenueName, &v.VenueContact,
		&v.RegionName,
		&v.VaccineName, &v.VaccineDoses, &v.MinAgeInMonths, &v.MaxAgeInMonths)
	if err != nil {
		return nil, err
	}
	v.Status = Status(status)
	return &v, nil
}

func collectViews(rows pgx.Rows) ([]*View, error) {
	defer rows.Close()
	views := []*View{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *Schedule) error {
	s.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO vaccination_schedules (
			id, child_id, parent_id, doctor_id, venue_id, region_id, vaccine_id, scheduled_date, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		s.ID, s.ChildID, s.ParentID, s.DoctorID, s.VenueID, s.RegionID, s.VaccineID, s.Date, string(s.Status),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	s, err := scanSchedule(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM vaccination_schedules WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

func (r *scheduleRepoPG) GetView(ctx context.Context, id uuid.UUID) (*View, error) {
	v, err := scanView(db.Conn(ctx, r.pool).QueryRow(ctx, viewSelect+` WHERE s.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get schedule view: %w", err)
	}
	return v, nil
}

func (r *scheduleRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE vaccination_schedules SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("update schedule status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *scheduleRepoPG) Delete(ctx context.Context, id uuid.UUID, status Status) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM vaccination_schedules WHERE id = $1 AND status = $2`, id, string(status))
	if err != nil {
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *scheduleRepoPG) MarkMissed(ctx context.Context, cutoff time.Time) ([]*Schedule, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		UPDATE vaccination_schedules SET status = 'missed', updated_at = NOW()
		WHERE status = 'scheduled' AND scheduled_date < $1
		RETURNING `+scheduleCols, cutoff)
	if err != nil {
		return nil, fmt.Errorf("mark missed: %w", err)
	}
	defer rows.Close()

	var marked []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		marked = append(marked, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mark missed: %w", err)
	}
	return marked, nil
}

func (r *scheduleRepoPG) ListForParent(ctx context.Context, parentID uuid.UUID) ([]*View, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, viewSelect+`
		WHERE s.parent_id = $1 ORDER BY s.scheduled_date DESC, s.created_at DESC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list parent schedules: %w", err)
	}
	return collectViews(rows)
}

func (r *scheduleRepoPG) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*View, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, viewSelect+`
		WHERE s.doctor_id = $1 ORDER BY s.scheduled_date, s.created_at`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list doctor schedules: %w", err)
	}
	return collectViews(rows)
}

func (r *scheduleRepoPG) ListPending(ctx context.Context) ([]*View, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, viewSelect+`
		WHERE s.status = 'pending_approval' ORDER BY s.scheduled_date, s.created_at`)
	if err != nil {
		return nil, fmt.Errorf("list pending schedules: %w", err)
	}
	return collectViews(rows)
}

func (r *scheduleRepoPG) List(ctx context.Context, status Status, limit, offset int) ([]*View, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM vaccination_schedules WHERE ($1 = '' OR status = $1)`,
		string(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	rows, err := conn.Query(ctx, viewSelect+`
		WHERE ($1 = '' OR s.status = $1)
		ORDER BY s.scheduled_date DESC, s.created_at DESC LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}
	views, err := collectViews(rows)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (r *scheduleRepoPG) ParentCounts(ctx context.Context, parentID uuid.UUID, from time.Time) (int, int, error) {
	var upcoming, pending int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'scheduled' AND scheduled_date >= $2),
			COUNT(*) FILTER (WHERE status = 'pending_approval')
		FROM vaccination_schedules WHERE parent_id = $1`, parentID, from).Scan(&upcoming, &pending)
	if err != nil {
		return 0, 0, fmt.Errorf("count parent schedules: %w", err)
	}
	return upcoming, pending, nil
}

func (r *scheduleRepoPG) hasLive(ctx context.Context, column string, id uuid.UUID) (bool, error) {
	var live bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM vaccination_schedules
			WHERE `+column+` = $1 AND status IN ('scheduled', 'pending_approval'))`, id).Scan(&live)
	if err != nil {
		return false, fmt.Errorf("check live schedules by %s: %w", column, err)
	}
	return live, nil
}

func (r *scheduleRepoPG) HasLiveByVaccine(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.hasLive(ctx, "vaccine_id", id)
}

func (r *scheduleRepoPG) HasLiveByRegion(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.hasLive(ctx, "region_id", id)
}

func (r *scheduleRepoPG) HasLiveByVenue(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.hasLive(ctx, "venue_id", id)
}
