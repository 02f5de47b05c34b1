package child

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaxtrack/vaxtrack/internal/platform/db"
)

type childRepoPG struct {
	pool *pgxpool.Pool
}

func NewChildRepoPG(pool *pgxpool.Pool) ChildRepository {
	return &childRepoPG{pool: pool}
}

const childCols = `id, parent_id, name, date_of_birth, gender, created_at, updated_at`

func scanChild(row pgx.Row) (*Child, error) {
	var c Child
	if err := row.Scan(&c.ID, &c.ParentID, &c.Name, &c.DateOfBirth, &c.Gender, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *childRepoPG) Create(ctx context.Context, c *Child) error {
	c.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO children (id, parent_id, name, date_of_birth, gender)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		c.ID, c.ParentID, c.Name, c.DateOfBirth, c.Gender,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert child: %w", err)
	}
	return nil
}

func (r *childRepoPG) GetForParent(ctx context.Context, id, parentID uuid.UUID) (*Child, error) {
	c, err := scanChild(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+childCols+` FROM children WHERE id = $1 AND parent_id = $2`, id, parentID))
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return c, nil
}

func (r *childRepoPG) ListByParent(ctx context.Context, parentID uuid.UUID) ([]*Child, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+childCols+` FROM children WHERE parent_id = $1 ORDER BY created_at`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	children := []*Child{}
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, rows.Err()
}

func (r *childRepoPG) CountByParent(ctx context.Context, parentID uuid.UUID) (int, error) {
	var n int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM children WHERE parent_id = $1`, parentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return n, nil
}
