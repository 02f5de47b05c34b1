package feedback

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaxtrack/vaxtrack/internal/platform/db"
)

type feedbackRepoPG struct {
	pool *pgxpool.Pool
}

func NewFeedbackRepoPG(pool *pgxpool.Pool) FeedbackRepository {
	return &feedbackRepoPG{pool: pool}
}

func (r *feedbackRepoPG) Create(ctx context.Context, f *Feedback) error {
	f.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO feedback (id, user_id, message)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		f.ID, f.UserID, f.Message,
	).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (r *feedbackRepoPG) List(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count feedback: %w", err)
	}

	rows, err := conn.Query(ctx, `
		SELECT f.id, f.user_id, f.message, f.created_at, u.name, u.email, u.role
		FROM feedback f
		LEFT JOIN users u ON u.id = f.user_id
		ORDER BY f.created_at DESC, f.id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Message, &e.CreatedAt, &e.UserName, &e.UserEmail, &e.UserRole); err != nil {
			return nil, 0, err
		}
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}
