package dashboard

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one leaderboard row.
type Entry struct {
	UserID    int64   `json:"user_id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Hours     float64 `json:"hours"`
}

// Repository serves the dashboard's aggregate read queries.
type Repository interface {
	// LeaderboardRows ranks the org's live members by closed-session hours,
	// scoped to one period instance when instanceID is non-nil.
	LeaderboardRows(ctx context.Context, orgID int64, instanceID *int64) ([]Entry, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) LeaderboardRows(ctx context.Context, orgID int64, instanceID *int64) ([]Entry, error) {
	query := `SELECT u.id, u.first_name, u.last_name, COALESCE(SUM(s.hours), 0) AS hours
FROM users u
LEFT JOIN sessions s ON s.user_id = u.id AND s.hours IS NOT NULL`
	args := []any{orgID}
	if instanceID != nil {
		query += ` AND s.period_instance_id = $2`
		args = append(args, *instanceID)
	}
	query += `
WHERE u.org_id = $1 AND u.live
GROUP BY u.id, u.first_name, u.last_name
ORDER BY hours DESC, u.last_name, u.first_name`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.FirstName, &e.LastName, &e.Hours); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
