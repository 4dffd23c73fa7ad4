package session

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository encapsulates DB operations for sessions.
type Repository interface {
	Insert(ctx context.Context, s Session) (*Session, error)
	OpenSession(ctx context.Context, userID int64) (*Session, error)
	Close(ctx context.Context, sessionID int64, hours float64, afterPic *string) (*Session, error)
	// SumHours totals closed-session hours for the user, scoped to one
	// period instance when instanceID is non-nil.
	SumHours(ctx context.Context, userID int64, instanceID *int64) (float64, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const sessionColumns = `id, public_id, user_id, org_id, location_id, period_instance_id, start_time, hours, before_pic, after_pic`

func (r *repository) Insert(ctx context.Context, s Session) (*Session, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO sessions (public_id, user_id, org_id, location_id, period_instance_id, start_time, before_pic)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`, s.PublicID, s.UserID, s.OrgID, s.LocationID, s.PeriodInstanceID, s.StartTime, s.BeforePic)
	if err := row.Scan(&s.ID); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) OpenSession(ctx context.Context, userID int64) (*Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions
WHERE user_id=$1 AND hours IS NULL ORDER BY start_time DESC LIMIT 1`, userID)
	var s Session
	err := row.Scan(&s.ID, &s.PublicID, &s.UserID, &s.OrgID, &s.LocationID, &s.PeriodInstanceID, &s.StartTime, &s.Hours, &s.BeforePic, &s.AfterPic)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *repository) Close(ctx context.Context, sessionID int64, hours float64, afterPic *string) (*Session, error) {
	row := r.db.QueryRow(ctx, `UPDATE sessions SET hours=$2, after_pic=COALESCE($3, after_pic)
WHERE id=$1 RETURNING `+sessionColumns, sessionID, hours, afterPic)
	var s Session
	err := row.Scan(&s.ID, &s.PublicID, &s.UserID, &s.OrgID, &s.LocationID, &s.PeriodInstanceID, &s.StartTime, &s.Hours, &s.BeforePic, &s.AfterPic)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) SumHours(ctx context.Context, userID int64, instanceID *int64) (float64, error) {
	var total float64
	var err error
	if instanceID != nil {
		err = r.db.QueryRow(ctx, `SELECT COALESCE(SUM(hours), 0) FROM sessions
WHERE user_id=$1 AND hours IS NOT NULL AND period_instance_id=$2`, userID, *instanceID).Scan(&total)
	} else {
		err = r.db.QueryRow(ctx, `SELECT COALESCE(SUM(hours), 0) FROM sessions
WHERE user_id=$1 AND hours IS NOT NULL`, userID).Scan(&total)
	}
	if err != nil {
		return 0, err
	}
	return total, nil
}
