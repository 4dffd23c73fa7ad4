package org

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clockwise-app/clockwise/internal/shared"
)

// Repository encapsulates DB operations for orgs, members and locations.
type Repository interface {
	GetOrg(ctx context.Context, id int64) (*Org, error)
	GetMember(ctx context.Context, id int64) (*Member, error)
	MembersByOrg(ctx context.Context, orgID int64) ([]Member, error)
	AdminsByOrg(ctx context.Context, orgID int64) ([]Member, error)
	LocationsByOrg(ctx context.Context, orgID int64) ([]Location, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetOrg(ctx context.Context, id int64) (*Org, error) {
	var o Org
	err := r.db.QueryRow(ctx, `SELECT id, name, reg_code, school, study_req, study_goal, created_at, updated_at
FROM orgs WHERE id=$1`, id).
		Scan(&o.ID, &o.Name, &o.RegCode, &o.School, &o.StudyReq, &o.StudyGoal, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

const memberColumns = `id, org_id, group_id, first_name, last_name, email, phone, is_admin, live, created_at`

func (r *repository) GetMember(ctx context.Context, id int64) (*Member, error) {
	var m Member
	err := r.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM users WHERE id=$1`, id).
		Scan(&m.ID, &m.OrgID, &m.GroupID, &m.FirstName, &m.LastName, &m.Email, &m.Phone, &m.IsAdmin, &m.Live, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *repository) MembersByOrg(ctx context.Context, orgID int64) ([]Member, error) {
	return r.members(ctx, `SELECT `+memberColumns+` FROM users WHERE org_id=$1 AND live ORDER BY last_name, first_name`, orgID)
}

func (r *repository) AdminsByOrg(ctx context.Context, orgID int64) ([]Member, error) {
	return r.members(ctx, `SELECT `+memberColumns+` FROM users WHERE org_id=$1 AND live AND is_admin ORDER BY id`, orgID)
}

func (r *repository) members(ctx context.Context, query string, args ...any) ([]Member, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.OrgID, &m.GroupID, &m.FirstName, &m.LastName, &m.Email, &m.Phone, &m.IsAdmin, &m.Live, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *repository) LocationsByOrg(ctx context.Context, orgID int64) ([]Location, error) {
	rows, err := r.db.Query(ctx, `SELECT id, org_id, name, gps_lat, gps_long, gps_radius_m
FROM locations WHERE org_id=$1 ORDER BY id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.OrgID, &l.Name, &l.Lat, &l.Lng, &l.RadiusM); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}
