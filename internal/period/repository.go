package period

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository encapsulates DB operations for period settings and instances.
// Mutations run inside WithTx so that the resolver's re-check and create
// execute as one serialized unit per organization.
type Repository interface {
	ActiveSetting(ctx context.Context, orgID int64) (*Setting, error)
	ActiveCoveringInstance(ctx context.Context, settingID int64, at time.Time) (*Instance, error)
	InstancesBySetting(ctx context.Context, settingID int64) ([]Instance, error)
	EndingBetween(ctx context.Context, from, to time.Time) ([]EndingInstance, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	// ActiveSettingForUpdate locks the org's active setting row, serializing
	// concurrent resolvers for the same organization without blocking others.
	ActiveSettingForUpdate(ctx context.Context, orgID int64) (*Setting, error)
	ActiveCoveringInstance(ctx context.Context, settingID int64, at time.Time) (*Instance, error)
	DeactivateInstances(ctx context.Context, settingID int64) error
	DeactivateOrgInstances(ctx context.Context, orgID int64) error
	DeactivateSettings(ctx context.Context, orgID int64) error
	InsertSetting(ctx context.Context, s Setting) (*Setting, error)
	InsertInstance(ctx context.Context, settingID int64, start, end time.Time) (*Instance, error)
}

// EndingInstance is the reminder job's read model: an active window about to
// close, joined with its owning organization.
type EndingInstance struct {
	InstanceID int64
	OrgID      int64
	OrgName    string
	EndDate    time.Time
}

type repository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRepository constructs a pgx-backed Repository. lockTimeout bounds row
// lock waits inside WithTx; zero keeps the store default.
func NewRepository(db *pgxpool.Pool, lockTimeout time.Duration) Repository {
	return &repository{db: db, lockTimeout: lockTimeout}
}

const settingColumns = `id, org_id, period_type, custom_days, required_hours, start_date, due_weekday, is_active, created_at`

const instanceColumns = `id, setting_id, start_date, end_date, is_active, created_at`

func (r *repository) ActiveSetting(ctx context.Context, orgID int64) (*Setting, error) {
	row := r.db.QueryRow(ctx, `SELECT `+settingColumns+` FROM period_settings WHERE org_id=$1 AND is_active`, orgID)
	return scanSetting(row)
}

func (r *repository) ActiveCoveringInstance(ctx context.Context, settingID int64, at time.Time) (*Instance, error) {
	row := r.db.QueryRow(ctx, `SELECT `+instanceColumns+` FROM period_instances
WHERE setting_id=$1 AND is_active AND start_date <= $2 AND end_date > $2`, settingID, at)
	return scanInstance(row)
}

func (r *repository) InstancesBySetting(ctx context.Context, settingID int64) ([]Instance, error) {
	rows, err := r.db.Query(ctx, `SELECT `+instanceColumns+` FROM period_instances
WHERE setting_id=$1 ORDER BY start_date DESC`, settingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var instances []Instance
	for rows.Next() {
		var in Instance
		if err := rows.Scan(&in.ID, &in.SettingID, &in.StartDate, &in.EndDate, &in.IsActive, &in.CreatedAt); err != nil {
			return nil, err
		}
		instances = append(instances, in)
	}
	return instances, rows.Err()
}

func (r *repository) EndingBetween(ctx context.Context, from, to time.Time) ([]EndingInstance, error) {
	rows, err := r.db.Query(ctx, `SELECT pi.id, o.id, o.name, pi.end_date
FROM period_instances pi
JOIN period_settings ps ON ps.id = pi.setting_id
JOIN orgs o ON o.id = ps.org_id
WHERE pi.is_active AND pi.end_date >= $1 AND pi.end_date < $2
ORDER BY o.id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ending []EndingInstance
	for rows.Next() {
		var e EndingInstance
		if err := rows.Scan(&e.InstanceID, &e.OrgID, &e.OrgName, &e.EndDate); err != nil {
			return nil, err
		}
		ending = append(ending, e)
	}
	return ending, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	if r.lockTimeout > 0 {
		// SET does not take bind parameters; the value is an integer of our
		// own making, not user input.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", r.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) ActiveSettingForUpdate(ctx context.Context, orgID int64) (*Setting, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+settingColumns+` FROM period_settings
WHERE org_id=$1 AND is_active FOR UPDATE`, orgID)
	return scanSetting(row)
}

func (r *txRepository) ActiveCoveringInstance(ctx context.Context, settingID int64, at time.Time) (*Instance, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+instanceColumns+` FROM period_instances
WHERE setting_id=$1 AND is_active AND start_date <= $2 AND end_date > $2`, settingID, at)
	return scanInstance(row)
}

func (r *txRepository) DeactivateInstances(ctx context.Context, settingID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE period_instances SET is_active=FALSE WHERE setting_id=$1 AND is_active`, settingID)
	return err
}

func (r *txRepository) DeactivateOrgInstances(ctx context.Context, orgID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE period_instances SET is_active=FALSE
WHERE is_active AND setting_id IN (SELECT id FROM period_settings WHERE org_id=$1)`, orgID)
	return err
}

func (r *txRepository) DeactivateSettings(ctx context.Context, orgID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE period_settings SET is_active=FALSE WHERE org_id=$1 AND is_active`, orgID)
	return err
}

func (r *txRepository) InsertSetting(ctx context.Context, s Setting) (*Setting, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO period_settings (org_id, period_type, custom_days, required_hours, start_date, due_weekday, is_active)
VALUES ($1,$2,$3,$4,$5,$6,TRUE) RETURNING id, created_at`, s.OrgID, s.Type, s.CustomDays, s.RequiredHours, s.StartDate, s.DueWeekday)
	if err := row.Scan(&s.ID, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.IsActive = true
	return &s, nil
}

func (r *txRepository) InsertInstance(ctx context.Context, settingID int64, start, end time.Time) (*Instance, error) {
	in := Instance{SettingID: settingID, StartDate: start, EndDate: end, IsActive: true}
	row := r.tx.QueryRow(ctx, `INSERT INTO period_instances (setting_id, start_date, end_date, is_active)
VALUES ($1,$2,$3,TRUE) RETURNING id, created_at`, settingID, start, end)
	if err := row.Scan(&in.ID, &in.CreatedAt); err != nil {
		return nil, err
	}
	return &in, nil
}

func scanSetting(row pgx.Row) (*Setting, error) {
	var s Setting
	err := row.Scan(&s.ID, &s.OrgID, &s.Type, &s.CustomDays, &s.RequiredHours, &s.StartDate, &s.DueWeekday, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func scanInstance(row pgx.Row) (*Instance, error) {
	var in Instance
	err := row.Scan(&in.ID, &in.SettingID, &in.StartDate, &in.EndDate, &in.IsActive, &in.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &in, nil
}
