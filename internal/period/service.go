package period

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/clockwise-app/clockwise/internal/observability"
)

var (
	// ErrIncompleteSetting indicates a setting whose recurrence rule cannot
	// produce a window end (custom type without a day count, weekly without
	// a due weekday). This is an admin configuration error, never swallowed.
	ErrIncompleteSetting = errors.New("period: setting has no usable recurrence rule")
	// ErrOrgRequired indicates a missing organization reference.
	ErrOrgRequired = errors.New("period: org id required")
)

// Service resolves compliance windows and manages period settings.
type Service struct {
	repo     Repository
	metrics  *observability.Metrics
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs the period service. metrics may be nil.
func NewService(repo Repository, metrics *observability.Metrics) *Service {
	return &Service{
		repo:     repo,
		metrics:  metrics,
		validate: validator.New(),
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Resolve returns the period instance covering at for the organization,
// materializing it when absent. A nil instance with a nil error means the org
// has no active setting and is not tracking periods.
//
// The fast path is a plain read and may race; losers of the race fall through
// to the slow path, which re-checks under the org's setting row lock before
// creating anything. Concurrent callers in the same window therefore all
// receive the same instance, and exactly one instance per org is active.
func (s *Service) Resolve(ctx context.Context, orgID int64, at time.Time) (*Instance, error) {
	if orgID == 0 {
		return nil, ErrOrgRequired
	}
	started := s.now()
	defer func() {
		s.metrics.ObserveResolve(s.now().Sub(started))
	}()

	setting, err := s.repo.ActiveSetting(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, nil
	}
	instance, err := s.repo.ActiveCoveringInstance(ctx, setting.ID, at)
	if err != nil {
		return nil, err
	}
	if instance != nil {
		return instance, nil
	}

	s.metrics.ResolverSlowPath()
	var out *Instance
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.ActiveSettingForUpdate(ctx, orgID)
		if err != nil {
			return err
		}
		if locked == nil {
			// Setting deactivated between the fast path and the lock.
			return nil
		}
		if existing, err := tx.ActiveCoveringInstance(ctx, locked.ID, at); err != nil {
			return err
		} else if existing != nil {
			out = existing
			return nil
		}
		start, ok := WindowStart(*locked, at)
		if !ok {
			return fmt.Errorf("%w (org %d, type %q)", ErrIncompleteSetting, orgID, locked.Type)
		}
		end, ok := NextDueDate(*locked, start)
		if !ok {
			return fmt.Errorf("%w (org %d, type %q)", ErrIncompleteSetting, orgID, locked.Type)
		}
		if err := tx.DeactivateInstances(ctx, locked.ID); err != nil {
			return err
		}
		created, err := tx.InsertInstance(ctx, locked.ID, start, end)
		if err != nil {
			return err
		}
		s.metrics.PeriodMaterialized(string(locked.Type))
		out = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// History lists all instances materialized under the org's active setting,
// newest first. Returns nil when the org has no active setting.
func (s *Service) History(ctx context.Context, orgID int64) ([]Instance, error) {
	setting, err := s.repo.ActiveSetting(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, nil
	}
	return s.repo.InstancesBySetting(ctx, setting.ID)
}

// ActiveSetting exposes the org's active setting to collaborators.
func (s *Service) ActiveSetting(ctx context.Context, orgID int64) (*Setting, error) {
	return s.repo.ActiveSetting(ctx, orgID)
}

// CreateSettingInput carries an admin request to configure recurrence.
type CreateSettingInput struct {
	OrgID         int64   `validate:"required"`
	Type          Type    `validate:"required,oneof=weekly monthly custom"`
	CustomDays    *int    `validate:"omitempty,gt=0"`
	RequiredHours float64 `validate:"gt=0"`
	StartDate     time.Time
	DueWeekday    *int `validate:"omitempty,gte=0,lte=6"`
}

// check applies struct tags plus the cross-field rules the tags cannot
// express: custom settings need a day count, weekly settings a due weekday.
func (in CreateSettingInput) check(v *validator.Validate) error {
	if err := v.Struct(in); err != nil {
		return err
	}
	if in.StartDate.IsZero() {
		return errors.New("period: start date required")
	}
	if in.Type == TypeCustom && in.CustomDays == nil {
		return fmt.Errorf("%w: custom_days required for custom settings", ErrIncompleteSetting)
	}
	if in.Type == TypeWeekly && in.DueWeekday == nil {
		return fmt.Errorf("%w: due_weekday required for weekly settings", ErrIncompleteSetting)
	}
	return nil
}

// CreateSetting atomically replaces the org's active setting: the previous
// setting and all its active instances are deactivated, the new setting is
// inserted, and its first instance is seeded from the setting's own anchor.
func (s *Service) CreateSetting(ctx context.Context, in CreateSettingInput) (*Setting, *Instance, error) {
	if err := in.check(s.validate); err != nil {
		return nil, nil, err
	}
	var (
		setting  *Setting
		instance *Instance
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Lock the current active setting first so the swap serializes with
		// resolvers racing on the old setting.
		if _, err := tx.ActiveSettingForUpdate(ctx, in.OrgID); err != nil {
			return err
		}
		if err := tx.DeactivateOrgInstances(ctx, in.OrgID); err != nil {
			return err
		}
		if err := tx.DeactivateSettings(ctx, in.OrgID); err != nil {
			return err
		}
		created, err := tx.InsertSetting(ctx, Setting{
			OrgID:         in.OrgID,
			Type:          in.Type,
			CustomDays:    in.CustomDays,
			RequiredHours: in.RequiredHours,
			StartDate:     in.StartDate,
			DueWeekday:    in.DueWeekday,
		})
		if err != nil {
			return err
		}
		start, ok := WindowStart(*created, created.StartDate)
		if !ok {
			return fmt.Errorf("%w (org %d, type %q)", ErrIncompleteSetting, in.OrgID, created.Type)
		}
		end, ok := NextDueDate(*created, start)
		if !ok {
			return fmt.Errorf("%w (org %d, type %q)", ErrIncompleteSetting, in.OrgID, created.Type)
		}
		seeded, err := tx.InsertInstance(ctx, created.ID, start, end)
		if err != nil {
			return err
		}
		s.metrics.PeriodMaterialized(string(created.Type))
		setting = created
		instance = seeded
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return setting, instance, nil
}

// DeactivateAll turns off period tracking for the org: the active setting and
// every active instance become inactive. Resolve returns nil afterwards.
func (s *Service) DeactivateAll(ctx context.Context, orgID int64) error {
	if orgID == 0 {
		return ErrOrgRequired
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.ActiveSettingForUpdate(ctx, orgID); err != nil {
			return err
		}
		if err := tx.DeactivateOrgInstances(ctx, orgID); err != nil {
			return err
		}
		return tx.DeactivateSettings(ctx, orgID)
	})
}
