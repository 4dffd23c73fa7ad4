package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/clockwise-app/clockwise/internal/org"
	"github.com/clockwise-app/clockwise/internal/period"
	"github.com/clockwise-app/clockwise/internal/shared"
)

// Periods is the slice of the period service the dashboard consumes.
type Periods interface {
	Resolve(ctx context.Context, orgID int64, at time.Time) (*period.Instance, error)
	ActiveSetting(ctx context.Context, orgID int64) (*period.Setting, error)
	History(ctx context.Context, orgID int64) ([]period.Instance, error)
}

// HoursSource sums a member's closed-session hours.
type HoursSource interface {
	TotalHours(ctx context.Context, userID int64, instanceID *int64) (float64, error)
}

// Overview is the member dashboard read model.
type Overview struct {
	Member          org.Member
	Setting         *period.Setting
	CurrentInstance *period.Instance
	// PeriodHours is scoped to the current instance; AllTimeHours is not.
	PeriodHours   float64
	AllTimeHours  float64
	RequiredHours float64
	History       []period.Instance
}

// Service assembles dashboard read models.
type Service struct {
	repo    Repository
	orgs    org.Repository
	periods Periods
	hours   HoursSource
	cache   *Cache
	now     func() time.Time
}

// NewService constructs the dashboard service. cache may be nil, which
// disables caching but keeps all reads working.
func NewService(repo Repository, orgs org.Repository, periods Periods, hours HoursSource, cache *Cache) *Service {
	return &Service{repo: repo, orgs: orgs, periods: periods, hours: hours, cache: cache, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Overview resolves the member's current compliance window (materializing it
// when a new one has started) and reports progress against required hours.
func (s *Service) Overview(ctx context.Context, userID int64) (*Overview, error) {
	member, err := s.orgs.GetMember(ctx, userID)
	if err != nil {
		return nil, err
	}

	instance, err := s.resolvePeriod(ctx, member.OrgID)
	if err != nil {
		return nil, err
	}

	out := &Overview{Member: *member}
	if instance != nil {
		out.CurrentInstance = instance
		setting, err := s.periods.ActiveSetting(ctx, member.OrgID)
		if err != nil {
			return nil, err
		}
		out.Setting = setting
		if setting != nil {
			out.RequiredHours = setting.RequiredHours
		}
		out.PeriodHours, err = s.hours.TotalHours(ctx, userID, &instance.ID)
		if err != nil {
			return nil, err
		}
		out.History, err = s.periods.History(ctx, member.OrgID)
		if err != nil {
			return nil, err
		}
	}
	out.AllTimeHours, err = s.hours.TotalHours(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Leaderboard ranks org members by hours in the current window, or all-time
// for orgs without period tracking. Results are served from the versioned
// cache when fresh.
func (s *Service) Leaderboard(ctx context.Context, orgID int64) ([]Entry, error) {
	instance, err := s.resolvePeriod(ctx, orgID)
	if err != nil {
		return nil, err
	}

	scope := "all"
	var instanceID *int64
	if instance != nil {
		instanceID = &instance.ID
		scope = strconv.FormatInt(instance.ID, 10)
	}
	key, err := s.cache.BuildKey(ctx, "dashboard", "org", strconv.FormatInt(orgID, 10), "leaderboard", scope)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	err = s.cache.FetchJSON(ctx, key, &entries, func(ctx context.Context) (interface{}, error) {
		return s.repo.LeaderboardRows(ctx, orgID, instanceID)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// resolvePeriod retries a transient resolve failure once, mirroring the
// clock-in path.
func (s *Service) resolvePeriod(ctx context.Context, orgID int64) (*period.Instance, error) {
	at := s.now()
	instance, err := s.periods.Resolve(ctx, orgID, at)
	if err == nil {
		return instance, nil
	}
	if !shared.Retryable(err) {
		return nil, err
	}
	instance, err = s.periods.Resolve(ctx, orgID, at)
	if err == nil {
		return instance, nil
	}
	if shared.Retryable(err) {
		return nil, fmt.Errorf("%w: %v", shared.ErrTemporarilyUnavailable, err)
	}
	return nil, err
}
