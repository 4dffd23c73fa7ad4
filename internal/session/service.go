package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clockwise-app/clockwise/internal/observability"
	"github.com/clockwise-app/clockwise/internal/org"
	"github.com/clockwise-app/clockwise/internal/period"
	"github.com/clockwise-app/clockwise/internal/shared"
)

var (
	// ErrAlreadyClockedIn indicates the member has an open session.
	ErrAlreadyClockedIn = errors.New("session: already clocked in")
	// ErrNotClockedIn indicates clock-out without an open session.
	ErrNotClockedIn = errors.New("session: no open session")
	// ErrOutsideGeofence indicates the reported position is not inside any of
	// the org's study locations.
	ErrOutsideGeofence = errors.New("session: position outside all study locations")
)

// PeriodResolver yields the compliance window covering a timestamp.
type PeriodResolver interface {
	Resolve(ctx context.Context, orgID int64, at time.Time) (*period.Instance, error)
}

// Invalidator bumps derived caches (leaderboards) after hours change.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service handles clock events and hour aggregation.
type Service struct {
	repo        Repository
	orgs        org.Repository
	periods     PeriodResolver
	invalidator Invalidator
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewService constructs the session service. invalidator and metrics may be nil.
func NewService(repo Repository, orgs org.Repository, periods PeriodResolver, invalidator Invalidator, metrics *observability.Metrics) *Service {
	return &Service{
		repo:        repo,
		orgs:        orgs,
		periods:     periods,
		invalidator: invalidator,
		metrics:     metrics,
		now:         time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ClockInInput carries a clock-in request. Lat/Lng are the device position;
// they may be nil only when the org has no locations configured.
type ClockInInput struct {
	UserID    int64
	Lat       *float64
	Lng       *float64
	BeforePic *string
}

// ClockIn opens a session for the member, stamping it with the period
// instance covering the current time. Orgs without an active period setting
// get sessions with no period reference.
func (s *Service) ClockIn(ctx context.Context, in ClockInInput) (*Session, error) {
	member, err := s.orgs.GetMember(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if open, err := s.repo.OpenSession(ctx, in.UserID); err != nil {
		return nil, err
	} else if open != nil {
		return nil, ErrAlreadyClockedIn
	}

	locationID, err := s.checkGeofence(ctx, member.OrgID, in.Lat, in.Lng)
	if err != nil {
		return nil, err
	}

	now := s.now()
	instance, err := s.resolvePeriod(ctx, member.OrgID, now)
	if err != nil {
		return nil, err
	}

	sess := Session{
		PublicID:   uuid.New(),
		UserID:     member.ID,
		OrgID:      member.OrgID,
		LocationID: locationID,
		StartTime:  now,
		BeforePic:  in.BeforePic,
	}
	if instance != nil {
		sess.PeriodInstanceID = &instance.ID
	}
	created, err := s.repo.Insert(ctx, sess)
	if err != nil {
		return nil, err
	}
	s.metrics.SessionClocked("in")
	return created, nil
}

// ClockOut closes the member's open session, recording elapsed hours.
func (s *Service) ClockOut(ctx context.Context, userID int64, afterPic *string) (*Session, error) {
	open, err := s.repo.OpenSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNotClockedIn
	}
	hours := s.now().Sub(open.StartTime).Hours()
	if hours < 0 {
		hours = 0
	}
	closed, err := s.repo.Close(ctx, open.ID, hours, afterPic)
	if err != nil {
		return nil, err
	}
	s.metrics.SessionClocked("out")
	if s.invalidator != nil {
		if err := s.invalidator.Bump(ctx); err != nil {
			// Stale leaderboards expire on their own; the session is closed.
			return closed, nil
		}
	}
	return closed, nil
}

// TotalHours sums the member's closed-session hours, scoped to one period
// instance when instanceID is non-nil. No sessions means zero, not an error.
func (s *Service) TotalHours(ctx context.Context, userID int64, instanceID *int64) (float64, error) {
	return s.repo.SumHours(ctx, userID, instanceID)
}

// checkGeofence returns the matched location, or nil when the org has no
// locations configured (position then not required).
func (s *Service) checkGeofence(ctx context.Context, orgID int64, lat, lng *float64) (*int64, error) {
	locations, err := s.orgs.LocationsByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, fmt.Errorf("%w: position required", ErrOutsideGeofence)
	}
	for _, l := range locations {
		if l.WithinRadius(*lat, *lng) {
			id := l.ID
			return &id, nil
		}
	}
	return nil, ErrOutsideGeofence
}

// resolvePeriod retries a transient resolve failure once; the second failure
// surfaces as temporary unavailability, not corruption.
func (s *Service) resolvePeriod(ctx context.Context, orgID int64, at time.Time) (*period.Instance, error) {
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
