package session

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/clockwise-app/clockwise/internal/org"
	"github.com/clockwise-app/clockwise/internal/period"
	"github.com/clockwise-app/clockwise/internal/shared"
)

type memorySessionRepo struct {
	sessions map[int64]*Session
	nextID   int64
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: make(map[int64]*Session)}
}

func (r *memorySessionRepo) Insert(ctx context.Context, s Session) (*Session, error) {
	r.nextID++
	s.ID = r.nextID
	copied := s
	r.sessions[s.ID] = &copied
	return &s, nil
}

func (r *memorySessionRepo) OpenSession(ctx context.Context, userID int64) (*Session, error) {
	for _, s := range r.sessions {
		if s.UserID == userID && s.Hours == nil {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memorySessionRepo) Close(ctx context.Context, sessionID int64, hours float64, afterPic *string) (*Session, error) {
	s := r.sessions[sessionID]
	s.Hours = &hours
	if afterPic != nil {
		s.AfterPic = afterPic
	}
	copied := *s
	return &copied, nil
}

func (r *memorySessionRepo) SumHours(ctx context.Context, userID int64, instanceID *int64) (float64, error) {
	var total float64
	for _, s := range r.sessions {
		if s.UserID != userID || s.Hours == nil {
			continue
		}
		if instanceID != nil && (s.PeriodInstanceID == nil || *s.PeriodInstanceID != *instanceID) {
			continue
		}
		total += *s.Hours
	}
	return total, nil
}

type memoryOrgRepo struct {
	members   map[int64]*org.Member
	locations map[int64][]org.Location
}

func newMemoryOrgRepo() *memoryOrgRepo {
	return &memoryOrgRepo{members: make(map[int64]*org.Member), locations: make(map[int64][]org.Location)}
}

func (r *memoryOrgRepo) GetOrg(ctx context.Context, id int64) (*org.Org, error) {
	return &org.Org{ID: id}, nil
}

func (r *memoryOrgRepo) GetMember(ctx context.Context, id int64) (*org.Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *memoryOrgRepo) MembersByOrg(ctx context.Context, orgID int64) ([]org.Member, error) {
	var out []org.Member
	for _, m := range r.members {
		if m.OrgID == orgID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memoryOrgRepo) AdminsByOrg(ctx context.Context, orgID int64) ([]org.Member, error) {
	var out []org.Member
	for _, m := range r.members {
		if m.OrgID == orgID && m.IsAdmin {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memoryOrgRepo) LocationsByOrg(ctx context.Context, orgID int64) ([]org.Location, error) {
	return r.locations[orgID], nil
}

type stubResolver struct {
	instance *period.Instance
	errs     []error
	calls    int
}

func (s *stubResolver) Resolve(ctx context.Context, orgID int64, at time.Time) (*period.Instance, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.instance, nil
}

type bumpRecorder struct {
	bumps int
}

func (b *bumpRecorder) Bump(ctx context.Context) error {
	b.bumps++
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func floatPtr(v float64) *float64 { return &v }

func testService(t *testing.T) (*Service, *memorySessionRepo, *memoryOrgRepo, *stubResolver, *bumpRecorder) {
	t.Helper()
	repo := newMemorySessionRepo()
	orgs := newMemoryOrgRepo()
	orgs.members[1] = &org.Member{ID: 1, OrgID: 10, FirstName: "Ada", LastName: "Lovelace", Live: true}
	resolver := &stubResolver{instance: &period.Instance{ID: 55, SettingID: 5,
		StartDate: time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, time.January, 17, 0, 0, 0, 0, time.UTC),
		IsActive:  true}}
	bumper := &bumpRecorder{}
	svc := NewService(repo, orgs, resolver, bumper, nil)
	svc.WithNow(fixedClock(time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)))
	return svc, repo, orgs, resolver, bumper
}

func TestClockInStampsPeriodInstance(t *testing.T) {
	svc, _, _, _, _ := testService(t)

	sess, err := svc.ClockIn(context.Background(), ClockInInput{UserID: 1})
	require.NoError(t, err)
	require.NotNil(t, sess.PeriodInstanceID)
	require.Equal(t, int64(55), *sess.PeriodInstanceID)
	require.Equal(t, int64(10), sess.OrgID)
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", sess.PublicID.String())
	require.True(t, sess.Open())
}

func TestClockInWithoutPeriodTracking(t *testing.T) {
	svc, repo, _, resolver, _ := testService(t)
	resolver.instance = nil

	sess, err := svc.ClockIn(context.Background(), ClockInInput{UserID: 1})
	require.NoError(t, err)
	require.Nil(t, sess.PeriodInstanceID)

	// All-time hours still aggregate for untracked orgs.
	_, err = svc.ClockOut(context.Background(), 1, nil)
	require.NoError(t, err)
	total, err := svc.TotalHours(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Zero(t, total) // zero elapsed under the fixed clock

	hours := floatPtr(2.5)
	repo.sessions[sess.ID].Hours = hours
	total, err = svc.TotalHours(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Equal(t, 2.5, total)
}

func TestClockInWhileOpenRejected(t *testing.T) {
	svc, _, _, _, _ := testService(t)

	_, err := svc.ClockIn(context.Background(), ClockInInput{UserID: 1})
	require.NoError(t, err)

	_, err = svc.ClockIn(context.Background(), ClockInInput{UserID: 1})
	require.ErrorIs(t, err, ErrAlreadyClockedIn)
}

func TestClockInGeofence(t *testing.T) {
	svc, _, orgs, _, _ := testService(t)
	orgs.locations[10] = []org.Location{
		{ID: 3, OrgID: 10, Name: "Library", Lat: 33.2098, Lng: -87.5692, RadiusM: 150},
	}

	// Inside the fence.
	sess, err := svc.ClockIn(context.Background(), ClockInInput{UserID: 1, Lat: floatPtr(33.2098), Lng: floatPtr(-87.5692)})
	require.NoError(t, err)
	require.NotNil(t, sess.LocationID)
	require.Equal(t, int64(3), *sess.LocationID)
	_, err = svc.ClockOut(context.Background(), 1, nil)
	require.NoError(t, err)

	// Far away.
	_, err = svc.ClockIn(context.Background(), ClockInInput{UserID: 1, Lat: floatPtr(34.0), Lng: floatPtr(-87.5692)})
	require.ErrorIs(t, err, ErrOutsideGeofence)

	// Locations configured but no position reported.
	_, err = svc.ClockIn(context.Background(), ClockInInput{UserID: 1})
	require.ErrorIs(t, err, ErrOutsideGeofence)
}

func TestClockOut(t *testing.T) {
	svc, _, _, _, bumper := testService(t)

	start := time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)
	svc.WithNow(fixedClock(start))
	_, err := svc.ClockIn(context.Background(), ClockInInput{UserID: 1})
	require.NoError(t, err)

	svc.WithNow(fixedClock(start.Add(90 * time.Minute)))
	closed, err := svc.ClockOut(context.Background(), 1, nil)
	require.NoError(t, err)
	require.NotNil(t, closed.Hours)
	require.InDelta(t, 1.5, *closed.Hours, 1e-9)
	require.Equal(t, 1, bumper.bumps)

	_, err = svc.ClockOut(context.Background(), 1, nil)
	require.ErrorIs(t, err, ErrNotClockedIn)
}

func TestTotalHoursScopedToInstance(t *testing.T) {
	svc, repo, _, _, _ := testService(t)

	inst1, inst2 := int64(55), int64(56)
	repo.Insert(context.Background(), Session{UserID: 1, OrgID: 10, PeriodInstanceID: &inst1, Hours: floatPtr(2)})
	repo.Insert(context.Background(), Session{UserID: 1, OrgID: 10, PeriodInstanceID: &inst2, Hours: floatPtr(3)})
	repo.Insert(context.Background(), Session{UserID: 1, OrgID: 10, PeriodInstanceID: &inst1}) // still open

	total, err := svc.TotalHours(context.Background(), 1, &inst1)
	require.NoError(t, err)
	require.Equal(t, 2.0, total)

	total, err = svc.TotalHours(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Equal(t, 5.0, total)

	total, err = svc.TotalHours(context.Background(), 99, nil)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestClockInRetriesTransientResolveOnce(t *testing.T) {
	svc, _, _, resolver, _ := testService(t)
	resolver.errs = []error{&pgconn.PgError{Code: "55P03"}}

	sess, err := svc.ClockIn(context.Background(), ClockInInput{UserID: 1})
	require.NoError(t, err)
	require.NotNil(t, sess.PeriodInstanceID)
	require.Equal(t, 2, resolver.calls)
}

func TestClockInSecondTransientFailureSurfaces(t *testing.T) {
	svc, _, _, resolver, _ := testService(t)
	resolver.errs = []error{&pgconn.PgError{Code: "55P03"}, &pgconn.PgError{Code: "55P03"}}

	_, err := svc.ClockIn(context.Background(), ClockInInput{UserID: 1})
	require.ErrorIs(t, err, shared.ErrTemporarilyUnavailable)
}

func TestClockInConfigErrorNotRetried(t *testing.T) {
	svc, _, _, resolver, _ := testService(t)
	resolver.errs = []error{period.ErrIncompleteSetting}

	_, err := svc.ClockIn(context.Background(), ClockInInput{UserID: 1})
	require.ErrorIs(t, err, period.ErrIncompleteSetting)
	require.Equal(t, 1, resolver.calls)
}
