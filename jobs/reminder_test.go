package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/clockwise-app/clockwise/internal/org"
	"github.com/clockwise-app/clockwise/internal/period"
)

type fakeEndingSource struct {
	ending []period.EndingInstance
	from   time.Time
	to     time.Time
}

func (f *fakeEndingSource) EndingBetween(ctx context.Context, from, to time.Time) ([]period.EndingInstance, error) {
	f.from, f.to = from, to
	return f.ending, nil
}

type fakeMemberSource struct {
	members map[int64][]org.Member
	admins  map[int64][]org.Member
}

func (f *fakeMemberSource) MembersByOrg(ctx context.Context, orgID int64) ([]org.Member, error) {
	return f.members[orgID], nil
}

func (f *fakeMemberSource) AdminsByOrg(ctx context.Context, orgID int64) ([]org.Member, error) {
	return f.admins[orgID], nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
	err   error
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.notes = append(r.notes, n)
	return nil
}

type recordingMail struct {
	mu       sync.Mutex
	payloads []SendEmailPayload
}

func (r *recordingMail) EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func reminderTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewPeriodReminderTask(24 * time.Hour)
	require.NoError(t, err)
	return task
}

func TestPeriodReminderSweep(t *testing.T) {
	end := time.Date(2025, time.January, 17, 0, 0, 0, 0, time.UTC)
	periods := &fakeEndingSource{ending: []period.EndingInstance{
		{InstanceID: 1, OrgID: 10, OrgName: "Alpha Beta", EndDate: end},
		{InstanceID: 2, OrgID: 20, OrgName: "Gamma Delta", EndDate: end},
	}}
	orgs := &fakeMemberSource{
		members: map[int64][]org.Member{
			10: {{ID: 1, Email: "a@x.test"}, {ID: 2, Email: "b@x.test"}},
			20: {{ID: 3, Email: "c@x.test"}},
		},
		admins: map[int64][]org.Member{
			10: {{ID: 1, Email: "a@x.test", IsAdmin: true}},
		},
	}
	notifier := &recordingNotifier{}
	mail := &recordingMail{}
	job := NewPeriodReminderJob(periods, orgs, notifier, mail, discardLogger())
	now := time.Date(2025, time.January, 16, 9, 0, 0, 0, time.UTC)
	job.WithNow(func() time.Time { return now })

	require.NoError(t, job.Handle(context.Background(), reminderTask(t)))

	require.Equal(t, now, periods.from)
	require.Equal(t, now.Add(24*time.Hour), periods.to)

	require.Len(t, notifier.notes, 2)
	recipients := 0
	for _, n := range notifier.notes {
		recipients += len(n.UserIDs)
		require.Equal(t, "Study Period Ending Soon", n.Title)
		require.Contains(t, n.Body, "January 17, 2025")
		require.Equal(t, "period_ending", n.Data["type"])
	}
	require.Equal(t, 3, recipients)

	require.Len(t, mail.payloads, 1)
	require.Equal(t, "a@x.test", mail.payloads[0].To)
	require.Contains(t, mail.payloads[0].Subject, "Alpha Beta")
}

func TestPeriodReminderSkipsEmptyOrgs(t *testing.T) {
	end := time.Date(2025, time.January, 17, 0, 0, 0, 0, time.UTC)
	periods := &fakeEndingSource{ending: []period.EndingInstance{
		{InstanceID: 1, OrgID: 10, OrgName: "Empty House", EndDate: end},
	}}
	orgs := &fakeMemberSource{members: map[int64][]org.Member{}}
	notifier := &recordingNotifier{}
	job := NewPeriodReminderJob(periods, orgs, notifier, nil, discardLogger())

	require.NoError(t, job.Handle(context.Background(), reminderTask(t)))
	require.Empty(t, notifier.notes)
}

func TestPeriodReminderNotifierErrorPropagates(t *testing.T) {
	end := time.Date(2025, time.January, 17, 0, 0, 0, 0, time.UTC)
	periods := &fakeEndingSource{ending: []period.EndingInstance{
		{InstanceID: 1, OrgID: 10, OrgName: "Alpha", EndDate: end},
	}}
	orgs := &fakeMemberSource{members: map[int64][]org.Member{10: {{ID: 1}}}}
	notifier := &recordingNotifier{err: errors.New("push gateway down")}
	job := NewPeriodReminderJob(periods, orgs, notifier, nil, discardLogger())

	err := job.Handle(context.Background(), reminderTask(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "notify org 10")
}

func TestPeriodReminderBadPayload(t *testing.T) {
	job := NewPeriodReminderJob(&fakeEndingSource{}, &fakeMemberSource{}, &recordingNotifier{}, nil, discardLogger())
	err := job.Handle(context.Background(), asynq.NewTask(TaskTypePeriodReminder, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestPeriodReminderDefaultLead(t *testing.T) {
	var p PeriodReminderPayload
	require.Equal(t, 24*time.Hour, p.Lead())
	p.LeadHours = 48
	require.Equal(t, 48*time.Hour, p.Lead())
}
