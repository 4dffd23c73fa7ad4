package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/clockwise-app/clockwise/internal/org"
	"github.com/clockwise-app/clockwise/internal/period"
)

// Notification is a message fanned out to a set of members. Delivery
// (push, SMS) is external; this is the port the sweep talks to.
type Notification struct {
	UserIDs []int64
	Title   string
	Body    string
	Data    map[string]string
}

// Notifier accepts notifications for delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier is the development Notifier: it logs instead of delivering.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the notification that would have been delivered.
func (n LogNotifier) Notify(ctx context.Context, note Notification) error {
	if n.Logger != nil {
		n.Logger.Info("notify members",
			slog.Int("recipients", len(note.UserIDs)),
			slog.String("title", note.Title))
	}
	return nil
}

// MailEnqueuer queues an email for asynchronous delivery.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) error
}

// EndingSource lists active period instances closing inside a window.
type EndingSource interface {
	EndingBetween(ctx context.Context, from, to time.Time) ([]period.EndingInstance, error)
}

// MemberSource lists an org's members and admins.
type MemberSource interface {
	MembersByOrg(ctx context.Context, orgID int64) ([]org.Member, error)
	AdminsByOrg(ctx context.Context, orgID int64) ([]org.Member, error)
}

// PeriodReminderJob warns members whose compliance window is about to close.
// It is a pure read consumer of the period data model: it never materializes
// or mutates instances.
type PeriodReminderJob struct {
	periods  EndingSource
	orgs     MemberSource
	notifier Notifier
	mail     MailEnqueuer
	logger   *slog.Logger
	now      func() time.Time
}

// NewPeriodReminderJob constructs the job. mail may be nil to skip admin emails.
func NewPeriodReminderJob(periods EndingSource, orgs MemberSource, notifier Notifier, mail MailEnqueuer, logger *slog.Logger) *PeriodReminderJob {
	return &PeriodReminderJob{
		periods:  periods,
		orgs:     orgs,
		notifier: notifier,
		mail:     mail,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (j *PeriodReminderJob) WithNow(now func() time.Time) {
	if now != nil {
		j.now = now
	}
}

// Handle processes TaskTypePeriodReminder tasks.
func (j *PeriodReminderJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PeriodReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	from := j.now()
	to := from.Add(payload.Lead())
	ending, err := j.periods.EndingBetween(ctx, from, to)
	if err != nil {
		return err
	}
	j.logger.Info("period reminder sweep",
		slog.Time("from", from), slog.Time("to", to), slog.Int("ending", len(ending)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, e := range ending {
		e := e
		g.Go(func() error {
			return j.remindOrg(ctx, e)
		})
	}
	return g.Wait()
}

func (j *PeriodReminderJob) remindOrg(ctx context.Context, e period.EndingInstance) error {
	members, err := j.orgs.MembersByOrg(ctx, e.OrgID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		j.logger.Warn("no live members to remind", slog.Int64("org_id", e.OrgID))
		return nil
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	body := fmt.Sprintf("Your current study period ends on %s. Make sure to complete your required hours.",
		e.EndDate.Format("January 2, 2006"))
	err = j.notifier.Notify(ctx, Notification{
		UserIDs: ids,
		Title:   "Study Period Ending Soon",
		Body:    body,
		Data: map[string]string{
			"type":     "period_ending",
			"end_date": e.EndDate.Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("notify org %d: %w", e.OrgID, err)
	}

	if j.mail == nil {
		return nil
	}
	admins, err := j.orgs.AdminsByOrg(ctx, e.OrgID)
	if err != nil {
		return err
	}
	for _, admin := range admins {
		payload := SendEmailPayload{
			To:      admin.Email,
			Subject: fmt.Sprintf("%s: study period ends %s", e.OrgName, e.EndDate.Format("Jan 2")),
			Body:    body,
		}
		if err := j.mail.EnqueueSendEmail(ctx, payload); err != nil {
			j.logger.Warn("enqueue admin mail", slog.Int64("org_id", e.OrgID), slog.Any("error", err))
		}
	}
	return nil
}
