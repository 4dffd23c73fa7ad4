package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Mailer delivers a single email. Transport (SMTP, provider API) lives
// outside this service.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer is the development Mailer: it logs instead of sending.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs the email that would have been delivered.
func (m LogMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.Logger != nil {
		m.Logger.Info("mail send", slog.String("to", to), slog.String("subject", subject))
	}
	return nil
}

// MailJob processes queued email tasks through a Mailer.
type MailJob struct {
	mailer Mailer
	logger *slog.Logger
}

// NewMailJob constructs a MailJob.
func NewMailJob(mailer Mailer, logger *slog.Logger) *MailJob {
	return &MailJob{mailer: mailer, logger: logger}
}

// Handle processes TaskTypeSendEmail tasks.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := j.mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
		j.logger.Warn("mail send failed", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	return nil
}
