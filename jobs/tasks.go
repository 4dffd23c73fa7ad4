package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypePeriodReminder is the task type for the daily due-date sweep.
	TaskTypePeriodReminder = "period:reminder"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// PeriodReminderPayload configures one due-date reminder sweep.
type PeriodReminderPayload struct {
	// LeadHours is how far ahead of a window's end date members are warned.
	LeadHours int `json:"lead_hours"`
}

// Lead returns the sweep window as a duration, defaulting to one day.
func (p PeriodReminderPayload) Lead() time.Duration {
	if p.LeadHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(p.LeadHours) * time.Hour
}

// NewPeriodReminderTask constructs an Asynq task for the reminder sweep.
func NewPeriodReminderTask(lead time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(PeriodReminderPayload{LeadHours: int(lead / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePeriodReminder, data), nil
}
