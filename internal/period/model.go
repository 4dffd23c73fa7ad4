package period

import "time"

// Type enumerates supported recurrence rules.
type Type string

const (
	TypeWeekly  Type = "weekly"
	TypeMonthly Type = "monthly"
	TypeCustom  Type = "custom"
)

// Setting is an organization's configured recurrence rule for compliance
// windows. At most one setting per org is active; the active one drives
// lazy materialization of instances.
type Setting struct {
	ID            int64
	OrgID         int64
	Type          Type
	CustomDays    *int
	RequiredHours float64
	StartDate     time.Time
	// DueWeekday uses Monday=0 .. Sunday=6 and is set for weekly settings only.
	DueWeekday *int
	IsActive   bool
	CreatedAt  time.Time
}

// Instance is one concrete materialized compliance window [StartDate, EndDate).
// Instances are append-only: after creation only IsActive is ever flipped.
type Instance struct {
	ID        int64
	SettingID int64
	StartDate time.Time
	EndDate   time.Time
	IsActive  bool
	CreatedAt time.Time
}

// Contains reports whether t falls inside the half-open window.
func (in Instance) Contains(t time.Time) bool {
	return !t.Before(in.StartDate) && t.Before(in.EndDate)
}
