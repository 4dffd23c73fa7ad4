package session

import (
	"time"

	"github.com/google/uuid"
)

// Session is one clock-in, open until Hours is set at clock-out. The period
// instance reference is stamped at creation and never corrected afterwards,
// even if the org's period configuration changes later.
type Session struct {
	ID               int64
	PublicID         uuid.UUID
	UserID           int64
	OrgID            int64
	LocationID       *int64
	PeriodInstanceID *int64
	StartTime        time.Time
	Hours            *float64
	BeforePic        *string
	AfterPic         *string
}

// Open reports whether the session is still in progress.
func (s Session) Open() bool {
	return s.Hours == nil
}
