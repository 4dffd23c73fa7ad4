package period

import "time"

// The schedule calculators are pure: no I/O, no clock reads. They answer two
// questions about a setting's recurrence rule: where is the next window
// boundary after a given time, and which window contains a given time.

// NextDueDate returns the first window boundary strictly after from, per the
// setting's recurrence rule. ok is false when the rule is incomplete (custom
// without a day count, weekly without a due weekday, unknown type), which
// means no recurrence is defined.
func NextDueDate(s Setting, from time.Time) (next time.Time, ok bool) {
	switch s.Type {
	case TypeWeekly:
		if s.DueWeekday == nil {
			return time.Time{}, false
		}
		days := (*s.DueWeekday - mondayWeekday(from) + 7) % 7
		if days == 0 {
			// Already on the due day: the boundary is a full week out,
			// never the same day.
			days = 7
		}
		return from.AddDate(0, 0, days), true
	case TypeMonthly:
		// Next month, same day-of-month as from (not the anchor's day),
		// clamped when the target month is shorter.
		return addCalendarMonths(from, 1), true
	case TypeCustom:
		if s.CustomDays == nil || *s.CustomDays <= 0 {
			return time.Time{}, false
		}
		return from.AddDate(0, 0, *s.CustomDays), true
	default:
		return time.Time{}, false
	}
}

// WindowStart returns the start boundary of the window containing ref.
// A reference time before the anchor belongs to the first window, which
// starts at the anchor itself.
func WindowStart(s Setting, ref time.Time) (start time.Time, ok bool) {
	if ref.Before(s.StartDate) {
		return s.StartDate, true
	}
	switch s.Type {
	case TypeWeekly:
		// Walk boundaries forward from the anchor until the window end
		// passes ref. Each step advances at least one day, so the loop
		// terminates for any finite ref.
		start = s.StartDate
		for {
			next, ok := NextDueDate(s, start)
			if !ok {
				return time.Time{}, false
			}
			if ref.Before(next) {
				return start, true
			}
			start = next
		}
	case TypeMonthly:
		months := (ref.Year()-s.StartDate.Year())*12 + int(ref.Month()) - int(s.StartDate.Month())
		return addCalendarMonths(s.StartDate, months), true
	case TypeCustom:
		if s.CustomDays == nil || *s.CustomDays <= 0 {
			return time.Time{}, false
		}
		step := time.Duration(*s.CustomDays) * 24 * time.Hour
		elapsed := ref.Sub(s.StartDate) / step
		return s.StartDate.AddDate(0, 0, int(elapsed)**s.CustomDays), true
	default:
		return time.Time{}, false
	}
}

// mondayWeekday maps time.Weekday (Sunday=0) onto the Monday=0 convention
// used by Setting.DueWeekday.
func mondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// addCalendarMonths advances t by whole calendar months using integer month
// arithmetic. The day-of-month is preserved and clamped to the last day of
// the target month, so an anchor on the 31st lands on Feb 28/29 rather than
// rolling over into March.
func addCalendarMonths(t time.Time, months int) time.Time {
	total := int(t.Month()) - 1 + months
	year := t.Year() + total/12
	month := time.Month(total%12 + 1)
	day := t.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
