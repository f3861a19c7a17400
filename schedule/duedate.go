package schedule

import "time"

// =============================================================================
// DUE-DATE CALCULATOR - Pure calendar math, no side effects
// =============================================================================

// DueDate returns the calendar due date for a month under a policy.
//
// first_day: day 1 of the month.
// last_day:  the last calendar day of the month, handling variable month
// lengths and leap years (2024-02 -> 29, 2025-02 -> 28).
//
// All dates are day-granular UTC; callers compare with truncated "now".
func DueDate(year int, month time.Month, policy DueDatePolicy) time.Time {
	switch policy {
	case PolicyLastDay:
		// First day of the next month, minus one day.
		return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	default:
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	}
}

// DueDateForKey resolves the due date for a monthly obligation key.
// Synthetic keys have no calendar due date and return an error.
func DueDateForKey(key MonthKey, policy DueDatePolicy) (time.Time, error) {
	year, month, err := key.Parse()
	if err != nil {
		return time.Time{}, err
	}
	return DueDate(year, month, policy), nil
}

// Day truncates a time to day granularity in UTC. Sweep and accrual
// comparisons operate on days, never clock times.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
