package schedule_test

import (
	"testing"
	"time"

	"github.com/warp/lease-engine/schedule"
)

// =============================================================================
// DUE-DATE CALCULATOR TESTS
// =============================================================================

func TestDueDate_FirstDayPolicy(t *testing.T) {
	// GIVEN: first_day policy
	// WHEN: Computing the due date for any month
	// THEN: It is the 1st of that month

	got := schedule.DueDate(2025, time.February, schedule.PolicyFirstDay)
	want := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDueDate_LastDayPolicy_VariableMonthLengths(t *testing.T) {
	// GIVEN: last_day policy
	// WHEN: Computing due dates across month lengths and leap years
	// THEN: Each due date is the true last calendar day

	cases := []struct {
		year  int
		month time.Month
		day   int
	}{
		{2025, time.January, 31},
		{2025, time.February, 28},
		{2024, time.February, 29}, // leap year
		{2000, time.February, 29}, // century leap year
		{1900, time.February, 28}, // century non-leap year
		{2025, time.April, 30},
		{2025, time.December, 31},
	}

	for _, tc := range cases {
		got := schedule.DueDate(tc.year, tc.month, schedule.PolicyLastDay)
		want := time.Date(tc.year, tc.month, tc.day, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("%d-%02d: expected %v, got %v", tc.year, tc.month, want, got)
		}
	}
}

func TestDueDateForKey_SyntheticKeyRejected(t *testing.T) {
	// GIVEN: A synthetic one-off key
	// WHEN: Resolving its due date
	// THEN: It is rejected; one-off lines have no calendar cadence

	if _, err := schedule.DueDateForKey("payout-abc", schedule.PolicyFirstDay); err == nil {
		t.Error("expected error for synthetic key, got nil")
	}
}

func TestDueDateForKey_MonthlyKey(t *testing.T) {
	got, err := schedule.DueDateForKey("2024-02", schedule.PolicyLastDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

// =============================================================================
// MONTH KEY TESTS
// =============================================================================

func TestMonthKey_IsMonthly(t *testing.T) {
	cases := []struct {
		key     schedule.MonthKey
		monthly bool
	}{
		{"2025-01", true},
		{"2025-12", true},
		{"2025-13", false},
		{"2025-00", false},
		{"2025-1", false},
		{"payout-xyz", false},
		{"2025-01-deposit", false},
	}
	for _, tc := range cases {
		if got := tc.key.IsMonthly(); got != tc.monthly {
			t.Errorf("%q: expected IsMonthly=%v, got %v", tc.key, tc.monthly, got)
		}
	}
}

func TestMonthKey_ParseRoundTrip(t *testing.T) {
	key := schedule.NewMonthKey(2025, time.September)
	if key != "2025-09" {
		t.Fatalf("expected key 2025-09, got %q", key)
	}
	year, month, err := key.Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if year != 2025 || month != time.September {
		t.Errorf("expected 2025/September, got %d/%v", year, month)
	}
}

// =============================================================================
// DAY MATH TESTS
// =============================================================================

func TestDaysBetween_IgnoresClockTime(t *testing.T) {
	// GIVEN: Two instants on different days at awkward clock times
	// WHEN: Computing the day distance
	// THEN: Only the calendar days matter

	a := time.Date(2025, time.February, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2025, time.February, 5, 0, 1, 0, 0, time.UTC)
	if got := schedule.DaysBetween(a, b); got != 4 {
		t.Errorf("expected 4 days, got %d", got)
	}
}
