package report

import (
	"testing"
	"time"
)

func TestGrowth(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		previous float64
		want     string
	}{
		{"zero_previous_guards_division", 10, 0, "0"},
		{"both_zero", 0, 0, "0"},
		{"doubling", 20, 10, "100.0"},
		{"decline", 5, 10, "-50.0"},
		{"fractional", 110, 100, "10.0"},
		{"one_decimal_rounding", 1, 3, "-66.7"},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			if got := Growth(tt.current, tt.previous); got != tt.want {
				t.Errorf("Growth(%v, %v) = %q, want %q", tt.current, tt.previous, got, tt.want)
			}
		})
	}
}

func TestRate(t *testing.T) {
	if got := Rate(3, 0); got != "0" {
		t.Errorf("Rate with zero total = %q, want \"0\"", got)
	}

	if got := Rate(3, 4); got != "75.0" {
		t.Errorf("Rate(3, 4) = %q, want \"75.0\"", got)
	}
}

func TestMonthWindows(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)

	thisStart, lastStart, lastEnd := MonthWindows(now)

	if !thisStart.Equal(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("thisStart = %v", thisStart)
	}
	if !lastStart.Equal(time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("lastStart = %v", lastStart)
	}
	if !lastEnd.Equal(thisStart) {
		t.Errorf("lastEnd = %v, want %v", lastEnd, thisStart)
	}
}

func TestMergeActivitiesOrdersAndTruncates(t *testing.T) {
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	at := func(minutes int) time.Time { return base.Add(time.Duration(minutes) * time.Minute) }

	loans := []Activity{
		{Kind: ActivityLoanPending, User: "a", At: at(1)},
		{Kind: ActivityLoanApproved, User: "b", At: at(9)},
	}
	users := []Activity{
		{Kind: ActivityNewUser, User: "c", At: at(5)},
		{Kind: ActivityNewUser, User: "d", At: at(7)},
	}
	tickets := []Activity{
		{Kind: ActivitySupportTicket, User: "e", At: at(3)},
	}

	got := MergeActivities(3, loans, users, tickets)

	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}

	wantUsers := []string{"b", "d", "c"}

	for i, w := range wantUsers {
		if got[i].User != w {
			t.Errorf("entry %d user = %q, want %q", i, got[i].User, w)
		}
	}
}

func TestMergeActivitiesEmpty(t *testing.T) {
	got := MergeActivities(10)

	if len(got) != 0 {
		t.Fatalf("got %d entries, want 0", len(got))
	}
}
