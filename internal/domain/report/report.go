package report

import (
	"sort"
	"strconv"
	"time"
)

// Growth formats the month-over-month change between two counts as a
// percentage string with one decimal. A zero previous period yields "0"
// rather than NaN/Inf.
func Growth(current, previous float64) string {
	if previous <= 0 {
		return "0"
	}

	pct := (current - previous) / previous * 100

	return strconv.FormatFloat(pct, 'f', 1, 64)
}

// Rate formats part/total as a percentage string with one decimal,
// guarding the empty denominator the same way.
func Rate(part, total float64) string {
	if total <= 0 {
		return "0"
	}

	return strconv.FormatFloat(part/total*100, 'f', 1, 64)
}

// MonthWindows returns [startOfMonth, now) and the whole previous
// calendar month relative to now.
func MonthWindows(now time.Time) (thisStart, lastStart, lastEnd time.Time) {
	thisStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastStart = thisStart.AddDate(0, -1, 0)
	lastEnd = thisStart

	return
}

type ActivityKind string

const (
	ActivityLoanPending   ActivityKind = "loan_pending"
	ActivityLoanApproved  ActivityKind = "loan_approved"
	ActivityLoanRejected  ActivityKind = "loan_rejected"
	ActivityLoanRepaid    ActivityKind = "loan_repaid"
	ActivityNewUser       ActivityKind = "new_user"
	ActivitySupportTicket ActivityKind = "support_ticket"
)

type Activity struct {
	Kind   ActivityKind `json:"type"`
	User   string       `json:"user"`
	Amount *float64     `json:"amount,omitempty"`
	At     time.Time    `json:"at"`
}

// MergeActivities sorts entries reverse-chronologically and truncates to
// limit. Input order does not matter.
func MergeActivities(limit int, entries ...[]Activity) []Activity {
	merged := make([]Activity, 0)

	for _, batch := range entries {
		merged = append(merged, batch...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].At.After(merged[j].At)
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	return merged
}
