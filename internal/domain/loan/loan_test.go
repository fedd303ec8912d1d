package loan

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending_to_approved", StatusPending, StatusApproved, true},
		{"pending_to_rejected", StatusPending, StatusRejected, true},
		{"pending_to_withdrawn", StatusPending, StatusWithdrawn, true},
		{"pending_to_repaid", StatusPending, StatusRepaid, false},
		{"approved_to_repaid", StatusApproved, StatusRepaid, true},
		{"approved_to_rejected", StatusApproved, StatusRejected, false},
		{"approved_to_withdrawn", StatusApproved, StatusWithdrawn, false},
		{"rejected_is_terminal", StatusRejected, StatusApproved, false},
		{"repaid_is_terminal", StatusRepaid, StatusApproved, false},
		{"withdrawn_is_terminal", StatusWithdrawn, StatusApproved, false},
		{"approved_not_reapprovable", StatusApproved, StatusApproved, false},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusRejected, StatusRepaid, StatusWithdrawn} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	for _, s := range []Status{StatusPending, StatusApproved} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestStatusIsValid(t *testing.T) {
	if Status("disbursed").IsValid() {
		t.Error("unknown status should be invalid")
	}

	if !StatusPending.IsValid() {
		t.Error("pending should be valid")
	}
}

func TestNewFromCreateRequestDefaults(t *testing.T) {
	docs := []string{"a", "b", "c", "d", "e"}

	l := NewFromCreateRequest("user-1", CreateLoanRequest{
		Amount:    1000,
		Reason:    "car",
		Documents: docs,
	})

	if l.Status != StatusPending {
		t.Errorf("new loan status = %s, want pending", l.Status)
	}
	if l.UserID != "user-1" {
		t.Errorf("new loan userID = %s, want user-1", l.UserID)
	}
	if l.Withdrawn {
		t.Error("new loan should not be withdrawn")
	}
	if l.ID == "" {
		t.Error("new loan must have an id")
	}
	if len(l.Documents) != RequiredDocuments {
		t.Errorf("document count = %d, want %d", len(l.Documents), RequiredDocuments)
	}
}
