package loan

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/swiftloan/api/internal/domain/user"
)

// RequiredDocuments is the fixed number of supporting document URLs a
// loan application must carry.
const RequiredDocuments = 5

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusRepaid    Status = "repaid"
	StatusWithdrawn Status = "withdrawn"
)

var (
	ErrNotFound          = errors.New("loan not found")
	ErrInvalidStatus     = errors.New("invalid loan status")
	ErrInvalidTransition = errors.New("invalid loan status transition")
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusRepaid, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is defined from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusRepaid, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// IsDecision reports whether s is an admin review outcome.
func (s Status) IsDecision() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition encodes the one-directional lifecycle:
// pending -> approved|rejected|withdrawn, approved -> repaid.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected || to == StatusWithdrawn
	case StatusApproved:
		return to == StatusRepaid
	default:
		return false
	}
}

type Loan struct {
	ID        string   `json:"id"`
	UserID    string   `json:"userId"`
	Amount    float64  `json:"amount"`
	Reason    string   `json:"reason"`
	Documents []string `json:"documents"`
	Status    Status   `json:"status"`
	// Withdrawn mirrors Status == withdrawn; kept for clients that still
	// read the boolean.
	Withdrawn    bool       `json:"withdrawn"`
	RepaidAmount float64    `json:"repaidAmount"`
	RepaidAt     *time.Time `json:"repaidAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	// Applicant is populated on admin reads only.
	Applicant *user.Summary `json:"applicant,omitempty"`
}

type CreateLoanRequest struct {
	Amount    float64  `json:"amount" binding:"required,gt=0"`
	Reason    string   `json:"reason" binding:"required"`
	Documents []string `json:"documents" binding:"required,len=5,dive,required,url"`
}

// NewFromCreateRequest builds the pending loan record for an applicant.
func NewFromCreateRequest(userID string, req CreateLoanRequest) Loan {
	now := time.Now().UTC()

	return Loan{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		Documents: req.Documents,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
