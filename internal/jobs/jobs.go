package jobs

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	// TypeLoanDecision notifies a borrower that an admin approved or
	// rejected their application.
	TypeLoanDecision = "loan.decision"
	// TypeSupportReply notifies a borrower that an admin replied to
	// their support ticket.
	TypeSupportReply = "support.reply"
)

var (
	ErrInvalidJobType    = errors.New("invalid job type")
	ErrInvalidJobPayload = errors.New("invalid job payload")
)

func IsValidType(t string) bool {
	return t == TypeLoanDecision || t == TypeSupportReply
}

type LoanDecisionPayload struct {
	LoanID      string    `json:"loanId"`
	UserID      string    `json:"userId"`
	Decision    string    `json:"decision"` // approved | rejected
	Amount      float64   `json:"amount"`
	DecidedBy   string    `json:"decidedBy"`
	RequestedAt time.Time `json:"requestedAt"`
}

type SupportReplyPayload struct {
	TicketID    string    `json:"ticketId"`
	UserID      string    `json:"userId"`
	ReplyID     string    `json:"replyId"`
	RequestedAt time.Time `json:"requestedAt"`
}

func (p LoanDecisionPayload) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(p)

	if err != nil {
		return nil, err
	}

	return json.RawMessage(b), nil
}

func (p SupportReplyPayload) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(p)

	if err != nil {
		return nil, err
	}

	return json.RawMessage(b), nil
}
