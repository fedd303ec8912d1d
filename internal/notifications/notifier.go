package notifications

import "context"

type LoanDecisionInput struct {
	Email    string
	Name     string
	LoanID   string
	Decision string
	Amount   float64
}

type SupportReplyInput struct {
	Email    string
	Name     string
	TicketID string
	Subject  string
}

// Notifier delivers borrower-facing messages. Implementations are
// called from the worker, never from request handlers.
type Notifier interface {
	SendLoanDecision(ctx context.Context, input LoanDecisionInput) error
	SendSupportReply(ctx context.Context, input SupportReplyInput) error
}
