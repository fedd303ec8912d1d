package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the log instead of sending email.
// It is the default delivery path until an email provider is wired in.
type LogNotifier struct {
	Logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) SendLoanDecision(ctx context.Context, input LoanDecisionInput) error {
	n.Logger.InfoContext(ctx, "loan decision notification",
		"email", input.Email,
		"loan_id", input.LoanID,
		"decision", input.Decision,
		"amount", input.Amount,
	)
	return nil
}

func (n *LogNotifier) SendSupportReply(ctx context.Context, input SupportReplyInput) error {
	n.Logger.InfoContext(ctx, "support reply notification",
		"email", input.Email,
		"ticket_id", input.TicketID,
		"subject", input.Subject,
	)
	return nil
}
