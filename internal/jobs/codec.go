package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/swiftloan/api/internal/domain/job"
)

// DecodePayload unmarshals j.Payload into the typed payload struct for
// its job type.
func DecodePayload(j job.Job) (any, error) {
	if !IsValidType(j.Type) {
		return nil, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return nil, ErrInvalidJobPayload
	}

	switch j.Type {
	case TypeLoanDecision:
		var p LoanDecisionPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		if p.LoanID == "" || p.UserID == "" {
			return nil, ErrInvalidJobPayload
		}
		return p, nil

	case TypeSupportReply:
		var p SupportReplyPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		if p.TicketID == "" || p.UserID == "" {
			return nil, ErrInvalidJobPayload
		}
		return p, nil

	default:
		return nil, ErrInvalidJobType
	}
}
