package ticket

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/swiftloan/api/internal/domain/user"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

var (
	ErrNotFound = errors.New("support ticket not found")
	ErrClosed   = errors.New("support ticket is closed")
)

func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusClosed
}

// Reply is an append-only entry in a ticket's conversation. Replies are
// never edited or removed.
type Reply struct {
	ID        string        `json:"id"`
	SenderID  string        `json:"senderId"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"createdAt"`
	Sender    *user.Summary `json:"sender,omitempty"`
}

type Ticket struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Status    Status    `json:"status"`
	Replies   []Reply   `json:"replies"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Requester is populated on admin reads only.
	Requester *user.Summary `json:"requester,omitempty"`
}

type CreateTicketRequest struct {
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

func NewFromCreateRequest(userID string, req CreateTicketRequest) Ticket {
	now := time.Now().UTC()

	return Ticket{
		ID:        uuid.NewString(),
		UserID:    userID,
		Subject:   req.Subject,
		Message:   req.Message,
		Status:    StatusOpen,
		Replies:   []Reply{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewReply(senderID, message string) Reply {
	return Reply{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}
