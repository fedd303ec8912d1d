package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/swiftloan/api/internal/config"
	"github.com/swiftloan/api/internal/domain/job"
	"github.com/swiftloan/api/internal/domain/ticket"
	"github.com/swiftloan/api/internal/http/middlewares"
	"github.com/swiftloan/api/internal/jobs"
	"github.com/swiftloan/api/internal/repo/postgres"
	"github.com/swiftloan/api/internal/utils"
)

type AdminSupportRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	ListAll(ctx context.Context) ([]ticket.Ticket, error)
	GetByID(ctx context.Context, id string) (ticket.Ticket, error)
	AppendReplyTx(ctx context.Context, tx pgx.Tx, ticketID string, reply ticket.Reply) error
	Close(ctx context.Context, id string) (ticket.Ticket, error)
}

type AdminSupportHandler struct {
	repo     AdminSupportRepository
	jobsRepo JobsCreator
}

func NewAdminSupportHandler(repo AdminSupportRepository, jobsRepo JobsCreator) *AdminSupportHandler {
	return &AdminSupportHandler{repo: repo, jobsRepo: jobsRepo}
}

type ReplyRequest struct {
	Message string `json:"message" binding:"required"`
}

type UpdateTicketRequest struct {
	Status string `json:"status" binding:"required,oneof=closed"`
}

// GET /api/admin/support
func (h *AdminSupportHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	tickets, err := h.repo.ListAll(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not list support tickets")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"count":   len(tickets),
		"tickets": tickets,
	})
}

// GET /api/admin/support/:id
func (h *AdminSupportHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "ticket id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	t, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			RespondNotFound(ctx, "Support ticket not found")
			return
		}
		RespondInternal(ctx, "Could not fetch support ticket")
		return
	}

	ctx.JSON(http.StatusOK, t)
}

// POST /api/admin/support/:id/reply
//
// The reply row and its notification job commit together.
func (h *AdminSupportHandler) Reply(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "ticket id must be a valid UUID", nil)
		return
	}

	var req ReplyRequest
	if !BindJSON(ctx, &req) {
		return
	}

	adminID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || adminID == "" {
		RespondUnauthorized(ctx, "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	t, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			RespondNotFound(ctx, "Support ticket not found")
			return
		}
		RespondInternal(ctx, "Could not reply to ticket")
		return
	}

	reply := ticket.NewReply(adminID, req.Message)

	tx, err := h.repo.BeginTx(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not reply to ticket")
		return
	}
	defer func() { _ = tx.Rollback(cctx) }()

	if err := h.repo.AppendReplyTx(cctx, tx, id, reply); err != nil {
		switch {
		case errors.Is(err, ticket.ErrNotFound):
			RespondNotFound(ctx, "Support ticket not found")
		case errors.Is(err, ticket.ErrClosed):
			RespondConflict(ctx, "ticket_closed", "Closed tickets cannot receive replies")
		default:
			RespondInternal(ctx, "Could not reply to ticket")
		}
		return
	}

	payload := jobs.SupportReplyPayload{
		TicketID:    id,
		UserID:      t.UserID,
		ReplyID:     reply.ID,
		RequestedAt: time.Now().UTC(),
	}

	raw, err := payload.JSON()
	if err != nil {
		RespondInternal(ctx, "Could not reply to ticket")
		return
	}

	key := "support:reply:" + reply.ID

	_, err = h.jobsRepo.CreateTx(cctx, tx, job.CreateRequest{
		Type:           jobs.TypeSupportReply,
		Payload:        raw,
		RunAt:          time.Now().UTC(),
		MaxAttempts:    10,
		IdempotencyKey: &key,
	})
	if err != nil {
		if !postgres.IsUniqueViolation(err) {
			RespondInternal(ctx, "Could not reply to ticket")
			return
		}
	}

	if err := tx.Commit(cctx); err != nil {
		RespondInternal(ctx, "Could not reply to ticket")
		return
	}

	ctx.JSON(http.StatusCreated, reply)
}

// PUT /api/admin/support/:id
func (h *AdminSupportHandler) Update(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "ticket id must be a valid UUID", nil)
		return
	}

	var req UpdateTicketRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	t, err := h.repo.Close(cctx, id)
	if err != nil {
		switch {
		case errors.Is(err, ticket.ErrNotFound):
			RespondNotFound(ctx, "Support ticket not found")
		case errors.Is(err, ticket.ErrClosed):
			RespondConflict(ctx, "ticket_closed", "Ticket is already closed")
		default:
			RespondInternal(ctx, "Could not close ticket")
		}
		return
	}

	ctx.JSON(http.StatusOK, t)
}
