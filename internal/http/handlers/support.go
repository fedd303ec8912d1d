package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swiftloan/api/internal/config"
	"github.com/swiftloan/api/internal/domain/ticket"
	"github.com/swiftloan/api/internal/http/middlewares"
	"github.com/swiftloan/api/internal/utils"
)

type SupportRepository interface {
	Create(ctx context.Context, userID string, req ticket.CreateTicketRequest) (ticket.Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]ticket.Ticket, error)
	GetForUser(ctx context.Context, id, userID string) (ticket.Ticket, error)
}

type SupportHandler struct {
	repo SupportRepository
}

func NewSupportHandler(repo SupportRepository) *SupportHandler {
	return &SupportHandler{repo: repo}
}

// POST /api/support/create
func (h *SupportHandler) Create(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnauthorized(ctx, "Missing identity")
		return
	}

	var req ticket.CreateTicketRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	t, err := h.repo.Create(cctx, userID, req)
	if err != nil {
		RespondInternal(ctx, "Could not create support ticket")
		return
	}

	ctx.JSON(http.StatusCreated, t)
}

// GET /api/support/tickets
func (h *SupportHandler) ListMine(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnauthorized(ctx, "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	tickets, err := h.repo.ListByUser(cctx, userID)
	if err != nil {
		RespondInternal(ctx, "Could not list support tickets")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"count":   len(tickets),
		"tickets": tickets,
	})
}

// GET /api/support/tickets/:id
func (h *SupportHandler) GetMine(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnauthorized(ctx, "Missing identity")
		return
	}

	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "ticket id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	t, err := h.repo.GetForUser(cctx, id, userID)
	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			// not-owned tickets answer 404, same as missing ones
			RespondNotFound(ctx, "Support ticket not found")
			return
		}
		RespondInternal(ctx, "Could not fetch support ticket")
		return
	}

	ctx.JSON(http.StatusOK, t)
}
