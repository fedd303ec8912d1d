package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swiftloan/api/internal/config"
	"github.com/swiftloan/api/internal/domain/loan"
	"github.com/swiftloan/api/internal/http/middlewares"
	"github.com/swiftloan/api/internal/utils"
)

type LoansRepository interface {
	Create(ctx context.Context, userID string, req loan.CreateLoanRequest) (loan.Loan, error)
	ListByOwner(ctx context.Context, userID string) ([]loan.Loan, error)
	Repay(ctx context.Context, id, userID string) (loan.Loan, error)
	Withdraw(ctx context.Context, id, userID string) (loan.Loan, error)
}

type LoansHandler struct {
	repo LoansRepository
}

func NewLoansHandler(repo LoansRepository) *LoansHandler {
	return &LoansHandler{repo: repo}
}

// POST /api/loan/apply
func (h *LoansHandler) Apply(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnauthorized(ctx, "Missing identity")
		return
	}

	var req loan.CreateLoanRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	l, err := h.repo.Create(cctx, userID, req)
	if err != nil {
		RespondInternal(ctx, "Could not submit loan application")
		return
	}

	ctx.JSON(http.StatusCreated, l)
}

// GET /api/loan/status
func (h *LoansHandler) Status(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnauthorized(ctx, "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	loans, err := h.repo.ListByOwner(cctx, userID)
	if err != nil {
		RespondInternal(ctx, "Could not list loans")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"count": len(loans),
		"loans": loans,
	})
}

// PUT /api/loan/repay/:id
func (h *LoansHandler) Repay(ctx *gin.Context) {
	h.transition(ctx, h.repo.Repay, "Only approved loans can be repaid")
}

// PUT /api/loan/withdraw/:id
func (h *LoansHandler) Withdraw(ctx *gin.Context) {
	h.transition(ctx, h.repo.Withdraw, "Only pending loans can be withdrawn")
}

func (h *LoansHandler) transition(ctx *gin.Context, op func(context.Context, string, string) (loan.Loan, error), stateMsg string) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnauthorized(ctx, "Missing identity")
		return
	}

	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "loan id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	l, err := op(cctx, id, userID)
	if err != nil {
		switch {
		case errors.Is(err, loan.ErrNotFound):
			// someone else's loan answers 404, same as a missing one
			RespondNotFound(ctx, "Loan not found")
		case errors.Is(err, loan.ErrInvalidTransition):
			RespondBadRequest(ctx, stateMsg, nil)
		default:
			RespondInternal(ctx, "Could not update loan")
		}
		return
	}

	ctx.JSON(http.StatusOK, l)
}
