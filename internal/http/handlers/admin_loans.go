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
	"github.com/swiftloan/api/internal/domain/loan"
	"github.com/swiftloan/api/internal/http/middlewares"
	"github.com/swiftloan/api/internal/jobs"
	"github.com/swiftloan/api/internal/repo/postgres"
	"github.com/swiftloan/api/internal/utils"
)

type AdminLoansRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	ListWithApplicants(ctx context.Context, status loan.Status, query string) ([]loan.Loan, error)
	GetWithApplicant(ctx context.Context, id string) (loan.Loan, error)
	DecideTx(ctx context.Context, tx pgx.Tx, id string, status loan.Status) (loan.Loan, error)
}

type JobsCreator interface {
	CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error)
}

type AdminLoansHandler struct {
	repo     AdminLoansRepository
	jobsRepo JobsCreator
}

func NewAdminLoansHandler(repo AdminLoansRepository, jobsRepo JobsCreator) *AdminLoansHandler {
	return &AdminLoansHandler{repo: repo, jobsRepo: jobsRepo}
}

type DecideLoanRequest struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}

// GET /api/admin/loans?status=&query=
func (h *AdminLoansHandler) List(ctx *gin.Context) {
	var status loan.Status
	if s := ctx.Query("status"); s != "" {
		status = loan.Status(s)
		if !status.IsValid() {
			RespondBadRequest(ctx, "unknown loan status", nil)
			return
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	loans, err := h.repo.ListWithApplicants(cctx, status, ctx.Query("query"))
	if err != nil {
		RespondInternal(ctx, "Could not list loans")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"count": len(loans),
		"loans": loans,
	})
}

// GET /api/admin/loans/:id
func (h *AdminLoansHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "loan id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	l, err := h.repo.GetWithApplicant(cctx, id)
	if err != nil {
		if errors.Is(err, loan.ErrNotFound) {
			RespondNotFound(ctx, "Loan not found")
			return
		}
		RespondInternal(ctx, "Could not fetch loan")
		return
	}

	ctx.JSON(http.StatusOK, l)
}

// PUT /api/admin/loans/:id
//
// The decision and its notification job commit in one transaction, so a
// decided loan always has exactly one queued notification.
func (h *AdminLoansHandler) Decide(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "loan id must be a valid UUID", nil)
		return
	}

	var req DecideLoanRequest
	if !BindJSON(ctx, &req) {
		return
	}
	status := loan.Status(req.Status)

	adminID, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	tx, err := h.repo.BeginTx(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not decide loan")
		return
	}
	defer func() { _ = tx.Rollback(cctx) }()

	l, err := h.repo.DecideTx(cctx, tx, id, status)
	if err != nil {
		switch {
		case errors.Is(err, loan.ErrNotFound):
			RespondNotFound(ctx, "Loan not found")
		case errors.Is(err, loan.ErrInvalidTransition):
			RespondConflict(ctx, "loan_already_decided", "Only pending loans can be approved or rejected")
		default:
			RespondInternal(ctx, "Could not decide loan")
		}
		return
	}

	payload := jobs.LoanDecisionPayload{
		LoanID:      l.ID,
		UserID:      l.UserID,
		Decision:    string(status),
		Amount:      l.Amount,
		DecidedBy:   adminID,
		RequestedAt: time.Now().UTC(),
	}

	raw, err := payload.JSON()
	if err != nil {
		RespondInternal(ctx, "Could not decide loan")
		return
	}

	key := "loan:decision:" + l.ID

	_, err = h.jobsRepo.CreateTx(cctx, tx, job.CreateRequest{
		Type:           jobs.TypeLoanDecision,
		Payload:        raw,
		RunAt:          time.Now().UTC(),
		MaxAttempts:    10,
		IdempotencyKey: &key,
	})
	if err != nil {
		// duplicate idempotency key inside the same tx is fine
		if !postgres.IsUniqueViolation(err) {
			RespondInternal(ctx, "Could not decide loan")
			return
		}
	}

	if err := tx.Commit(cctx); err != nil {
		RespondInternal(ctx, "Could not decide loan")
		return
	}

	ctx.JSON(http.StatusOK, l)
}
