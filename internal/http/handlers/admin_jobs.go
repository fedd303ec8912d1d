package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swiftloan/api/internal/config"
	"github.com/swiftloan/api/internal/domain/job"
	"github.com/swiftloan/api/internal/repo/postgres"
	"github.com/swiftloan/api/internal/utils"
)

type AdminJobsRepo interface {
	List(ctx context.Context, status *job.Status, limit int) ([]job.Job, error)
	GetByID(ctx context.Context, id string) (job.Job, error)
	Retry(ctx context.Context, id string) error
}

type AdminJobsHandler struct {
	repo AdminJobsRepo
}

func NewAdminJobsHandler(repo AdminJobsRepo) *AdminJobsHandler {
	return &AdminJobsHandler{repo: repo}
}

// GET /api/admin/jobs?status=failed&limit=50
func (h *AdminJobsHandler) List(ctx *gin.Context) {
	limit := 20
	if s := ctx.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 100 {
			RespondBadRequest(ctx, "limit must be between 1 and 100", nil)
			return
		}
		limit = n
	}

	var statusPtr *job.Status
	if s := ctx.Query("status"); s != "" {
		status := job.Status(s)
		if !status.IsValid() {
			RespondBadRequest(ctx, "unknown job status", nil)
			return
		}
		statusPtr = &status
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.repo.List(cctx, statusPtr, limit)
	if err != nil {
		RespondInternal(ctx, "Could not list jobs")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"count": len(items),
		"items": items,
	})
}

// GET /api/admin/jobs/:id
func (h *AdminJobsHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "job id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	j, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			RespondNotFound(ctx, "Job not found")
			return
		}
		RespondInternal(ctx, "Could not fetch job")
		return
	}

	ctx.JSON(http.StatusOK, j)
}

// POST /api/admin/jobs/:id/retry
func (h *AdminJobsHandler) Retry(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "job id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if err := h.repo.Retry(cctx, id); err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			RespondNotFound(ctx, "Job not found")
		case errors.Is(err, postgres.ErrJobNotFailed):
			RespondConflict(ctx, "job_not_failed", "Only failed jobs can be retried")
		default:
			RespondInternal(ctx, "Could not retry job")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"jobId":  id,
		"status": "pending",
	})
}
