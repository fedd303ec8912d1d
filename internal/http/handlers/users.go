package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swiftloan/api/internal/config"
	"github.com/swiftloan/api/internal/domain/user"
	"github.com/swiftloan/api/internal/http/middlewares"
	"github.com/swiftloan/api/internal/repo/postgres"
	"github.com/swiftloan/api/internal/security"
)

type UsersRepository interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	Update(ctx context.Context, id string, name, email, passwordHash string) (user.User, error)
	List(ctx context.Context, query, role string) ([]user.User, error)
}

type UsersHandler struct {
	repo UsersRepository
}

func NewUsersHandler(repo UsersRepository) *UsersHandler {
	return &UsersHandler{repo: repo}
}

type UpdateProfileRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email" binding:"omitempty,email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"omitempty,min=8"`
}

// GET /api/user/me
func (h *UsersHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnauthorized(ctx, "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.repo.GetByID(cctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not fetch profile")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// PUT /api/user/update
func (h *UsersHandler) Update(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnauthorized(ctx, "Missing identity")
		return
	}

	var req UpdateProfileRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if req.Name == "" && req.Email == "" && req.NewPassword == "" {
		RespondBadRequest(ctx, "Nothing to update", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	var hash string
	if req.NewPassword != "" {
		// a password change needs proof of the current one
		if req.CurrentPassword == "" {
			RespondBadRequest(ctx, "Current password is required", nil)
			return
		}

		current, err := h.repo.GetByID(cctx, userID)
		if err != nil {
			if errors.Is(err, postgres.ErrUserNotFound) {
				RespondNotFound(ctx, "User not found")
				return
			}
			RespondInternal(ctx, "Could not update profile")
			return
		}

		if security.CheckPassword(current.PasswordHash, req.CurrentPassword) != nil {
			RespondBadRequest(ctx, "Incorrect current password", nil)
			return
		}

		hash, err = security.HashPassword(req.NewPassword)
		if err != nil {
			RespondInternal(ctx, "Could not update profile")
			return
		}
	}

	u, err := h.repo.Update(cctx, userID, req.Name, req.Email, hash)
	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrUserNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, postgres.ErrEmailAlreadyUsed):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		default:
			RespondInternal(ctx, "Could not update profile")
		}
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// GET /api/admin/user?query=&role=
func (h *UsersHandler) AdminList(ctx *gin.Context) {
	role := ctx.Query("role")
	if role != "" && !user.IsValidRole(role) {
		RespondBadRequest(ctx, "role must be user or admin", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	users, err := h.repo.List(cctx, ctx.Query("query"), role)
	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"count": len(users),
		"users": users,
	})
}
