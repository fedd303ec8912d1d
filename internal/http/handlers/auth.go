package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swiftloan/api/internal/auth"
	"github.com/swiftloan/api/internal/config"
	"github.com/swiftloan/api/internal/domain/user"
	"github.com/swiftloan/api/internal/repo/postgres"
	"github.com/swiftloan/api/internal/security"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error)
}

type AuthHandler struct {
	users      UserReader
	userWriter UserWriter
	jwt        *auth.Manager
	cfg        config.Config
}

func NewAuthHandler(users UserReader, userWriter UserWriter, jwtManager *auth.Manager, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:      users,
		userWriter: userWriter,
		jwt:        jwtManager,
		cfg:        cfg,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create account")
		return
	}

	// registration always produces a borrower; admins are seeded
	u, err := h.userWriter.Create(cctx, req.Email, hash, req.Name, user.RoleUser)
	if err != nil {
		if errors.Is(err, postgres.ErrEmailAlreadyUsed) {
			RespondBadRequest(ctx, "Email is already in use.", nil)
			return
		}
		RespondInternal(ctx, "Could not create account")
		return
	}

	h.issueSession(ctx, u, http.StatusCreated)
}

// POST /api/auth/login
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		// same answer for unknown email and bad password
		RespondUnauthorized(ctx, "Invalid email or password")
		return
	}

	if security.CheckPassword(u.PasswordHash, req.Password) != nil {
		RespondUnauthorized(ctx, "Invalid email or password")
		return
	}

	h.issueSession(ctx, u, http.StatusOK)
}

// GET /api/auth/logout
func (h *AuthHandler) Logout(ctx *gin.Context) {
	secure := h.cfg.Env != "dev"

	// expire the session cookie plus the display-only ones
	ctx.SetCookie("token", "", -1, "/", "", secure, true)
	ctx.SetCookie("role", "", -1, "/", "", secure, false)
	ctx.SetCookie("userId", "", -1, "/", "", secure, false)

	ctx.Redirect(http.StatusFound, "/login")
}

func (h *AuthHandler) issueSession(ctx *gin.Context, u user.User, status int) {
	token, err := h.jwt.GenerateToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	maxAge := int(h.cfg.TokenTTL().Seconds())
	secure := h.cfg.Env != "dev"

	// The token cookie is the session; role and userId are convenience
	// values for the UI and are never trusted server-side.
	ctx.SetCookie("token", token, maxAge, "/", "", secure, true)
	ctx.SetCookie("role", u.Role, maxAge, "/", "", secure, false)
	ctx.SetCookie("userId", u.ID, maxAge, "/", "", secure, false)

	ctx.JSON(status, gin.H{
		"token": token,
		"user": gin.H{
			"id":    u.ID,
			"name":  u.Name,
			"email": u.Email,
			"role":  u.Role,
		},
	})
}
