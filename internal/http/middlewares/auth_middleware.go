package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/swiftloan/api/internal/auth"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// TokenCookie is where browser clients carry the session token. API
// clients may send a Bearer header instead; the cookie wins when both
// are present.
const TokenCookie = "token"

func extractToken(c *gin.Context) string {
	if raw, err := c.Cookie(TokenCookie); err == nil && raw != "" {
		return raw
	}

	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	}

	return ""
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing session token",
				},
			})
			return
		}

		claims, err := m.jwt.VerifyToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Invalid or expired session token",
				},
			})
			return
		}

		// Identity comes from the verified token only. Client-writable
		// role cookies are never consulted.
		SetIdentity(c, claims.UserID, claims.Email, claims.Role)

		c.Next()
	}
}

// SetIdentity stashes the verified identity on the request context.
func SetIdentity(c *gin.Context, userID, email, role string) {
	c.Set(ctxUserIDKey, userID)
	c.Set(ctxEmailKey, email)
	c.Set(ctxRoleKey, role)
}

// Helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func RoleFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxRoleKey)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}

func EmailFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxEmailKey)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}
