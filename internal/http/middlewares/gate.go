package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/swiftloan/api/internal/domain/user"
)

// Gate guards page routes by prefix. Unauthenticated visitors to member
// pages are redirected to /login; authenticated non-admins hitting an
// admin page are sent back to their dashboard. API routes are not
// redirected, they answer 401 JSON so fetch callers can react.
//
// Public prefixes are always allowed through, token or not.
func (m *AuthMiddleware) Gate() gin.HandlerFunc {
	publicPrefixes := []string{
		"/login",
		"/register",
		"/healthz",
		"/readyz",
		"/metrics",
		"/api/auth/",
	}

	isPublic := func(path string) bool {
		if path == "/" {
			return true
		}
		for _, p := range publicPrefixes {
			if path == strings.TrimSuffix(p, "/") || strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if isPublic(path) {
			c.Next()
			return
		}

		var role string
		if raw := extractToken(c); raw != "" {
			if claims, err := m.jwt.VerifyToken(raw); err == nil {
				role = claims.Role
			}
		}

		admin := strings.HasPrefix(path, "/admin") || strings.HasPrefix(path, "/api/admin")
		api := strings.HasPrefix(path, "/api/")

		switch {
		case role == "":
			if api {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": gin.H{
						"code":    "unauthorized",
						"message": "Missing session token",
					},
				})
				return
			}
			c.Redirect(http.StatusFound, "/login")
			c.Abort()

		case admin && role != user.RoleAdmin:
			if api {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": gin.H{
						"code":    "forbidden",
						"message": "Admin role required",
					},
				})
				return
			}
			c.Redirect(http.StatusFound, "/dashboard")
			c.Abort()

		default:
			c.Next()
		}
	}
}
