package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireJSON rejects mutating requests without a JSON body. Multipart
// requests are let through so the document upload endpoint works.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			ct := strings.ToLower(c.GetHeader("Content-Type"))

			if strings.HasPrefix(ct, "multipart/form-data") {
				break
			}

			// allow "application/json; charset=utf-8"
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"error": gin.H{
						"code":    "unsupported_media_type",
						"message": "Content-Type must be application/json",
					},
				})
				return
			}
		}
		c.Next()
	}
}
