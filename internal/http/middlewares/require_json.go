package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireJSON rejects write requests that carry a body with anything other
// than a JSON content type. Bodyless writes (e.g. a bare DELETE) pass.
func RequireJSON() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		switch ctx.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if ctx.Request.ContentLength == 0 {
				break
			}

			ct := ctx.GetHeader("Content-Type")

			// "application/json; charset=utf-8" counts
			if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
				ctx.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"error": gin.H{
						"code":    "unsupported_media_type",
						"message": "Content-Type must be application/json",
					},
				})
				return
			}
		}

		ctx.Next()
	}
}
