package api

import (
	"net/http"
	"strings"

	"docquizai/internal/api/handlers"
	"docquizai/internal/logger"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultFrontendURL = "http://localhost:5173"

// CORSMiddleware allows credentialed cross-origin requests from the frontend.
func CORSMiddleware(frontendURL string) gin.HandlerFunc {
	if frontendURL == "" {
		frontendURL = defaultFrontendURL
	}
	origin := strings.TrimSuffix(frontendURL, "/")

	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// AuthRequired rejects requests without a signed-in session and puts the user's
// internal id and profile on the context.
func AuthRequired(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, ok := sessions.Default(c).Get(handlers.ProfileSessionKey).(handlers.UserProfile)
		if !ok || profile.DatabaseID == uuid.Nil {
			log.Debug("auth required: no valid profile in session", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required or session invalid"})
			return
		}

		c.Set(handlers.UserProfileContextKey, profile)
		c.Next()
	}
}
