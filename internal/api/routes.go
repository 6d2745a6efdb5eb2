package api

import (
	"docquizai/internal/api/handlers"
	"docquizai/internal/logger"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up the API routes
func SetupRoutes(router *gin.Engine, handler *handlers.Handler, frontendURL string, log *logger.Logger) {
	router.Use(CORSMiddleware(frontendURL))

	// Public auth routes
	router.GET("/login", handler.HandleGoogleLogin)
	router.GET("/auth/google/callback", handler.HandleGoogleCallback)

	api := router.Group("/api")
	{
		api.GET("/auth/status", handler.HandleAuthStatus)

		authorized := api.Group("/")
		authorized.Use(AuthRequired(log))
		{
			authorized.GET("/user/profile", handler.HandleUserProfile)
			authorized.POST("/logout", handler.HandleLogout)

			authorized.POST("/quizzes", handler.HandleCreateQuiz)
			authorized.GET("/quizzes/:quizId", handler.HandleGetQuiz)
			authorized.GET("/quizzes", handler.HandleListUserQuizzes)
		}
	}
}
