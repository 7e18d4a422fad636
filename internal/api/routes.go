package api

import (
	"github.com/gin-gonic/gin"

	"mediaquiz/internal/api/handlers"
)

// SetupRoutes sets up the API routes
func SetupRoutes(router *gin.Engine, handler *handlers.Handler, frontendURL string) {
	router.Use(RequestID())
	router.Use(CORSMiddleware(frontendURL))

	router.GET("/", handler.HandleHealth)
	router.GET("/health", handler.HandleHealth)

	router.POST("/quiz-from-url", handler.HandleQuizFromURL)
	router.POST("/quiz-from-upload", handler.HandleQuizFromUpload)
}
