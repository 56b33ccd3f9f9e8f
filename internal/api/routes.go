package api

import (
	"net/http"

	"fitai/fitness-tracker/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes wires the handlers onto the router. Exact routing is a thin
// shell; all invariants live in the services.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	sessionService service.SessionService,
	threadService service.ThreadService,
	verificationService service.VerificationService,
	logger *zap.SugaredLogger,
) {
	sessionHandler := NewSessionHandler(sessionService, logger)
	planHandler := NewPlanHandler(threadService, logger)
	verificationHandler := NewVerificationHandler(verificationService, logger)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		sessionGroup := protected.Group("/sessions")
		{
			sessionGroup.POST("/start", sessionHandler.StartSession)
			sessionGroup.POST("/end", sessionHandler.EndSession)
			sessionGroup.GET("/active", sessionHandler.GetActiveSession)
		}

		programGroup := protected.Group("/program")
		{
			programGroup.GET("", planHandler.GetProgram)
			programGroup.POST("/regenerate", planHandler.RegenerateProgram)
			programGroup.POST("/modify", planHandler.ModifyProgram)
		}

		dietGroup := protected.Group("/diet")
		{
			dietGroup.GET("/:date", planHandler.GetDiet)
			dietGroup.POST("/:date/message", planHandler.SendDietMessage)
		}

		verificationGroup := protected.Group("/verification")
		{
			verificationGroup.POST("/request", verificationHandler.RequestCode)
			verificationGroup.POST("/commit", verificationHandler.CommitCode)
		}
	}
}
