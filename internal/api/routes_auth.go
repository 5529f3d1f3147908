package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/teamcredits/internal/handlers"
)

func registerAuthRoutes(engine *gin.Engine, authHandler *handlers.AuthHandler) {
	auth := engine.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
	}
}
