package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/teamcredits/internal/handlers"
)

func registerCreditRoutes(engine *gin.Engine, requireAuth gin.HandlerFunc, creditHandler *handlers.CreditHandler) {
	credits := engine.Group("/credits")

	// Authenticated by the payment provider's signature, not a bearer token.
	credits.POST("/webhook", creditHandler.Webhook)

	protected := credits.Group("")
	protected.Use(requireAuth)
	{
		protected.POST("/buy_credits", creditHandler.BuyCredits)
		protected.GET("/get_credits", creditHandler.GetCredits)
		protected.GET("/get_grants", creditHandler.ListGrants)
		protected.POST("/invalidate_credit", creditHandler.Invalidate)
	}
}
