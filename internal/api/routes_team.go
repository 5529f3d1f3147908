package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/teamcredits/internal/handlers"
)

func registerTeamRoutes(engine *gin.Engine, requireAuth gin.HandlerFunc, teamHandler *handlers.TeamHandler) {
	team := engine.Group("/team")
	team.Use(requireAuth)
	{
		team.POST("/invite_team_member", teamHandler.Invite)
		team.GET("/get_team_members", teamHandler.List)
		team.POST("/mark_completed", teamHandler.MarkCompleted)
		team.POST("/send_notification", teamHandler.SendNotification)
	}
}
