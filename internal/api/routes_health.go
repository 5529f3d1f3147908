package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/teamcredits/internal/app"
	"github.com/charlesng35/teamcredits/internal/handlers"
	"github.com/charlesng35/teamcredits/internal/monitoring"
	"github.com/charlesng35/teamcredits/internal/monitoring/checks"
)

const databaseProbeTimeout = 2 * time.Second

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, db *gorm.DB, probes []monitoring.Check) {
	health := monitoring.NewHealthManager()
	// A disabled health check still answers, it just skips dependency probes.
	if cfg.Monitoring.Health.Enabled {
		health.Register(checks.Database(db, databaseProbeTimeout))
		for _, probe := range probes {
			health.Register(probe)
		}
	}

	r.GET("/", handlers.Root())
	r.GET("/health", handlers.Health(health))
}
