package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/teamcredits/internal/app"
	iauth "github.com/charlesng35/teamcredits/internal/auth"
	"github.com/charlesng35/teamcredits/internal/handlers"
	"github.com/charlesng35/teamcredits/internal/middleware"
	"github.com/charlesng35/teamcredits/internal/monitoring"
	"github.com/charlesng35/teamcredits/internal/services"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	DB            *gorm.DB
	Config        *app.Config
	Gate          *iauth.Gate
	Authenticator iauth.Authenticator
	Organizations *services.OrganizationService
	Team          *services.TeamService
	Credits       *services.CreditService
	Payments      *services.PaymentService
	// RateStore backs the rate limiter; nil keeps counters in process.
	RateStore middleware.RateStore
	// Probes are extra /health checks beyond the database ping.
	Probes []monitoring.Check
}

func (d Dependencies) validate() error {
	switch {
	case d.Config == nil:
		return fmt.Errorf("config must be provided")
	case d.Gate == nil:
		return fmt.Errorf("identity gate must be provided")
	case d.Authenticator == nil:
		return fmt.Errorf("authenticator must be provided")
	case d.Organizations == nil:
		return fmt.Errorf("organization service must be provided")
	case d.Team == nil, d.Credits == nil, d.Payments == nil:
		return fmt.Errorf("team, credit and payment services must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	metricsPath := cfg.Monitoring.Prometheus.Endpoint
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics(metricsPath))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(deps.RateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))

	registerHealthRoutes(r, cfg, deps.DB, deps.Probes)

	authHandler, err := handlers.NewAuthHandler(deps.Authenticator)
	if err != nil {
		return nil, err
	}
	registerAuthRoutes(r, authHandler)

	teamHandler, err := handlers.NewTeamHandler(deps.Team)
	if err != nil {
		return nil, err
	}
	creditHandler, err := handlers.NewCreditHandler(deps.Team, deps.Credits, deps.Payments)
	if err != nil {
		return nil, err
	}

	requireAuth := middleware.Auth(deps.Gate, deps.Organizations)
	registerTeamRoutes(r, requireAuth, teamHandler)
	registerCreditRoutes(r, requireAuth, creditHandler)

	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(metricsPath, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
