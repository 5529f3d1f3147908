package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/teamcredits/internal/monitoring"
	"github.com/charlesng35/teamcredits/pkg/errors"
	"github.com/charlesng35/teamcredits/pkg/response"
)

// Health evaluates the registered dependency probes. Any probe reporting down
// turns the response into a 503; degraded dependencies still answer 200.
func Health(health *monitoring.HealthManager) gin.HandlerFunc {
	if health == nil {
		health = monitoring.NewHealthManager()
	}
	return func(c *gin.Context) {
		report := health.Evaluate(requestContext(c))
		if !report.Success {
			msg := "Dependency unavailable: " + strings.Join(report.Failing(), ", ")
			response.Error(c, errors.New("SERVICE_UNAVAILABLE", msg, http.StatusServiceUnavailable))
			return
		}
		response.Success(c, http.StatusOK, report)
	}
}

// Root answers GET / with a greeting so load balancers probing the root get a 200.
func Root() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"message": "team credits API"})
	}
}
