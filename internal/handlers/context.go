package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/teamcredits/internal/middleware"
	"github.com/charlesng35/teamcredits/internal/models"
	"github.com/charlesng35/teamcredits/pkg/errors"
	"github.com/charlesng35/teamcredits/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentOrganization returns the caller's organization placed by middleware.Auth.
// It writes a 401 response when the route was mounted without the middleware.
func currentOrganization(c *gin.Context) (*models.Organization, bool) {
	value, ok := c.Get(middleware.CtxOrganizationKey)
	if ok {
		if org, ok := value.(*models.Organization); ok && org != nil {
			return org, true
		}
	}
	response.Error(c, errors.ErrUnauthorized)
	return nil, false
}
