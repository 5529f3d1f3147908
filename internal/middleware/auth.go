package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/teamcredits/internal/auth"
	"github.com/charlesng35/teamcredits/internal/models"
	"github.com/charlesng35/teamcredits/internal/services"
	"github.com/charlesng35/teamcredits/pkg/errors"
	"github.com/charlesng35/teamcredits/pkg/response"
)

const (
	CtxActorKey        = "authActor"
	CtxOrganizationKey = "organization"
)

// OrganizationResolver maps an authenticated manager onto their organization.
type OrganizationResolver interface {
	EnsureForManager(ctx context.Context, managerEmail string) (*models.Organization, error)
}

// Auth rejects requests without a verifiable bearer token before any handler
// runs, and attaches the actor and their organization to the request.
func Auth(gate *iauth.Gate, orgs OrganizationResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := iauth.ExtractBearer(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Abort(c, errors.ErrUnauthorized)
			return
		}

		actor, err := gate.Verify(c.Request.Context(), token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Abort(c, errors.ErrUnauthorized.WithInternal(err))
			return
		}

		org, err := orgs.EnsureForManager(c.Request.Context(), actor.Email)
		if err != nil {
			response.Abort(c, err)
			return
		}

		ctx := services.WithRequestMeta(c.Request.Context(), services.RequestMeta{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Set(CtxActorKey, actor)
		c.Set(CtxOrganizationKey, org)

		c.Next()
	}
}
