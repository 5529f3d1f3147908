package handlers

import (
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/teamcredits/internal/auth"
	"github.com/charlesng35/teamcredits/pkg/errors"
	"github.com/charlesng35/teamcredits/pkg/metrics"
	"github.com/charlesng35/teamcredits/pkg/response"
)

// AuthHandler exchanges manager credentials for identity tokens.
type AuthHandler struct {
	authn iauth.Authenticator
}

func NewAuthHandler(authn iauth.Authenticator) (*AuthHandler, error) {
	if authn == nil {
		return nil, stdErrors.New("auth handler: authenticator is required")
	}
	return &AuthHandler{authn: authn}, nil
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	Email        string `json:"email"`
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.authn.SignIn(requestContext(c), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		if stdErrors.Is(err, iauth.ErrProviderUnavailable) {
			response.Error(c, errors.ErrBadGateway.WithInternal(err))
			return
		}
		// Normalise auth errors to 401
		response.Error(c, errors.ErrUnauthorized.WithMessage("Invalid email or password").WithInternal(err))
		return
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	response.Success(c, http.StatusOK, loginResponse{
		IDToken:      session.IDToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    session.ExpiresIn,
		Email:        session.Email,
	})
}
