package handlers

import (
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/teamcredits/internal/models"
	"github.com/charlesng35/teamcredits/internal/services"
	"github.com/charlesng35/teamcredits/pkg/errors"
	"github.com/charlesng35/teamcredits/pkg/response"
)

// CreditHandler exposes credit purchases, balances and invalidation.
type CreditHandler struct {
	team     *services.TeamService
	credits  *services.CreditService
	payments *services.PaymentService
}

type buyCreditsRequest struct {
	TeamMemberID    string `json:"team_member_id"`
	TeamMemberEmail string `json:"team_member_email"`
	Credits         int64  `json:"credits" validate:"gt=0,max=999999"`
}

type buyCreditsResponse struct {
	CheckoutURL       string              `json:"checkout_url"`
	PurchaseReference string              `json:"purchase_reference"`
	Grant             *models.CreditGrant `json:"grant"`
}

type creditsResponse struct {
	Credits int64 `json:"credits"`
	*services.CreditSummary
}

type invalidateCreditRequest struct {
	GrantID string `json:"grant_id" validate:"notblank"`
}

func NewCreditHandler(team *services.TeamService, credits *services.CreditService, payments *services.PaymentService) (*CreditHandler, error) {
	if team == nil || credits == nil || payments == nil {
		return nil, stdErrors.New("credit handler: team, credit and payment services are required")
	}
	return &CreditHandler{team: team, credits: credits, payments: payments}, nil
}

// POST /credits/buy_credits
func (h *CreditHandler) BuyCredits(c *gin.Context) {
	org, ok := currentOrganization(c)
	if !ok {
		return
	}

	var body buyCreditsRequest
	if !bindAndValidate(c, &body) {
		return
	}

	memberID, ok := resolveMemberID(c, h.team, org.ID, body.TeamMemberID, body.TeamMemberEmail)
	if !ok {
		return
	}

	result, err := h.payments.BuyCredits(requestContext(c), org, memberID, body.Credits)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, buyCreditsResponse{
		CheckoutURL:       result.CheckoutURL,
		PurchaseReference: result.Grant.PurchaseReference,
		Grant:             result.Grant,
	})
}

// GET /credits/get_credits?team_member_id=|team_member_email=
func (h *CreditHandler) GetCredits(c *gin.Context) {
	org, ok := currentOrganization(c)
	if !ok {
		return
	}

	memberID, ok := resolveMemberID(c, h.team, org.ID, c.Query("team_member_id"), c.Query("team_member_email"))
	if !ok {
		return
	}

	summary, err := h.credits.Summary(requestContext(c), org.ID, memberID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, creditsResponse{Credits: summary.Available, CreditSummary: summary})
}

// GET /credits/get_grants?team_member_id=|team_member_email=
func (h *CreditHandler) ListGrants(c *gin.Context) {
	org, ok := currentOrganization(c)
	if !ok {
		return
	}

	memberID, ok := resolveMemberID(c, h.team, org.ID, c.Query("team_member_id"), c.Query("team_member_email"))
	if !ok {
		return
	}

	grants, err := h.credits.ListGrants(requestContext(c), org.ID, memberID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, grants, &response.Meta{Total: len(grants)})
}

// POST /credits/invalidate_credit
func (h *CreditHandler) Invalidate(c *gin.Context) {
	org, ok := currentOrganization(c)
	if !ok {
		return
	}

	var body invalidateCreditRequest
	if !bindAndValidate(c, &body) {
		return
	}

	grant, err := h.credits.Invalidate(requestContext(c), org, strings.TrimSpace(body.GrantID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "invalidated", "grant": grant})
}

// maxWebhookBytes caps the payload read from the payment provider.
const maxWebhookBytes = 64 << 10

// POST /credits/webhook
func (h *CreditHandler) Webhook(c *gin.Context) {
	signature := strings.TrimSpace(c.GetHeader("Stripe-Signature"))
	if signature == "" {
		response.Error(c, services.ErrInvalidSignature.WithMessage("Missing Stripe-Signature header"))
		return
	}

	payload, err := readLimitedBody(c, maxWebhookBytes)
	if err != nil {
		response.Error(c, errors.NewBadRequest("Unable to read event payload").WithInternal(err))
		return
	}

	result, err := h.payments.HandleConfirmationEvent(requestContext(c), payload, signature)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
