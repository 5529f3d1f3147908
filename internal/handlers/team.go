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

// TeamHandler exposes team member invitation and onboarding tracking.
type TeamHandler struct {
	svc *services.TeamService
}

type inviteRequest struct {
	Email string `json:"email" validate:"required"`
}

type inviteResponse struct {
	Status            string             `json:"status"`
	Member            *models.TeamMember `json:"member"`
	NotificationError string             `json:"notification_error,omitempty"`
}

type memberRefRequest struct {
	TeamMemberID    string `json:"team_member_id"`
	TeamMemberEmail string `json:"team_member_email"`
}

type notificationRequest struct {
	TeamMemberEmail string `json:"team_member_email" validate:"notblank"`
	Action          string `json:"action" validate:"notblank"`
}

func NewTeamHandler(svc *services.TeamService) (*TeamHandler, error) {
	if svc == nil {
		return nil, stdErrors.New("team handler: team service is required")
	}
	return &TeamHandler{svc: svc}, nil
}

// POST /team/invite_team_member
func (h *TeamHandler) Invite(c *gin.Context) {
	org, ok := currentOrganization(c)
	if !ok {
		return
	}

	var body inviteRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.svc.Invite(requestContext(c), org, body.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := "invited"
	if result.NotificationError != "" {
		status = "invited_without_email"
	}
	response.Success(c, http.StatusCreated, inviteResponse{
		Status:            status,
		Member:            result.Member,
		NotificationError: result.NotificationError,
	})
}

// GET /team/get_team_members
func (h *TeamHandler) List(c *gin.Context) {
	org, ok := currentOrganization(c)
	if !ok {
		return
	}

	members := make([]models.TeamMember, 0)
	for member, err := range h.svc.List(requestContext(c), org.ID) {
		if err != nil {
			response.Error(c, errors.ErrInternalServer.WithInternal(err))
			return
		}
		members = append(members, member)
	}

	response.SuccessWithMeta(c, http.StatusOK, members, &response.Meta{Total: len(members)})
}

// POST /team/mark_completed
func (h *TeamHandler) MarkCompleted(c *gin.Context) {
	org, ok := currentOrganization(c)
	if !ok {
		return
	}

	var body memberRefRequest
	if !bindAndValidate(c, &body) {
		return
	}

	memberID, ok := resolveMemberID(c, h.svc, org.ID, body.TeamMemberID, body.TeamMemberEmail)
	if !ok {
		return
	}

	member, err := h.svc.MarkCompleted(requestContext(c), org, memberID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}

// POST /team/send_notification
func (h *TeamHandler) SendNotification(c *gin.Context) {
	org, ok := currentOrganization(c)
	if !ok {
		return
	}

	var body notificationRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.svc.Notify(requestContext(c), org, body.TeamMemberEmail, body.Action); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "success", "message": "Notification sent"})
}

// resolveMemberID accepts either a member id or a member email and returns the id.
func resolveMemberID(c *gin.Context, team *services.TeamService, orgID, memberID, memberEmail string) (string, bool) {
	memberID = strings.TrimSpace(memberID)
	if memberID != "" {
		return memberID, true
	}

	memberEmail = strings.TrimSpace(memberEmail)
	if memberEmail == "" {
		response.Error(c, errors.NewBadRequest("team member id or email is required"))
		return "", false
	}

	member, err := team.FindByEmail(requestContext(c), orgID, memberEmail)
	if err != nil {
		response.Error(c, err)
		return "", false
	}
	return member.ID, true
}
