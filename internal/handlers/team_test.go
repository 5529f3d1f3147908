package handlers_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/teamcredits/internal/handlers/testutil"
	"github.com/charlesng35/teamcredits/internal/models"
)

type invitePayload struct {
	Status            string            `json:"status"`
	Member            models.TeamMember `json:"member"`
	NotificationError string            `json:"notification_error"`
}

func invite(t *testing.T, env *testutil.Env, token, email string) models.TeamMember {
	t.Helper()

	w := env.Request(http.MethodPost, "/team/invite_team_member", map[string]string{"email": email}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var payload invitePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &payload)
	return payload.Member
}

func TestBearerRoutesRejectMissingToken(t *testing.T) {
	env := testutil.NewEnv(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/team/invite_team_member"},
		{http.MethodGet, "/team/get_team_members"},
		{http.MethodPost, "/team/mark_completed"},
		{http.MethodPost, "/team/send_notification"},
		{http.MethodPost, "/credits/buy_credits"},
		{http.MethodGet, "/credits/get_credits"},
		{http.MethodGet, "/credits/get_grants"},
		{http.MethodPost, "/credits/invalidate_credit"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			w := env.Request(route.method, route.path, map[string]string{"email": "member@example.com"}, "")
			require.Equal(t, http.StatusUnauthorized, w.Code)
			require.Equal(t, "UNAUTHORIZED", testutil.DecodeResponse(t, w).Error.Code)

			w = env.Request(route.method, route.path, nil, "forged-token")
			require.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	// Nothing ran behind the gate
	var count int64
	require.NoError(t, env.DB.Model(&models.TeamMember{}).Count(&count).Error)
	require.Zero(t, count)
	require.Empty(t, env.Mailer.Sent())
}

func TestInviteTeamMember(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Login(testutil.ManagerEmail, testutil.ManagerPassword)

	member := invite(t, env, token, "New.Member@Example.com")
	require.Equal(t, "new.member@example.com", member.Email)
	require.Equal(t, models.TeamMemberPending, member.Status)
	require.Equal(t, "https://aisuitup.com/generate/new.member@example.com", member.GenerationLink)
	require.Equal(t, "https://aisuitup.com/results/new.member@example.com", member.ResultPageLink)

	sent := env.Mailer.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, []string{"new.member@example.com"}, sent[0].To)

	w := env.Request(http.MethodPost, "/team/invite_team_member", map[string]string{"email": "new.member@example.com"}, token)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "DUPLICATE_TEAM_MEMBER", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPost, "/team/invite_team_member", map[string]string{"email": "not-an-email"}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_EMAIL", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPost, "/team/invite_team_member", map[string]string{"email": testutil.ManagerEmail}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "SELF_INVITE", testutil.DecodeResponse(t, w).Error.Code)
}

func TestInviteSurvivesEmailFailure(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Login(testutil.ManagerEmail, testutil.ManagerPassword)
	env.Mailer.Err = errors.New("smtp down")

	w := env.Request(http.MethodPost, "/team/invite_team_member", map[string]string{"email": "member@example.com"}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var payload invitePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &payload)
	require.Equal(t, "invited_without_email", payload.Status)
	require.Contains(t, payload.NotificationError, "smtp down")
	require.NotEmpty(t, payload.Member.ID)
}

func TestGetTeamMembersIsScopedToManager(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Login(testutil.ManagerEmail, testutil.ManagerPassword)
	other := env.Login(testutil.OtherEmail, testutil.ManagerPassword)

	invite(t, env, token, "a@example.com")
	invite(t, env, token, "b@example.com")
	invite(t, env, other, "a@example.com")

	w := env.Request(http.MethodGet, "/team/get_team_members", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, 2, resp.Meta.Total)

	var members []models.TeamMember
	testutil.DecodeInto(t, resp.Data, &members)
	require.Len(t, members, 2)
	require.Equal(t, "a@example.com", members[0].Email)
	require.Equal(t, "b@example.com", members[1].Email)

	w = env.Request(http.MethodGet, "/team/get_team_members", nil, other)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, testutil.DecodeResponse(t, w).Meta.Total)
}

func TestMarkCompleted(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Login(testutil.ManagerEmail, testutil.ManagerPassword)
	member := invite(t, env, token, "member@example.com")

	w := env.Request(http.MethodPost, "/team/mark_completed", map[string]string{"team_member_email": "member@example.com"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var completed models.TeamMember
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &completed)
	require.Equal(t, member.ID, completed.ID)
	require.Equal(t, models.TeamMemberCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	w = env.Request(http.MethodPost, "/team/mark_completed", map[string]string{"team_member_id": member.ID}, token)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "TEAM_MEMBER_ALREADY_COMPLETED", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPost, "/team/mark_completed", map[string]string{"team_member_id": "missing"}, token)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.Request(http.MethodPost, "/team/mark_completed", map[string]string{}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendNotification(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Login(testutil.ManagerEmail, testutil.ManagerPassword)
	invite(t, env, token, "member@example.com")

	w := env.Request(http.MethodPost, "/team/send_notification", map[string]string{
		"team_member_email": "member@example.com",
		"action":            "headshots_received",
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sent := env.Mailer.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, []string{testutil.ManagerEmail}, sent[1].To)
	require.Equal(t, "AI-Generated Headshots Ready", sent[1].Subject)

	w = env.Request(http.MethodPost, "/team/send_notification", map[string]string{
		"team_member_email": "member@example.com",
		"action":            "party",
	}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_ACTION", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPost, "/team/send_notification", map[string]string{
		"team_member_email": "stranger@example.com",
		"action":            "upload_completed",
	}, token)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.Request(http.MethodPost, "/team/send_notification", map[string]string{"action": "upload_completed"}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	env.Mailer.Err = errors.New("sendgrid 503")
	w = env.Request(http.MethodPost, "/team/send_notification", map[string]string{
		"team_member_email": "member@example.com",
		"action":            "upload_completed",
	}, token)
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "NOTIFICATION_PROVIDER_ERROR", testutil.DecodeResponse(t, w).Error.Code)
}
