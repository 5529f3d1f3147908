package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/teamcredits/internal/handlers/testutil"
)

func TestLogin(t *testing.T) {
	env := testutil.NewEnv(t)

	token := env.Login(testutil.ManagerEmail, testutil.ManagerPassword)
	require.NotEmpty(t, token)

	// Emails are matched case-insensitively
	require.NotEmpty(t, env.Login("Manager@Example.com", testutil.ManagerPassword))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/auth/login", map[string]string{
		"email":    testutil.ManagerEmail,
		"password": "wrong",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	w = env.Request(http.MethodPost, "/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": testutil.ManagerPassword,
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginValidatesPayload(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/auth/login", map[string]string{"email": "not-an-email"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "BAD_REQUEST", resp.Error.Code)
	require.Contains(t, resp.Error.Message, "email must be a valid email address")
	require.Contains(t, resp.Error.Message, "password is required")
}
