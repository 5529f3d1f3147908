package mail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSendGridMailerValidatesSettings(t *testing.T) {
	_, err := NewSendGridMailer(SendGridSettings{From: "no-reply@example.com"})
	require.ErrorContains(t, err, "api key is required")

	_, err = NewSendGridMailer(SendGridSettings{APIKey: "key"})
	require.ErrorContains(t, err, "sender address is required")
}

func TestSendGridMailerSend(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		payload map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	mailer, err := NewSendGridMailer(SendGridSettings{
		APIKey: "sg-key",
		From:   "no-reply@example.com",
		Host:   server.URL,
	})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{
		To:      []string{"member@example.com", "member@example.com"},
		Subject: "You're invited",
		Body:    "plain",
		HTML:    "<p>html</p>",
	})
	require.NoError(t, err)

	require.Equal(t, sendGridSendPath, gotPath)
	require.Equal(t, "Bearer sg-key", gotAuth)
	require.Equal(t, "You're invited", payload["subject"])

	personalizations, ok := payload["personalizations"].([]any)
	require.True(t, ok)
	require.Len(t, personalizations, 1)
	tos := personalizations[0].(map[string]any)["to"].([]any)
	require.Len(t, tos, 1)

	content, ok := payload["content"].([]any)
	require.True(t, ok)
	require.Len(t, content, 2)
}

func TestSendGridMailerSurfacesProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	t.Cleanup(server.Close)

	mailer, err := NewSendGridMailer(SendGridSettings{
		APIKey: "sg-key",
		From:   "no-reply@example.com",
		Host:   server.URL,
	})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"member@example.com"}, Subject: "Hi", Body: "Body"})
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, http.StatusUnauthorized, providerErr.StatusCode)
	require.Contains(t, providerErr.Error(), "bad key")
}

func TestLogMailerRecordsMessage(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	mailer := NewLogMailer("no-reply@example.com", zap.New(core))

	err := mailer.Send(context.Background(), Message{To: []string{"member@example.com"}, Subject: "Hello"})
	require.NoError(t, err)
	require.Equal(t, 1, recorded.Len())
	require.Equal(t, "Hello", recorded.All()[0].ContextMap()["subject"])

	err = mailer.Send(context.Background(), Message{Subject: "Nobody"})
	require.Error(t, err)
}
