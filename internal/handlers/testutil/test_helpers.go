package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"

	"github.com/charlesng35/teamcredits/internal/api"
	"github.com/charlesng35/teamcredits/internal/app"
	iauth "github.com/charlesng35/teamcredits/internal/auth"
	sharedtestutil "github.com/charlesng35/teamcredits/internal/database/testutil"
	"github.com/charlesng35/teamcredits/internal/payments"
	"github.com/charlesng35/teamcredits/internal/pricing"
	"github.com/charlesng35/teamcredits/internal/services"
	"github.com/charlesng35/teamcredits/pkg/crypto"
	"github.com/charlesng35/teamcredits/pkg/mail"
	"github.com/charlesng35/teamcredits/pkg/money"
	"github.com/charlesng35/teamcredits/pkg/response"
)

const (
	ManagerEmail    = "manager@example.com"
	ManagerPassword = "manager-pass-123"
	OtherEmail      = "other.manager@example.com"
	WebhookSecret   = "whsec_handler_tests"
)

// RecordingMailer captures outbound email instead of delivering it.
type RecordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	Err      error
}

func (m *RecordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Sent returns a copy of the captured messages.
func (m *RecordingMailer) Sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

// FakeStripe answers the checkout session endpoint of the Stripe API.
type FakeStripe struct {
	mu       sync.Mutex
	Fail     bool
	Sessions []map[string]string
}

func (f *FakeStripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.Fail || r.URL.Path != "/v1/checkout/sessions" {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"unavailable"}}`))
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	form := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		form[key] = r.PostForm.Get(key)
	}
	f.Sessions = append(f.Sessions, form)

	id := "cs_test_" + form["client_reference_id"]
	_, _ = fmt.Fprintf(w, `{"id":%q,"object":"checkout.session","url":%q}`, id, "https://checkout.stripe.com/c/pay/"+id)
}

// LastSession returns the form of the most recent checkout session request.
func (f *FakeStripe) LastSession() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sessions) == 0 {
		return nil
	}
	return f.Sessions[len(f.Sessions)-1]
}

// SetFail toggles provider failures.
func (f *FakeStripe) SetFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fail = fail
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	Mailer *RecordingMailer
	Stripe *FakeStripe
	Config *app.Config
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}

	identity := newLocalProvider(t)
	gate, err := iauth.NewGate(identity, nil, iauth.GateConfig{})
	require.NoError(t, err)

	fakeStripe := &FakeStripe{}
	stripeServer := httptest.NewServer(fakeStripe)
	t.Cleanup(stripeServer.Close)

	provider, err := payments.NewStripeProvider(payments.StripeConfig{
		SecretKey:     "sk_test_handlers",
		WebhookSecret: WebhookSecret,
		SuccessURL:    "https://example.com/success",
		CancelURL:     "https://example.com/cancel",
		APIBase:       stripeServer.URL,
	})
	require.NoError(t, err)

	mailer := &RecordingMailer{}
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	orgs, err := services.NewOrganizationService(db)
	require.NoError(t, err)
	team, err := services.NewTeamService(db, audit, mailer, services.TeamLinks{
		GenerationBaseURL: "https://aisuitup.com/generate",
		ResultsBaseURL:    "https://aisuitup.com/results",
	})
	require.NoError(t, err)
	policy, err := pricing.NewPolicy(money.New(100, "inr"), nil)
	require.NoError(t, err)
	credits, err := services.NewCreditService(db, audit, team, policy)
	require.NoError(t, err)
	paymentSvc, err := services.NewPaymentService(credits, provider)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		DB:            db,
		Config:        cfg,
		Gate:          gate,
		Authenticator: identity,
		Organizations: orgs,
		Team:          team,
		Credits:       credits,
		Payments:      paymentSvc,
	})
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		Mailer: mailer,
		Stripe: fakeStripe,
		Config: cfg,
	}
}

func newLocalProvider(t *testing.T) *iauth.LocalProvider {
	t.Helper()

	hash, err := crypto.HashPassword(ManagerPassword)
	require.NoError(t, err)

	provider, err := iauth.NewLocalProvider(iauth.LocalConfig{
		JWT: iauth.JWTConfig{
			Secret:         "test-suite-super-secret-key-32-bytes!!",
			Issuer:         "test-suite",
			AccessTokenTTL: time.Hour,
		},
		Accounts: []iauth.LocalAccount{
			{Email: ManagerEmail, PasswordHash: hash},
			{Email: OtherEmail, PasswordHash: hash},
		},
	})
	require.NoError(t, err)
	return provider
}

// LoginResult mirrors the POST /auth/login payload.
type LoginResult struct {
	IDToken   string `json:"id_token"`
	ExpiresIn int64  `json:"expires_in"`
	Email     string `json:"email"`
}

// Login signs in through the API and returns the bearer token.
func (e *Env) Login(email, password string) string {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.IDToken)
	require.Greater(e.T, result.ExpiresIn, int64(0))
	return result.IDToken
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Webhook posts payload to the webhook route with the given signature header.
func (e *Env) Webhook(payload []byte, signature string) *httptest.ResponseRecorder {
	e.T.Helper()

	req, err := http.NewRequest(http.MethodPost, "/credits/webhook", bytes.NewReader(payload))
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// SignedWebhook signs payload with the environment's webhook secret and posts it.
func (e *Env) SignedWebhook(payload string) *httptest.ResponseRecorder {
	e.T.Helper()

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    WebhookSecret,
		Timestamp: time.Now(),
	})
	return e.Webhook(signed.Payload, signed.Header)
}

// CheckoutCompletedEvent renders a paid checkout.session.completed event.
func CheckoutCompletedEvent(eventID, sessionID, reference string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": %q,
			"object": "checkout.session",
			"client_reference_id": %q,
			"payment_status": "paid",
			"metadata": {"purchase_reference": %q}
		}}
	}`, eventID, sessionID, reference, reference)
}
