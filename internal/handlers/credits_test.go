package handlers_test

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/teamcredits/internal/handlers/testutil"
	"github.com/charlesng35/teamcredits/internal/models"
)

type buyPayload struct {
	CheckoutURL       string             `json:"checkout_url"`
	PurchaseReference string             `json:"purchase_reference"`
	Grant             models.CreditGrant `json:"grant"`
}

type creditsPayload struct {
	Credits     int64 `json:"credits"`
	Available   int64 `json:"available"`
	Purchased   int64 `json:"purchased"`
	Invalidated int64 `json:"invalidated"`
	Pending     int64 `json:"pending"`
}

type webhookPayload struct {
	EventID   string `json:"event_id"`
	Outcome   string `json:"outcome"`
	Reference string `json:"reference"`
}

func getCredits(t *testing.T, env *testutil.Env, token, memberEmail string) creditsPayload {
	t.Helper()

	w := env.Request(http.MethodGet, "/credits/get_credits?team_member_email="+url.QueryEscape(memberEmail), nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload creditsPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &payload)
	return payload
}

func buyCredits(t *testing.T, env *testutil.Env, token, memberEmail string, credits int64) buyPayload {
	t.Helper()

	w := env.Request(http.MethodPost, "/credits/buy_credits", map[string]any{
		"team_member_email": memberEmail,
		"credits":           credits,
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var payload buyPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &payload)
	return payload
}

func TestCreditPurchaseLifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Login(testutil.ManagerEmail, testutil.ManagerPassword)

	for i := 0; i < 16; i++ {
		email := fmt.Sprintf("done%02d@example.com", i)
		invite(t, env, token, email)
		w := env.Request(http.MethodPost, "/team/mark_completed", map[string]string{"team_member_email": email}, token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	invite(t, env, token, "member@example.com")

	purchase := buyCredits(t, env, token, "member@example.com", 10)
	require.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_"+purchase.PurchaseReference, purchase.CheckoutURL)
	require.Equal(t, models.CreditGrantPendingPayment, purchase.Grant.Status)
	require.Equal(t, 25, purchase.Grant.DiscountPercent)
	require.Equal(t, int64(750), purchase.Grant.TotalCost)

	session := env.Stripe.LastSession()
	require.Equal(t, purchase.PurchaseReference, session["client_reference_id"])
	require.Equal(t, "75", session["line_items[0][price_data][unit_amount]"])
	require.Equal(t, "10", session["line_items[0][quantity]"])
	require.Equal(t, testutil.ManagerEmail, session["customer_email"])

	require.Zero(t, getCredits(t, env, token, "member@example.com").Credits)

	event := testutil.CheckoutCompletedEvent("evt_1", "cs_test_"+purchase.PurchaseReference, purchase.PurchaseReference)
	w := env.SignedWebhook(event)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var hook webhookPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &hook)
	require.Equal(t, "applied", hook.Outcome)
	require.Equal(t, purchase.PurchaseReference, hook.Reference)

	// Redelivery is acknowledged without crediting twice
	w = env.SignedWebhook(event)
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &hook)
	require.Equal(t, "duplicate", hook.Outcome)

	credits := getCredits(t, env, token, "member@example.com")
	require.Equal(t, int64(10), credits.Credits)
	require.Equal(t, int64(10), credits.Purchased)

	w = env.Request(http.MethodGet, "/credits/get_grants?team_member_email=member@example.com", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, 1, resp.Meta.Total)

	w = env.Request(http.MethodPost, "/credits/invalidate_credit", map[string]string{"grant_id": purchase.Grant.ID}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	credits = getCredits(t, env, token, "member@example.com")
	require.Zero(t, credits.Credits)
	require.Equal(t, int64(10), credits.Invalidated)

	w = env.Request(http.MethodPost, "/credits/invalidate_credit", map[string]string{"grant_id": purchase.Grant.ID}, token)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "CREDIT_GRANT_INVALID_STATE", testutil.DecodeResponse(t, w).Error.Code)
}

func TestBuyCreditsRejections(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Login(testutil.ManagerEmail, testutil.ManagerPassword)
	member := invite(t, env, token, "member@example.com")

	w := env.Request(http.MethodPost, "/credits/buy_credits", map[string]any{"team_member_id": member.ID, "credits": 0}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPost, "/credits/buy_credits", map[string]any{"team_member_id": member.ID, "credits": int64(1e17)}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Nil(t, env.Stripe.LastSession())

	w = env.Request(http.MethodPost, "/credits/buy_credits", map[string]any{"team_member_email": "stranger@example.com", "credits": 1}, token)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "TEAM_MEMBER_NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPost, "/team/mark_completed", map[string]string{"team_member_id": member.ID}, token)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.Request(http.MethodPost, "/credits/buy_credits", map[string]any{"team_member_id": member.ID, "credits": 1}, token)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "TEAM_MEMBER_NOT_ACTIVE", testutil.DecodeResponse(t, w).Error.Code)
	require.Nil(t, env.Stripe.LastSession())
}

func TestBuyCreditsProviderUnavailable(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Login(testutil.ManagerEmail, testutil.ManagerPassword)
	invite(t, env, token, "member@example.com")
	env.Stripe.SetFail(true)

	w := env.Request(http.MethodPost, "/credits/buy_credits", map[string]any{"team_member_email": "member@example.com", "credits": 2}, token)
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "PAYMENT_PROVIDER_UNAVAILABLE", testutil.DecodeResponse(t, w).Error.Code)

	require.Zero(t, getCredits(t, env, token, "member@example.com").Credits)
}

func TestCreditsAreScopedToManager(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Login(testutil.ManagerEmail, testutil.ManagerPassword)
	other := env.Login(testutil.OtherEmail, testutil.ManagerPassword)
	member := invite(t, env, token, "member@example.com")
	purchase := buyCredits(t, env, token, "member@example.com", 1)

	w := env.Request(http.MethodGet, "/credits/get_credits?team_member_id="+member.ID, nil, other)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.Request(http.MethodPost, "/credits/invalidate_credit", map[string]string{"grant_id": purchase.Grant.ID}, other)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "CREDIT_GRANT_NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodGet, "/credits/get_credits", nil, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookSignatureChecks(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Login(testutil.ManagerEmail, testutil.ManagerPassword)
	invite(t, env, token, "member@example.com")
	purchase := buyCredits(t, env, token, "member@example.com", 3)

	event := testutil.CheckoutCompletedEvent("evt_forged", "cs_x", purchase.PurchaseReference)

	w := env.Webhook([]byte(event), "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_SIGNATURE", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Webhook([]byte(event), "t=1,v1=deadbeef")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_SIGNATURE", testutil.DecodeResponse(t, w).Error.Code)

	require.Zero(t, getCredits(t, env, token, "member@example.com").Credits)
}

func TestWebhookUnknownReferenceIsAcknowledged(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.SignedWebhook(testutil.CheckoutCompletedEvent("evt_2", "cs_y", "pr_unknown"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var hook webhookPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &hook)
	require.Equal(t, "ignored", hook.Outcome)
}
