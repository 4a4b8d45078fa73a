package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGranter struct {
	grants map[string]int
	err    error
}

func (r *recordingGranter) AddCredits(ctx context.Context, userID string, credits int) error {
	if r.err != nil {
		return r.err
	}
	if r.grants == nil {
		r.grants = map[string]int{}
	}
	r.grants[userID] += credits
	return nil
}

func signBody(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookApp(granter *recordingGranter) *fiber.App {
	app := fiber.New()
	NewWebhookHandler("whsec_test", granter).Register(app)
	return app
}

func postWebhook(t *testing.T, app *fiber.App, body, signature string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Payment-Signature", signature)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestWebhookGrantsCreditsOnValidSignature(t *testing.T) {
	granter := &recordingGranter{}
	app := webhookApp(granter)

	body := `{"type":"checkout.completed","data":{"user_id":"user-1","credits":500}}`
	resp := postWebhook(t, app, body, signBody("whsec_test", body))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 500, granter.grants["user-1"])
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	granter := &recordingGranter{}
	app := webhookApp(granter)

	body := `{"type":"checkout.completed","data":{"user_id":"user-1","credits":500}}`
	resp := postWebhook(t, app, body, signBody("wrong-secret", body))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, granter.grants)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	granter := &recordingGranter{}
	app := webhookApp(granter)

	body := `{"type":"checkout.completed","data":{"user_id":"user-1","credits":500}}`
	resp := postWebhook(t, app, body, "")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, granter.grants)
}

func TestWebhookRejectsTamperedBody(t *testing.T) {
	granter := &recordingGranter{}
	app := webhookApp(granter)

	original := `{"type":"checkout.completed","data":{"user_id":"user-1","credits":500}}`
	tampered := `{"type":"checkout.completed","data":{"user_id":"user-1","credits":99999}}`
	resp := postWebhook(t, app, tampered, signBody("whsec_test", original))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, granter.grants)
}

func TestWebhookAcknowledgesUnknownEventType(t *testing.T) {
	granter := &recordingGranter{}
	app := webhookApp(granter)

	body := `{"type":"invoice.paid","data":{"user_id":"user-1","credits":500}}`
	resp := postWebhook(t, app, body, signBody("whsec_test", body))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, granter.grants)
}

func TestWebhookRejectsInvalidCheckoutData(t *testing.T) {
	granter := &recordingGranter{}
	app := webhookApp(granter)

	body := `{"type":"checkout.completed","data":{"user_id":"","credits":0}}`
	resp := postWebhook(t, app, body, signBody("whsec_test", body))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, granter.grants)
}
