package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/gitsage/gitsage/internal/port"
	"github.com/gofiber/fiber/v3"
)

type creditGranter interface {
	AddCredits(ctx context.Context, userID string, credits int) error
}

// WebhookHandler receives payment provider callbacks. It lives outside the
// JWT-protected group; authenticity comes from the HMAC signature instead.
type WebhookHandler struct {
	secret string
	store  creditGranter
}

// NewWebhookHandler creates a new payment webhook handler.
func NewWebhookHandler(secret string, store creditGranter) *WebhookHandler {
	return &WebhookHandler{secret: secret, store: store}
}

// Register sets up the public webhook route.
func (h *WebhookHandler) Register(router fiber.Router) {
	router.Post("/webhooks/payment", h.HandlePayment)
}

type paymentEvent struct {
	Type string `json:"type"`
	Data struct {
		UserID  string `json:"user_id"`
		Credits int    `json:"credits"`
	} `json:"data"`
}

// HandlePayment verifies the request signature against the raw body and
// credits the user's account for completed checkouts. A bad signature is
// rejected before the body is even parsed, so no ledger state changes.
func (h *WebhookHandler) HandlePayment(c fiber.Ctx) error {
	body := c.Body()

	sig := c.Get("X-Payment-Signature")
	if !verifySignature(body, sig, h.secret) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": port.ErrInvalidSignature.Error()})
	}

	var event paymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}

	switch event.Type {
	case "checkout.completed":
		if event.Data.UserID == "" || event.Data.Credits <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid checkout data"})
		}
		if err := h.store.AddCredits(c.Context(), event.Data.UserID, event.Data.Credits); err != nil {
			slog.Error("failed to grant credits", "user_id", event.Data.UserID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to grant credits"})
		}
		slog.Info("credits granted", "user_id", event.Data.UserID, "credits", event.Data.Credits)
	default:
		// Unknown event types are acknowledged so the provider stops retrying.
		slog.Info("ignoring webhook event", "type", event.Type)
	}

	return c.JSON(fiber.Map{"received": true})
}

func verifySignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
