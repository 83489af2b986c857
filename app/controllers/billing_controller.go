package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mensajeropro/mensajero/internal/pkg/billing"
	"github.com/mensajeropro/mensajero/internal/pkg/usercontext"
)

const webhookTimeout = 15 * time.Second

// BillingController serves order initiation and the PayPal webhook.
type BillingController struct {
	svc      *billing.Service
	verifier billing.SignatureVerifier
}

func NewBillingController(svc *billing.Service, verifier billing.SignatureVerifier) *BillingController {
	return &BillingController{svc: svc, verifier: verifier}
}

// HandlePayPalWebhook authenticates a delivery and hands it to the
// reconciler. Anything but a storage failure is acknowledged with 200 so
// PayPal does not keep retrying.
func (bc *BillingController) HandlePayPalWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	headers := http.Header{}
	c.Request().Header.VisitAll(func(k, v []byte) {
		headers.Add(string(k), string(v))
	})

	ctx, cancel := context.WithTimeout(c.UserContext(), webhookTimeout)
	defer cancel()

	valid, err := bc.verifier.VerifyWebhook(ctx, headers, rawBody)
	if err != nil {
		log.Errorf("[Billing] Webhook signature check failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "signature_verification_failed"})
	}
	if !valid {
		log.Warnf("[Billing] Rejected webhook with invalid signature (transmission=%s)", headers.Get("Paypal-Transmission-Id"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	res, err := bc.svc.ProcessWebhook(ctx, rawBody)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidPayload) || errors.Is(err, billing.ErrEmptyPayload) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}
	if res.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	out := fiber.Map{"ok": true, "outcome": res.Result.Outcome}
	if res.Result.Outcome == billing.OutcomeIgnored {
		out["ignored"] = true
	}
	if res.Result.OrderID != "" {
		out["order_id"] = res.Result.OrderID
	}
	return c.Status(fiber.StatusOK).JSON(out)
}

type createPaymentRequest struct {
	PlanType string `json:"plan_type"`
}

// HandleCreatePayment opens a PayPal order for the caller and returns the
// link the buyer has to approve.
func (bc *BillingController) HandleCreatePayment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req createPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed JSON body"})
	}
	if strings.TrimSpace(req.PlanType) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_plan", "message": "plan_type is required"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 20*time.Second)
	defer cancel()

	payment, order, err := bc.svc.InitiateOrder(ctx, userCtx.UserID, req.PlanType)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrUnknownPlan):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_plan", "message": "Unknown plan"})
		case errors.Is(err, billing.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		log.Errorf("[Billing] Order initiation for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment_initiation_failed", "message": "Could not create PayPal order"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"payment_id":    payment.ID,
		"order_id":      order.ID,
		"approval_link": order.ApprovalLink,
		"plan_type":     payment.PlanType,
		"amount":        payment.Amount.StringFixed(2),
		"currency":      payment.Currency,
		"status":        payment.Status,
	})
}

// HandleListPlans returns the plan catalog.
func (bc *BillingController) HandleListPlans(c *fiber.Ctx) error {
	plans := bc.svc.Catalog().Plans()
	out := make([]fiber.Map, 0, len(plans))
	for _, p := range plans {
		out = append(out, fiber.Map{
			"id":               p.ID,
			"max_businesses":   p.MaxBusinesses,
			"monthly_messages": p.MonthlyMessages,
			"price":            p.Price.StringFixed(2),
			"currency":         "USD",
		})
	}
	return c.JSON(fiber.Map{"plans": out})
}

// HandleListWebhookEvents returns the webhook audit trail. Superadmin only.
func (bc *BillingController) HandleListWebhookEvents(c *fiber.Ctx) error {
	events, err := bc.svc.ListWebhookEvents(c.UserContext(), c.Query("outcome"), c.QueryInt("limit", 50))
	if err != nil {
		log.Errorf("[Billing] Listing webhook events failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load webhook events"})
	}
	return c.JSON(fiber.Map{"events": events, "total": len(events)})
}
