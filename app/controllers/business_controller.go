package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/mensajeropro/mensajero/app/models"
	"github.com/mensajeropro/mensajero/app/repository"
	"github.com/mensajeropro/mensajero/internal/pkg/entitlements"
	"github.com/mensajeropro/mensajero/internal/pkg/usercontext"
	"github.com/mensajeropro/mensajero/internal/pkg/utils"
)

// BusinessController serves business management and the user dashboard.
type BusinessController struct {
	users      repository.UserRepository
	businesses repository.BusinessRepository
	payments   repository.PaymentRepository
	now        func() time.Time
}

func NewBusinessController(repos *repository.Repositories) *BusinessController {
	return &BusinessController{
		users:      repos.User,
		businesses: repos.Business,
		payments:   repos.Payment,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (bc *BusinessController) entitlementsFor(userID uint) (*entitlements.Snapshot, entitlements.Entitlements, error) {
	snap, err := bc.users.GetEntitlementSnapshot(userID)
	if err != nil {
		return nil, entitlements.Entitlements{}, err
	}
	return snap, entitlements.Project(*snap, bc.now()), nil
}

// HandleListBusinesses returns the caller's businesses with quota usage.
func (bc *BusinessController) HandleListBusinesses(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	_, ent, err := bc.entitlementsFor(userCtx.UserID)
	if err != nil {
		return userLookupError(c, err)
	}
	list, err := bc.businesses.ListByOwner(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load businesses"})
	}

	return c.JSON(fiber.Map{
		"businesses":      list,
		"total":           len(list),
		"limit":           ent.BusinessLimit,
		"can_create_more": ent.CanCreateBusiness,
	})
}

type createBusinessRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	WhatsAppNumber string `json:"whatsapp_number"`
	WhatsAppToken  string `json:"whatsapp_token"`
	AIContext      string `json:"ai_context"`
}

// HandleCreateBusiness creates a business if the caller's plan allows one
// more.
func (bc *BusinessController) HandleCreateBusiness(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req createBusinessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed JSON body"})
	}

	business := &models.Business{
		OwnerID:        userCtx.UserID,
		Name:           strings.TrimSpace(req.Name),
		Description:    strings.TrimSpace(req.Description),
		WhatsAppNumber: strings.TrimSpace(req.WhatsAppNumber),
		WhatsAppToken:  strings.TrimSpace(req.WhatsAppToken),
		AIContext:      req.AIContext,
		IsActive:       true,
	}

	ent, err := bc.businesses.CreateWithinQuota(business, bc.now())
	if err != nil {
		var verrs validator.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": verrs.Error()})
		case errors.Is(err, entitlements.ErrSubscriptionRequired), errors.Is(err, entitlements.ErrBusinessLimitReached):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":            "upgrade_required",
				"message":          err.Error(),
				"upgrade_required": true,
				"entitlements":     ent,
			})
		}
		return userLookupError(c, err)
	}

	log.Infof("[Business] User %d created business %d", userCtx.UserID, business.ID)
	return c.Status(fiber.StatusCreated).JSON(business)
}

// HandleDashboard returns the caller's entitlements, subscription window and
// recent payments.
func (bc *BusinessController) HandleDashboard(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	snap, ent, err := bc.entitlementsFor(userCtx.UserID)
	if err != nil {
		return userLookupError(c, err)
	}
	payments, err := bc.payments.ListByUser(userCtx.UserID, 5)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payments"})
	}

	var subscription fiber.Map
	if s := snap.Subscription; s != nil {
		subscription = fiber.Map{
			"plan_type":             s.PlanType,
			"is_active":             s.IsValidAt(bc.now()),
			"start_date":            s.StartDate.UTC().Format(time.RFC3339),
			"end_date":              s.EndDate.UTC().Format(time.RFC3339),
			"monthly_message_limit": s.MonthlyMessageLimit,
		}
	}

	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":       snap.User.ID,
			"username": snap.User.Username,
			"email":    snap.User.Email,
			"role":     snap.User.Role,
			"avatar":   utils.GetGravatarURL(snap.User.Email, 80),
		},
		"entitlements":    ent,
		"subscription":    subscription,
		"recent_payments": payments,
	})
}

func userLookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
	}
	log.Errorf("[Business] Request failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load account"})
}
