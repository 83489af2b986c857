package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/mensajeropro/mensajero/app/controllers"
	"github.com/mensajeropro/mensajero/app/repository"
	"github.com/mensajeropro/mensajero/internal/pkg/middleware"
)

type ApiRouter struct {
	billing  *controllers.BillingController
	business *controllers.BusinessController
	users    repository.UserRepository
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// PayPal retries in bursts; the webhook is authenticated by signature
	// and must not be rate limited.
	v1.Post("/payments/webhook", h.billing.HandlePayPalWebhook)

	limit := limiter.New(limiter.Config{Max: 60, Expiration: time.Minute})
	v1.Get("/plans", limit, h.billing.HandleListPlans)

	auth := middleware.APIKeyAuth(h.users)
	v1.Post("/payments", limit, auth, middleware.RequireAPIAuth, h.billing.HandleCreatePayment)
	v1.Get("/businesses", limit, auth, middleware.RequireAPIAuth, h.business.HandleListBusinesses)
	v1.Post("/businesses", limit, auth, middleware.RequireAPIAuth, h.business.HandleCreateBusiness)
	v1.Get("/me/dashboard", limit, auth, middleware.RequireAPIAuth, h.business.HandleDashboard)

	admin := v1.Group("/admin", limit, auth, middleware.RequireSuperadmin)
	admin.Get("/webhook-events", h.billing.HandleListWebhookEvents)
}

func NewApiRouter(billing *controllers.BillingController, business *controllers.BusinessController, users repository.UserRepository) *ApiRouter {
	return &ApiRouter{billing: billing, business: business, users: users}
}
