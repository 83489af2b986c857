package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRouter exposes a Prometheus registry at /metrics behind basic auth.
type MetricsRouter struct {
	gatherer prometheus.Gatherer
	user     string
	password string
}

func (m MetricsRouter) InstallRouter(app *fiber.App) {
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			m.user: m.password,
		},
	}), adaptor.HTTPHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})))
}

func NewMetricsRouter(gatherer prometheus.Gatherer, user, password string) *MetricsRouter {
	return &MetricsRouter{gatherer: gatherer, user: user, password: password}
}
