package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mensajeropro/mensajero/app/controllers"
	"github.com/mensajeropro/mensajero/app/repository"
	"github.com/mensajeropro/mensajero/internal/pkg/billing"
	"github.com/mensajeropro/mensajero/internal/pkg/cache"
	"github.com/mensajeropro/mensajero/internal/pkg/database"
	"github.com/mensajeropro/mensajero/internal/pkg/env"
	"github.com/mensajeropro/mensajero/internal/pkg/mail"
	"github.com/mensajeropro/mensajero/internal/pkg/router"
)

func main() {
	app, svc := NewApplication()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("Shutdown failed: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}

	// let pending confirmation mails go out before exiting
	svc.Wait()
}

func NewApplication() (*fiber.App, *billing.Service) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/mensajero to project root
		"../../../", // Fallback
	}

	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	paypal := billing.NewPayPalClientFromEnv()
	svc := billing.NewServiceFromDB(database.GetDB(),
		billing.WithNotifier(mail.NewConfirmationNotifier(nil)),
		billing.WithLocker(newOrderLocker()),
		billing.WithOrderCreator(paypal),
		billing.WithMetrics(billing.NewMetrics(reg)),
	)

	repos := repository.GetGlobalFactory().GetRepositories()

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "MensajeroPRO",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app,
		router.NewMetricsRouter(reg, env.GetEnv("METRICS_USER", "admin"), env.GetEnv("METRICS_PASSWORD", "")),
		router.NewApiRouter(
			controllers.NewBillingController(svc, paypal),
			controllers.NewBusinessController(repos),
			repos.User,
		),
	)

	return app, svc
}

// newOrderLocker prefers the shared Redis lock so several instances do not
// race on the same order, and falls back to an in-process lock.
func newOrderLocker() billing.OrderLocker {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		log.Printf("Redis unavailable, using in-process order locks: %v", err)
		return billing.NewLocalLocker()
	}
	return cache.NewOrderLocker(cache.GetClient(), 0)
}
