package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter installs routers in order. Earlier routers win on
// overlapping paths.
func InstallRouter(app *fiber.App, routers ...Router) {
	setup(app, routers...)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
