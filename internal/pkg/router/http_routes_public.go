package router

import (
	"github.com/JanBecker/ClipFox/app/controllers"
	"github.com/JanBecker/ClipFox/internal/pkg/constants"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Session exchange from the auth gateway. Rate limited because it is
	// reachable without a session.
	auth := app.Group("/auth", limiter.New(limiter.Config{Max: 30}))
	auth.Post("/session", controllers.HandleAuthSession)
	auth.Post("/logout", controllers.HandleLogout)

	// Billing provider webhook. Authenticated by signature, not by session,
	// so it must not sit behind the session middleware guards.
	app.Post(constants.WebhookRoute, limiter.New(limiter.Config{Max: 120}), controllers.HandleBillingWebhook)
}
