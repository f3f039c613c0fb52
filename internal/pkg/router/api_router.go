package router

import (
	"github.com/JanBecker/ClipFox/app/controllers"
	"github.com/JanBecker/ClipFox/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes for browser sessions
	v1 := api.Group("/v1", middleware.RequireAPISessionAuth)

	v1.Get("/user/profile", controllers.HandleGetProfile)
	v1.Get("/user/effective-plan", controllers.HandleGetEffectivePlan)
	v1.Get("/user/subscription-audit", controllers.HandleGetSubscriptionAudit)
	v1.Post("/user/api-key", controllers.HandleIssueAPIKey)
	v1.Delete("/user/api-key", controllers.HandleRevokeAPIKey)

	v1.Get("/credits", controllers.HandleGetCredits)
	v1.Post("/credits/consume", controllers.HandleConsumeCredits)

	v1.Post("/billing/checkout", controllers.HandleCreateCheckoutSession)
	v1.Post("/billing/portal", controllers.HandleCreatePortalSession)
	v1.Post("/billing/resync", controllers.HandleBillingResync)

	v1.Get("/accounts", controllers.HandleListSocialAccounts)
	v1.Post("/accounts", controllers.HandleCreateSocialAccount)
	v1.Post("/accounts/:id/refresh-mode", controllers.HandleSetRefreshMode)
	v1.Post("/accounts/:id/refresh", controllers.HandleManualRefresh)
	v1.Get("/accounts/:id/snapshots", controllers.HandleListSnapshots)

	// Machine access with user API keys, same handlers behind a different
	// auth middleware.
	ext := api.Group("/ext", middleware.APIKeyAuthMiddleware())
	ext.Get("/profile", controllers.HandleGetProfile)
	ext.Get("/credits", controllers.HandleGetCredits)
	ext.Post("/credits/consume", controllers.HandleConsumeCredits)
	ext.Get("/accounts", controllers.HandleListSocialAccounts)
	ext.Post("/accounts/:id/refresh", controllers.HandleManualRefresh)
	ext.Get("/accounts/:id/snapshots", controllers.HandleListSnapshots)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
