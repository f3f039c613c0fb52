package router

import (
	"github.com/JanBecker/ClipFox/app/controllers"
	"github.com/JanBecker/ClipFox/internal/pkg/constants"
	"github.com/JanBecker/ClipFox/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group(constants.APIv1Route+constants.AdminRoute, middleware.RequireAPIAdmin)

	// User and entitlement management
	adminGroup.Get("/users", controllers.HandleAdminListUsers)
	adminGroup.Post("/users/:id/plan-override", controllers.HandleAdminSetPlanOverride)
	adminGroup.Delete("/users/:id/plan-override", controllers.HandleAdminClearPlanOverride)
	adminGroup.Post("/users/:id/credits", controllers.HandleAdminGrantCredits)

	// Plan and workspace policies
	adminGroup.Post("/policies/:plan", controllers.HandleAdminUpdatePlanPolicy)
	adminGroup.Post("/workspaces/:id/policy", controllers.HandleAdminUpsertWorkspacePolicy)

	// Operations
	adminGroup.Get("/stats", controllers.HandleAdminStats)
	adminGroup.Post("/settings/reload", controllers.HandleAdminReloadSettings)
	adminGroup.Post("/refresh-cycle", controllers.HandleAdminRunRefreshCycle)
	adminGroup.Get("/cache/keys", controllers.HandleAdminListCacheKeys)
	adminGroup.Delete("/cache/keys", controllers.HandleAdminFlushCacheKeys)
}
