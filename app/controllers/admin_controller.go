package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JanBecker/ClipFox/app/repository"
	"github.com/JanBecker/ClipFox/internal/pkg/billing"
	"github.com/JanBecker/ClipFox/internal/pkg/database"
	"github.com/JanBecker/ClipFox/internal/pkg/ledger"
	"github.com/JanBecker/ClipFox/internal/pkg/policy"
	"github.com/JanBecker/ClipFox/internal/pkg/refresher"
	"github.com/JanBecker/ClipFox/internal/pkg/statistics"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HandleAdminListUsers returns a paginated user list with account counts and
// credit balances.
func HandleAdminListUsers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	repos := repository.GetGlobalRepositories()
	users, err := repos.User.GetWithStats((page-1)*limit, limit)
	if err != nil {
		return internalError(c, "admin", err)
	}
	total, err := repos.User.Count()
	if err != nil {
		return internalError(c, "admin", err)
	}

	return c.JSON(fiber.Map{"users": users, "total": total, "page": page})
}

type planOverrideRequest struct {
	Plan      string `json:"plan"`
	ExpiresAt string `json:"expires_at"`
	Reason    string `json:"reason"`
}

// HandleAdminSetPlanOverride pins a user to a plan, optionally time-limited.
func HandleAdminSetPlanOverride(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "invalid user id")
	}

	var req planOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Malformed request body")
	}

	var expiresAt *time.Time
	if s := strings.TrimSpace(req.ExpiresAt); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "expires_at must be RFC3339")
		}
		expiresAt = &t
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	effectivePlan, err := svc.SetPlanOverride(ctx, uint(userID), req.Plan, expiresAt, req.Reason)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", err.Error())
	}

	return c.JSON(fiber.Map{"effective_plan": effectivePlan})
}

// HandleAdminClearPlanOverride removes a user's plan override.
func HandleAdminClearPlanOverride(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "invalid user id")
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	effectivePlan, err := svc.ClearPlanOverride(ctx, uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return internalError(c, "admin", err)
	}

	return c.JSON(fiber.Map{"effective_plan": effectivePlan})
}

type grantCreditsRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// HandleAdminGrantCredits appends a manual credit grant to a user's ledger.
func HandleAdminGrantCredits(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "invalid user id")
	}

	var req grantCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Malformed request body")
	}
	if req.Amount <= 0 || strings.TrimSpace(req.Reason) == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "amount must be positive and reason is required")
	}

	svc := ledger.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := svc.Grant(ctx, uint(userID), req.Amount, req.Reason, ""); err != nil {
		return internalError(c, "admin", err)
	}
	balance, err := svc.Balance(ctx, uint(userID))
	if err != nil {
		return internalError(c, "admin", err)
	}

	return c.JSON(fiber.Map{"ok": true, "balance": balance})
}

// HandleAdminUpdatePlanPolicy patches a plan's default feature policy.
func HandleAdminUpdatePlanPolicy(c *fiber.Ctx) error {
	plan := strings.TrimSpace(c.Params("plan"))

	var patch policy.PlanPolicyPatch
	if err := c.BodyParser(&patch); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Malformed request body")
	}

	resolver := policy.NewResolverFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := resolver.UpdatePlanPolicy(ctx, plan, patch); err != nil {
		if errors.Is(err, policy.ErrUnknownPlan) {
			return jsonError(c, fiber.StatusNotFound, "unknown_plan", err.Error())
		}
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", err.Error())
	}

	resolved, err := resolver.Resolve(ctx, plan, nil)
	if err != nil {
		return internalError(c, "admin", err)
	}
	return c.JSON(resolved)
}

// HandleAdminUpsertWorkspacePolicy patches a workspace's policy override.
func HandleAdminUpsertWorkspacePolicy(c *fiber.Ctx) error {
	workspaceID, err := c.ParamsInt("id")
	if err != nil || workspaceID <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "invalid workspace id")
	}

	var patch policy.PlanPolicyPatch
	if err := c.BodyParser(&patch); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Malformed request body")
	}

	if _, err := repository.GetGlobalRepositories().Workspace.GetByID(uint(workspaceID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Workspace not found")
		}
		return internalError(c, "admin", err)
	}

	resolver := policy.NewResolverFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := resolver.UpsertWorkspaceOverride(ctx, uint(workspaceID), patch); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", err.Error())
	}

	return c.JSON(fiber.Map{"ok": true})
}

// HandleAdminStats returns the cached aggregate numbers.
func HandleAdminStats(c *fiber.Ctx) error {
	data := statistics.GetStatisticsData()
	return c.JSON(fiber.Map{
		"total_users":     data.TotalUsers,
		"total_accounts":  data.TotalAccounts,
		"today_snapshots": data.TodaySnapshots,
	})
}

// HandleAdminReloadSettings re-reads runtime settings from the database.
func HandleAdminReloadSettings(c *fiber.Ctx) error {
	if err := repository.GetGlobalRepositories().Setting.Reload(); err != nil {
		return internalError(c, "admin", err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// HandleAdminRunRefreshCycle triggers one scheduler cycle on demand.
func HandleAdminRunRefreshCycle(c *fiber.Ctx) error {
	scheduler := refresher.NewSchedulerFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	attempted, err := scheduler.RunCycleOnce(ctx)
	if err != nil {
		return internalError(c, "admin", err)
	}
	return c.JSON(fiber.Map{"ok": true, "attempted": attempted})
}

// HandleAdminListCacheKeys lists cache keys matching the given patterns.
func HandleAdminListCacheKeys(c *fiber.Ctx) error {
	pattern := strings.TrimSpace(c.Query("pattern", "policy:*"))

	keys, err := repository.GetGlobalRepositories().Cache.FindKeysByPatterns([]string{pattern})
	if err != nil {
		return internalError(c, "admin", err)
	}
	return c.JSON(fiber.Map{"keys": keys})
}

// HandleAdminFlushCacheKeys deletes cache keys matching the given patterns.
func HandleAdminFlushCacheKeys(c *fiber.Ctx) error {
	pattern := strings.TrimSpace(c.Query("pattern"))
	if pattern == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "pattern is required")
	}

	cacheRepo := repository.GetGlobalRepositories().Cache
	keys, err := cacheRepo.FindKeysByPatterns([]string{pattern})
	if err != nil {
		return internalError(c, "admin", err)
	}
	deleted, err := cacheRepo.DeleteKeys(keys)
	if err != nil {
		return internalError(c, "admin", err)
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}
