package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
	"github.com/JanBecker/ClipFox/app/repository"
	"github.com/JanBecker/ClipFox/internal/pkg/database"
	"github.com/JanBecker/ClipFox/internal/pkg/policy"
	"github.com/JanBecker/ClipFox/internal/pkg/refresher"
	"github.com/JanBecker/ClipFox/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HandleListSocialAccounts returns the current user's monitored accounts.
func HandleListSocialAccounts(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	accounts, err := repository.GetGlobalRepositories().SocialAccount.GetByUserID(userCtx.UserID)
	if err != nil {
		return internalError(c, "social", err)
	}
	return c.JSON(fiber.Map{"accounts": accounts})
}

type createSocialAccountRequest struct {
	Platform          string `json:"platform"`
	ExternalAccountID string `json:"external_account_id"`
	Handle            string `json:"handle"`
	WorkspaceID       *uint  `json:"workspace_id"`
}

// HandleCreateSocialAccount registers a new account to monitor, enforcing
// the plan's accounts limit.
func HandleCreateSocialAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req createSocialAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Malformed request body")
	}
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	externalID := strings.TrimSpace(req.ExternalAccountID)
	handle := strings.TrimSpace(req.Handle)
	if platform == "" || externalID == "" || handle == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "platform, external_account_id and handle are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resolver := policy.NewResolverFromDB(database.GetDB())
	resolved, err := resolver.Resolve(ctx, userCtx.Plan, req.WorkspaceID)
	if err != nil {
		return internalError(c, "social", err)
	}

	repos := repository.GetGlobalRepositories()
	count, err := repos.SocialAccount.CountByUserID(userCtx.UserID)
	if err != nil {
		return internalError(c, "social", err)
	}
	if resolved.AccountsLimit > 0 && count >= int64(resolved.AccountsLimit) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":          "upgrade_required",
			"message":        "Account limit reached for the current plan",
			"accounts_limit": resolved.AccountsLimit,
		})
	}

	account := &models.SocialAccount{
		UserID:               userCtx.UserID,
		WorkspaceID:          req.WorkspaceID,
		Platform:             platform,
		ExternalAccountID:    externalID,
		Handle:               handle,
		RefreshMode:          models.RefreshModeManual,
		RefreshIntervalHours: resolved.DefaultRefreshIntervalHours,
		Status:               models.SocialStatusActive,
	}
	if err := repos.SocialAccount.Create(account); err != nil {
		return internalError(c, "social", err)
	}
	return c.Status(fiber.StatusCreated).JSON(account)
}

type setRefreshModeRequest struct {
	Mode string `json:"mode"`
}

// HandleSetRefreshMode switches an account between manual and scheduled
// refresh. Plans without scheduled refresh get an upgrade_required response.
func HandleSetRefreshMode(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	accountID, err := c.ParamsInt("id")
	if err != nil || accountID <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "invalid account id")
	}

	var req setRefreshModeRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Malformed request body")
	}

	account, err := repository.GetGlobalRepositories().SocialAccount.GetByID(uint(accountID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Account not found")
		}
		return internalError(c, "social", err)
	}
	if account.UserID != userCtx.UserID && !userCtx.IsAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Not your account")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler := refresher.NewSchedulerFromDB(database.GetDB())
	resolver := policy.NewResolverFromDB(database.GetDB())
	updated, err := scheduler.SetRefreshMode(ctx, resolver, account.ID, strings.TrimSpace(req.Mode), userCtx.Plan)
	if err != nil {
		if errors.Is(err, refresher.ErrScheduledRefreshNotAllowed) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "upgrade_required",
				"message": "Scheduled refresh is not included in the current plan",
			})
		}
		if errors.Is(err, policy.ErrUnknownPlan) {
			return internalError(c, "social", err)
		}
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", err.Error())
	}

	return c.JSON(updated)
}

// HandleManualRefresh triggers one immediate refresh attempt for an account.
func HandleManualRefresh(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	accountID, err := c.ParamsInt("id")
	if err != nil || accountID <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "invalid account id")
	}

	account, err := repository.GetGlobalRepositories().SocialAccount.GetByID(uint(accountID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Account not found")
		}
		return internalError(c, "social", err)
	}
	if account.UserID != userCtx.UserID && !userCtx.IsAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Not your account")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	scheduler := refresher.NewSchedulerFromDB(database.GetDB())
	refreshed, err := scheduler.ManualRefresh(ctx, account.ID)
	if err != nil {
		// The attempt itself is recorded on the account; report the outcome.
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "refresh_failed",
			"message": err.Error(),
			"account": refreshed,
		})
	}

	return c.JSON(refreshed)
}

// HandleListSnapshots returns the metrics history for one account.
func HandleListSnapshots(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	accountID, err := c.ParamsInt("id")
	if err != nil || accountID <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "invalid account id")
	}

	repos := repository.GetGlobalRepositories()
	account, err := repos.SocialAccount.GetByID(uint(accountID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Account not found")
		}
		return internalError(c, "social", err)
	}
	if account.UserID != userCtx.UserID && !userCtx.IsAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Not your account")
	}

	days := c.QueryInt("days", 30)
	if days <= 0 || days > 365 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)
	snapshots, err := repos.SocialAccount.ListSnapshots(account.ID, since, c.QueryInt("limit", 200))
	if err != nil {
		return internalError(c, "social", err)
	}

	return c.JSON(fiber.Map{"account_id": account.ID, "snapshots": snapshots})
}
