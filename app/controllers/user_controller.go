package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/JanBecker/ClipFox/app/repository"
	"github.com/JanBecker/ClipFox/internal/pkg/billing"
	"github.com/JanBecker/ClipFox/internal/pkg/database"
	"github.com/JanBecker/ClipFox/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HandleGetProfile returns the current user with entitlement details.
func HandleGetProfile(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repos := repository.GetGlobalRepositories()
	user, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return internalError(c, "user", err)
	}

	balance, err := repos.Ledger.Balance(user.ID)
	if err != nil {
		return internalError(c, "user", err)
	}
	accountCount, err := repos.SocialAccount.CountByUserID(user.ID)
	if err != nil {
		return internalError(c, "user", err)
	}

	return c.JSON(fiber.Map{
		"user":           user,
		"credit_balance": balance,
		"account_count":  accountCount,
	})
}

// HandleGetEffectivePlan re-evaluates and returns the user's effective plan.
func HandleGetEffectivePlan(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	effectivePlan, err := svc.GetEffectivePlan(ctx, userCtx.UserID)
	if err != nil {
		return internalError(c, "user", err)
	}
	return c.JSON(fiber.Map{"effective_plan": effectivePlan})
}

// HandleGetSubscriptionAudit returns the user's entitlement transition
// history, newest first.
func HandleGetSubscriptionAudit(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	entries, err := repository.GetGlobalRepositories().Audit.ListByUserID(userCtx.UserID, c.QueryInt("limit", 50))
	if err != nil {
		return internalError(c, "user", err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// HandleIssueAPIKey generates a fresh API key and returns the raw secret
// once. Reissuing invalidates the previous key.
func HandleIssueAPIKey(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repos := repository.GetGlobalRepositories()
	user, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		return internalError(c, "user", err)
	}

	rawKey, err := user.IssueAPIKey()
	if err != nil {
		return internalError(c, "user", err)
	}
	if err := repos.User.Update(user); err != nil {
		return internalError(c, "user", err)
	}

	return c.JSON(fiber.Map{
		"api_key":        rawKey,
		"api_key_prefix": user.APIKeyPrefix,
	})
}

// HandleRevokeAPIKey revokes the current API key.
func HandleRevokeAPIKey(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repos := repository.GetGlobalRepositories()
	user, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		return internalError(c, "user", err)
	}

	user.RevokeAPIKey()
	if err := repos.User.Update(user); err != nil {
		return internalError(c, "user", err)
	}

	return c.JSON(fiber.Map{"ok": true})
}
