package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JanBecker/ClipFox/app/repository"
	"github.com/JanBecker/ClipFox/internal/pkg/database"
	"github.com/JanBecker/ClipFox/internal/pkg/ledger"
	"github.com/JanBecker/ClipFox/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// HandleGetCredits returns the current user's credit balance and the newest
// ledger entries.
func HandleGetCredits(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repos := repository.GetGlobalRepositories()
	balance, err := repos.Ledger.Balance(userCtx.UserID)
	if err != nil {
		return internalError(c, "credits", err)
	}
	entries, err := repos.Ledger.ListEntries(userCtx.UserID, c.QueryInt("limit", 50))
	if err != nil {
		return internalError(c, "credits", err)
	}

	return c.JSON(fiber.Map{
		"balance": balance,
		"entries": entries,
	})
}

type consumeCreditsRequest struct {
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
	LinkedID string `json:"linked_id"`
}

// HandleConsumeCredits spends credits for a metered action. Insufficient
// balance is a business outcome, reported as 402 with the current balance.
func HandleConsumeCredits(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req consumeCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Malformed request body")
	}
	if req.Amount <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "amount must be positive")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "reason is required")
	}

	svc := ledger.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := svc.Consume(ctx, userCtx.UserID, req.Amount, req.Reason, req.LinkedID); err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			balance, _ := svc.Balance(ctx, userCtx.UserID)
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error":   "insufficient_credits",
				"balance": balance,
				"needed":  req.Amount,
			})
		}
		return internalError(c, "credits", err)
	}

	balance, err := svc.Balance(ctx, userCtx.UserID)
	if err != nil {
		return internalError(c, "credits", err)
	}
	return c.JSON(fiber.Map{"ok": true, "balance": balance})
}
