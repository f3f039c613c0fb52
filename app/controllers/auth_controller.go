package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
	"github.com/JanBecker/ClipFox/internal/pkg/database"
	"github.com/JanBecker/ClipFox/internal/pkg/env"
	"github.com/JanBecker/ClipFox/internal/pkg/session"
	"github.com/JanBecker/ClipFox/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

type authSessionRequest struct {
	AuthProviderID string `json:"auth_provider_id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
}

// HandleAuthSession establishes a local session from an identity asserted by
// the external auth gateway. The gateway signs the raw body with a shared
// secret; without a valid signature no session is created.
func HandleAuthSession(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("X-Auth-Signature"))
	secret := env.GetSecret("AUTH_GATEWAY_SECRET")
	if !verifyAuthSignature(rawBody, signature, secret) {
		return jsonError(c, fiber.StatusUnauthorized, "invalid_signature", "Identity assertion signature is invalid")
	}

	var req authSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Malformed identity payload")
	}
	if strings.TrimSpace(req.AuthProviderID) == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "auth_provider_id is required")
	}

	user, err := models.GetOrCreateUserByAuthID(database.GetDB(), req.AuthProviderID, req.Email)
	if err != nil {
		return internalError(c, "auth", err)
	}
	if user.Status != models.STATUS_ACTIVE {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Account is not active")
	}

	if name := strings.TrimSpace(req.Name); name != "" && name != user.Name {
		user.Name = name
	}
	now := time.Now()
	user.LastLoginAt = &now
	if err := database.GetDB().Save(user).Error; err != nil {
		return internalError(c, "auth", err)
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return internalError(c, "auth", err)
	}
	isAdmin := user.Role == models.ROLE_ADMIN || user.Role == models.ROLE_SUPERADMIN
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUsername, user.Name)
	sess.Set(usercontext.KeyIsAdmin, isAdmin)
	sess.Set(usercontext.KeyPlan, user.EffectivePlan)
	if err := sess.Save(); err != nil {
		return internalError(c, "auth", err)
	}

	return c.JSON(fiber.Map{
		"user_id":        user.ID,
		"effective_plan": user.EffectivePlan,
		"is_admin":       isAdmin,
	})
}

// HandleLogout destroys the current session.
func HandleLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return internalError(c, "auth", err)
	}
	if err := sess.Destroy(); err != nil {
		return internalError(c, "auth", err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func verifyAuthSignature(payload []byte, signatureHeader, secret string) bool {
	sig := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(signatureHeader)), "sha256=")
	if sig == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	decoded, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}
