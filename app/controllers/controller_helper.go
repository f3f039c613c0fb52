package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// RequestID returns the correlation id for the current request, generating
// one when the client did not send X-Request-ID.
func RequestID(c *fiber.Ctx) string {
	if id := strings.TrimSpace(c.Get("X-Request-ID")); id != "" {
		return id
	}
	if id, ok := c.Locals("request_id").(string); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	c.Locals("request_id", id)
	return id
}

// jsonError writes a uniform JSON error response.
func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":      code,
		"message":    message,
		"request_id": RequestID(c),
	})
}

// internalError logs the underlying error with the correlation id and hides
// it from the client.
func internalError(c *fiber.Ctx, scope string, err error) error {
	log.Errorf("[%s] request_id=%s error: %v", scope, RequestID(c), err)
	return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Something went wrong")
}

// GetClientIP determines the actual client IP address considering proxies.
func GetClientIP(c *fiber.Ctx) string {
	if cfIP := strings.TrimSpace(c.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}
	ip := c.IP()
	// For ::ffff: IPv4-mapped-IPv6 addresses
	if strings.HasPrefix(ip, "::ffff:") && strings.Contains(ip, ".") {
		return strings.TrimPrefix(ip, "::ffff:")
	}
	return ip
}
