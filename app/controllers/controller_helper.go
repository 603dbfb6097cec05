package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/tablecarte/tablecarte/internal/pkg/usercontext"
)

func isLoggedIn(c *fiber.Ctx) bool {
	var fromProtected bool
	if protectedValue := c.Locals(usercontext.KeyFromProtected); protectedValue != nil {
		fromProtected = protectedValue.(bool)
	}

	return fromProtected
}

// parseUintParam reads a numeric route parameter, returning 0 when missing
// or malformed.
func parseUintParam(c *fiber.Ctx, name string) uint {
	raw := c.Params(name)
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

func jsonError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   "request failed",
		"message": message,
	})
}

func jsonNotFound(c *fiber.Ctx) error {
	return jsonError(c, fiber.StatusNotFound, "resource not found")
}
