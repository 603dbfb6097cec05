package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/tablecarte/tablecarte/internal/pkg/billing"
	"github.com/tablecarte/tablecarte/internal/pkg/constants"
	"github.com/tablecarte/tablecarte/internal/pkg/usercontext"
)

// GateConfig controls the entitlement gate's behavior.
type GateConfig struct {
	// FailOpen decides what happens when the live provider query fails:
	// true lets the request through with a logged warning, false (default)
	// denies and routes to the subscription page.
	FailOpen bool

	// JSONResponse switches redirects to JSON error responses for API routes.
	JSONResponse bool
}

// RequireEntitlement enforces a live subscription on every matched request.
// The billing-management subpath stays reachable so unentitled accounts can
// subscribe. Reads go through the StatusReader, which consults the provider
// live (via a short-TTL cache), never the local mirror alone.
func RequireEntitlement(reader billing.StatusReader, cfg GateConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userCtx := usercontext.GetUserContext(c)
		if !userCtx.IsLoggedIn {
			return deny(c, cfg, constants.LoginPath, "login required")
		}

		// The subscription flow itself must not be gated.
		if strings.HasPrefix(c.Path(), constants.BillingPath) {
			return c.Next()
		}

		ent, err := reader.Read(c.Context(), userCtx.UserID)
		if err != nil {
			// Provider unreachable means "unknown", not "inactive".
			log.Printf("entitlement check failed for user %d: %v", userCtx.UserID, err)
			if cfg.FailOpen {
				return c.Next()
			}
			return deny(c, cfg, constants.BillingPath, "subscription status unavailable")
		}

		// IsActive is true exactly when the live provider status is
		// active or trialing (including active pending cancellation).
		if !ent.IsActive {
			return deny(c, cfg, constants.BillingPath, "subscription required")
		}

		return c.Next()
	}
}

func deny(c *fiber.Ctx, cfg GateConfig, target, message string) error {
	if cfg.JSONResponse {
		status := fiber.StatusPaymentRequired
		if target == constants.LoginPath {
			status = fiber.StatusUnauthorized
		}
		return c.Status(status).JSON(fiber.Map{
			"error":   "forbidden",
			"message": message,
		})
	}
	fm := fiber.Map{"type": "error", "message": message}
	return flash.WithError(c, fm).Redirect(target, fiber.StatusSeeOther)
}
