package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/tablecarte/tablecarte/app/controllers"
	"github.com/tablecarte/tablecarte/internal/pkg/constants"
	"github.com/tablecarte/tablecarte/internal/pkg/middleware"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App, d *dependencies) {
	// Public menu pages addressed by QR codes. No session required. The JSON
	// variant lives under /api/v1 (see api_router.go).
	app.Get(constants.PublicMenuPrefix+"/:slug", d.publicCtl.HandlePublicMenu)

	// Auth
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Social OAuth
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/stripe", d.billingCtl.HandleWebhook)
}
