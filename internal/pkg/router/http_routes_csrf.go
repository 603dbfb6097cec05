package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/tablecarte/tablecarte/app/controllers"
	"github.com/tablecarte/tablecarte/internal/pkg/env"
	"github.com/tablecarte/tablecarte/internal/pkg/middleware"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App, d *dependencies) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/") ||
				strings.HasPrefix(c.Path(), "/webhooks/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/", loggedInMiddleware, controllers.HandleStart)
	group.Get("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Post("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Get("/register", loggedInMiddleware, controllers.HandleAuthRegister)
	group.Post("/register", loggedInMiddleware, controllers.HandleAuthRegister)

	// Merchant area. RequireAuth handles the session, RequireEntitlement the
	// live subscription check; /user/billing is excluded inside the gate so
	// unentitled merchants can still reach the subscription flow.
	user := group.Group("/user", middleware.RequireAuth, middleware.RequireEntitlement(d.reader, d.gateCfg))
	user.Get("/", d.userCtl.HandleDashboard)

	user.Get("/billing", d.billingCtl.HandleSubscriptionPage)
	user.Post("/billing/checkout", d.billingCtl.HandleCheckout)
	user.Post("/billing/portal", d.billingCtl.HandlePortal)
	user.Get("/billing/status", d.billingCtl.HandleSubscriptionStatus)

	user.Get("/menus/:id/qr", d.qrCtl.HandleMenuQRCode)
}
