package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/tablecarte/tablecarte/internal/pkg/constants"
)

// HandleStart renders the landing page, or sends logged-in merchants straight
// to their dashboard.
func HandleStart(c *fiber.Ctx) error {
	if isLoggedIn(c) {
		return c.Redirect(constants.DashboardPrefix, fiber.StatusSeeOther)
	}

	return c.Render("home/index", fiber.Map{
		"Title": "Digital menus for your restaurant",
		"Flash": flash.Get(c),
	}, "layouts/main")
}
