package controllers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tablecarte/tablecarte/app/repository"
)

// PublicMenuController serves published menus to guests. No session, no
// entitlement check; publication is the only gate.
type PublicMenuController struct {
	menuRepo repository.MenuRepository
}

// NewPublicMenuController creates the public menu controller.
func NewPublicMenuController(menuRepo repository.MenuRepository) *PublicMenuController {
	return &PublicMenuController{menuRepo: menuRepo}
}

// HandlePublicMenu renders the public menu page for a slug. Unpublished or
// unknown slugs both produce the same 404 page.
func (pc *PublicMenuController) HandlePublicMenu(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))
	if slug == "" {
		return c.Status(fiber.StatusNotFound).Render("public/notfound", fiber.Map{
			"Title": "Menu not found",
		}, "layouts/public")
	}

	menu, err := pc.menuRepo.GetPublishedMenuBySlug(slug)
	if err != nil {
		return c.Status(fiber.StatusNotFound).Render("public/notfound", fiber.Map{
			"Title": "Menu not found",
		}, "layouts/public")
	}

	return c.Render("public/menu", fiber.Map{
		"Title": menu.Name,
		"Menu":  menu,
	}, "layouts/public")
}

// HandlePublicMenuJSON returns the published menu as JSON for embedding.
func (pc *PublicMenuController) HandlePublicMenuJSON(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))
	menu, err := pc.menuRepo.GetPublishedMenuBySlug(slug)
	if err != nil {
		return jsonNotFound(c)
	}
	return c.JSON(menu)
}

// FormatPrice renders minor units as a decimal string for templates.
func FormatPrice(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}
