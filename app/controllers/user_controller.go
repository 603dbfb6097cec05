package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/tablecarte/tablecarte/app/repository"
	"github.com/tablecarte/tablecarte/internal/pkg/usercontext"
)

// UserController serves the merchant dashboard pages.
type UserController struct {
	menuRepo repository.MenuRepository
}

// NewUserController creates the dashboard controller.
func NewUserController(menuRepo repository.MenuRepository) *UserController {
	return &UserController{menuRepo: menuRepo}
}

// HandleDashboard renders the merchant's menu overview.
func (uc *UserController) HandleDashboard(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	menus, err := uc.menuRepo.GetMenusByUserID(userCtx.UserID)
	if err != nil {
		log.Printf("dashboard menu load failed for user %d: %v", userCtx.UserID, err)
	}

	return c.Render("user/dashboard", fiber.Map{
		"Title":    "Dashboard",
		"Username": userCtx.Username,
		"Menus":    menus,
		"Flash":    flash.Get(c),
	}, "layouts/main")
}
