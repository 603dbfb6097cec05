package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/tablecarte/tablecarte/app/models"
	"github.com/tablecarte/tablecarte/app/repository"
	"github.com/tablecarte/tablecarte/internal/pkg/usercontext"
)

// MenuController serves the JSON menu-management API. Every handler checks
// that the addressed resource belongs to the logged-in merchant before
// touching it.
type MenuController struct {
	menuRepo repository.MenuRepository
}

// NewMenuController creates a menu controller over the given repository.
func NewMenuController(menuRepo repository.MenuRepository) *MenuController {
	return &MenuController{menuRepo: menuRepo}
}

// ownedMenu loads a menu and verifies ownership. A menu owned by someone else
// reports not-found so the API leaks no existence information.
func (mc *MenuController) ownedMenu(c *fiber.Ctx, menuID uint) (*models.Menu, error) {
	menu, err := mc.menuRepo.GetMenuByID(menuID)
	if err != nil {
		return nil, jsonNotFound(c)
	}
	if menu.UserID != usercontext.GetUserID(c) {
		return nil, jsonNotFound(c)
	}
	return menu, nil
}

func (mc *MenuController) ownedCategory(c *fiber.Ctx, categoryID uint) (*models.MenuCategory, error) {
	category, err := mc.menuRepo.GetCategoryByID(categoryID)
	if err != nil {
		return nil, jsonNotFound(c)
	}
	if _, err := mc.ownedMenu(c, category.MenuID); err != nil {
		return nil, err
	}
	return category, nil
}

func (mc *MenuController) ownedItem(c *fiber.Ctx, itemID uint) (*models.MenuItem, error) {
	item, err := mc.menuRepo.GetItemByID(itemID)
	if err != nil {
		return nil, jsonNotFound(c)
	}
	if _, err := mc.ownedCategory(c, item.CategoryID); err != nil {
		return nil, err
	}
	return item, nil
}

// HandleListMenus returns all menus of the logged-in merchant.
func (mc *MenuController) HandleListMenus(c *fiber.Ctx) error {
	menus, err := mc.menuRepo.GetMenusByUserID(usercontext.GetUserID(c))
	if err != nil {
		log.Printf("menu list failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "could not load menus")
	}
	return c.JSON(fiber.Map{"menus": menus})
}

type menuRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Published   *bool  `json:"published"`
}

// HandleCreateMenu creates a menu with a freshly generated slug.
func (mc *MenuController) HandleCreateMenu(c *fiber.Ctx) error {
	var req menuRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	menu := &models.Menu{
		UserID:      usercontext.GetUserID(c),
		Name:        req.Name,
		Description: req.Description,
		Slug:        models.GenerateSlug(req.Name),
	}
	if req.Published != nil {
		menu.Published = *req.Published
	}
	if err := menu.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}
	if err := mc.menuRepo.CreateMenu(menu); err != nil {
		log.Printf("menu create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "could not create menu")
	}
	return c.Status(fiber.StatusCreated).JSON(menu)
}

// HandleGetMenu returns one menu with its full category and item tree.
func (mc *MenuController) HandleGetMenu(c *fiber.Ctx) error {
	menu, err := mc.ownedMenu(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}
	return c.JSON(menu)
}

// HandleUpdateMenu updates name, description and published flag. The slug is
// stable; renames do not break printed QR codes.
func (mc *MenuController) HandleUpdateMenu(c *fiber.Ctx) error {
	menu, err := mc.ownedMenu(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}

	var req menuRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name != "" {
		menu.Name = req.Name
	}
	menu.Description = req.Description
	if req.Published != nil {
		menu.Published = *req.Published
	}
	if err := menu.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}
	if err := mc.menuRepo.UpdateMenu(menu); err != nil {
		log.Printf("menu update failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "could not update menu")
	}
	return c.JSON(menu)
}

// HandleDeleteMenu removes a menu with all categories and items.
func (mc *MenuController) HandleDeleteMenu(c *fiber.Ctx) error {
	menu, err := mc.ownedMenu(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}
	if err := mc.menuRepo.DeleteMenu(menu.ID); err != nil {
		log.Printf("menu delete failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "could not delete menu")
	}
	return c.JSON(fiber.Map{"deleted": true})
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Visible     *bool  `json:"visible"`
}

// HandleCreateCategory appends a category to the end of a menu.
func (mc *MenuController) HandleCreateCategory(c *fiber.Ctx) error {
	menu, err := mc.ownedMenu(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}

	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	category := &models.MenuCategory{
		MenuID:      menu.ID,
		Name:        req.Name,
		Description: req.Description,
		Visible:     true,
	}
	if req.Visible != nil {
		category.Visible = *req.Visible
	}
	if err := category.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}
	if err := mc.menuRepo.CreateCategory(category); err != nil {
		log.Printf("category create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "could not create category")
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

// HandleUpdateCategory updates name, description and visibility.
func (mc *MenuController) HandleUpdateCategory(c *fiber.Ctx) error {
	category, err := mc.ownedCategory(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}

	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name != "" {
		category.Name = req.Name
	}
	category.Description = req.Description
	if req.Visible != nil {
		category.Visible = *req.Visible
	}
	if err := category.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}
	if err := mc.menuRepo.UpdateCategory(category); err != nil {
		log.Printf("category update failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "could not update category")
	}
	return c.JSON(category)
}

// HandleDeleteCategory removes a category with its items.
func (mc *MenuController) HandleDeleteCategory(c *fiber.Ctx) error {
	category, err := mc.ownedCategory(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}
	if err := mc.menuRepo.DeleteCategory(category.ID); err != nil {
		log.Printf("category delete failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "could not delete category")
	}
	return c.JSON(fiber.Map{"deleted": true})
}

type reorderRequest struct {
	OrderedIDs []uint `json:"ordered_ids"`
}

// HandleReorderCategories applies a complete new category order to a menu.
func (mc *MenuController) HandleReorderCategories(c *fiber.Ctx) error {
	menu, err := mc.ownedMenu(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}

	var req reorderRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.OrderedIDs) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "ordered_ids is required")
	}

	if err := mc.menuRepo.ReorderCategories(menu.ID, req.OrderedIDs); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(fiber.Map{"reordered": true})
}

type itemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  *int64 `json:"price_cents"`
	Currency    string `json:"currency"`
	Visible     *bool  `json:"visible"`
}

// HandleCreateItem appends an item to the end of a category.
func (mc *MenuController) HandleCreateItem(c *fiber.Ctx) error {
	category, err := mc.ownedCategory(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}

	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	item := &models.MenuItem{
		CategoryID:  category.ID,
		Name:        req.Name,
		Description: req.Description,
		Currency:    "EUR",
		Visible:     true,
	}
	if req.PriceCents != nil {
		item.PriceCents = *req.PriceCents
	}
	if req.Currency != "" {
		item.Currency = req.Currency
	}
	if req.Visible != nil {
		item.Visible = *req.Visible
	}
	if err := item.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}
	if err := mc.menuRepo.CreateItem(item); err != nil {
		log.Printf("item create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "could not create item")
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// HandleUpdateItem updates an item's fields.
func (mc *MenuController) HandleUpdateItem(c *fiber.Ctx) error {
	item, err := mc.ownedItem(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}

	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name != "" {
		item.Name = req.Name
	}
	item.Description = req.Description
	if req.PriceCents != nil {
		item.PriceCents = *req.PriceCents
	}
	if req.Currency != "" {
		item.Currency = req.Currency
	}
	if req.Visible != nil {
		item.Visible = *req.Visible
	}
	if err := item.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}
	if err := mc.menuRepo.UpdateItem(item); err != nil {
		log.Printf("item update failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "could not update item")
	}
	return c.JSON(item)
}

// HandleDeleteItem removes an item.
func (mc *MenuController) HandleDeleteItem(c *fiber.Ctx) error {
	item, err := mc.ownedItem(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}
	if err := mc.menuRepo.DeleteItem(item.ID); err != nil {
		log.Printf("item delete failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "could not delete item")
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// HandleReorderItems applies a complete new item order to a category.
func (mc *MenuController) HandleReorderItems(c *fiber.Ctx) error {
	category, err := mc.ownedCategory(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}

	var req reorderRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.OrderedIDs) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "ordered_ids is required")
	}

	if err := mc.menuRepo.ReorderItems(category.ID, req.OrderedIDs); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(fiber.Map{"reordered": true})
}
