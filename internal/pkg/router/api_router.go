package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/tablecarte/tablecarte/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	d := getDependencies()

	v1 := api.Group("/v1")

	// Guest-facing JSON menu for embedding, addressed by slug
	v1.Get("/public/menus/:slug", d.publicCtl.HandlePublicMenuJSON)

	// Menu management requires a session plus an entitled subscription.
	// The gate responds with JSON here instead of redirecting.
	gateCfg := d.gateCfg
	gateCfg.JSONResponse = true
	managed := v1.Group("", middleware.RequireAPISessionAuth, middleware.RequireEntitlement(d.reader, gateCfg))

	managed.Get("/menus", d.menuCtl.HandleListMenus)
	managed.Post("/menus", d.menuCtl.HandleCreateMenu)
	managed.Get("/menus/:id", d.menuCtl.HandleGetMenu)
	managed.Put("/menus/:id", d.menuCtl.HandleUpdateMenu)
	managed.Delete("/menus/:id", d.menuCtl.HandleDeleteMenu)

	managed.Post("/menus/:id/categories", d.menuCtl.HandleCreateCategory)
	managed.Put("/menus/:id/categories/reorder", d.menuCtl.HandleReorderCategories)
	managed.Put("/categories/:id", d.menuCtl.HandleUpdateCategory)
	managed.Delete("/categories/:id", d.menuCtl.HandleDeleteCategory)

	managed.Post("/categories/:id/items", d.menuCtl.HandleCreateItem)
	managed.Put("/categories/:id/items/reorder", d.menuCtl.HandleReorderItems)
	managed.Put("/items/:id", d.menuCtl.HandleUpdateItem)
	managed.Delete("/items/:id", d.menuCtl.HandleDeleteItem)

	managed.Post("/items/:id/image", d.imageCtl.HandleUploadItemImage)
	managed.Delete("/items/:id/image", d.imageCtl.HandleDeleteItemImage)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
