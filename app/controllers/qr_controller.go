package controllers

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/tablecarte/tablecarte/app/repository"
	"github.com/tablecarte/tablecarte/internal/pkg/constants"
	"github.com/tablecarte/tablecarte/internal/pkg/env"
	"github.com/tablecarte/tablecarte/internal/pkg/qr"
)

// QRController renders printable QR codes pointing at public menu pages.
type QRController struct {
	menuCtl *MenuController
}

// NewQRController creates a QR controller over the menu repository.
func NewQRController(menuRepo repository.MenuRepository) *QRController {
	return &QRController{menuCtl: NewMenuController(menuRepo)}
}

// HandleMenuQRCode returns the PNG QR code for an owned menu. The code encodes
// the public menu URL built from PUBLIC_DOMAIN and the menu slug, so it stays
// valid across menu renames.
func (qc *QRController) HandleMenuQRCode(c *fiber.Ctx) error {
	menu, err := qc.menuCtl.ownedMenu(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}

	size := c.QueryInt("size", qr.DefaultSize)
	if size < 128 || size > 2048 {
		size = qr.DefaultSize
	}

	base := env.GetEnv("PUBLIC_DOMAIN", "")
	if base == "" {
		base = c.BaseURL()
	}
	target := base + constants.PublicMenuPrefix + "/" + menu.Slug

	png, err := qr.EncodePNG(target, size)
	if err != nil {
		log.Printf("qr encode failed for menu %d: %v", menu.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "QR code could not be generated")
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="menu-%s-qr.png"`, menu.Slug))
	return c.Send(png)
}
