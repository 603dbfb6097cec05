package controllers

import (
	"io"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/tablecarte/tablecarte/app/repository"
	"github.com/tablecarte/tablecarte/internal/pkg/imageprocessor"
	"github.com/tablecarte/tablecarte/internal/pkg/storage"
	"github.com/tablecarte/tablecarte/internal/pkg/upload"
)

// 10 MB upload cap for item photos
const maxImageUploadBytes = 10 * 1024 * 1024

// ItemImageController handles menu item photo uploads: validate, derive the
// display and thumbnail variants, push both to object storage and record the
// public URLs on the item.
type ItemImageController struct {
	menuRepo repository.MenuRepository
	menuCtl  *MenuController
	store    storage.ObjectStore
	cfg      *storage.Config
}

// NewItemImageController creates the upload controller. store may be nil when
// object storage is disabled; uploads then return 503.
func NewItemImageController(menuRepo repository.MenuRepository, store storage.ObjectStore, cfg *storage.Config) *ItemImageController {
	return &ItemImageController{
		menuRepo: menuRepo,
		menuCtl:  NewMenuController(menuRepo),
		store:    store,
		cfg:      cfg,
	}
}

// HandleUploadItemImage accepts a multipart "image" field for an owned item.
func (ic *ItemImageController) HandleUploadItemImage(c *fiber.Ctx) error {
	if ic.store == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "image storage is not configured")
	}

	item, err := ic.menuCtl.ownedItem(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}
	category, err := ic.menuRepo.GetCategoryByID(item.CategoryID)
	if err != nil {
		return jsonNotFound(c)
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "image file is required")
	}
	if fileHeader.Size > maxImageUploadBytes {
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "image exceeds the 10 MB limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "image could not be read")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageUploadBytes+1))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "image could not be read")
	}
	if len(data) > maxImageUploadBytes {
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "image exceeds the 10 MB limit")
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if _, err := upload.ValidateImageBySniff(fileHeader.Filename, head); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	variants, err := imageprocessor.Process(data)
	if err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "image could not be processed")
	}

	// Fresh names per upload so stale CDN copies never shadow a replacement
	base := uuid.NewString()
	displayKey := ic.cfg.ObjectKey(category.MenuID, item.ID, base)
	thumbKey := ic.cfg.ObjectKey(category.MenuID, item.ID, base+"_thumb")

	displayURL, err := ic.store.Put(c.Context(), displayKey, "image/jpeg", variants.Display)
	if err != nil {
		log.Printf("item image upload failed for item %d: %v", item.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "image could not be stored")
	}
	thumbURL, err := ic.store.Put(c.Context(), thumbKey, "image/jpeg", variants.Thumb)
	if err != nil {
		log.Printf("item thumb upload failed for item %d: %v", item.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "image could not be stored")
	}

	item.ImageURL = displayURL
	item.ThumbURL = thumbURL
	if err := ic.menuRepo.UpdateItem(item); err != nil {
		log.Printf("item image record failed for item %d: %v", item.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "image could not be saved")
	}

	return c.JSON(fiber.Map{
		"image_url": item.ImageURL,
		"thumb_url": item.ThumbURL,
	})
}

// HandleDeleteItemImage clears the stored image URLs of an owned item.
func (ic *ItemImageController) HandleDeleteItemImage(c *fiber.Ctx) error {
	item, err := ic.menuCtl.ownedItem(c, parseUintParam(c, "id"))
	if err != nil {
		return err
	}

	item.ImageURL = ""
	item.ThumbURL = ""
	if err := ic.menuRepo.UpdateItem(item); err != nil {
		log.Printf("item image clear failed for item %d: %v", item.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "image could not be removed")
	}
	return c.JSON(fiber.Map{"deleted": true})
}
