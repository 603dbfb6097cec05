package controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/tablecarte/tablecarte/app/models"
	"github.com/tablecarte/tablecarte/internal/pkg/billing"
	"github.com/tablecarte/tablecarte/internal/pkg/constants"
	"github.com/tablecarte/tablecarte/internal/pkg/database"
	"github.com/tablecarte/tablecarte/internal/pkg/session"
)

// HandleOAuthCallback completes the provider flow and logs the merchant in.
// Accounts are matched by email; first-time OAuth logins get a fresh account
// with a placeholder password.
func HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("OAuth failed: %v", err))
	}

	db := database.GetDB()

	var appUser models.User
	res := db.Where("email = ?", u.Email).First(&appUser)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		// Password is required by validation but never used for OAuth logins
		placeholder := fmt.Sprintf("oauth_%d", time.Now().UnixNano())
		hash, _ := models.HashPassword(placeholder)
		email := u.Email
		if email == "" {
			email = fmt.Sprintf("%s_%s@%s.oauth.local", u.Provider, u.UserID, u.Provider)
		}
		appUser = models.User{
			Name:     firstNonEmpty(u.Name, u.NickName, u.Email, "User"),
			Email:    email,
			Password: hash,
			Status:   models.StatusActive,
		}
		if err := db.Create(&appUser).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("create user failed: %v", err))
		}

		svc := billing.NewServiceFromDB(db)
		if _, err := svc.EnsureAccount(c.Context(), appUser.ID); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("create billing account failed: %v", err))
		}
	} else if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("db error: %v", res.Error))
	}

	if !appUser.IsActive() {
		return c.Status(fiber.StatusForbidden).SendString("account disabled")
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session init failed")
	}
	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, appUser.ID)
	sess.Set(USER_NAME, appUser.Name)
	if err := sess.Save(); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session save failed")
	}

	_ = db.Model(&appUser).UpdateColumn("last_login_at", time.Now()).Error

	return c.Redirect(constants.DashboardPrefix, fiber.StatusSeeOther)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
