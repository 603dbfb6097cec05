package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Menu is the top level of the menu hierarchy. The slug addresses the public
// menu page and the QR code target.
type Menu struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	Name        string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	Description string         `gorm:"type:text" json:"description" validate:"max=2000"`
	Slug        string         `gorm:"type:varchar(191);not null;uniqueIndex" json:"slug"`
	Published   bool           `gorm:"default:false;index" json:"published"`
	Categories  []MenuCategory `gorm:"foreignKey:MenuID" json:"categories,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (m *Menu) Validate() error {
	v := validator.New()

	return v.Struct(m)
}

// GenerateSlug builds a URL-safe slug from the menu name plus a short random
// suffix so names do not have to be globally unique.
func GenerateSlug(name string) string {
	base := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := true
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	suffix := strings.Split(uuid.NewString(), "-")[0]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
