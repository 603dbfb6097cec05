package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// MenuItem is a single dish or drink inside a category. Prices are stored in
// minor units to avoid float rounding.
type MenuItem struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CategoryID  uint           `gorm:"not null;index:idx_menu_items_category_position,priority:1" json:"category_id"`
	Name        string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	Description string         `gorm:"type:text" json:"description" validate:"max=2000"`
	PriceCents  int64          `gorm:"not null;default:0" json:"price_cents" validate:"gte=0"`
	Currency    string         `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency" validate:"len=3"`
	Position    int            `gorm:"not null;default:0;index:idx_menu_items_category_position,priority:2" json:"position"`
	Visible     bool           `gorm:"default:true" json:"visible"`
	ImageURL    string         `gorm:"type:varchar(500);default:''" json:"image_url"`
	ThumbURL    string         `gorm:"type:varchar(500);default:''" json:"thumb_url"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (i *MenuItem) Validate() error {
	v := validator.New()

	return v.Struct(i)
}
