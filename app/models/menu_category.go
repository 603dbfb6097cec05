package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// MenuCategory groups items within a menu. Position defines the display order
// inside the parent menu.
type MenuCategory struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	MenuID      uint           `gorm:"not null;index:idx_menu_categories_menu_position,priority:1" json:"menu_id"`
	Name        string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	Description string         `gorm:"type:text" json:"description" validate:"max=2000"`
	Position    int            `gorm:"not null;default:0;index:idx_menu_categories_menu_position,priority:2" json:"position"`
	Visible     bool           `gorm:"default:true" json:"visible"`
	Items       []MenuItem     `gorm:"foreignKey:CategoryID" json:"items,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *MenuCategory) Validate() error {
	v := validator.New()

	return v.Struct(c)
}
