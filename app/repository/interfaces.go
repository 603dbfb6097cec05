package repository

import (
	"github.com/tablecarte/tablecarte/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
}

// MenuRepository defines the interface for menu-hierarchy database operations.
// Ownership checks (menu belongs to user) happen in the controllers via
// GetMenuByID/owner comparisons; reorder operations run in one transaction.
type MenuRepository interface {
	CreateMenu(menu *models.Menu) error
	GetMenuByID(id uint) (*models.Menu, error)
	GetMenusByUserID(userID uint) ([]models.Menu, error)
	GetPublishedMenuBySlug(slug string) (*models.Menu, error)
	UpdateMenu(menu *models.Menu) error
	DeleteMenu(id uint) error

	CreateCategory(category *models.MenuCategory) error
	GetCategoryByID(id uint) (*models.MenuCategory, error)
	GetCategoriesByMenuID(menuID uint) ([]models.MenuCategory, error)
	UpdateCategory(category *models.MenuCategory) error
	DeleteCategory(id uint) error
	ReorderCategories(menuID uint, orderedIDs []uint) error

	CreateItem(item *models.MenuItem) error
	GetItemByID(id uint) (*models.MenuItem, error)
	GetItemsByCategoryID(categoryID uint) ([]models.MenuItem, error)
	UpdateItem(item *models.MenuItem) error
	DeleteItem(id uint) error
	ReorderItems(categoryID uint, orderedIDs []uint) error
}

// Repositories bundles all repository instances
type Repositories struct {
	User UserRepository
	Menu MenuRepository
}
