package repository

import (
	"fmt"

	"github.com/tablecarte/tablecarte/app/models"
	"gorm.io/gorm"
)

// menuRepository implements the MenuRepository interface
type menuRepository struct {
	db *gorm.DB
}

// NewMenuRepository creates a new menu repository instance
func NewMenuRepository(db *gorm.DB) MenuRepository {
	return &menuRepository{db: db}
}

func (r *menuRepository) CreateMenu(menu *models.Menu) error {
	return r.db.Create(menu).Error
}

func (r *menuRepository) GetMenuByID(id uint) (*models.Menu, error) {
	var menu models.Menu
	err := r.db.
		Preload("Categories", func(db *gorm.DB) *gorm.DB {
			return db.Order("menu_categories.position ASC")
		}).
		Preload("Categories.Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("menu_items.position ASC")
		}).
		First(&menu, id).Error
	if err != nil {
		return nil, err
	}
	return &menu, nil
}

func (r *menuRepository) GetMenusByUserID(userID uint) ([]models.Menu, error) {
	var menus []models.Menu
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&menus).Error
	return menus, err
}

// GetPublishedMenuBySlug loads a published menu with its visible categories
// and items, ordered for display. Hidden entries never leave the database.
func (r *menuRepository) GetPublishedMenuBySlug(slug string) (*models.Menu, error) {
	var menu models.Menu
	err := r.db.
		Where("slug = ? AND published = ?", slug, true).
		Preload("Categories", func(db *gorm.DB) *gorm.DB {
			return db.Where("visible = ?", true).Order("menu_categories.position ASC")
		}).
		Preload("Categories.Items", func(db *gorm.DB) *gorm.DB {
			return db.Where("visible = ?", true).Order("menu_items.position ASC")
		}).
		First(&menu).Error
	if err != nil {
		return nil, err
	}
	return &menu, nil
}

func (r *menuRepository) UpdateMenu(menu *models.Menu) error {
	return r.db.Save(menu).Error
}

func (r *menuRepository) DeleteMenu(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var categoryIDs []uint
		if err := tx.Model(&models.MenuCategory{}).
			Where("menu_id = ?", id).Pluck("id", &categoryIDs).Error; err != nil {
			return err
		}
		if len(categoryIDs) > 0 {
			if err := tx.Where("category_id IN ?", categoryIDs).
				Delete(&models.MenuItem{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("menu_id = ?", id).Delete(&models.MenuCategory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Menu{}, id).Error
	})
}

func (r *menuRepository) CreateCategory(category *models.MenuCategory) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if category.Position == 0 {
			category.Position = nextPosition(tx, &models.MenuCategory{}, "menu_id", category.MenuID)
		}
		return tx.Create(category).Error
	})
}

func (r *menuRepository) GetCategoryByID(id uint) (*models.MenuCategory, error) {
	var category models.MenuCategory
	err := r.db.First(&category, id).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *menuRepository) GetCategoriesByMenuID(menuID uint) ([]models.MenuCategory, error) {
	var categories []models.MenuCategory
	err := r.db.Where("menu_id = ?", menuID).Order("position ASC").Find(&categories).Error
	return categories, err
}

func (r *menuRepository) UpdateCategory(category *models.MenuCategory) error {
	return r.db.Save(category).Error
}

func (r *menuRepository) DeleteCategory(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_id = ?", id).Delete(&models.MenuItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.MenuCategory{}, id).Error
	})
}

// ReorderCategories persists a full ordered id list for one menu. The list
// must contain exactly the menu's current category ids.
func (r *menuRepository) ReorderCategories(menuID uint, orderedIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing []uint
		if err := tx.Model(&models.MenuCategory{}).
			Where("menu_id = ?", menuID).Pluck("id", &existing).Error; err != nil {
			return err
		}
		if err := matchReorderIDs(existing, orderedIDs); err != nil {
			return fmt.Errorf("reorder categories of menu %d: %w", menuID, err)
		}
		for pos, id := range orderedIDs {
			if err := tx.Model(&models.MenuCategory{}).
				Where("id = ?", id).
				Update("position", pos+1).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *menuRepository) CreateItem(item *models.MenuItem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if item.Position == 0 {
			item.Position = nextPosition(tx, &models.MenuItem{}, "category_id", item.CategoryID)
		}
		return tx.Create(item).Error
	})
}

func (r *menuRepository) GetItemByID(id uint) (*models.MenuItem, error) {
	var item models.MenuItem
	err := r.db.First(&item, id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *menuRepository) GetItemsByCategoryID(categoryID uint) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := r.db.Where("category_id = ?", categoryID).Order("position ASC").Find(&items).Error
	return items, err
}

func (r *menuRepository) UpdateItem(item *models.MenuItem) error {
	return r.db.Save(item).Error
}

func (r *menuRepository) DeleteItem(id uint) error {
	return r.db.Delete(&models.MenuItem{}, id).Error
}

// ReorderItems persists a full ordered id list for one category.
func (r *menuRepository) ReorderItems(categoryID uint, orderedIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing []uint
		if err := tx.Model(&models.MenuItem{}).
			Where("category_id = ?", categoryID).Pluck("id", &existing).Error; err != nil {
			return err
		}
		if err := matchReorderIDs(existing, orderedIDs); err != nil {
			return fmt.Errorf("reorder items of category %d: %w", categoryID, err)
		}
		for pos, id := range orderedIDs {
			if err := tx.Model(&models.MenuItem{}).
				Where("id = ?", id).
				Update("position", pos+1).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// matchReorderIDs checks that ordered is exactly the set existing: same
// length, no duplicates, no foreign ids. Membership cannot be derived from
// per-row RowsAffected because the MySQL driver reports rows changed, not
// rows matched, and an UPDATE keeping a row's current position changes
// nothing.
func matchReorderIDs(existing, ordered []uint) error {
	if len(ordered) != len(existing) {
		return fmt.Errorf("got %d ids, want %d", len(ordered), len(existing))
	}
	remaining := make(map[uint]bool, len(existing))
	for _, id := range existing {
		remaining[id] = true
	}
	for _, id := range ordered {
		if !remaining[id] {
			return fmt.Errorf("id %d is duplicated or does not belong here", id)
		}
		delete(remaining, id)
	}
	return nil
}

func nextPosition(tx *gorm.DB, model interface{}, parentColumn string, parentID uint) int {
	var max int
	tx.Model(model).
		Where(parentColumn+" = ?", parentID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&max)
	return max + 1
}
