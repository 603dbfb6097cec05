package billing

import (
	"time"

	"github.com/tablecarte/tablecarte/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service and reader.
type Repository interface {
	GetAccountByUserID(userID uint) (*models.BillingAccount, error)
	GetAccountByCustomerID(customerID string) (*models.BillingAccount, error)
	EnsureAccount(userID uint) (*models.BillingAccount, error)
	SaveAccount(account *models.BillingAccount) error
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetAccountByUserID(userID uint) (*models.BillingAccount, error) {
	var account models.BillingAccount
	err := r.db.Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) GetAccountByCustomerID(customerID string) (*models.BillingAccount, error) {
	var account models.BillingAccount
	err := r.db.Where("external_customer_id = ? AND external_customer_id <> ''", customerID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// EnsureAccount creates the empty mirror row for a user if it does not exist
// yet and returns the stored row either way.
func (r *gormRepository) EnsureAccount(userID uint) (*models.BillingAccount, error) {
	account := &models.BillingAccount{
		UserID:             userID,
		SubscriptionStatus: models.SubscriptionStatusNone,
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(account).Error; err != nil {
		return nil, err
	}

	var stored models.BillingAccount
	if err := r.db.Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) SaveAccount(account *models.BillingAccount) error {
	return r.db.Save(account).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider_event_id = ?", event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
