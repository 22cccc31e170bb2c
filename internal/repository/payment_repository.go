package repository

import (
	"time"

	"github.com/kimgyuhyun/ott-project-sub001/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	GetByMerchantUID(merchantUID string) (*models.Payment, error)
	UpdateStatus(id uint, status string, txID string, paidAt *time.Time) error
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

func (r *paymentRepository) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.First(&payment, id).Error
	return &payment, err
}

func (r *paymentRepository) GetByMerchantUID(merchantUID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("merchant_uid = ?", merchantUID).First(&payment).Error
	return &payment, err
}

func (r *paymentRepository) UpdateStatus(id uint, status string, txID string, paidAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if txID != "" {
		updates["tx_id"] = txID
	}
	if paidAt != nil {
		updates["paid_at"] = paidAt
	}
	return r.db.Model(&models.Payment{}).Where("id = ?", id).Updates(updates).Error
}
