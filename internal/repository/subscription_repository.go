package repository

import (
	"time"

	"github.com/kimgyuhyun/ott-project-sub001/internal/models"

	"gorm.io/gorm"
)

type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByUserID(userID uint) (*models.Subscription, error)
	Update(sub *models.Subscription) error
	SchedulePlanChange(userID uint, planCode string, effectiveAt time.Time) error
	ApplyPlan(userID uint, planCode string, nextBillingAt time.Time) error
	GetDuePlanChanges(now time.Time) ([]models.Subscription, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *subscriptionRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	return &sub, err
}

func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

// SchedulePlanChange records a deferred downgrade without touching the active
// plan; it takes effect at the next billing date.
func (r *subscriptionRepository) SchedulePlanChange(userID uint, planCode string, effectiveAt time.Time) error {
	return r.db.Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"pending_plan_code":    planCode,
			"pending_effective_at": effectiveAt,
		}).Error
}

// GetDuePlanChanges returns subscriptions whose scheduled plan change has
// reached its effective date.
func (r *subscriptionRepository) GetDuePlanChanges(now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.
		Where("pending_plan_code IS NOT NULL AND pending_effective_at <= ?", now).
		Find(&subs).Error
	return subs, err
}

// ApplyPlan switches the active plan immediately and clears any pending
// change. Used when an upgrade payment is confirmed.
func (r *subscriptionRepository) ApplyPlan(userID uint, planCode string, nextBillingAt time.Time) error {
	return r.db.Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"plan_code":            planCode,
			"next_billing_at":      nextBillingAt,
			"pending_plan_code":    nil,
			"pending_effective_at": nil,
		}).Error
}
