package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Role     string `gorm:"type:varchar(32);default:'user'" json:"role"`

	Status string `gorm:"default:'active'" json:"status"`
}

// MembershipPlan is a purchasable tier. Price is in the minor currency unit.
type MembershipPlan struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Code       string `gorm:"uniqueIndex;not null" json:"code"`
	Name       string `gorm:"not null" json:"name"`
	Price      int64  `gorm:"not null" json:"price"`
	PeriodDays int    `gorm:"not null;default:30" json:"period_days"`
	Active     bool   `gorm:"default:true" json:"active"`
}

// Payment records one checkout attempt. MerchantUID is the provider-facing
// transaction reference handed to the PG; a payment row is created once per
// attempt and only its status and settlement fields change afterwards.
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID      uint   `gorm:"index;not null" json:"user_id"`
	PlanCode    string `gorm:"index;not null" json:"plan_code"`
	MerchantUID string `gorm:"uniqueIndex;not null" json:"merchant_uid"`
	Amount      int64  `gorm:"not null" json:"amount"`
	Gateway     string `gorm:"type:varchar(32)" json:"gateway"`
	Kind        string `gorm:"type:varchar(16);default:'checkout'" json:"kind"`

	Status string     `gorm:"type:varchar(16);default:'PENDING';index" json:"status"`
	TxID   string     `json:"tx_id,omitempty"`
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

// Payment kinds.
const (
	PaymentKindCheckout  = "checkout"
	PaymentKindProration = "proration"
)

// Subscription ties a user to their current plan. A scheduled downgrade sits
// in the Pending fields until its effective date.
type Subscription struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID        uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	PlanCode      string    `gorm:"index;not null" json:"plan_code"`
	StartedAt     time.Time `gorm:"not null" json:"started_at"`
	NextBillingAt time.Time `gorm:"not null" json:"next_billing_at"`

	PendingPlanCode    *string    `json:"pending_plan_code,omitempty"`
	PendingEffectiveAt *time.Time `json:"pending_effective_at,omitempty"`
}
