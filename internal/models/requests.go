package models

import "time"

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CheckoutRequest struct {
	PlanCode       string `json:"plan_code" binding:"required,plan_code"`
	PaymentService string `json:"payment_service" binding:"omitempty,payment_service"`
}

type PlanChangeRequest struct {
	PlanCode       string `json:"plan_code" binding:"required,plan_code"`
	PaymentService string `json:"payment_service" binding:"omitempty,payment_service"`
}

type CheckoutResponse struct {
	PaymentID   uint   `json:"payment_id"`
	RedirectURL string `json:"redirect_url"`
	Confirmed   bool   `json:"confirmed"`
}

type PaymentStatusResponse struct {
	PaymentID uint   `json:"payment_id"`
	Status    string `json:"status"`
}

type PlanChangeResponse struct {
	Change        string            `json:"change"`
	EffectiveDate *time.Time        `json:"effective_date,omitempty"`
	Checkout      *CheckoutResponse `json:"checkout,omitempty"`
}

type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token,omitempty"`
}

// WebhookNotification is the PG aggregator's server-to-server confirmation.
type WebhookNotification struct {
	MerchantUID string `json:"merchant_uid" binding:"required"`
	ImpUID      string `json:"imp_uid"`
	Status      string `json:"status" binding:"required"`
}
