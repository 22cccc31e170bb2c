package service

import "errors"

var (
	// ErrNoSubscription is returned when a plan change is requested by a user
	// without an active subscription.
	ErrNoSubscription = errors.New("user has no active subscription")
	// ErrPlanNotFound indicates an unknown or inactive membership plan code.
	ErrPlanNotFound = errors.New("membership plan not found")
	// ErrSamePlan is returned when the target plan equals the current one.
	ErrSamePlan = errors.New("target plan is the current plan")
	// ErrPlanChangeFailed is the generic failure surfaced when a downgrade
	// write does not go through. No retry.
	ErrPlanChangeFailed = errors.New("plan change failed")
	// ErrPaymentNotFound indicates an unknown payment id or merchant uid.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrInvalidCredentials is returned for any login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
