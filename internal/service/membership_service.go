package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/kimgyuhyun/ott-project-sub001/internal/metrics"
	"github.com/kimgyuhyun/ott-project-sub001/internal/models"
	"github.com/kimgyuhyun/ott-project-sub001/internal/payments"
	"github.com/kimgyuhyun/ott-project-sub001/internal/repository"
	"github.com/kimgyuhyun/ott-project-sub001/pkg/cache"
	"github.com/kimgyuhyun/ott-project-sub001/pkg/logger"
)

// PlanChange is the decision for a requested membership plan change.
type PlanChange string

const (
	PlanChangeUpgrade   PlanChange = "UPGRADE"
	PlanChangeDowngrade PlanChange = "DOWNGRADE"
)

// DecidePlanChange classifies a plan change. Upgrade only on a strictly
// higher price; an equal-price move is treated as a downgrade, i.e. it
// defers to the next billing date instead of charging zero immediately.
func DecidePlanChange(current, target *models.MembershipPlan) PlanChange {
	if target.Price > current.Price {
		return PlanChangeUpgrade
	}
	return PlanChangeDowngrade
}

// ProrationAmount is the immediate upgrade charge: the price difference
// scaled by the unused share of the current billing period. Minor-unit
// integer, floored, never negative and never more than the full difference.
func ProrationAmount(current, target *models.MembershipPlan, nextBillingAt, now time.Time) int64 {
	diff := target.Price - current.Price
	if diff <= 0 {
		return 0
	}

	periodDays := current.PeriodDays
	if periodDays <= 0 {
		periodDays = 30
	}

	remaining := nextBillingAt.Sub(now)
	if remaining <= 0 {
		return 0
	}

	period := time.Duration(periodDays) * 24 * time.Hour
	if remaining >= period {
		return diff
	}

	return diff * int64(remaining) / int64(period)
}

// MembershipService decides whether a plan change is an immediate-charge
// upgrade or a deferred downgrade, and settles payments reported by the PG
// webhook.
type MembershipService struct {
	planRepo    repository.PlanRepository
	subRepo     repository.SubscriptionRepository
	paymentRepo repository.PaymentRepository
	checkout    *CheckoutService
	cache       *cache.Cache
}

func NewMembershipService(planRepo repository.PlanRepository, subRepo repository.SubscriptionRepository, paymentRepo repository.PaymentRepository, checkout *CheckoutService, c *cache.Cache) *MembershipService {
	return &MembershipService{
		planRepo:    planRepo,
		subRepo:     subRepo,
		paymentRepo: paymentRepo,
		checkout:    checkout,
		cache:       c,
	}
}

// ListPlans returns the active plan catalog, cache-first.
func (s *MembershipService) ListPlans() ([]models.MembershipPlan, error) {
	if s.cache != nil {
		var cached []models.MembershipPlan
		if err := s.cache.GetCachedPlans(&cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	plans, err := s.planRepo.GetAllActive()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.CachePlans(plans)
	}
	return plans, nil
}

// ChangePlan runs the plan-change flow for one user. Upgrades hand off to the
// checkout orchestrator for an immediate proration charge and the plan only
// switches once that payment settles; downgrades are a single synchronous
// write scheduling the target plan at the next billing date.
func (s *MembershipService) ChangePlan(ctx context.Context, userID uint, req models.PlanChangeRequest) (*models.PlanChangeResponse, error) {
	sub, err := s.subRepo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, err
	}

	if req.PlanCode == sub.PlanCode {
		return nil, ErrSamePlan
	}

	current, err := s.planRepo.GetByCode(sub.PlanCode)
	if err != nil {
		return nil, ErrPlanNotFound
	}
	target, err := s.planRepo.GetByCode(req.PlanCode)
	if err != nil || !target.Active {
		return nil, ErrPlanNotFound
	}

	decision := DecidePlanChange(current, target)
	metrics.ObservePlanChange(string(decision))

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"user_id":  userID,
		"from":     current.Code,
		"to":       target.Code,
		"decision": decision,
	}).Info("Plan change requested")

	if decision == PlanChangeUpgrade {
		amount := ProrationAmount(current, target, sub.NextBillingAt, time.Now())

		// A proration floored to zero means the current period is already
		// (nearly) used up: nothing to collect, so the target plan applies
		// right away instead of going through checkout at full price.
		if amount == 0 {
			if err := s.subRepo.ApplyPlan(userID, target.Code, sub.NextBillingAt); err != nil {
				logger.Error(err, "Failed to apply zero-charge upgrade", map[string]interface{}{
					"user_id": userID,
					"to":      target.Code,
				})
				return nil, ErrPlanChangeFailed
			}
			now := time.Now()
			return &models.PlanChangeResponse{
				Change:        string(PlanChangeUpgrade),
				EffectiveDate: &now,
			}, nil
		}

		result, err := s.checkout.ProrationCheckout(ctx, userID, target.Code, req.PaymentService, amount)
		if err != nil {
			return nil, err
		}
		return &models.PlanChangeResponse{
			Change: string(PlanChangeUpgrade),
			Checkout: &models.CheckoutResponse{
				PaymentID:   result.PaymentID,
				RedirectURL: result.RedirectURL,
				Confirmed:   result.Confirmed,
			},
		}, nil
	}

	effective := sub.NextBillingAt
	if err := s.subRepo.SchedulePlanChange(userID, target.Code, effective); err != nil {
		logger.Error(err, "Failed to schedule downgrade", map[string]interface{}{
			"user_id": userID,
			"to":      target.Code,
		})
		return nil, ErrPlanChangeFailed
	}

	return &models.PlanChangeResponse{
		Change:        string(PlanChangeDowngrade),
		EffectiveDate: &effective,
	}, nil
}

// SettlePayment applies a PG webhook notification: it records the terminal
// payment status and, on success, switches the subscription. This is the
// out-of-band channel that closes the confirmation-timeout window.
func (s *MembershipService) SettlePayment(ctx context.Context, notif models.WebhookNotification) error {
	payment, err := s.paymentRepo.GetByMerchantUID(notif.MerchantUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		}
		return err
	}

	status := webhookStatus(notif.Status)
	if payments.ParseStatus(payment.Status) == status {
		return nil
	}

	var paidAt *time.Time
	if status == payments.StatusSucceeded {
		now := time.Now()
		paidAt = &now
	}

	if err := s.paymentRepo.UpdateStatus(payment.ID, string(status), notif.ImpUID, paidAt); err != nil {
		return err
	}
	// Drop the cached status so the next poll re-reads the settled row.
	if s.cache != nil {
		_ = s.cache.InvalidatePaymentStatus(payment.ID)
	}

	logger.Info("Payment settled via webhook", map[string]interface{}{
		"payment_id":   payment.ID,
		"merchant_uid": payment.MerchantUID,
		"status":       status,
	})

	if status != payments.StatusSucceeded {
		return nil
	}
	return s.applyPaidPlan(payment)
}

// applyPaidPlan switches the user's plan after a successful payment. An
// upgrade keeps the billing anchor (the charge covered only the remainder of
// the cycle); a fresh checkout starts a new cycle.
func (s *MembershipService) applyPaidPlan(payment *models.Payment) error {
	plan, err := s.planRepo.GetByCode(payment.PlanCode)
	if err != nil {
		return ErrPlanNotFound
	}

	sub, err := s.subRepo.GetByUserID(payment.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		now := time.Now()
		return s.subRepo.Create(&models.Subscription{
			UserID:        payment.UserID,
			PlanCode:      plan.Code,
			StartedAt:     now,
			NextBillingAt: now.AddDate(0, 0, plan.PeriodDays),
		})
	}

	nextBilling := sub.NextBillingAt
	if payment.Kind != models.PaymentKindProration {
		nextBilling = time.Now().AddDate(0, 0, plan.PeriodDays)
	}
	return s.subRepo.ApplyPlan(payment.UserID, plan.Code, nextBilling)
}

// ApplyDuePlanChanges switches every subscription whose scheduled plan change
// has reached its effective date. A new billing period starts at the effective
// date, not at execution time, so late runs do not shift the cycle. Returns
// the number of subscriptions switched.
func (s *MembershipService) ApplyDuePlanChanges(ctx context.Context, now time.Time) (int, error) {
	due, err := s.subRepo.GetDuePlanChanges(now)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, sub := range due {
		select {
		case <-ctx.Done():
			return applied, ctx.Err()
		default:
		}

		if sub.PendingPlanCode == nil || sub.PendingEffectiveAt == nil {
			continue
		}

		plan, err := s.planRepo.GetByCode(*sub.PendingPlanCode)
		if err != nil {
			logger.Error(err, "Scheduled plan no longer exists, skipping", map[string]interface{}{
				"user_id":   sub.UserID,
				"plan_code": *sub.PendingPlanCode,
			})
			continue
		}

		nextBilling := sub.PendingEffectiveAt.AddDate(0, 0, plan.PeriodDays)
		if err := s.subRepo.ApplyPlan(sub.UserID, plan.Code, nextBilling); err != nil {
			return applied, err
		}

		logger.Info("Applied scheduled plan change", map[string]interface{}{
			"user_id":   sub.UserID,
			"plan_code": plan.Code,
		})
		applied++
	}

	return applied, nil
}

func webhookStatus(raw string) payments.Status {
	switch raw {
	case "paid", "succeeded":
		return payments.StatusSucceeded
	case "failed", "cancelled":
		return payments.StatusFailed
	default:
		return payments.StatusPending
	}
}
