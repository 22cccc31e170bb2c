package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kimgyuhyun/ott-project-sub001/internal/models"
	"github.com/kimgyuhyun/ott-project-sub001/internal/payments"
	"github.com/kimgyuhyun/ott-project-sub001/internal/repository"
	"github.com/kimgyuhyun/ott-project-sub001/pkg/cache"
	"github.com/kimgyuhyun/ott-project-sub001/pkg/logger"
)

// SessionService is the payment-session backend: it issues checkout sessions
// bound to a plan and answers status queries for confirmation polling.
type SessionService struct {
	planRepo    repository.PlanRepository
	paymentRepo repository.PaymentRepository
	subRepo     repository.SubscriptionRepository
	cache       *cache.Cache
}

func NewSessionService(planRepo repository.PlanRepository, paymentRepo repository.PaymentRepository, subRepo repository.SubscriptionRepository, c *cache.Cache) *SessionService {
	return &SessionService{
		planRepo:    planRepo,
		paymentRepo: paymentRepo,
		subRepo:     subRepo,
		cache:       c,
	}
}

// CreateSession validates the attempt, persists a pending payment and returns
// the session the PG bridge needs. One session per attempt; the returned
// value never changes afterwards.
func (s *SessionService) CreateSession(ctx context.Context, in CreateSessionInput) (*payments.CheckoutSession, error) {
	code := strings.TrimSpace(in.PlanCode)
	if code == "" {
		return nil, fmt.Errorf("%w: plan code is required", payments.ErrSessionCreation)
	}

	plan, err := s.planRepo.GetByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown plan %q", payments.ErrSessionCreation, code)
		}
		return nil, fmt.Errorf("%w: %v", payments.ErrSessionCreation, err)
	}
	if !plan.Active {
		return nil, fmt.Errorf("%w: plan %q is not available", payments.ErrSessionCreation, code)
	}

	// A full-price checkout for the plan the user already holds is a
	// duplicate purchase, not a renewal.
	if in.Kind == models.PaymentKindCheckout {
		if sub, err := s.subRepo.GetByUserID(in.UserID); err == nil && sub.PlanCode == code {
			return nil, fmt.Errorf("%w: already subscribed to plan %q", payments.ErrSessionCreation, code)
		}
	}

	amount := plan.Price
	if in.Amount != nil {
		amount = *in.Amount
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: nothing to charge for plan %q", payments.ErrSessionCreation, code)
	}

	payment := &models.Payment{
		UserID:      in.UserID,
		PlanCode:    code,
		MerchantUID: "ord_" + uuid.NewString(),
		Amount:      amount,
		Gateway:     string(in.Gateway),
		Kind:        in.Kind,
		Status:      string(payments.StatusPending),
	}

	if err := s.paymentRepo.Create(payment); err != nil {
		return nil, fmt.Errorf("%w: %v", payments.ErrSessionCreation, err)
	}

	logger.Info("Checkout session created", map[string]interface{}{
		"payment_id":   payment.ID,
		"merchant_uid": payment.MerchantUID,
		"plan_code":    code,
		"amount":       amount,
		"kind":         in.Kind,
	})

	return &payments.CheckoutSession{
		ProviderSessionID: payment.MerchantUID,
		Amount:            amount,
		PaymentID:         payment.ID,
		PG:                string(in.Gateway),
	}, nil
}

// GetStatus answers one confirmation poll, cache-first. Unknown stored values
// normalize to pending.
func (s *SessionService) GetStatus(ctx context.Context, paymentID uint) (payments.Status, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetCachedPaymentStatus(paymentID); err == nil {
			return payments.ParseStatus(cached), nil
		}
	}

	payment, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payments.StatusPending, ErrPaymentNotFound
		}
		return payments.StatusPending, err
	}

	status := payments.ParseStatus(payment.Status)
	if s.cache != nil {
		_ = s.cache.CachePaymentStatus(paymentID, string(status))
	}
	return status, nil
}

// StatusForUser answers a status query made on a user's own behalf. A payment
// belonging to someone else is indistinguishable from a missing one.
func (s *SessionService) StatusForUser(ctx context.Context, userID, paymentID uint) (payments.Status, error) {
	payment, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payments.StatusPending, ErrPaymentNotFound
		}
		return payments.StatusPending, err
	}
	if payment.UserID != userID {
		return payments.StatusPending, ErrPaymentNotFound
	}

	return s.GetStatus(ctx, paymentID)
}

var _ SessionStore = (*SessionService)(nil)
