package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kimgyuhyun/ott-project-sub001/internal/constants"
	"github.com/kimgyuhyun/ott-project-sub001/internal/metrics"
	"github.com/kimgyuhyun/ott-project-sub001/internal/models"
	"github.com/kimgyuhyun/ott-project-sub001/internal/payments"
	"github.com/kimgyuhyun/ott-project-sub001/pkg/logger"
)

// CheckoutConfig defines configuration required to run checkout attempts.
type CheckoutConfig struct {
	SiteURL         string
	MerchantCode    string
	DefaultGateway  payments.Gateway
	ConfirmAttempts int
	ConfirmDelay    time.Duration
}

// CheckoutResult is the outcome of a completed checkout attempt. Confirmed
// false means client-side confirmation timed out and the webhook is expected
// to settle the payment; the user is redirected either way.
type CheckoutResult struct {
	PaymentID   uint
	RedirectURL string
	Confirmed   bool
}

// gatewayHints maps the caller's payment-service hint to a concrete PG code.
// Unrecognized or empty hints fall back to the configured default gateway.
var gatewayHints = map[string]payments.Gateway{
	"kakao":    payments.GatewayKakaoPay,
	"kakaopay": payments.GatewayKakaoPay,
	"toss":     payments.GatewayTossPay,
	"tosspay":  payments.GatewayTossPay,
	"card":     payments.GatewayCard,
	"credit":   payments.GatewayCard,
}

// CheckoutService drives the full sequence from "user requests payment" to
// "payment confirmed or failed": session creation, PG bridge invocation and
// bounded confirmation polling.
type CheckoutService struct {
	sessions SessionStore
	bridge   payments.Bridge
	config   CheckoutConfig
}

func NewCheckoutService(sessions SessionStore, bridge payments.Bridge, cfg CheckoutConfig) *CheckoutService {
	service := &CheckoutService{}
	service.SetConfig(cfg)
	service.SetDependencies(sessions, bridge)
	return service
}

// SetDependencies updates the session backend and PG bridge used by the service.
func (s *CheckoutService) SetDependencies(sessions SessionStore, bridge payments.Bridge) {
	if s == nil {
		return
	}
	s.sessions = sessions
	s.bridge = bridge
}

// SetConfig updates the checkout configuration used by the service.
func (s *CheckoutService) SetConfig(cfg CheckoutConfig) {
	if s == nil {
		return
	}
	cfg.SiteURL = strings.TrimRight(strings.TrimSpace(cfg.SiteURL), "/")
	cfg.MerchantCode = strings.TrimSpace(cfg.MerchantCode)
	if cfg.DefaultGateway == "" {
		cfg.DefaultGateway = payments.GatewayKakaoPay
	}
	if cfg.ConfirmAttempts <= 0 {
		cfg.ConfirmAttempts = 5
	}
	if cfg.ConfirmDelay <= 0 {
		cfg.ConfirmDelay = 500 * time.Millisecond
	}
	s.config = cfg
}

// Checkout charges the plan's full price.
func (s *CheckoutService) Checkout(ctx context.Context, userID uint, planCode, paymentService string) (*CheckoutResult, error) {
	return s.run(ctx, userID, planCode, paymentService, models.PaymentKindCheckout, nil)
}

// ProrationCheckout charges a precomputed upgrade difference instead of the
// plan price. Used by the plan-change flow; the amount must be positive, a
// zero proration is settled by the caller without a payment.
func (s *CheckoutService) ProrationCheckout(ctx context.Context, userID uint, planCode, paymentService string, amount int64) (*CheckoutResult, error) {
	return s.run(ctx, userID, planCode, paymentService, models.PaymentKindProration, &amount)
}

func (s *CheckoutService) run(ctx context.Context, userID uint, planCode, paymentService, kind string, amount *int64) (*CheckoutResult, error) {
	if s == nil || s.sessions == nil || s.bridge == nil {
		return nil, errors.New("checkout service is not configured")
	}

	// Missing merchant identifier is fatal and non-retryable; reject before
	// touching the network or the database.
	if s.config.MerchantCode == "" {
		return nil, payments.ErrMissingMerchantCode
	}

	successURL := s.config.SiteURL + constants.PaymentSuccessPath
	cancelURL := s.config.SiteURL + constants.PaymentCancelPath
	gateway := s.resolveGateway(paymentService)

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"user_id":   userID,
		"plan_code": planCode,
		"gateway":   gateway,
		"kind":      kind,
	}).Info("Starting checkout")

	session, err := s.sessions.CreateSession(ctx, CreateSessionInput{
		UserID:   userID,
		PlanCode: planCode,
		Gateway:  gateway,
		Kind:     kind,
		Amount:   amount,
	})
	if err != nil {
		metrics.ObserveCheckout(string(gateway), metrics.OutcomeError)
		return nil, err
	}

	if err := s.bridge.Load(ctx); err != nil {
		metrics.ObserveCheckout(string(gateway), metrics.OutcomeError)
		return nil, err
	}
	if err := s.bridge.Initialize(s.config.MerchantCode); err != nil {
		metrics.ObserveCheckout(string(gateway), metrics.OutcomeError)
		return nil, err
	}

	// The bridge callback fires exactly once; buffer 1 so delivery never
	// blocks if this attempt has already been abandoned.
	responses := make(chan payments.PaymentResponse, 1)
	err = s.bridge.RequestPayment(ctx, payments.PaymentRequest{
		Gateway:     gateway,
		PayMethod:   "card",
		MerchantUID: session.ProviderSessionID,
		Amount:      session.Amount,
		Name:        displayName(planCode, kind),
		RedirectURL: successURL,
		CancelURL:   cancelURL,
	}, func(resp payments.PaymentResponse) {
		responses <- resp
	})
	if err != nil {
		metrics.ObserveCheckout(string(gateway), metrics.OutcomeError)
		return nil, err
	}

	var resp payments.PaymentResponse
	select {
	case resp = <-responses:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if !resp.Success {
		metrics.ObserveCheckout(string(gateway), metrics.OutcomeFailed)
		logger.Warn("Gateway reported payment failure", map[string]interface{}{
			"payment_id":   session.PaymentID,
			"merchant_uid": session.ProviderSessionID,
			"message":      resp.ErrorMessage,
		})
		return nil, &payments.PaymentFailedError{Message: resp.ErrorMessage}
	}

	confirmed := true
	if err := s.waitForConfirmation(ctx, session.PaymentID); err != nil {
		switch {
		case errors.Is(err, payments.ErrConfirmationTimeout):
			// Best effort: the webhook settles the payment out of band, so a
			// confirmation timeout must not block the success redirect.
			confirmed = false
			metrics.ObserveCheckout(string(gateway), metrics.OutcomeUnconfirmed)
			logger.Warn("Confirmation polling timed out, redirecting anyway", map[string]interface{}{
				"payment_id":   session.PaymentID,
				"merchant_uid": session.ProviderSessionID,
			})
		default:
			metrics.ObserveCheckout(string(gateway), metrics.OutcomeFailed)
			return nil, err
		}
	} else {
		metrics.ObserveCheckout(string(gateway), metrics.OutcomeConfirmed)
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"payment_id": session.PaymentID,
		"confirmed":  confirmed,
	}).Info("Checkout finished")

	return &CheckoutResult{
		PaymentID:   session.PaymentID,
		RedirectURL: successURL,
		Confirmed:   confirmed,
	}, nil
}

// waitForConfirmation polls the session backend for a terminal status.
// Attempts are strictly sequential with one in-flight query at a time. A
// transient query failure counts as pending; only exhausting all attempts
// yields ErrConfirmationTimeout.
func (s *CheckoutService) waitForConfirmation(ctx context.Context, paymentID uint) error {
	attempts := s.config.ConfirmAttempts
	delay := s.config.ConfirmDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		metrics.ObserveConfirmationPoll()

		status, err := s.sessions.GetStatus(ctx, paymentID)
		if err != nil {
			logger.Debug("Status poll failed, treating as pending", map[string]interface{}{
				"payment_id": paymentID,
				"attempt":    attempt,
				"error":      err.Error(),
			})
		} else {
			switch status {
			case payments.StatusSucceeded:
				return nil
			case payments.StatusFailed:
				return &payments.PaymentFailedError{Message: "payment was declined during confirmation"}
			}
		}

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return payments.ErrConfirmationTimeout
}

func (s *CheckoutService) resolveGateway(paymentService string) payments.Gateway {
	hint := strings.ToLower(strings.TrimSpace(paymentService))
	if gateway, ok := gatewayHints[hint]; ok {
		return gateway
	}
	return s.config.DefaultGateway
}

func displayName(planCode, kind string) string {
	name := strings.ToUpper(planCode[:1]) + planCode[1:] + " membership"
	if kind == models.PaymentKindProration {
		return name + " upgrade"
	}
	return name
}
