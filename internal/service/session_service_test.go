package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kimgyuhyun/ott-project-sub001/internal/models"
	"github.com/kimgyuhyun/ott-project-sub001/internal/payments"
)

func newSessionFixture(subs ...models.Subscription) (*SessionService, *memoryPaymentRepository) {
	planRepo := newMemoryPlanRepository(
		basicPlan,
		premiumPlan,
		models.MembershipPlan{ID: 3, Code: "legacy", Name: "Legacy", Price: 4900, PeriodDays: 30, Active: false},
	)
	paymentRepo := newMemoryPaymentRepository()
	subRepo := newMemorySubscriptionRepository(subs...)
	return NewSessionService(planRepo, paymentRepo, subRepo, nil), paymentRepo
}

func TestCreateSessionPersistsPendingPayment(t *testing.T) {
	svc, paymentRepo := newSessionFixture()

	session, err := svc.CreateSession(context.Background(), CreateSessionInput{
		UserID:   7,
		PlanCode: "premium",
		Gateway:  payments.GatewayKakaoPay,
		Kind:     models.PaymentKindCheckout,
	})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	if session.Amount != premiumPlan.Price {
		t.Fatalf("absent amount must default to the plan price, got %d", session.Amount)
	}
	if !strings.HasPrefix(session.ProviderSessionID, "ord_") {
		t.Fatalf("unexpected merchant uid %q", session.ProviderSessionID)
	}

	payment, err := paymentRepo.GetByID(session.PaymentID)
	if err != nil {
		t.Fatalf("payment row not persisted: %v", err)
	}
	if payment.Status != string(payments.StatusPending) {
		t.Fatalf("new payment must be pending, got %q", payment.Status)
	}
	if payment.MerchantUID != session.ProviderSessionID {
		t.Fatal("session provider id must match the persisted merchant uid")
	}
}

func TestCreateSessionProrationAmountOverride(t *testing.T) {
	svc, _ := newSessionFixture()

	session, err := svc.CreateSession(context.Background(), CreateSessionInput{
		UserID:   7,
		PlanCode: "premium",
		Gateway:  payments.GatewayTossPay,
		Kind:     models.PaymentKindProration,
		Amount:   int64Ptr(2500),
	})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if session.Amount != 2500 {
		t.Fatalf("expected override amount 2500, got %d", session.Amount)
	}
}

func TestCreateSessionRejections(t *testing.T) {
	svc, _ := newSessionFixture(models.Subscription{
		UserID:        7,
		PlanCode:      "premium",
		NextBillingAt: time.Now().AddDate(0, 0, 10),
	})

	cases := []struct {
		name string
		in   CreateSessionInput
	}{
		{"unknown plan", CreateSessionInput{UserID: 7, PlanCode: "ultra", Kind: models.PaymentKindCheckout}},
		{"inactive plan", CreateSessionInput{UserID: 7, PlanCode: "legacy", Kind: models.PaymentKindCheckout}},
		{"empty plan code", CreateSessionInput{UserID: 7, Kind: models.PaymentKindCheckout}},
		{"already subscribed", CreateSessionInput{UserID: 7, PlanCode: "premium", Kind: models.PaymentKindCheckout}},
		{"negative override", CreateSessionInput{UserID: 7, PlanCode: "basic", Kind: models.PaymentKindProration, Amount: int64Ptr(-100)}},
		{"zero override", CreateSessionInput{UserID: 7, PlanCode: "basic", Kind: models.PaymentKindProration, Amount: int64Ptr(0)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateSession(context.Background(), tc.in); !errors.Is(err, payments.ErrSessionCreation) {
				t.Fatalf("expected ErrSessionCreation, got %v", err)
			}
		})
	}
}

func TestGetStatusNormalizesUnknownValues(t *testing.T) {
	svc, paymentRepo := newSessionFixture()

	payment := &models.Payment{
		UserID:      7,
		PlanCode:    "basic",
		MerchantUID: "ord_status",
		Amount:      9900,
		Status:      "ready", // backend-specific intermediate state
	}
	_ = paymentRepo.Create(payment)

	status, err := svc.GetStatus(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("GetStatus returned error: %v", err)
	}
	if status != payments.StatusPending {
		t.Fatalf("unknown states must normalize to PENDING, got %s", status)
	}
}

func TestGetStatusUnknownPayment(t *testing.T) {
	svc, _ := newSessionFixture()

	_, err := svc.GetStatus(context.Background(), 999)
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestStatusForUserHidesOtherUsersPayments(t *testing.T) {
	svc, paymentRepo := newSessionFixture()

	payment := &models.Payment{
		UserID:      7,
		PlanCode:    "basic",
		MerchantUID: "ord_owned",
		Amount:      9900,
		Status:      string(payments.StatusSucceeded),
	}
	_ = paymentRepo.Create(payment)

	status, err := svc.StatusForUser(context.Background(), 7, payment.ID)
	if err != nil {
		t.Fatalf("owner query returned error: %v", err)
	}
	if status != payments.StatusSucceeded {
		t.Fatalf("expected SUCCEEDED for owner, got %s", status)
	}

	if _, err := svc.StatusForUser(context.Background(), 8, payment.ID); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("another user's payment must look missing, got %v", err)
	}
}
