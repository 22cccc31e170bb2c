package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kimgyuhyun/ott-project-sub001/internal/payments"
)

func testCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		SiteURL:         "https://ott.example.com",
		MerchantCode:    "imp12345678",
		DefaultGateway:  payments.GatewayKakaoPay,
		ConfirmAttempts: 5,
		ConfirmDelay:    20 * time.Millisecond,
	}
}

func TestCheckoutCreatesSessionExactlyOnceBeforeBridge(t *testing.T) {
	store := &fakeSessionStore{statuses: []payments.Status{payments.StatusSucceeded}}
	bridge := &fakeBridge{response: payments.PaymentResponse{Success: true, TxID: "imp_1"}}
	svc := NewCheckoutService(store, bridge, testCheckoutConfig())

	result, err := svc.Checkout(context.Background(), 7, "premium", "kakao")
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}

	if len(store.creates) != 1 {
		t.Fatalf("expected exactly one session creation, got %d", len(store.creates))
	}
	if len(bridge.requests) != 1 {
		t.Fatalf("expected exactly one bridge invocation, got %d", len(bridge.requests))
	}
	if result.PaymentID != 42 {
		t.Fatalf("unexpected payment id %d", result.PaymentID)
	}
	if bridge.lastRequest().MerchantUID != "ord_test" {
		t.Fatalf("bridge did not receive the session's provider id, got %q", bridge.lastRequest().MerchantUID)
	}
	if got := bridge.lastRequest().RedirectURL; got != "https://ott.example.com/membership/payment/success" {
		t.Fatalf("unexpected redirect url %q", got)
	}
	if got := bridge.lastRequest().CancelURL; got != "https://ott.example.com/membership/payment/cancel" {
		t.Fatalf("unexpected cancel url %q", got)
	}
}

func TestCheckoutRejectsWithoutMerchantCodeBeforeAnyCall(t *testing.T) {
	store := &fakeSessionStore{}
	bridge := &fakeBridge{}
	cfg := testCheckoutConfig()
	cfg.MerchantCode = ""
	svc := NewCheckoutService(store, bridge, cfg)

	_, err := svc.Checkout(context.Background(), 7, "premium", "kakao")
	if !errors.Is(err, payments.ErrMissingMerchantCode) {
		t.Fatalf("expected ErrMissingMerchantCode, got %v", err)
	}
	if len(store.creates) != 0 {
		t.Fatal("session creation must not happen without a merchant code")
	}
	if bridge.loads != 0 || len(bridge.requests) != 0 {
		t.Fatal("bridge must not be touched without a merchant code")
	}
}

func TestCheckoutFailureCallbackSkipsPolling(t *testing.T) {
	store := &fakeSessionStore{}
	bridge := &fakeBridge{response: payments.PaymentResponse{Success: false, ErrorMessage: "user cancelled"}}
	svc := NewCheckoutService(store, bridge, testCheckoutConfig())

	_, err := svc.Checkout(context.Background(), 7, "premium", "kakao")

	var failed *payments.PaymentFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected PaymentFailedError, got %v", err)
	}
	if failed.Message != "user cancelled" {
		t.Fatalf("expected gateway message to be preserved, got %q", failed.Message)
	}
	if store.pollCount() != 0 {
		t.Fatalf("no status poll may be issued after a failed callback, got %d", store.pollCount())
	}
}

func TestCheckoutPollingStopsAtFirstSuccess(t *testing.T) {
	store := &fakeSessionStore{statuses: []payments.Status{
		payments.StatusPending,
		payments.StatusPending,
		payments.StatusSucceeded,
	}}
	bridge := &fakeBridge{response: payments.PaymentResponse{Success: true}}
	svc := NewCheckoutService(store, bridge, testCheckoutConfig())

	result, err := svc.Checkout(context.Background(), 7, "premium", "toss")
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}
	if !result.Confirmed {
		t.Fatal("expected confirmed result")
	}
	if store.pollCount() != 3 {
		t.Fatalf("expected polling to stop at first SUCCEEDED, got %d polls", store.pollCount())
	}
}

func TestCheckoutPollsAreSequentiallySpaced(t *testing.T) {
	store := &fakeSessionStore{statuses: []payments.Status{
		payments.StatusPending,
		payments.StatusPending,
		payments.StatusSucceeded,
	}}
	bridge := &fakeBridge{response: payments.PaymentResponse{Success: true}}
	cfg := testCheckoutConfig()
	cfg.ConfirmDelay = 40 * time.Millisecond
	svc := NewCheckoutService(store, bridge, cfg)

	if _, err := svc.Checkout(context.Background(), 7, "premium", ""); err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}

	store.mu.Lock()
	polls := append([]time.Time(nil), store.polls...)
	store.mu.Unlock()

	for i := 1; i < len(polls); i++ {
		if gap := polls[i].Sub(polls[i-1]); gap < cfg.ConfirmDelay {
			t.Fatalf("poll %d followed after %v, want at least %v", i, gap, cfg.ConfirmDelay)
		}
	}
}

func TestCheckoutTimeoutStillReturnsSuccessRedirect(t *testing.T) {
	store := &fakeSessionStore{} // every poll stays pending
	bridge := &fakeBridge{response: payments.PaymentResponse{Success: true}}
	svc := NewCheckoutService(store, bridge, testCheckoutConfig())

	result, err := svc.Checkout(context.Background(), 7, "premium", "kakao")
	if err != nil {
		t.Fatalf("confirmation timeout must not fail the flow, got %v", err)
	}
	if result.Confirmed {
		t.Fatal("expected unconfirmed result after timeout")
	}
	if result.RedirectURL != "https://ott.example.com/membership/payment/success" {
		t.Fatalf("unexpected redirect url %q", result.RedirectURL)
	}
	if store.pollCount() != 5 {
		t.Fatalf("expected exactly 5 poll attempts, got %d", store.pollCount())
	}
}

func TestCheckoutPollErrorsCountAsPending(t *testing.T) {
	store := &fakeSessionStore{
		statusErrs: []error{errors.New("connection reset"), errors.New("timeout")},
		statuses:   []payments.Status{"", "", payments.StatusSucceeded},
	}
	bridge := &fakeBridge{response: payments.PaymentResponse{Success: true}}
	svc := NewCheckoutService(store, bridge, testCheckoutConfig())

	result, err := svc.Checkout(context.Background(), 7, "premium", "kakao")
	if err != nil {
		t.Fatalf("transient poll errors must not abort the loop, got %v", err)
	}
	if !result.Confirmed {
		t.Fatal("expected confirmation after transient errors")
	}
	if store.pollCount() != 3 {
		t.Fatalf("expected 3 polls, got %d", store.pollCount())
	}
}

func TestCheckoutFailedStatusDuringPollingFailsAttempt(t *testing.T) {
	store := &fakeSessionStore{statuses: []payments.Status{
		payments.StatusPending,
		payments.StatusFailed,
	}}
	bridge := &fakeBridge{response: payments.PaymentResponse{Success: true}}
	svc := NewCheckoutService(store, bridge, testCheckoutConfig())

	_, err := svc.Checkout(context.Background(), 7, "premium", "kakao")

	var failed *payments.PaymentFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected PaymentFailedError on FAILED status, got %v", err)
	}
	if store.pollCount() != 2 {
		t.Fatalf("expected polling to stop at FAILED, got %d polls", store.pollCount())
	}
}

func TestCheckoutGatewayHintResolution(t *testing.T) {
	cases := []struct {
		hint string
		want payments.Gateway
	}{
		{"kakao", payments.GatewayKakaoPay},
		{"toss", payments.GatewayTossPay},
		{"tosspay", payments.GatewayTossPay},
		{"card", payments.GatewayCard},
		{"", payments.GatewayKakaoPay},
		{"unknowncorp", payments.GatewayKakaoPay},
		{"  KAKAO  ", payments.GatewayKakaoPay},
	}

	for _, tc := range cases {
		store := &fakeSessionStore{statuses: []payments.Status{payments.StatusSucceeded}}
		bridge := &fakeBridge{response: payments.PaymentResponse{Success: true}}
		svc := NewCheckoutService(store, bridge, testCheckoutConfig())

		if _, err := svc.Checkout(context.Background(), 7, "premium", tc.hint); err != nil {
			t.Fatalf("hint %q: Checkout returned error: %v", tc.hint, err)
		}
		if got := bridge.lastRequest().Gateway; got != tc.want {
			t.Fatalf("hint %q resolved to %q, want %q", tc.hint, got, tc.want)
		}
	}
}

func TestCheckoutSessionCreationErrorSurfaces(t *testing.T) {
	store := &fakeSessionStore{createErr: payments.ErrSessionCreation}
	bridge := &fakeBridge{}
	svc := NewCheckoutService(store, bridge, testCheckoutConfig())

	_, err := svc.Checkout(context.Background(), 7, "premium", "kakao")
	if !errors.Is(err, payments.ErrSessionCreation) {
		t.Fatalf("expected ErrSessionCreation, got %v", err)
	}
	if len(bridge.requests) != 0 {
		t.Fatal("bridge must not be invoked when session creation fails")
	}
}

func TestCheckoutSdkLoadErrorSurfaces(t *testing.T) {
	store := &fakeSessionStore{}
	bridge := &fakeBridge{loadErr: payments.ErrSDKLoad}
	svc := NewCheckoutService(store, bridge, testCheckoutConfig())

	_, err := svc.Checkout(context.Background(), 7, "premium", "kakao")
	if !errors.Is(err, payments.ErrSDKLoad) {
		t.Fatalf("expected ErrSDKLoad, got %v", err)
	}
	if len(bridge.requests) != 0 {
		t.Fatal("payment must not be requested when the SDK failed to load")
	}
}

func TestCheckoutCancelledContextAbortsPolling(t *testing.T) {
	store := &fakeSessionStore{} // pending forever
	bridge := &fakeBridge{response: payments.PaymentResponse{Success: true}}
	cfg := testCheckoutConfig()
	cfg.ConfirmDelay = 50 * time.Millisecond
	svc := NewCheckoutService(store, bridge, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(70 * time.Millisecond)
		cancel()
	}()

	_, err := svc.Checkout(ctx, 7, "premium", "kakao")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if store.pollCount() >= 5 {
		t.Fatalf("expected cancellation to cut polling short, got %d polls", store.pollCount())
	}
}
