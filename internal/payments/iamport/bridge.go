package iamport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kimgyuhyun/ott-project-sub001/internal/payments"
)

const defaultAPIBase = "https://api.iamport.kr"

// Bridge implements payments.Bridge against the I'mport PG aggregator using
// direct HTTP calls. The loaded handle (an API session) is process-wide:
// Load performs the token handshake at most once, repeat calls reuse it.
type Bridge struct {
	apiBaseURL string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	userAgent  string

	mu           sync.Mutex
	handle       *handle
	merchantCode string
}

// handle is the singleton SDK session. It lives until process exit; there is
// no teardown path.
type handle struct {
	accessToken string
	issuedAt    time.Time
}

// NewBridge constructs a bridge using the supplied API credentials. The
// handshake is deferred to Load so construction never touches the network.
func NewBridge(apiKey, apiSecret string) (*Bridge, error) {
	key := strings.TrimSpace(apiKey)
	secret := strings.TrimSpace(apiSecret)
	if key == "" || secret == "" {
		return nil, errors.New("iamport api key and secret are required")
	}

	return &Bridge{
		apiBaseURL: defaultAPIBase,
		apiKey:     key,
		apiSecret:  secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userAgent:  "ott-project-backend/iamport-bridge",
	}, nil
}

// SetAPIBaseURL overrides the aggregator endpoint. Used by tests.
func (b *Bridge) SetAPIBaseURL(base string) {
	if b == nil {
		return
	}
	b.apiBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

// Load establishes the process-wide handle. Idempotent: a loaded handle is
// returned immediately, and a failed handshake leaves the bridge unloaded so
// the next attempt retries from scratch.
func (b *Bridge) Load(ctx context.Context) error {
	if b == nil {
		return fmt.Errorf("%w: bridge is not configured", payments.ErrSDKLoad)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handle != nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	token, err := b.fetchToken(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", payments.ErrSDKLoad, err)
	}

	b.handle = &handle{accessToken: token, issuedAt: time.Now()}
	return nil
}

// Initialize records the merchant code the aggregator requires on every
// payment request. Safe to call repeatedly.
func (b *Bridge) Initialize(merchantCode string) error {
	if b == nil {
		return payments.ErrMissingMerchantCode
	}

	code := strings.TrimSpace(merchantCode)
	if code == "" {
		return payments.ErrMissingMerchantCode
	}

	b.mu.Lock()
	b.merchantCode = code
	b.mu.Unlock()
	return nil
}

// RequestPayment delegates to the aggregator and delivers the outcome to cb
// exactly once, asynchronously. The bridge never retries on its own.
func (b *Bridge) RequestPayment(ctx context.Context, req payments.PaymentRequest, cb payments.Callback) error {
	if b == nil || cb == nil {
		return errors.New("iamport bridge requires a callback")
	}

	b.mu.Lock()
	h := b.handle
	merchantCode := b.merchantCode
	b.mu.Unlock()

	if h == nil {
		return fmt.Errorf("%w: bridge not loaded", payments.ErrSDKLoad)
	}
	if merchantCode == "" {
		return payments.ErrMissingMerchantCode
	}
	if req.MerchantUID == "" {
		return errors.New("merchant uid is required")
	}
	if req.Amount <= 0 {
		return fmt.Errorf("payment amount %d is invalid", req.Amount)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var once sync.Once
	deliver := func(resp payments.PaymentResponse) {
		once.Do(func() { cb(resp) })
	}

	go b.invoke(ctx, h, merchantCode, req, deliver)
	return nil
}

func (b *Bridge) invoke(ctx context.Context, h *handle, merchantCode string, req payments.PaymentRequest, deliver payments.Callback) {
	body := map[string]interface{}{
		"merchant_uid":   req.MerchantUID,
		"pg":             fmt.Sprintf("%s.%s", req.Gateway, merchantCode),
		"pay_method":     req.PayMethod,
		"amount":         req.Amount,
		"name":           req.Name,
		"m_redirect_url": req.RedirectURL,
		"cancel_url":     req.CancelURL,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		deliver(payments.PaymentResponse{MerchantUID: req.MerchantUID, ErrorMessage: err.Error()})
		return
	}

	endpoint := fmt.Sprintf("%s/payments/request", strings.TrimRight(b.apiBaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		deliver(payments.PaymentResponse{MerchantUID: req.MerchantUID, ErrorMessage: err.Error()})
		return
	}

	httpReq.Header.Set("Authorization", "Bearer "+h.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", b.userAgent)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		deliver(payments.PaymentResponse{MerchantUID: req.MerchantUID, ErrorMessage: err.Error()})
		return
	}
	defer resp.Body.Close()

	var result struct {
		Code     int    `json:"code"`
		Message  string `json:"message"`
		Response struct {
			ImpUID      string `json:"imp_uid"`
			MerchantUID string `json:"merchant_uid"`
			Status      string `json:"status"`
		} `json:"response"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		deliver(payments.PaymentResponse{MerchantUID: req.MerchantUID, ErrorMessage: fmt.Sprintf("iamport response decode failed: %v", err)})
		return
	}

	if resp.StatusCode >= 400 || result.Code != 0 {
		message := strings.TrimSpace(result.Message)
		if message == "" {
			message = fmt.Sprintf("iamport returned status %d", resp.StatusCode)
		}
		deliver(payments.PaymentResponse{MerchantUID: req.MerchantUID, ErrorMessage: message})
		return
	}

	deliver(payments.PaymentResponse{
		Success:     true,
		TxID:        result.Response.ImpUID,
		MerchantUID: result.Response.MerchantUID,
	})
}

func (b *Bridge) fetchToken(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"imp_key":    b.apiKey,
		"imp_secret": b.apiSecret,
	})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/users/getToken", strings.TrimRight(b.apiBaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", b.userAgent)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Code     int    `json:"code"`
		Message  string `json:"message"`
		Response struct {
			AccessToken string `json:"access_token"`
		} `json:"response"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("iamport token decode failed: %w", err)
	}

	if resp.StatusCode >= 400 || result.Code != 0 {
		message := strings.TrimSpace(result.Message)
		if message == "" {
			message = fmt.Sprintf("iamport returned status %d", resp.StatusCode)
		}
		return "", errors.New(message)
	}

	if result.Response.AccessToken == "" {
		return "", errors.New("iamport token response missing access token")
	}

	return result.Response.AccessToken, nil
}

var _ payments.Bridge = (*Bridge)(nil)
