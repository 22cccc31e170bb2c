package payments

import "context"

// Status represents the lifecycle state of a payment as recorded server-side.
// Backend-specific states outside the known set are treated as pending.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// ParseStatus normalizes a raw status string; anything unrecognized is pending.
func ParseStatus(raw string) Status {
	switch Status(raw) {
	case StatusSucceeded:
		return StatusSucceeded
	case StatusFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// Gateway identifies the concrete payment rail (PG) used for a transaction.
type Gateway string

const (
	GatewayKakaoPay Gateway = "kakaopay"
	GatewayTossPay  Gateway = "tosspay"
	GatewayCard     Gateway = "html5_inicis"
)

// CheckoutSession is a server-issued record binding a plan code to a pending
// payment attempt. Immutable once created; one session per attempt.
type CheckoutSession struct {
	ProviderSessionID string `json:"provider_session_id"`
	Amount            int64  `json:"amount"`
	PaymentID         uint   `json:"payment_id"`
	PG                string `json:"pg"`
}

// PaymentRequest carries everything the PG bridge needs for one invocation.
type PaymentRequest struct {
	Gateway     Gateway
	PayMethod   string
	MerchantUID string
	Amount      int64
	Name        string
	RedirectURL string
	CancelURL   string
}

// PaymentResponse is delivered to the request callback exactly once.
type PaymentResponse struct {
	Success      bool
	TxID         string
	MerchantUID  string
	ErrorMessage string
}

// Callback receives the asynchronous outcome of a payment request.
type Callback func(PaymentResponse)

// Bridge is the surface of the external PG aggregator SDK. Load is idempotent
// and process-wide; Initialize must happen before RequestPayment. The bridge
// never retries an invocation on its own.
type Bridge interface {
	Load(ctx context.Context) error
	Initialize(merchantCode string) error
	RequestPayment(ctx context.Context, req PaymentRequest, cb Callback) error
}
