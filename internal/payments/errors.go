package payments

import "errors"

var (
	// ErrMissingMerchantCode means no merchant identifier is configured for
	// this deployment. Fatal for the attempt, never retried.
	ErrMissingMerchantCode = errors.New("payment merchant code is not configured")

	// ErrSDKLoad means the PG aggregator handle could not be established.
	ErrSDKLoad = errors.New("payment sdk failed to load")

	// ErrSessionCreation means the backend rejected creating a checkout
	// session (unknown plan, already subscribed, invalid amount).
	ErrSessionCreation = errors.New("checkout session creation failed")

	// ErrConfirmationTimeout means polling exhausted its attempts without the
	// payment reaching a terminal success state. Non-fatal to the user flow.
	ErrConfirmationTimeout = errors.New("payment confirmation timed out")
)

// PaymentFailedError carries the gateway-supplied failure message from a
// declined or cancelled payment.
type PaymentFailedError struct {
	Message string
}

func (e *PaymentFailedError) Error() string {
	if e.Message == "" {
		return "payment failed"
	}
	return "payment failed: " + e.Message
}
