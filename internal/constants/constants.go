package constants

const (
	// AuthTokenCookieName is the cookie carrying the session JWT.
	AuthTokenCookieName = "auth_token"

	// PaymentSuccessPath and PaymentCancelPath are the fixed client routes the
	// browser is sent to after a payment attempt. They are joined with the
	// configured site origin, never supplied by the caller.
	PaymentSuccessPath = "/membership/payment/success"
	PaymentCancelPath  = "/membership/payment/cancel"
)
