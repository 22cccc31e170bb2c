package service

import (
	"context"

	"github.com/kimgyuhyun/ott-project-sub001/internal/payments"
)

// CreateSessionInput describes one checkout attempt to the session backend.
// A nil Amount means "charge the plan's full price"; proration checkouts pass
// the precomputed difference explicitly. An override must be positive — a
// zero charge means there is nothing to collect and no session may be issued.
type CreateSessionInput struct {
	UserID   uint
	PlanCode string
	Gateway  payments.Gateway
	Kind     string
	Amount   *int64
}

// SessionStore is the payment-session backend the checkout orchestrator
// coordinates: it issues checkout sessions and answers status queries.
type SessionStore interface {
	CreateSession(ctx context.Context, in CreateSessionInput) (*payments.CheckoutSession, error)
	GetStatus(ctx context.Context, paymentID uint) (payments.Status, error)
}
