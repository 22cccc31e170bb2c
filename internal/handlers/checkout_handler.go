package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kimgyuhyun/ott-project-sub001/internal/models"
	"github.com/kimgyuhyun/ott-project-sub001/internal/payments"
	"github.com/kimgyuhyun/ott-project-sub001/internal/service"
)

// CheckoutHandler exposes the checkout flow and payment status polling to
// HTTP clients.
type CheckoutHandler struct {
	checkout *service.CheckoutService
	sessions *service.SessionService
}

func NewCheckoutHandler(checkout *service.CheckoutService, sessions *service.SessionService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, sessions: sessions}
}

func (h *CheckoutHandler) ensureServices(c *gin.Context) bool {
	if h == nil || h.checkout == nil || h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "checkout service unavailable"})
		return false
	}
	return true
}

// Checkout starts a full-price checkout for the requested plan.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	if !h.ensureServices(c) {
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.checkout.Checkout(c.Request.Context(), userID, req.PlanCode, req.PaymentService)
	if err != nil {
		writePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CheckoutResponse{
		PaymentID:   result.PaymentID,
		RedirectURL: result.RedirectURL,
		Confirmed:   result.Confirmed,
	})
}

// Status answers one payment status query for the authenticated user's own
// payment.
func (h *CheckoutHandler) Status(c *gin.Context) {
	if !h.ensureServices(c) {
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	status, err := h.sessions.StatusForUser(c.Request.Context(), userID, uint(id))
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.PaymentStatusResponse{
		PaymentID: uint(id),
		Status:    string(status),
	})
}

// writePaymentError maps the payment error taxonomy onto HTTP statuses. It is
// shared by the checkout and membership handlers.
func writePaymentError(c *gin.Context, err error) {
	var failed *payments.PaymentFailedError

	switch {
	case errors.Is(err, payments.ErrMissingMerchantCode):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment is not configured for this environment"})
	case errors.Is(err, payments.ErrSDKLoad):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider is unavailable, please retry"})
	case errors.Is(err, payments.ErrSessionCreation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &failed):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": failed.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "payment attempt was aborted"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment failed, please try again"})
	}
}

// currentUserID pulls the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return 0, false
	}
	userID, ok := value.(uint)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return 0, false
	}
	return userID, true
}
