package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kimgyuhyun/ott-project-sub001/internal/models"
	"github.com/kimgyuhyun/ott-project-sub001/internal/payments/iamport"
	"github.com/kimgyuhyun/ott-project-sub001/internal/service"
	"github.com/kimgyuhyun/ott-project-sub001/pkg/logger"
	"github.com/kimgyuhyun/ott-project-sub001/pkg/validator"
)

const webhookSignatureHeader = "X-Webhook-Signature"

// webhookTolerance bounds how stale a signed notification may be.
const webhookTolerance = 5 * time.Minute

// WebhookHandler receives the PG aggregator's server-to-server payment
// notifications. This channel settles payments independently of client-side
// confirmation polling. When requireSigned is set, notifications without a
// configured secret are rejected instead of accepted unsigned.
type WebhookHandler struct {
	membership    *service.MembershipService
	secret        string
	requireSigned bool
}

func NewWebhookHandler(membership *service.MembershipService, secret string, requireSigned bool) *WebhookHandler {
	return &WebhookHandler{membership: membership, secret: secret, requireSigned: requireSigned}
}

// HandleNotification verifies and applies one payment notification.
func (h *WebhookHandler) HandleNotification(c *gin.Context) {
	if h == nil || h.membership == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook handler unavailable"})
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}

	if h.secret == "" {
		if h.requireSigned {
			logger.Warn("Rejected webhook, no signing secret configured", map[string]interface{}{
				"ip": c.ClientIP(),
			})
			c.JSON(http.StatusUnauthorized, gin.H{"error": "signature required"})
			return
		}
	} else {
		header := c.GetHeader(webhookSignatureHeader)
		if err := iamport.VerifyWebhookSignature(payload, header, h.secret, webhookTolerance); err != nil {
			logger.Warn("Rejected webhook with bad signature", map[string]interface{}{
				"ip":    c.ClientIP(),
				"error": err.Error(),
			})
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	var notif models.WebhookNotification
	if err := json.Unmarshal(payload, &notif); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed notification"})
		return
	}
	if err := validator.Validate(&notif); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed notification"})
		return
	}

	if err := h.membership.SettlePayment(c.Request.Context(), notif); err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown payment"})
			return
		}
		logger.Error(err, "Failed to settle webhook notification", map[string]interface{}{
			"merchant_uid": notif.MerchantUID,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
