package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kimgyuhyun/ott-project-sub001/internal/models"
	"github.com/kimgyuhyun/ott-project-sub001/internal/service"
)

// MembershipHandler exposes the plan catalog and the plan-change flow.
type MembershipHandler struct {
	membership *service.MembershipService
}

func NewMembershipHandler(membership *service.MembershipService) *MembershipHandler {
	return &MembershipHandler{membership: membership}
}

func (h *MembershipHandler) ensureService(c *gin.Context) bool {
	if h == nil || h.membership == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "membership service unavailable"})
		return false
	}
	return true
}

// ListPlans returns the active plan catalog.
func (h *MembershipHandler) ListPlans(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	plans, err := h.membership.ListPlans()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load plans"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// ChangePlan runs the upgrade/downgrade decision for the authenticated user.
func (h *MembershipHandler) ChangePlan(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.PlanChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.membership.ChangePlan(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *MembershipHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoSubscription):
		c.JSON(http.StatusConflict, gin.H{"error": "no active subscription"})
	case errors.Is(err, service.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "membership plan not found"})
	case errors.Is(err, service.ErrSamePlan):
		c.JSON(http.StatusConflict, gin.H{"error": "already on the requested plan"})
	case errors.Is(err, service.ErrPlanChangeFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "plan change failed, please try again"})
	default:
		writePaymentError(c, err)
	}
}
