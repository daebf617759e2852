package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adhesikan/NotifyHub/internal/push"
)

type putSubscriptionRequest struct {
	Endpoint  string   `json:"endpoint" binding:"required"`
	P256DH    string   `json:"p256dh" binding:"required"`
	Auth      string   `json:"auth" binding:"required"`
	ServiceID string   `json:"service_id" binding:"required"`
	Topics    []string `json:"topics"`
	Platform  string   `json:"platform"`
}

// PutSubscription registers or updates a device and its subscription for
// one service.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID, ok := h.userID(c)
	if !ok {
		return
	}

	device, err := h.engine.Register(c.Request.Context(), push.RegisterInput{
		UserID:    userID,
		Endpoint:  req.Endpoint,
		P256DH:    req.P256DH,
		Auth:      req.Auth,
		UserAgent: c.Request.UserAgent(),
		Platform:  req.Platform,
		ServiceID: req.ServiceID,
		Topics:    req.Topics,
	})
	if err != nil {
		if errors.Is(err, push.ErrInvalidSubscriptionPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("subscription registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"device_id": device.ID})
}

type deleteSubscriptionRequest struct {
	Endpoint  string `json:"endpoint" binding:"required"`
	ServiceID string `json:"service_id" binding:"required"`
}

// DeleteSubscription disables the caller's subscription for one service.
// Unsubscribing an endpoint the caller never owned reports found=false.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID, ok := h.userID(c)
	if !ok {
		return
	}

	found, err := h.engine.Unsubscribe(c.Request.Context(), userID, req.ServiceID, req.Endpoint)
	if err != nil {
		h.log.Error("unsubscribe failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unsubscribe failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"found": found})
}

// GetSubscription returns the stored topic filter for the caller's device
// and service.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	serviceID := c.Query("service_id")
	if endpoint == "" || serviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint and service_id are required"})
		return
	}

	userID, ok := h.userID(c)
	if !ok {
		return
	}

	device, err := h.store.FindDeviceByEndpointAndUser(c.Request.Context(), endpoint, userID)
	if err != nil {
		h.log.Error("subscription lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if device == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}

	subscription, err := h.store.GetSubscription(c.Request.Context(), device.ID, serviceID)
	if err != nil {
		h.log.Error("subscription lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if subscription == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"topics":  subscription.Topics,
		"enabled": subscription.Active(),
	})
}
