package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adhesikan/NotifyHub/internal/push"
)

type notificationPayload struct {
	Title   string `json:"title" binding:"required"`
	Body    string `json:"body"`
	URL     string `json:"url"`
	Tag     string `json:"tag"`
	Urgency string `json:"urgency"`
}

type postNotificationRequest struct {
	UserID    string              `json:"user_id" binding:"required"`
	ServiceID string              `json:"service_id" binding:"required"`
	Payload   notificationPayload `json:"payload" binding:"required"`
	Topics    []string            `json:"topics"`
	Endpoint  string              `json:"endpoint"`
}

// PostNotification fans a payload out to every eligible device of a user
// for a service. Partial failure is reported in the outcome list with a
// 200; only an empty eligible set or a storage fault fails the request.
func (h *Handler) PostNotification(c *gin.Context) {
	var req postNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	report, err := h.engine.Deliver(c.Request.Context(), push.DeliveryRequest{
		UserID:    req.UserID,
		ServiceID: req.ServiceID,
		Payload: push.Payload{
			Title:   req.Payload.Title,
			Body:    req.Payload.Body,
			URL:     req.Payload.URL,
			Tag:     req.Payload.Tag,
			Urgency: req.Payload.Urgency,
		},
		Topics:   req.Topics,
		Endpoint: req.Endpoint,
	})
	if err != nil {
		if errors.Is(err, push.ErrNoActiveSubscriptions) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active subscriptions"})
			return
		}
		h.log.Error("delivery failed",
			zap.String("user_id", req.UserID),
			zap.String("service_id", req.ServiceID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delivery failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}
