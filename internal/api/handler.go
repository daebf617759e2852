package api

import (
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adhesikan/NotifyHub/internal/push"
	"github.com/adhesikan/NotifyHub/internal/store"
)

// Header set by the upstream authentication layer. Session handling and
// account linking happen before requests reach this service.
const userIDHeader = "X-User-ID"

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine  *push.Engine
	store   store.Store
	webpush *webpush.Options
	log     *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(engine *push.Engine, s store.Store, webpushOptions *webpush.Options, log *zap.Logger) *Handler {
	return &Handler{
		engine:  engine,
		store:   s,
		webpush: webpushOptions,
		log:     log,
	}
}

// userID pulls the authenticated identity off the request, aborting with
// 401 when the upstream layer did not provide one.
func (h *Handler) userID(c *gin.Context) (string, bool) {
	id := c.GetHeader(userIDHeader)
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return "", false
	}
	return id, true
}
