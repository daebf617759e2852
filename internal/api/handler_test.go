package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/adhesikan/NotifyHub/config"
	"github.com/adhesikan/NotifyHub/internal/model"
	"github.com/adhesikan/NotifyHub/internal/push"
	"github.com/adhesikan/NotifyHub/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubSender returns a fixed status for every endpoint.
type stubSender struct {
	status int
}

func (s *stubSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}, nil
}

func newTestRouter(t *testing.T, sender push.Sender) *gin.Engine {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Device{}, &model.Subscription{}))

	appStore := store.NewGormStore(db)
	options := &webpush.Options{VAPIDPublicKey: "test-public", VAPIDPrivateKey: "test-private"}
	engine := push.NewEngine(appStore, sender, options, zap.NewNop())
	handler := NewHandler(engine, appStore, options, zap.NewNop())

	return NewRouter(handler, config.ServerConfig{
		Debug:           true,
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 1,
	})
}

func doJSON(router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPutSubscription_InvalidBody(t *testing.T) {
	router := newTestRouter(t, &stubSender{status: http.StatusCreated})

	w := doJSON(router, http.MethodPut, "/api/subscriptions", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}

func TestPutSubscription_MissingIdentity(t *testing.T) {
	router := newTestRouter(t, &stubSender{status: http.StatusCreated})

	w := doJSON(router, http.MethodPut, "/api/subscriptions", "", gin.H{
		"endpoint":   "https://push.example.com/ep",
		"p256dh":     "key",
		"auth":       "secret",
		"service_id": "svc-a",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubscriptionLifecycle(t *testing.T) {
	router := newTestRouter(t, &stubSender{status: http.StatusCreated})

	// Register with a topic filter.
	w := doJSON(router, http.MethodPut, "/api/subscriptions", "alice", gin.H{
		"endpoint":   "https://push.example.com/ep",
		"p256dh":     "key",
		"auth":       "secret",
		"service_id": "svc-a",
		"topics":     []string{"fills", "not-a-topic"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		DeviceID string `json:"device_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.DeviceID)

	// Read the stored filter back; the unknown topic is gone.
	w = doJSON(router, http.MethodGet,
		"/api/subscriptions?endpoint=https%3A%2F%2Fpush.example.com%2Fep&service_id=svc-a", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Topics  []string `json:"topics"`
		Enabled bool     `json:"enabled"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, []string{"fills"}, got.Topics)
	assert.True(t, got.Enabled)

	// Deliver to the user.
	w = doJSON(router, http.MethodPost, "/api/notifications", "", gin.H{
		"user_id":    "alice",
		"service_id": "svc-a",
		"payload":    gin.H{"title": "fill executed"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var report push.DeliveryReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.DeliveredCount)
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Success)

	// Unsubscribe, then delivery resolves to an empty eligible set.
	w = doJSON(router, http.MethodDelete, "/api/subscriptions", "alice", gin.H{
		"endpoint":   "https://push.example.com/ep",
		"service_id": "svc-a",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"found":true}`, w.Body.String())

	w = doJSON(router, http.MethodPost, "/api/notifications", "", gin.H{
		"user_id":    "alice",
		"service_id": "svc-a",
		"payload":    gin.H{"title": "fill executed"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"no active subscriptions"}`, w.Body.String())
}

func TestDeleteSubscription_NotOwned(t *testing.T) {
	router := newTestRouter(t, &stubSender{status: http.StatusCreated})

	w := doJSON(router, http.MethodDelete, "/api/subscriptions", "alice", gin.H{
		"endpoint":   "https://push.example.com/never-registered",
		"service_id": "svc-a",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"found":false}`, w.Body.String())
}

func TestPostNotification_InvalidBody(t *testing.T) {
	router := newTestRouter(t, &stubSender{status: http.StatusCreated})

	w := doJSON(router, http.MethodPost, "/api/notifications", "", gin.H{
		"user_id": "alice",
		// service_id and payload missing
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	router := newTestRouter(t, &stubSender{status: http.StatusCreated})

	w := doJSON(router, http.MethodGet, "/api/vapid_public_key", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"test-public"}`, w.Body.String())
}

func TestGetTopics(t *testing.T) {
	router := newTestRouter(t, &stubSender{status: http.StatusCreated})

	w := doJSON(router, http.MethodGet, "/api/topics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Topics []string `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Contains(t, got.Topics, "fills")
	assert.Contains(t, got.Topics, "risk_events")
}
