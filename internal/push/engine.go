// Package push implements the delivery engine: it resolves the eligible
// device set for a user and service, fans payloads out concurrently, and
// reconciles endpoints the push service reports as gone.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/adhesikan/NotifyHub/internal/metrics"
	"github.com/adhesikan/NotifyHub/internal/model"
	"github.com/adhesikan/NotifyHub/internal/store"
	"github.com/adhesikan/NotifyHub/internal/topic"
)

var (
	// ErrInvalidSubscriptionPayload rejects malformed registration input
	// before any write happens.
	ErrInvalidSubscriptionPayload = errors.New("invalid subscription payload")

	// ErrNoActiveSubscriptions reports a delivery request that resolved to
	// an empty eligible set. A business condition, not a system fault.
	ErrNoActiveSubscriptions = errors.New("no active subscriptions")
)

// Payload is the notification content handed to every targeted endpoint.
type Payload struct {
	Title   string `json:"title"`
	Body    string `json:"body,omitempty"`
	URL     string `json:"url,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Urgency string `json:"urgency,omitempty"`
}

// RegisterInput carries one registerOrUpdateDevice call.
type RegisterInput struct {
	UserID    string
	Endpoint  string
	P256DH    string
	Auth      string
	UserAgent string
	Platform  string
	ServiceID string
	Topics    []string
}

// DeliveryRequest targets every eligible device of a user for a service,
// optionally narrowed by a topic filter or a single endpoint.
type DeliveryRequest struct {
	UserID    string
	ServiceID string
	Payload   Payload
	Topics    []string
	Endpoint  string
}

// Outcome records the result of one send attempt. Terminal means the push
// service reported the endpoint permanently gone.
type Outcome struct {
	DeviceID   string `json:"device_id"`
	Endpoint   string `json:"endpoint"`
	Success    bool   `json:"success"`
	Terminal   bool   `json:"terminal"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DeliveryReport aggregates one fan-out. Partial failure is normal and
// reported here, never escalated to an overall failure.
type DeliveryReport struct {
	DeliveredCount int       `json:"delivered_count"`
	Outcomes       []Outcome `json:"outcomes"`
}

// Engine is the delivery engine over the device/subscription registry.
type Engine struct {
	store   store.Store
	sender  Sender
	options *webpush.Options
	log     *zap.Logger
}

// NewEngine creates a delivery engine. The webpush options carry the
// process-wide VAPID credentials, built once at boot.
func NewEngine(s store.Store, sender Sender, options *webpush.Options, log *zap.Logger) *Engine {
	return &Engine{
		store:   s,
		sender:  sender,
		options: options,
		log:     log,
	}
}

// Register validates and applies one registerOrUpdateDevice call. The
// device upsert and the subscription upsert run in one transaction, so a
// device row never exists without a subscription row. Registration is
// idempotent and self-healing: a dead endpoint that re-registers is live
// again.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*model.Device, error) {
	switch {
	case in.Endpoint == "":
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidSubscriptionPayload)
	case in.P256DH == "" || in.Auth == "":
		return nil, fmt.Errorf("%w: both p256dh and auth keys are required", ErrInvalidSubscriptionPayload)
	case in.UserID == "":
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidSubscriptionPayload)
	case in.ServiceID == "":
		return nil, fmt.Errorf("%w: service id is required", ErrInvalidSubscriptionPayload)
	}

	device, err := e.store.RegisterDevice(ctx, store.DeviceRegistration{
		UserID:    in.UserID,
		Endpoint:  in.Endpoint,
		P256DH:    in.P256DH,
		Auth:      in.Auth,
		UserAgent: in.UserAgent,
		Platform:  model.DetectPlatform(in.Platform, in.UserAgent),
		ServiceID: in.ServiceID,
		Topics:    topic.Normalize(in.Topics),
	})
	if err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}
	return device, nil
}

// Unsubscribe disables the (device, service) subscription for an endpoint
// the user owns. Returns false when the user owns no such endpoint or no
// subscription row exists; absence is an expected outcome, not an error.
func (e *Engine) Unsubscribe(ctx context.Context, userID, serviceID, endpoint string) (bool, error) {
	device, err := e.store.FindDeviceByEndpointAndUser(ctx, endpoint, userID)
	if err != nil {
		return false, err
	}
	if device == nil {
		return false, nil
	}
	return e.store.DisableSubscription(ctx, device.ID, serviceID)
}

// Deliver resolves the eligible set and fans the payload out to every
// endpoint concurrently. Per-endpoint errors are captured in the report;
// Deliver itself fails only on ErrNoActiveSubscriptions or a storage error
// while resolving the set.
func (e *Engine) Deliver(ctx context.Context, req DeliveryRequest) (*DeliveryReport, error) {
	rows, err := e.store.ListEligible(ctx, req.UserID, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("resolve eligible set: %w", err)
	}

	if req.Endpoint != "" {
		rows = filterEndpoint(rows, req.Endpoint)
	}
	if filter := topic.Normalize(req.Topics); len(filter) > 0 {
		rows = filterTopics(rows, filter)
	}
	if len(rows) == 0 {
		return nil, ErrNoActiveSubscriptions
	}

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	options := e.attemptOptions(req.Payload)

	// Fan-out: one attempt per endpoint, all independent. The barrier
	// below is the only ordering guarantee.
	outcomes := make([]Outcome, len(rows))
	var wg sync.WaitGroup
	for i, row := range rows {
		wg.Add(1)
		go func(i int, device model.Device) {
			defer wg.Done()
			outcomes[i] = e.sendOne(ctx, device, body, options)
		}(i, row.Device)
	}
	wg.Wait()

	report := &DeliveryReport{Outcomes: outcomes}
	for _, out := range outcomes {
		if out.Success {
			report.DeliveredCount++
		}
	}
	return report, nil
}

// attemptOptions clones the process-wide webpush options and applies
// per-request urgency.
func (e *Engine) attemptOptions(p Payload) *webpush.Options {
	options := *e.options
	switch p.Urgency {
	case string(webpush.UrgencyVeryLow):
		options.Urgency = webpush.UrgencyVeryLow
	case string(webpush.UrgencyLow):
		options.Urgency = webpush.UrgencyLow
	case string(webpush.UrgencyHigh):
		options.Urgency = webpush.UrgencyHigh
	default:
		options.Urgency = webpush.UrgencyNormal
	}
	return &options
}

// sendOne performs a single send attempt and classifies the result. A 404
// or 410 from the push service is terminal and triggers reconciliation;
// every other transport or status error is a transient send failure.
func (e *Engine) sendOne(ctx context.Context, device model.Device, body []byte, options *webpush.Options) Outcome {
	out := Outcome{DeviceID: device.ID, Endpoint: device.Endpoint}

	sub := &webpush.Subscription{
		Endpoint: device.Endpoint,
		Keys: webpush.Keys{
			P256dh: device.P256DH,
			Auth:   device.Auth,
		},
	}

	start := time.Now()
	resp, err := e.sender.Send(body, sub, options)
	metrics.PushSendDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		out.Error = err.Error()
		metrics.PushSendsTotal.WithLabelValues(metrics.ResultTransient).Inc()
		e.log.Warn("push send failed",
			zap.String("endpoint", device.Endpoint),
			zap.Error(err))
		return out
	}
	defer resp.Body.Close()

	out.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		out.Success = true
		metrics.PushSendsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		out.Terminal = true
		out.Error = fmt.Sprintf("push service returned %d: endpoint gone", resp.StatusCode)
		metrics.PushSendsTotal.WithLabelValues(metrics.ResultTerminal).Inc()
		e.retireDevice(ctx, device)
	default:
		out.Error = fmt.Sprintf("push service returned %d", resp.StatusCode)
		metrics.PushSendsTotal.WithLabelValues(metrics.ResultTransient).Inc()
		e.log.Warn("push service rejected send",
			zap.String("endpoint", device.Endpoint),
			zap.Int("status", resp.StatusCode))
	}
	return out
}

// retireDevice reconciles a terminal outcome: the device is marked dead
// and every subscription it owns is disabled. Best-effort; a failed write
// here never rewrites the outcome already recorded for the attempt.
func (e *Engine) retireDevice(ctx context.Context, device model.Device) {
	if err := e.store.RetireDevice(ctx, device.ID); err != nil {
		metrics.ReconciliationFailuresTotal.Inc()
		e.log.Error("failed to retire dead device",
			zap.String("device_id", device.ID),
			zap.String("endpoint", device.Endpoint),
			zap.Error(err))
		return
	}
	metrics.DevicesRetiredTotal.Inc()
	e.log.Info("retired dead device",
		zap.String("device_id", device.ID),
		zap.String("endpoint", device.Endpoint))
}

func filterEndpoint(rows []store.EligibleRow, endpoint string) []store.EligibleRow {
	var kept []store.EligibleRow
	for _, row := range rows {
		if row.Device.Endpoint == endpoint {
			kept = append(kept, row)
		}
	}
	return kept
}

// filterTopics keeps rows whose stored topic set is empty (unfiltered
// opt-in) or intersects the filter.
func filterTopics(rows []store.EligibleRow, filter []string) []store.EligibleRow {
	var kept []store.EligibleRow
	for _, row := range rows {
		if len(row.Topics) == 0 || intersects(row.Topics, filter) {
			kept = append(kept, row)
		}
	}
	return kept
}

func intersects(topics model.TopicList, filter []string) bool {
	for _, t := range filter {
		if topics.Contains(t) {
			return true
		}
	}
	return false
}
