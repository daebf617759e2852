package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adhesikan/NotifyHub/internal/model"
)

// DeviceRegistration is the input for the combined device + subscription
// upsert. Fields are assumed validated by the caller.
type DeviceRegistration struct {
	UserID    string
	Endpoint  string
	P256DH    string
	Auth      string
	UserAgent string
	Platform  string
	ServiceID string
	Topics    model.TopicList
}

// EligibleRow is one delivery target: a live device joined with its
// enabled subscription's topic filter.
type EligibleRow struct {
	Device model.Device
	Topics model.TopicList
}

// Store defines all database operations on the device registry and the
// subscription index.
type Store interface {
	// RegisterDevice upserts the device row keyed by endpoint and, in the
	// same transaction, upserts the (device, service) subscription row.
	// Every call revives the device (live=true) and refreshes last-seen.
	RegisterDevice(ctx context.Context, reg DeviceRegistration) (*model.Device, error)

	// FindDeviceByEndpointAndUser returns the device owned by userID with
	// the given endpoint, or nil when no such device exists.
	FindDeviceByEndpointAndUser(ctx context.Context, endpoint, userID string) (*model.Device, error)

	// GetSubscription returns the (device, service) subscription row, or
	// nil when absent.
	GetSubscription(ctx context.Context, deviceID, serviceID string) (*model.Subscription, error)

	// DisableSubscription stamps disabled_at on an enabled row. It is
	// idempotent; the bool reports whether a row exists at all.
	DisableSubscription(ctx context.Context, deviceID, serviceID string) (bool, error)

	// MarkDeviceDead flips liveness off. Reversible only by a subsequent
	// RegisterDevice of the same endpoint.
	MarkDeviceDead(ctx context.Context, deviceID string) error

	// RetireDevice marks the device dead and disables every subscription
	// it owns, across all services, in one transaction. Applying it twice
	// is equivalent to applying it once.
	RetireDevice(ctx context.Context, deviceID string) error

	// ListEligible returns the live-device x enabled-subscription join for
	// a user and service, ordered by endpoint for deterministic output.
	ListEligible(ctx context.Context, userID, serviceID string) ([]EligibleRow, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) RegisterDevice(ctx context.Context, reg DeviceRegistration) (*model.Device, error) {
	now := time.Now().UTC()
	var device model.Device

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		device = model.Device{
			ID:         uuid.NewString(),
			Endpoint:   reg.Endpoint,
			UserID:     reg.UserID,
			P256DH:     reg.P256DH,
			Auth:       reg.Auth,
			UserAgent:  reg.UserAgent,
			Platform:   reg.Platform,
			Live:       true,
			CreatedAt:  now,
			LastSeenAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "p256dh", "auth", "user_agent", "platform", "live", "last_seen_at",
			}),
		}).Create(&device).Error; err != nil {
			return fmt.Errorf("upsert device: %w", err)
		}

		// On the conflict path the existing row keeps its surrogate id.
		// Re-read into a fresh struct: reusing device here would smuggle
		// its freshly generated primary key into the WHERE clause and the
		// lookup would miss the existing row.
		var saved model.Device
		if err := tx.First(&saved, "endpoint = ?", reg.Endpoint).Error; err != nil {
			return fmt.Errorf("reload device after upsert: %w", err)
		}
		device = saved

		subscription := model.Subscription{
			DeviceID:   device.ID,
			ServiceID:  reg.ServiceID,
			Topics:     reg.Topics,
			EnabledAt:  now,
			DisabledAt: nil,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "device_id"}, {Name: "service_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"topics", "enabled_at", "disabled_at",
			}),
		}).Create(&subscription).Error; err != nil {
			return fmt.Errorf("upsert subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (s *gormStore) FindDeviceByEndpointAndUser(ctx context.Context, endpoint, userID string) (*model.Device, error) {
	var device model.Device
	err := s.db.WithContext(ctx).
		First(&device, "endpoint = ? AND user_id = ?", endpoint, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find device by endpoint: %w", err)
	}
	return &device, nil
}

func (s *gormStore) GetSubscription(ctx context.Context, deviceID, serviceID string) (*model.Subscription, error) {
	var subscription model.Subscription
	err := s.db.WithContext(ctx).
		First(&subscription, "device_id = ? AND service_id = ?", deviceID, serviceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &subscription, nil
}

func (s *gormStore) DisableSubscription(ctx context.Context, deviceID, serviceID string) (bool, error) {
	var subscription model.Subscription
	err := s.db.WithContext(ctx).
		First(&subscription, "device_id = ? AND service_id = ?", deviceID, serviceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup subscription: %w", err)
	}
	if subscription.DisabledAt != nil {
		// Already disabled; a no-op, not an error.
		return true, nil
	}

	if err := s.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("device_id = ? AND service_id = ? AND disabled_at IS NULL", deviceID, serviceID).
		Update("disabled_at", time.Now().UTC()).Error; err != nil {
		return false, fmt.Errorf("disable subscription: %w", err)
	}
	return true, nil
}

func (s *gormStore) MarkDeviceDead(ctx context.Context, deviceID string) error {
	if err := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("id = ?", deviceID).
		Update("live", false).Error; err != nil {
		return fmt.Errorf("mark device dead: %w", err)
	}
	return nil
}

func (s *gormStore) RetireDevice(ctx context.Context, deviceID string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Device{}).
			Where("id = ?", deviceID).
			Update("live", false).Error; err != nil {
			return fmt.Errorf("mark device dead: %w", err)
		}
		// A dead endpoint is dead for every service sharing it.
		if err := tx.Model(&model.Subscription{}).
			Where("device_id = ? AND disabled_at IS NULL", deviceID).
			Update("disabled_at", now).Error; err != nil {
			return fmt.Errorf("disable subscriptions of dead device: %w", err)
		}
		return nil
	})
}

func (s *gormStore) ListEligible(ctx context.Context, userID, serviceID string) ([]EligibleRow, error) {
	var devices []model.Device
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND live = ?", userID, true).
		Order("endpoint ASC").
		Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("list live devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, nil
	}

	deviceIDs := make([]string, len(devices))
	for i, d := range devices {
		deviceIDs[i] = d.ID
	}

	var subscriptions []model.Subscription
	if err := s.db.WithContext(ctx).
		Where("service_id = ? AND disabled_at IS NULL AND device_id IN ?", serviceID, deviceIDs).
		Find(&subscriptions).Error; err != nil {
		return nil, fmt.Errorf("list enabled subscriptions: %w", err)
	}

	topicsByDevice := make(map[string]model.TopicList, len(subscriptions))
	enabled := make(map[string]bool, len(subscriptions))
	for _, sub := range subscriptions {
		topicsByDevice[sub.DeviceID] = sub.Topics
		enabled[sub.DeviceID] = true
	}

	var rows []EligibleRow
	for _, d := range devices {
		if !enabled[d.ID] {
			continue
		}
		rows = append(rows, EligibleRow{Device: d, Topics: topicsByDevice[d.ID]})
	}
	return rows, nil
}
