package model

import (
	"strings"
	"time"
)

// Recognized device platforms.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

// Device holds one browser/OS push endpoint and its connection metadata.
// The endpoint URL is the natural key; an endpoint belongs to exactly one
// user at a time and re-registration under a different user reassigns it.
type Device struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Endpoint   string    `gorm:"uniqueIndex;size:1024;not null"`
	UserID     string    `gorm:"index;size:128;not null"`
	P256DH     string    `gorm:"column:p256dh;not null"`
	Auth       string    `gorm:"not null"`
	UserAgent  string    `gorm:"size:512"`
	Platform   string    `gorm:"size:16;not null"`
	Live       bool      `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	LastSeenAt time.Time `gorm:"not null"`

	// Associations
	Subscriptions []Subscription `gorm:"foreignKey:DeviceID"`
}

// DetectPlatform picks the device platform. A recognized caller-supplied
// value wins; otherwise the platform is sniffed from the user agent,
// defaulting to web.
func DetectPlatform(requested, userAgent string) string {
	switch strings.ToLower(strings.TrimSpace(requested)) {
	case PlatformIOS:
		return PlatformIOS
	case PlatformAndroid:
		return PlatformAndroid
	case PlatformWeb:
		return PlatformWeb
	}

	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		return PlatformIOS
	case strings.Contains(ua, "android"):
		return PlatformAndroid
	default:
		return PlatformWeb
	}
}
