package model

import "time"

// TopicList is a topic filter stored as a JSON array column. An empty list
// means the subscription is unfiltered and receives every topic.
type TopicList []string

// Contains reports whether the list holds the given topic.
func (l TopicList) Contains(topic string) bool {
	for _, t := range l {
		if t == topic {
			return true
		}
	}
	return false
}

// Subscription relates one device to one service (tenant). Disabling a
// subscription only stamps DisabledAt; the device row is untouched, so a
// device can stay active for other services sharing the endpoint.
type Subscription struct {
	DeviceID   string    `gorm:"primaryKey;size:36"`
	ServiceID  string    `gorm:"primaryKey;size:128"`
	Topics     TopicList `gorm:"serializer:json"`
	EnabledAt  time.Time `gorm:"not null"`
	DisabledAt *time.Time

	// Associations
	Device Device `gorm:"constraint:OnDelete:CASCADE"`
}

// Active reports whether the subscription is currently enabled.
func (s *Subscription) Active() bool {
	return s.DisabledAt == nil
}
