package models

import (
	"time"

	"gorm.io/gorm"
)

// PreferenceMap maps a preference key (container_down, performance, backups,
// deployments, security) to whether the subscriber opted in. A key that is
// absent counts as disabled.
type PreferenceMap map[string]bool

func (p PreferenceMap) Enabled(key string) bool {
	return p != nil && p[key]
}

// PushSubscription is one browser/device push registration. The endpoint and
// encryption keys are replaced wholesale when the same user subscribes again.
type PushSubscription struct {
	gorm.Model
	UserID         string `gorm:"uniqueIndex"`
	Endpoint       string
	P256dh         string
	Auth           string
	ExpirationTime *int64
}

// NotificationPreference lives in its own table, independent of
// PushSubscription: a preferences-only write succeeds even when the user has
// no push registration yet.
type NotificationPreference struct {
	gorm.Model
	UserID      string        `gorm:"uniqueIndex"`
	Preferences PreferenceMap `gorm:"serializer:json"`
}

// DeliveryLog is an append-only record of every delivery attempt. Rows are
// never updated or deleted here; retention is an operational concern.
type DeliveryLog struct {
	ID         uint `gorm:"primarykey"`
	DispatchID string
	UserID     string
	Title      string
	Body       string
	Type       string
	Success    bool
	Error      string
	SentAt     time.Time
}

// Subscriber is a subscription joined with its (possibly absent) preferences,
// as resolved for one dispatch.
type Subscriber struct {
	Subscription PushSubscription
	Preferences  PreferenceMap
	HasPrefs     bool
}
