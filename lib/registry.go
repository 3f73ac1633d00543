package lib

import (
	"context"
	"errors"
	"time"

	"github.com/agistaffers/pushgate/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebPushSubscription is the subscription object the browser hands out.
type WebPushSubscription struct {
	Endpoint       string           `json:"endpoint"`
	ExpirationTime *int64           `json:"expirationTime,omitempty"`
	Keys           SubscriptionKeys `json:"keys"`
}

type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Registry is a thin typed layer over the store. The database is the single
// source of truth; there is no in-process mirror of subscription state.
type Registry struct {
	log *zap.Logger
	db  *gorm.DB
}

func NewRegistry(log *zap.Logger, db *gorm.DB) *Registry {
	return &Registry{log, db}
}

// UpsertSubscription creates or replaces the push registration for userID.
// An existing preference row is left untouched.
func (r *Registry) UpsertSubscription(ctx context.Context, userID string, sub WebPushSubscription) error {
	if userID == "" {
		return validationErrorf("missing userId")
	}
	if sub.Endpoint == "" {
		return validationErrorf("missing subscription endpoint")
	}

	row := models.PushSubscription{
		UserID:         userID,
		Endpoint:       sub.Endpoint,
		P256dh:         sub.Keys.P256dh,
		Auth:           sub.Keys.Auth,
		ExpirationTime: sub.ExpirationTime,
	}
	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"endpoint", "p256dh", "auth", "expiration_time", "updated_at"}),
		}).
		Create(&row)
	return tx.Error
}

// RemoveSubscription is idempotent: removing an unknown user is not an error.
func (r *Registry) RemoveSubscription(ctx context.Context, userID string) error {
	if userID == "" {
		return validationErrorf("missing userId")
	}
	// Hard delete: the unique user_id index would otherwise pin a
	// soft-deleted row and break a later re-subscribe upsert.
	tx := r.db.WithContext(ctx).
		Unscoped().
		Where("user_id = ?", userID).
		Delete(&models.PushSubscription{})
	return tx.Error
}

// UpdatePreferences replaces the whole preference map for userID. The write
// succeeds even when no push subscription exists yet; the two tables are
// deliberately independent.
func (r *Registry) UpdatePreferences(ctx context.Context, userID string, prefs models.PreferenceMap) error {
	if userID == "" {
		return validationErrorf("missing userId")
	}
	if prefs == nil {
		return validationErrorf("missing preferences")
	}

	row := models.NotificationPreference{UserID: userID, Preferences: prefs}
	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"preferences", "updated_at"}),
		}).
		Create(&row)
	return tx.Error
}

// GetPreferences returns an empty map when the user never saved preferences.
func (r *Registry) GetPreferences(ctx context.Context, userID string) (models.PreferenceMap, error) {
	row := models.NotificationPreference{}
	tx := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return models.PreferenceMap{}, nil
	} else if err != nil {
		return nil, err
	}
	return row.Preferences, nil
}

func (r *Registry) GetSubscription(ctx context.Context, userID string) (*models.PushSubscription, error) {
	row := models.PushSubscription{}
	tx := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "subscription", UserID: userID}
	} else if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListSubscribers returns every push registration joined with its preference
// record, when one exists. Filtering is the dispatcher's job so it can count
// skips.
func (r *Registry) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	var subs []models.PushSubscription
	if tx := r.db.WithContext(ctx).Find(&subs); tx.Error != nil {
		return nil, tx.Error
	}

	var prefs []models.NotificationPreference
	if tx := r.db.WithContext(ctx).Find(&prefs); tx.Error != nil {
		return nil, tx.Error
	}
	prefsByUser := make(map[string]models.PreferenceMap, len(prefs))
	for _, p := range prefs {
		prefsByUser[p.UserID] = p.Preferences
	}

	out := make([]models.Subscriber, 0, len(subs))
	for _, s := range subs {
		p, ok := prefsByUser[s.UserID]
		out = append(out, models.Subscriber{Subscription: s, Preferences: p, HasPrefs: ok})
	}
	return out, nil
}

func (r *Registry) CountSubscriptions(ctx context.Context) (int64, error) {
	var n int64
	tx := r.db.WithContext(ctx).Model(&models.PushSubscription{}).Count(&n)
	return n, tx.Error
}

// RecordDelivery appends one audit row. Callers treat a failure here as a
// soft error; the audit trail never decides the outcome of a dispatch.
func (r *Registry) RecordDelivery(ctx context.Context, entry models.DeliveryLog) error {
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}
	tx := r.db.WithContext(ctx).Create(&entry)
	return tx.Error
}

// History lists the most recent delivery attempts for one user.
func (r *Registry) History(ctx context.Context, userID string, limit int) ([]models.DeliveryLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.DeliveryLog
	tx := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sent_at desc").
		Limit(limit).
		Find(&rows)
	return rows, tx.Error
}
