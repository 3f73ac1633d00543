package lib

import (
	"context"
	"time"

	"github.com/agistaffers/pushgate/config"
	"github.com/agistaffers/pushgate/lib/models"
	"github.com/agistaffers/pushgate/senders"
	"go.uber.org/zap"
)

type subscriptions struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *Registry
	senders  senders.Registry
}

// Subscribe upserts the push registration and greets the new device. The
// welcome push is best-effort: a cold endpoint should not fail the
// subscription itself.
func (s *subscriptions) Subscribe(ctx context.Context, userID string, sub WebPushSubscription) error {
	if err := s.registry.UpsertSubscription(ctx, userID, sub); err != nil {
		return err
	}
	s.log.Sugar().Infof("Subscription stored for user %s", userID)

	row := models.PushSubscription{
		UserID:         userID,
		Endpoint:       sub.Endpoint,
		P256dh:         sub.Keys.P256dh,
		Auth:           sub.Keys.Auth,
		ExpirationTime: sub.ExpirationTime,
	}
	payload := senders.Payload{
		Title: "🎉 Notifications Enabled!",
		Body:  "You will now receive real-time alerts from AGI Staffers Dashboard",
		Icon:  defaultIcon,
		Badge: defaultIcon,
	}
	err := s.senders.Push.Deliver(ctx, &row, payload)
	if err != nil {
		s.log.Sugar().Infow("Failed to send welcome notification", "user_id", userID, "err", err)
	}
	s.recordAttempt(ctx, userID, payload, "welcome", err)
	return nil
}

// Unsubscribe is idempotent.
func (s *subscriptions) Unsubscribe(ctx context.Context, userID string) error {
	if err := s.registry.RemoveSubscription(ctx, userID); err != nil {
		return err
	}
	s.log.Sugar().Infof("Subscription removed for user %s", userID)
	return nil
}

// UpdatePreferences replaces the whole preference map, whether or not the
// user has a push registration.
func (s *subscriptions) UpdatePreferences(ctx context.Context, userID string, prefs models.PreferenceMap) error {
	return s.registry.UpdatePreferences(ctx, userID, prefs)
}

// TestNotification delivers directly to one named subscriber, bypassing
// preference filtering: a test message always reaches its target.
func (s *subscriptions) TestNotification(ctx context.Context, userID, title, body string) error {
	sub, err := s.registry.GetSubscription(ctx, userID)
	if err != nil {
		return err
	}

	if title == "" {
		title = "🔔 Test Notification"
	}
	if body == "" {
		body = "This is a test notification from AGI Staffers"
	}
	payload := senders.Payload{Title: title, Body: body, Icon: defaultIcon}

	err = s.senders.Push.Deliver(ctx, sub, payload)
	s.recordAttempt(ctx, userID, payload, "test", err)
	return err
}

func (s *subscriptions) recordAttempt(ctx context.Context, userID string, payload senders.Payload, typ string, deliverErr error) {
	entry := models.DeliveryLog{
		UserID:  userID,
		Title:   payload.Title,
		Body:    payload.Body,
		Type:    typ,
		Success: deliverErr == nil,
		SentAt:  time.Now().UTC(),
	}
	if deliverErr != nil {
		entry.Error = deliverErr.Error()
	}
	if err := s.registry.RecordDelivery(ctx, entry); err != nil {
		s.log.Sugar().Warnf("Failed to record delivery for %s: %v", userID, err)
	}
}
