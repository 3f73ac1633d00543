package lib

import (
	"context"
	"errors"
	"testing"

	"github.com/agistaffers/pushgate/lib/models"
	"github.com/agistaffers/pushgate/senders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeSendsWelcomeNotification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sub := WebPushSubscription{
		Endpoint: "https://push.example.com/alice",
		Keys:     SubscriptionKeys{P256dh: "k", Auth: "a"},
	}
	require.NoError(t, h.svc.Subscribe(ctx, "alice", sub))

	assert.Equal(t, []string{"alice"}, h.gw.deliveredTo())

	var rows []models.DeliveryLog
	require.NoError(t, h.db.Where("type = ?", "welcome").Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Success)
}

func TestSubscribeSucceedsWhenWelcomeDeliveryFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.gw.failFor["alice"] = &senders.DeliveryError{Cause: errors.New("cold endpoint")}
	sub := WebPushSubscription{
		Endpoint: "https://push.example.com/alice",
		Keys:     SubscriptionKeys{P256dh: "k", Auth: "a"},
	}
	// The welcome push is best-effort; the registration itself must stick.
	require.NoError(t, h.svc.Subscribe(ctx, "alice", sub))

	_, err := h.svc.registry.GetSubscription(ctx, "alice")
	assert.NoError(t, err)
}

func TestTestNotificationBypassesPreferences(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.subscribeQuietly(t, "bob")
	h.setPreferences(t, "bob", models.PreferenceMap{}) // everything off

	require.NoError(t, h.svc.TestNotification(ctx, "bob", "", ""))
	assert.Equal(t, []string{"bob"}, h.gw.deliveredTo())
}

func TestTestNotificationUnknownUser(t *testing.T) {
	h := newHarness(t)

	err := h.svc.TestNotification(context.Background(), "nobody", "hi", "there")
	var nerr *NotFoundError
	assert.ErrorAs(t, err, &nerr)
}
