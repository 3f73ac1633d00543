package lib

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/agistaffers/pushgate/config"
	"github.com/agistaffers/pushgate/lib/models"
	"github.com/agistaffers/pushgate/senders"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu        sync.Mutex
	delivered []string
	failFor   map[string]error
}

func (f *fakeGateway) Deliver(ctx context.Context, sub *models.PushSubscription, payload senders.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[sub.UserID]; ok {
		return err
	}
	f.delivered = append(f.delivered, sub.UserID)
	return nil
}

func (f *fakeGateway) deliveredTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.delivered...)
}

type harness struct {
	svc *Service
	db  *gorm.DB
	gw  *fakeGateway
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "pushgate.sqlite")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.PushSubscription{},
		&models.NotificationPreference{},
		&models.DeliveryLog{},
	))

	log := zap.NewNop()
	cfg := &config.Config{CooldownWindow: 5 * time.Minute, DeliveryTimeout: time.Second}

	gw := &fakeGateway{failFor: map[string]error{}}
	registry := NewRegistry(log, db)
	svc := NewService(nil, cfg, log, registry, senders.Registry{Push: gw}, NewCooldown(cfg.CooldownWindow))
	return &harness{svc: svc, db: db, gw: gw}
}

func (h *harness) subscribeQuietly(t *testing.T, userID string) {
	t.Helper()
	sub := WebPushSubscription{
		Endpoint: "https://push.example.com/" + userID,
		Keys:     SubscriptionKeys{P256dh: "p256dh-" + userID, Auth: "auth-" + userID},
	}
	require.NoError(t, h.svc.registry.UpsertSubscription(context.Background(), userID, sub))
}

func (h *harness) setPreferences(t *testing.T, userID string, prefs models.PreferenceMap) {
	t.Helper()
	require.NoError(t, h.svc.UpdatePreferences(context.Background(), userID, prefs))
}
