package lib

import (
	"context"
	"time"

	"github.com/agistaffers/pushgate/config"
	"github.com/agistaffers/pushgate/lib/models"
	"github.com/agistaffers/pushgate/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Service is the engine behind the HTTP API: subscriber registry operations
// plus the alert dispatcher.
type Service struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *Registry
	senders  senders.Registry

	*subscriptions
	*dispatcher
}

func NewService(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, registry *Registry, senders senders.Registry, cooldown *Cooldown) *Service {
	return &Service{
		cfg, log, registry, senders,
		&subscriptions{cfg, log, registry, senders},
		&dispatcher{cfg, log, registry, senders, cooldown, time.Now},
	}
}

// NewAlertCooldown builds the process-wide cooldown tracker.
func NewAlertCooldown(cfg *config.Config) *Cooldown {
	return NewCooldown(cfg.CooldownWindow)
}

func (svc *Service) Preferences(ctx context.Context, userID string) (models.PreferenceMap, error) {
	return svc.registry.GetPreferences(ctx, userID)
}

func (svc *Service) Subscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	subscribers, err := svc.registry.ListSubscribers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.PushSubscription, len(subscribers))
	for i, s := range subscribers {
		out[i] = s.Subscription
	}
	return out, nil
}

func (svc *Service) SubscriptionCount(ctx context.Context) (int64, error) {
	return svc.registry.CountSubscriptions(ctx)
}

func (svc *Service) History(ctx context.Context, userID string, limit int) ([]models.DeliveryLog, error) {
	return svc.registry.History(ctx, userID, limit)
}
