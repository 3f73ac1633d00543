package lib

import (
	"context"
	"errors"
	"time"

	"github.com/agistaffers/pushgate/config"
	"github.com/agistaffers/pushgate/lib/models"
	"github.com/agistaffers/pushgate/senders"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultIcon = "/icon-192x192.png"

// DispatchResult aggregates one fan-out. Skipped counts subscribers excluded
// by the preference filter, Failed counts attempted deliveries the transport
// rejected.
type DispatchResult struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type dispatcher struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *Registry
	senders  senders.Registry
	cooldown *Cooldown
	now      func() time.Time
}

// Dispatch runs one end-to-end alert delivery: cooldown check, preference
// filtering, per-subscriber delivery, audit logging. A suppressed alert is a
// total no-op, not a per-subscriber dedupe: the cooldown is global per key,
// so a user who subscribed mid-window misses that window's alert.
func (d *dispatcher) Dispatch(ctx context.Context, alert Alert) (DispatchResult, error) {
	if alert.Message == "" {
		return DispatchResult{}, validationErrorf("missing alert message")
	}

	key := alert.CooldownKey()
	if !d.cooldown.TryAcquire(key, d.now()) {
		d.log.Sugar().Infow("Alert suppressed by cooldown", "key", key, "type", alert.Type)
		return DispatchResult{}, nil
	}

	profile := profileFor(alert.Type)
	title := alert.Title
	if title == "" {
		title = profile.Title
	}

	payload := senders.Payload{
		Title: title,
		Body:  alert.Message,
		Icon:  defaultIcon,
		Badge: defaultIcon,
		Data: map[string]any{
			"type":     string(alert.Type),
			"severity": string(alert.Severity),
		},
	}

	res, err := d.fanOut(ctx, profile.Preference, string(alert.Type), payload)
	if err != nil {
		return res, err
	}

	if alert.Severity == SeverityCritical {
		d.escalate(ctx, title, alert)
	}
	return res, nil
}

// Broadcast fans out a caller-composed message. Admin-initiated sends have
// no alert key, so no cooldown applies; an empty filterPreference reaches
// every subscriber regardless of preferences.
func (d *dispatcher) Broadcast(ctx context.Context, title, body, typ, filterPreference string) (DispatchResult, error) {
	if title == "" {
		return DispatchResult{}, validationErrorf("missing title")
	}
	if body == "" {
		return DispatchResult{}, validationErrorf("missing body")
	}
	if typ == "" {
		typ = "info"
	}

	payload := senders.Payload{
		Title: title,
		Body:  body,
		Icon:  defaultIcon,
		Data:  map[string]any{"type": typ},
	}
	return d.fanOut(ctx, filterPreference, typ, payload)
}

func (d *dispatcher) fanOut(ctx context.Context, prefKey, typ string, payload senders.Payload) (DispatchResult, error) {
	subscribers, err := d.registry.ListSubscribers(ctx)
	if err != nil {
		return DispatchResult{}, err
	}

	dispatchID := uuid.NewString()
	var res DispatchResult

	for i := range subscribers {
		sub := &subscribers[i]
		userID := sub.Subscription.UserID

		// No preference record at all means no opt-in: targeted alerts
		// skip the user, only ungated sends reach them.
		if prefKey != "" && !sub.Preferences.Enabled(prefKey) {
			res.Skipped++
			continue
		}

		err := d.senders.Push.Deliver(ctx, &sub.Subscription, payload)
		entry := models.DeliveryLog{
			DispatchID: dispatchID,
			UserID:     userID,
			Title:      payload.Title,
			Body:       payload.Body,
			Type:       typ,
			Success:    err == nil,
			SentAt:     d.now().UTC(),
		}

		if err != nil {
			// One dead endpoint must not stop the rest of the loop.
			res.Failed++
			entry.Error = err.Error()
			d.log.Sugar().Warnf("Failed to send to %s: %v", userID, err)
			d.pruneIfExpired(ctx, userID, err)
		} else {
			res.Sent++
		}

		if logErr := d.registry.RecordDelivery(ctx, entry); logErr != nil {
			d.log.Sugar().Warnf("Failed to record delivery for %s: %v", userID, logErr)
		}
	}

	d.log.Sugar().Infow("Dispatch complete",
		"dispatch_id", dispatchID,
		"type", typ,
		"sent", res.Sent,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, nil
}

func (d *dispatcher) pruneIfExpired(ctx context.Context, userID string, err error) {
	var derr *senders.DeliveryError
	if !errors.As(err, &derr) || !derr.Expired {
		return
	}
	if rmErr := d.registry.RemoveSubscription(ctx, userID); rmErr != nil {
		d.log.Sugar().Warnf("Failed to prune expired subscription for %s: %v", userID, rmErr)
		return
	}
	d.log.Sugar().Infof("Pruned expired subscription for %s", userID)
}

func (d *dispatcher) escalate(ctx context.Context, title string, alert Alert) {
	addr := d.cfg.Mailgun.OpsAddress
	if addr == "" || d.senders.Email == nil {
		return
	}
	subject, body := senders.FormatEscalation(title, alert.Message, string(alert.Severity))
	id, err := d.senders.Email.Send(ctx, subject, body, addr)
	if err != nil {
		d.log.Sugar().Infow("Failed to send escalation email", "err", err)
		return
	}
	d.log.Sugar().Infow("Sent escalation to "+addr, "message_id", id)
}
