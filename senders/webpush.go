package senders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/agistaffers/pushgate/lib/models"
)

type webpushGateway struct {
	base
}

func (g *webpushGateway) Deliver(ctx context.Context, sub *models.PushSubscription, payload Payload) error {
	if payload.Data == nil {
		payload.Data = map[string]any{}
	}
	payload.Data["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{Cause: err}
	}

	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.DeliveryTimeout)
	defer cancel()

	resp, err := webpush.SendNotificationWithContext(ctx, body, target, &webpush.Options{
		HTTPClient:      &http.Client{Transport: g.transport},
		Subscriber:      g.cfg.VAPID.Subject,
		VAPIDPublicKey:  g.cfg.VAPID.PublicKey,
		VAPIDPrivateKey: g.cfg.VAPID.PrivateKey,
		TTL:             60,
	})
	if err != nil {
		return &DeliveryError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &DeliveryError{
			Cause:   fmt.Errorf("push service returned %s", resp.Status),
			Expired: resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound,
		}
	}
	return nil
}
