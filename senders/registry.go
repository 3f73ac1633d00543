package senders

import (
	"context"
	"fmt"
	"net/http"

	"github.com/agistaffers/pushgate/config"
	"github.com/agistaffers/pushgate/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Payload is the notification body handed to the browser. It is opaque to
// the transport; the service worker on the other end interprets it.
type Payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Badge string         `json:"badge,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Gateway attempts delivery of one payload to one subscriber's endpoint.
// Failures are routine (endpoints expire constantly) and come back as
// *DeliveryError; the gateway never retries.
type Gateway interface {
	Deliver(ctx context.Context, sub *models.PushSubscription, payload Payload) error
}

// EmailSender carries ops escalations for critical alerts.
type EmailSender interface {
	Send(ctx context.Context, subject, body, recipient string) (string, error)
}

type Registry struct {
	Push  Gateway
	Email EmailSender
}

func NewSenderRegistry(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper) Registry {
	base := base{log, cfg, transport}
	return Registry{
		Push:  &webpushGateway{base},
		Email: &mailgunSender{base},
	}
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}

// DeliveryError is a transport-level failure for a single endpoint. Expired
// marks endpoints the push service reports as permanently gone.
type DeliveryError struct {
	Cause   error
	Expired bool
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed: %v", e.Cause)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }
