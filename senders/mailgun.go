package senders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// FormatEscalation renders the ops email for a critical alert.
func FormatEscalation(title, message string, severity string) (subject, body string) {
	subject = fmt.Sprintf("[%s] %s", strings.ToUpper(severity), title)
	body = fmt.Sprintf(
		`
			<h3>%s</h3>
			<pre>%s</pre>
			<br>
			Severity: %s
		`,
		title, message, severity,
	)
	return subject, body
}

type mailgunSender struct {
	base
}

func (e *mailgunSender) Send(ctx context.Context, subject, body, recipient string) (string, error) {
	mg := mailgun.NewMailgun(e.cfg.Mailgun.Domain, e.cfg.Mailgun.APIKey)
	mg.Client().Transport = e.transport

	// Create message with empty body first.
	message := mg.NewMessage(e.cfg.Mailgun.SenderFrom, subject, "", recipient)
	// SetHtml with the payload proper. This will assign the MIME type properly.
	message.SetHtml(body)

	timeout := time.Duration(e.cfg.Mailgun.TimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, id, err := mg.Send(ctx, message)
	return id, err
}
