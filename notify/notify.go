package notify

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"blogpipe/config"
)

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Notifier fans an event out to the configured sinks. Sink failures are
// logged and swallowed; notifications never fail the caller.
type Notifier struct {
	cfg    config.NotificationConfig
	client *http.Client
	now    func() time.Time
}

func New(cfg config.NotificationConfig, client *http.Client) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: client,
		now:    time.Now,
	}
}

func (n *Notifier) Notify(subject, message string, severity Severity) {
	if n == nil {
		return
	}

	if n.cfg.Console {
		log.Printf("NOTIFICATION [%s]: %s - %s", severity, subject, message)
	}

	if n.cfg.Webhook && n.cfg.WebhookURL != "" {
		n.postWebhook(subject, message, severity)
	}
}

type webhookPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
}

func (n *Notifier) postWebhook(subject, message string, severity Severity) {
	payload, err := json.Marshal(webhookPayload{
		Timestamp: n.now(),
		Subject:   subject,
		Message:   message,
		Severity:  severity,
	})
	if err != nil {
		log.Printf("Error serializing webhook payload: %v", err)
		return
	}

	resp, err := n.client.Post(n.cfg.WebhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Printf("Webhook notification failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("Webhook notification returned status %d", resp.StatusCode)
	}
}
