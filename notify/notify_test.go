package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"blogpipe/config"
)

func TestNotify_WebhookDelivery(t *testing.T) {
	var got webhookPayload
	received := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received++
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("payload is not valid JSON: %v", err)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
	}))
	defer srv.Close()

	n := New(config.NotificationConfig{Webhook: true, WebhookURL: srv.URL}, srv.Client())
	sent := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return sent }

	n.Notify("Pipeline Error", "deploy failed: exit status 1", SeverityError)

	if received != 1 {
		t.Fatalf("expected one webhook call, got %d", received)
	}
	if got.Subject != "Pipeline Error" || got.Severity != SeverityError {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if !got.Timestamp.Equal(sent) {
		t.Fatalf("timestamp not propagated: %v", got.Timestamp)
	}
}

func TestNotify_WebhookDisabledWithoutURL(t *testing.T) {
	received := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received++
	}))
	defer srv.Close()

	n := New(config.NotificationConfig{Webhook: true}, srv.Client())
	n.Notify("Pipeline Success", "done", SeverityInfo)

	if received != 0 {
		t.Fatalf("webhook without URL must not post, got %d calls", received)
	}
}

func TestNotify_NilReceiverSafe(t *testing.T) {
	var n *Notifier
	n.Notify("System Started", "ok", SeverityInfo)
}
