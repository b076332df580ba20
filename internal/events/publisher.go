package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/httpclient"
)

// Publisher emits events to a single webhook endpoint. Delivery is
// fire-and-forget: failures are logged and never propagated to the caller,
// since notification fan-out lives outside the allocation core.
type Publisher struct {
	source     string
	webhookURL string
	client     *httpclient.Client
}

// NewPublisher creates a publisher. An empty webhookURL leaves events
// log-only, which is how development and tests run.
func NewPublisher(source, webhookURL string) *Publisher {
	return &Publisher{
		source:     source,
		webhookURL: webhookURL,
		client:     httpclient.NewClient(source, 5*time.Second),
	}
}

// Publish wraps data in an envelope and delivers it. The restaurant_id data
// field, when present, becomes the envelope tenant.
func (p *Publisher) Publish(ctx context.Context, eventType string, data map[string]any) error {
	envelope := Envelope{
		EventID:        generateEventID(),
		EventType:      eventType,
		SchemaVersion:  "1.0",
		IdempotencyKey: fmt.Sprintf("%s_%s_%d", eventType, data["shift_id"], time.Now().UnixNano()),
		Timestamp:      time.Now().UTC(),
		Source:         p.source,
		Data:           data,
	}

	if restaurantID, ok := data["restaurant_id"].(string); ok {
		envelope.TenantID = restaurantID
	}

	slog.InfoContext(ctx, "event_published",
		"event_id", envelope.EventID,
		"event_type", envelope.EventType,
		"source", envelope.Source,
	)

	if p.webhookURL == "" {
		return nil
	}

	headers := map[string]string{
		"X-Event-ID":   envelope.EventID,
		"X-Event-Type": envelope.EventType,
	}
	if err := p.client.Post(ctx, p.webhookURL, headers, envelope); err != nil {
		slog.WarnContext(ctx, "webhook_failed",
			"url", p.webhookURL,
			"event_type", envelope.EventType,
			"error", err,
		)
	}
	return nil
}

func generateEventID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return "evt_" + hex.EncodeToString(b[:])
}
