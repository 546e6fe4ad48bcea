package broker

import (
	"context"
	"fmt"

	"payment-reconciler/internal/models"
	"payment-reconciler/internal/util"

	"go.uber.org/zap"
)

// AuditStore persists audit records durably. *store.Store implements it.
type AuditStore interface {
	InsertWebhookAudit(ctx context.Context, rec *models.WebhookAuditRecord) error
}

// AuditTrail records webhook delivery outcomes to Kafka and the database.
// Both writes are best-effort: an audit failure must never affect the
// webhook response.
type AuditTrail struct {
	producer *Producer
	store    AuditStore
	logger   *zap.Logger
}

// NewAuditTrail creates an audit trail. producer and store may each be nil.
func NewAuditTrail(producer *Producer, store AuditStore) *AuditTrail {
	return &AuditTrail{
		producer: producer,
		store:    store,
		logger:   util.GetLogger(),
	}
}

// Record emits one audit entry. Never returns an error.
func (t *AuditTrail) Record(ctx context.Context, rec *models.WebhookAuditRecord) {
	t.logger.Info("Webhook delivery",
		zap.String("event_id", rec.EventID),
		zap.String("event_type", rec.EventType),
		zap.String("outcome", rec.Outcome),
		zap.Int("status_code", rec.StatusCode),
		zap.Int64("duration_ms", rec.DurationMS))

	if t.producer != nil {
		if err := t.producer.PublishJSON(ctx, "event-"+rec.EventID, rec); err != nil {
			t.logger.Warn("Failed to publish audit record", zap.Error(err))
		}
	}
	if t.store != nil {
		if err := t.store.InsertWebhookAudit(ctx, rec); err != nil {
			t.logger.Warn("Failed to persist audit record", zap.Error(err))
		}
	}
}

// ResyncPublisher queues failed inventory finalizations for the resync
// worker.
type ResyncPublisher struct {
	producer *Producer
}

// NewResyncPublisher creates a resync publisher
func NewResyncPublisher(producer *Producer) *ResyncPublisher {
	return &ResyncPublisher{producer: producer}
}

// PublishInventoryResync publishes a resync event, keyed by order id.
func (p *ResyncPublisher) PublishInventoryResync(ctx context.Context, event *models.InventoryResyncEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return p.producer.PublishJSON(ctx, key, event)
}
