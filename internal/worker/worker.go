package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"payment-reconciler/internal/broker"
	"payment-reconciler/internal/models"
	"payment-reconciler/internal/redisclient"
	"payment-reconciler/internal/service"
	"payment-reconciler/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ResyncWorker retries inventory finalizations that failed after a
// successful payment. The ledger key for the order is already claimed by
// then, so the webhook path will not re-attempt; this worker is the only
// remaining owner of the correction.
type ResyncWorker struct {
	consumer    *broker.Consumer
	provider    service.CatalogProvider
	adjuster    *service.InventoryAdjuster
	publisher   service.ResyncQueue
	redis       *redisclient.Client
	maxAttempts int
	logger      *zap.Logger
}

// NewResyncWorker creates a new resync worker. redis may be nil; it only
// provides a per-order lock against concurrent retries.
func NewResyncWorker(
	consumer *broker.Consumer,
	provider service.CatalogProvider,
	adjuster *service.InventoryAdjuster,
	publisher service.ResyncQueue,
	redis *redisclient.Client,
	maxAttempts int,
) *ResyncWorker {
	return &ResyncWorker{
		consumer:    consumer,
		provider:    provider,
		adjuster:    adjuster,
		publisher:   publisher,
		redis:       redis,
		maxAttempts: maxAttempts,
		logger:      util.GetLogger(),
	}
}

// Start starts the worker
func (w *ResyncWorker) Start(ctx context.Context) error {
	log.Println("Starting inventory resync worker...")
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// Stop stops the worker
func (w *ResyncWorker) Stop() error {
	log.Println("Stopping inventory resync worker...")
	return w.consumer.Close()
}

// HandleMessage processes one resync event. Returning an error leaves the
// message uncommitted for redelivery.
func (w *ResyncWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.InventoryResyncEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		w.logger.Error("Failed to unmarshal resync event", zap.Error(err))
		// Poison message; committing it is the only way forward.
		return nil
	}

	if event.Attempt > w.maxAttempts {
		util.InventoryResyncDropped.Inc()
		w.logger.Error("Dropping inventory resync after max attempts",
			zap.String("order_id", event.OrderID),
			zap.Int("attempts", event.Attempt-1),
			zap.String("last_error", event.LastError))
		return nil
	}

	if w.redis != nil {
		locked, err := w.redis.AcquireLock(ctx, "resync:"+event.OrderID, time.Minute)
		if err != nil {
			w.logger.Warn("Resync lock acquire failed", zap.Error(err))
		} else if !locked {
			// Another worker owns this order right now; requeue.
			return w.requeue(ctx, &event, "lock held")
		} else {
			defer func() {
				if err := w.redis.ReleaseLock(context.Background(), "resync:"+event.OrderID); err != nil {
					w.logger.Warn("Resync lock release failed", zap.Error(err))
				}
			}()
		}
	}

	util.InventoryResyncRetries.Inc()
	w.logger.Info("Retrying inventory finalization",
		zap.String("order_id", event.OrderID),
		zap.Int("attempt", event.Attempt))

	order, err := w.provider.RetrieveOrder(ctx, event.OrderID)
	if err != nil {
		return w.requeue(ctx, &event, err.Error())
	}

	if err := w.adjuster.Finalize(ctx, order, event.PaymentID); err != nil {
		return w.requeue(ctx, &event, err.Error())
	}

	w.logger.Info("Inventory resync succeeded",
		zap.String("order_id", event.OrderID),
		zap.Int("attempt", event.Attempt))
	return nil
}

func (w *ResyncWorker) requeue(ctx context.Context, event *models.InventoryResyncEvent, cause string) error {
	next := &models.InventoryResyncEvent{
		EventID:   event.EventID,
		OrderID:   event.OrderID,
		PaymentID: event.PaymentID,
		Attempt:   event.Attempt + 1,
		LastError: cause,
		Timestamp: time.Now(),
	}
	if err := w.publisher.PublishInventoryResync(ctx, next); err != nil {
		// Keep the original message uncommitted instead.
		return fmt.Errorf("failed to requeue resync for order %s: %w", event.OrderID, err)
	}
	return nil
}
