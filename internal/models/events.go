package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Webhook event types the dispatcher knows about. Anything else is
// acknowledged and dropped so the processor does not retry it.
const (
	EventTypeOrderUpdated          = "order.updated"
	EventTypePaymentUpdated        = "payment.updated"
	EventTypeInventoryCountUpdated = "inventory.count.updated"
	EventTypeCustomerUpdated       = "customer.updated"
)

var supportedEventTypes = map[string]struct{}{
	EventTypeOrderUpdated:          {},
	EventTypePaymentUpdated:        {},
	EventTypeInventoryCountUpdated: {},
	EventTypeCustomerUpdated:       {},
}

// SupportedEventType reports whether the dispatcher has a handler for t.
func SupportedEventType(t string) bool {
	_, ok := supportedEventTypes[t]
	return ok
}

// WebhookEvent is the envelope the payment processor delivers. The event id
// is NOT unique per delivery attempt; redeliveries reuse it.
type WebhookEvent struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	CreatedAt  time.Time   `json:"created_at"`
	MerchantID string      `json:"merchant_id"`
	Data       WebhookData `json:"data"`
}

// WebhookData wraps the polymorphic payload, keyed by Type.
type WebhookData struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Object json.RawMessage `json:"object"`
}

// Validate enforces the structural invariants the gateway requires before
// dispatching.
func (e *WebhookEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("webhook event missing id")
	}
	if e.Type == "" {
		return fmt.Errorf("webhook event missing type")
	}
	if e.Data.Type == "" {
		return fmt.Errorf("webhook event missing data.type")
	}
	if e.Data.ID == "" {
		return fmt.Errorf("webhook event missing data.id")
	}
	return nil
}

// EventObject is the decoded form of WebhookData.Object. One concrete type
// exists per data.type; the dispatcher switches exhaustively over them.
type EventObject interface {
	isEventObject()
}

// OrderPayload is data.object for data.type == "order".
type OrderPayload struct {
	ID          string   `json:"id"`
	ReferenceID string   `json:"reference_id,omitempty"`
	State       string   `json:"state"`
	Version     int64    `json:"version"`
	PaymentIDs  []string `json:"payment_ids,omitempty"`
}

// PaymentPayload is data.object for data.type == "payment".
type PaymentPayload struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	AmountMoney Money  `json:"amount_money"`
}

// InventoryCountPayload is data.object for data.type == "inventory_count".
type InventoryCountPayload struct {
	CatalogObjectID string `json:"catalog_object_id"`
	LocationID      string `json:"location_id"`
	State           string `json:"state"`
	Quantity        int    `json:"quantity"`
}

// CustomerPayload is data.object for data.type == "customer".
type CustomerPayload struct {
	ID    string `json:"id"`
	Email string `json:"email_address,omitempty"`
}

func (OrderPayload) isEventObject()          {}
func (PaymentPayload) isEventObject()        {}
func (InventoryCountPayload) isEventObject() {}
func (CustomerPayload) isEventObject()       {}

// DecodeObject parses Data.Object into the variant matching Data.Type.
func (e *WebhookEvent) DecodeObject() (EventObject, error) {
	switch e.Data.Type {
	case "order":
		var p OrderPayload
		if err := json.Unmarshal(e.Data.Object, &p); err != nil {
			return nil, fmt.Errorf("failed to decode order payload: %w", err)
		}
		return p, nil
	case "payment":
		var p PaymentPayload
		if err := json.Unmarshal(e.Data.Object, &p); err != nil {
			return nil, fmt.Errorf("failed to decode payment payload: %w", err)
		}
		return p, nil
	case "inventory_count":
		var p InventoryCountPayload
		if err := json.Unmarshal(e.Data.Object, &p); err != nil {
			return nil, fmt.Errorf("failed to decode inventory payload: %w", err)
		}
		return p, nil
	case "customer":
		var p CustomerPayload
		if err := json.Unmarshal(e.Data.Object, &p); err != nil {
			return nil, fmt.Errorf("failed to decode customer payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown data type: %s", e.Data.Type)
	}
}

// InventoryResyncEvent queues a failed inventory finalization for the
// resync worker.
type InventoryResyncEvent struct {
	EventID   string    `json:"event_id"`
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id"`
	Attempt   int       `json:"attempt"`
	LastError string    `json:"last_error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
