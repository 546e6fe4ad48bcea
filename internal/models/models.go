package models

import (
	"fmt"
	"time"
)

// Money is an amount in the smallest currency unit.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Order mirrors the catalog provider's order resource.
type Order struct {
	ID          string          `json:"id"`
	ReferenceID string          `json:"reference_id,omitempty"`
	State       string          `json:"state"`
	Version     int64           `json:"version"`
	LineItems   []OrderLineItem `json:"line_items"`
	PaymentIDs  []string        `json:"payment_ids,omitempty"`
	TotalMoney  Money           `json:"total_money"`
}

// OrderLineItem is one purchasable line on an order.
type OrderLineItem struct {
	UID             string `json:"uid"`
	CatalogObjectID string `json:"catalog_object_id"`
	Name            string `json:"name,omitempty"`
	Quantity        int    `json:"quantity"`
	BasePrice       Money  `json:"base_price_money"`
}

// Payment is a provider payment attached to an order.
type Payment struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Status      string    `json:"status"`
	AmountMoney Money     `json:"amount_money"`
	CreatedAt   time.Time `json:"created_at"`
}

// PaymentRequest carries everything the provider needs to create a payment.
type PaymentRequest struct {
	SourceID       string `json:"source_id"`
	OrderID        string `json:"order_id"`
	CustomerID     string `json:"customer_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
	Note           string `json:"note,omitempty"`
	Amount         Money  `json:"amount_money"`
}

// Preorder tracks reservation capacity for a not-yet-released product.
type Preorder struct {
	ProductID       string    `db:"product_id" json:"product_id"`
	ReleaseDate     time.Time `db:"release_date" json:"release_date"`
	CurrentQuantity int       `db:"current_quantity" json:"current_quantity"`
	MaxQuantity     int       `db:"max_quantity" json:"max_quantity"`
	IsPreorder      bool      `db:"is_preorder" json:"is_preorder"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Remaining reports how many units can still be reserved.
func (p *Preorder) Remaining() int {
	return p.MaxQuantity - p.CurrentQuantity
}

// IdempotencyRecord marks a side effect as applied.
// At most one record exists per ledger key.
type IdempotencyRecord struct {
	LedgerKey       string    `db:"ledger_key"`
	AppliedQuantity int       `db:"applied_quantity"`
	AppliedAt       time.Time `db:"applied_at"`
}

// Inventory states tracked by the catalog provider.
const (
	InventoryStateInStock = "IN_STOCK"
	InventoryStateSold    = "SOLD"
)

// InventoryAdjustment is a state-transition intent sent to the provider.
// It lives only for the duration of one reconciliation pass.
type InventoryAdjustment struct {
	CatalogObjectID string    `json:"catalog_object_id"`
	LocationID      string    `json:"location_id"`
	FromState       string    `json:"from_state"`
	ToState         string    `json:"to_state"`
	Quantity        int       `json:"quantity"`
	OccurredAt      time.Time `json:"occurred_at"`
	Reason          string    `json:"reason"`
}

// Order states
const (
	OrderStateOpen      = "OPEN"
	OrderStateCompleted = "COMPLETED"
	OrderStateCanceled  = "CANCELED"
)

// Payment statuses
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
)

// Webhook audit outcomes
const (
	AuditOutcomeProcessed        = "processed"
	AuditOutcomeIgnored          = "ignored"
	AuditOutcomeDuplicate        = "duplicate"
	AuditOutcomeMissingSignature = "missing_signature"
	AuditOutcomeInvalidSignature = "invalid_signature"
	AuditOutcomeMalformed        = "malformed"
	AuditOutcomeFailed           = "failed"
)

// WebhookAuditRecord is one structured audit entry per webhook delivery.
type WebhookAuditRecord struct {
	ID         string    `db:"id" json:"id"`
	EventID    string    `db:"event_id" json:"event_id"`
	EventType  string    `db:"event_type" json:"event_type"`
	Outcome    string    `db:"outcome" json:"outcome"`
	StatusCode int       `db:"status_code" json:"status_code"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`
}

// PreorderLedgerKey is the key both reconciliation paths share for a
// preorder delta, so whichever path runs first wins.
func PreorderLedgerKey(orderID, productID string) string {
	return fmt.Sprintf("order:%s:product:%s", orderID, productID)
}

// InventoryLedgerKey guards the inventory finalization of one order.
func InventoryLedgerKey(orderID string) string {
	return fmt.Sprintf("order:%s:inventory", orderID)
}
