package service

import (
	"context"
	"fmt"
	"time"

	"payment-reconciler/internal/models"
	"payment-reconciler/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentCompletionService is the synchronous counterpart of the webhook
// path: checkout calls Charge directly, and the same reconciliation runs
// against the same ledger afterwards.
type PaymentCompletionService struct {
	provider   CatalogProvider
	reconciler *OrderReconciler
	logger     *zap.Logger
}

// NewPaymentCompletionService creates a new payment completion service
func NewPaymentCompletionService(provider CatalogProvider, reconciler *OrderReconciler) *PaymentCompletionService {
	return &PaymentCompletionService{
		provider:   provider,
		reconciler: reconciler,
		logger:     util.GetLogger(),
	}
}

// ChargeRequest is a checkout completion call.
type ChargeRequest struct {
	OrderID        string `json:"order_id" binding:"required"`
	SourceID       string `json:"source_id" binding:"required"`
	CustomerID     string `json:"customer_id,omitempty"`
	Email          string `json:"email,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ChargeResponse reports the created payment.
type ChargeResponse struct {
	PaymentID string       `json:"payment_id"`
	Status    string       `json:"status"`
	Amount    models.Money `json:"amount_money"`
}

// Charge creates the payment for an order and applies the inventory and
// preorder side effects. The amount always comes from the provider's view of
// the order, never from the client. Side-effect failures after a successful
// payment are non-fatal to the response.
func (s *PaymentCompletionService) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentCompletionService.Charge")
	defer span.End()

	start := time.Now()
	defer func() {
		util.PaymentChargeLatency.Observe(time.Since(start).Seconds())
	}()

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	order, err := s.provider.RetrieveOrder(ctx, req.OrderID)
	if err != nil {
		util.PaymentsFailedTotal.WithLabelValues("order_lookup").Inc()
		return nil, fmt.Errorf("failed to resolve order %s: %w", req.OrderID, err)
	}
	if order.TotalMoney.Amount <= 0 {
		// Never guess an amount.
		util.PaymentsFailedTotal.WithLabelValues("unresolved_amount").Inc()
		return nil, fmt.Errorf("order %s has no resolvable total amount", req.OrderID)
	}

	customerID := s.resolveCustomer(ctx, req)

	payment, err := s.provider.CreatePayment(ctx, &models.PaymentRequest{
		SourceID:       req.SourceID,
		OrderID:        req.OrderID,
		CustomerID:     customerID,
		IdempotencyKey: req.IdempotencyKey,
		Note:           fmt.Sprintf("order %s", req.OrderID),
		Amount:         order.TotalMoney,
	})
	if err != nil {
		util.PaymentsFailedTotal.WithLabelValues("provider").Inc()
		return nil, err
	}

	util.PaymentsCreatedTotal.Inc()
	s.logger.Info("Payment created",
		zap.String("order_id", req.OrderID),
		zap.String("payment_id", payment.ID),
		zap.String("status", payment.Status))

	// Re-fetch so reconciliation sees the order as the provider recorded it
	// after payment.
	fresh, err := s.provider.RetrieveOrder(ctx, req.OrderID)
	if err != nil {
		s.logger.Warn("Failed to re-fetch order after payment, reconciling with pre-payment snapshot",
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		fresh = order
	}

	s.reconciler.Reconcile(ctx, fresh, payment.ID)

	return &ChargeResponse{
		PaymentID: payment.ID,
		Status:    payment.Status,
		Amount:    payment.AmountMoney,
	}, nil
}

// resolveCustomer finds or creates a customer record for the email when no
// customer id was supplied. Failures are non-fatal; the payment proceeds
// without a customer.
func (s *PaymentCompletionService) resolveCustomer(ctx context.Context, req *ChargeRequest) string {
	if req.CustomerID != "" {
		return req.CustomerID
	}
	if req.Email == "" {
		return ""
	}

	id, err := s.provider.SearchCustomerByEmail(ctx, req.Email)
	if err != nil {
		s.logger.Warn("Customer search failed", zap.Error(err))
		return ""
	}
	if id != "" {
		return id
	}

	id, err = s.provider.CreateCustomer(ctx, req.Email)
	if err != nil {
		s.logger.Warn("Customer creation failed", zap.Error(err))
		return ""
	}
	return id
}
