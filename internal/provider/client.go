package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"payment-reconciler/internal/models"
	"payment-reconciler/internal/util"

	"go.uber.org/zap"
)

// Client talks to the external catalog/payments provider. Calls are
// synchronous; the only timeout is the HTTP client's. Transport failures and
// provider 5xx responses surface as models.ErrProviderUnavailable so callers
// can lean on the processor's redelivery semantics.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	locationID string
	logger     *zap.Logger
}

// NewClient creates a provider client.
func NewClient(baseURL, accessToken, locationID string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      accessToken,
		locationID: locationID,
		logger:     util.GetLogger(),
	}
}

type orderEnvelope struct {
	Order *models.Order `json:"order"`
}

type paymentEnvelope struct {
	Payment *models.Payment `json:"payment"`
}

type customersEnvelope struct {
	Customers []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"customers"`
}

type customerEnvelope struct {
	Customer struct {
		ID string `json:"id"`
	} `json:"customer"`
}

type errorEnvelope struct {
	Errors []struct {
		Category string `json:"category"`
		Code     string `json:"code"`
		Detail   string `json:"detail"`
	} `json:"errors"`
}

// RetrieveOrder fetches an order by id.
func (c *Client) RetrieveOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var env orderEnvelope
	if err := c.do(ctx, http.MethodGet, "/v2/orders/"+orderID, nil, &env); err != nil {
		if apiErr, ok := err.(*apiError); ok && apiErr.status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, orderID)
		}
		return nil, err
	}
	if env.Order == nil {
		return nil, fmt.Errorf("%w: empty order response for %s", models.ErrOrderNotFound, orderID)
	}
	return env.Order, nil
}

// CreatePayment creates a payment keyed by the caller's idempotency key, so
// client-side retries of the same attempt cannot double-charge.
func (c *Client) CreatePayment(ctx context.Context, req *models.PaymentRequest) (*models.Payment, error) {
	var env paymentEnvelope
	if err := c.do(ctx, http.MethodPost, "/v2/payments", req, &env); err != nil {
		if apiErr, ok := err.(*apiError); ok && apiErr.status < http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %s", models.ErrPaymentDeclined, apiErr.detail)
		}
		return nil, err
	}
	if env.Payment == nil {
		return nil, fmt.Errorf("empty payment response for order %s", req.OrderID)
	}
	return env.Payment, nil
}

type batchChangeRequest struct {
	IdempotencyKey string            `json:"idempotency_key"`
	Changes        []inventoryChange `json:"changes"`
}

type inventoryChange struct {
	Type       string                      `json:"type"`
	Adjustment *models.InventoryAdjustment `json:"adjustment"`
}

// BatchChangeInventory submits a batch of inventory adjustments in one call.
// The token protects against duplicate submission of this batch only.
func (c *Client) BatchChangeInventory(ctx context.Context, token string, adjustments []models.InventoryAdjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	changes := make([]inventoryChange, 0, len(adjustments))
	for i := range adjustments {
		if adjustments[i].LocationID == "" {
			adjustments[i].LocationID = c.locationID
		}
		changes = append(changes, inventoryChange{Type: "ADJUSTMENT", Adjustment: &adjustments[i]})
	}

	req := batchChangeRequest{IdempotencyKey: token, Changes: changes}
	return c.do(ctx, http.MethodPost, "/v2/inventory/changes/batch-create", req, nil)
}

type customerSearchRequest struct {
	Query struct {
		Filter struct {
			EmailAddress struct {
				Exact string `json:"exact"`
			} `json:"email_address"`
		} `json:"filter"`
	} `json:"query"`
}

// SearchCustomerByEmail returns the id of an existing customer with that
// exact email, or empty string when none exists.
func (c *Client) SearchCustomerByEmail(ctx context.Context, email string) (string, error) {
	var req customerSearchRequest
	req.Query.Filter.EmailAddress.Exact = email

	var env customersEnvelope
	if err := c.do(ctx, http.MethodPost, "/v2/customers/search", req, &env); err != nil {
		return "", err
	}
	if len(env.Customers) == 0 {
		return "", nil
	}
	return env.Customers[0].ID, nil
}

// CreateCustomer creates a customer record for an email address.
func (c *Client) CreateCustomer(ctx context.Context, email string) (string, error) {
	body := map[string]string{"email_address": email}
	var env customerEnvelope
	if err := c.do(ctx, http.MethodPost, "/v2/customers", body, &env); err != nil {
		return "", err
	}
	return env.Customer.ID, nil
}

// apiError carries the provider's 4xx response details.
type apiError struct {
	status int
	detail string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.status, e.detail)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", models.ErrProviderUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s %s returned %d", models.ErrProviderUnavailable, method, path, resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var env errorEnvelope
		detail := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && len(env.Errors) > 0 {
			detail = env.Errors[0].Detail
			if detail == "" {
				detail = env.Errors[0].Code
			}
		}
		c.logger.Warn("Provider request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", detail))
		return &apiError{status: resp.StatusCode, detail: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}
