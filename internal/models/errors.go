package models

import "errors"

// Sentinel errors for the reconciliation core. Callers discriminate with
// errors.Is; everything else is wrapped with fmt.Errorf("%w").
var (
	// ErrNotPreorderItem means no preorder row exists for any candidate
	// product id form. For most callers this is "nothing to do".
	ErrNotPreorderItem = errors.New("not a preorder item")

	// ErrCapacityExceeded rejects a whole delta that would push
	// current_quantity past max_quantity.
	ErrCapacityExceeded = errors.New("preorder capacity exceeded")

	// ErrOrderNotFound is returned when the provider has no such order.
	ErrOrderNotFound = errors.New("order not found")

	// ErrPaymentDeclined is a provider-side rejection of a payment create.
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrProviderUnavailable covers transport failures and provider 5xx
	// responses. Webhook deliveries surface it as 500 so the processor
	// redelivers.
	ErrProviderUnavailable = errors.New("provider unavailable")
)
