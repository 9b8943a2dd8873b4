package payments

import (
	"context"
)

// Metadata round-trips local identifiers through the payment processor. The
// gateway echoes it back on confirmation, and it is the only linkage the
// confirmation step has to local state.
type Metadata struct {
	TransactionID     string
	OrderID           string
	CartID            string
	UserID            string
	TransactionNumber string
	Status            string
	TransactionDate   string
}

const (
	metaTransactionID     = "transaction_id"
	metaOrderID           = "order_id"
	metaCartID            = "cart_id"
	metaUserID            = "user_id"
	metaTransactionNumber = "transaction_number"
	metaStatus            = "status"
	metaTransactionDate   = "transaction_date"
)

// ToMap flattens the metadata for the wire.
func (m Metadata) ToMap() map[string]string {
	return map[string]string{
		metaTransactionID:     m.TransactionID,
		metaOrderID:           m.OrderID,
		metaCartID:            m.CartID,
		metaUserID:            m.UserID,
		metaTransactionNumber: m.TransactionNumber,
		metaStatus:            m.Status,
		metaTransactionDate:   m.TransactionDate,
	}
}

// MetadataFromMap rebuilds metadata echoed back by the processor.
func MetadataFromMap(values map[string]string) Metadata {
	return Metadata{
		TransactionID:     values[metaTransactionID],
		OrderID:           values[metaOrderID],
		CartID:            values[metaCartID],
		UserID:            values[metaUserID],
		TransactionNumber: values[metaTransactionNumber],
		Status:            values[metaStatus],
		TransactionDate:   values[metaTransactionDate],
	}
}

// Authorization is the gateway's view of one payment.
type Authorization struct {
	Reference    string
	ClientSecret string
	Status       string
	Succeeded    bool
	Metadata     Metadata
}

// Gateway is the narrow payment-processor contract the checkout pipeline
// depends on. CreateAuthorization must never be retried by callers; a repeat
// risks a duplicate authorization. RetrieveAuthorization is an idempotent
// read and implementations retry it internally.
type Gateway interface {
	CreateAuthorization(ctx context.Context, amountCents int64, currency string, metadata Metadata) (string, error)
	RetrieveAuthorization(ctx context.Context, reference string) (*Authorization, error)
}
