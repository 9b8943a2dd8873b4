package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shoplinehq/shopline-backend/internal/cart"
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
	"github.com/shoplinehq/shopline-backend/pkg/redis"
	"github.com/shoplinehq/shopline-backend/pkg/security"
)

// SummaryAddress is the saved billing address attached to a summary. Nil when
// the user has none saved.
type SummaryAddress struct {
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

// Summary is the priced order summary produced before payment. It is cached
// encrypted under the summary key and is the single source of the amounts a
// checkout charges.
type Summary struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	CartID        uuid.UUID           `json:"cart_id"`
	UserID        uuid.UUID           `json:"user_id"`
	Items         []cart.SnapshotItem `json:"items"`
	SubTotalCents int                 `json:"sub_total_cents"`
	ChargeCents   int                 `json:"charge_cents"`
	TotalCents    int                 `json:"total_cents"`
	Address       *SummaryAddress     `json:"address,omitempty"`
}

// SummaryCache stores priced order summaries, encrypted like cart snapshots.
type SummaryCache interface {
	Get(ctx context.Context, cartID uuid.UUID) (*Summary, error)
	Put(ctx context.Context, summary *Summary) error
	Delete(ctx context.Context, cartID uuid.UUID) error
}

type summaryStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	OrderSummaryKey(cartID string) string
}

type summaryCache struct {
	store  summaryStore
	cipher *security.Cipher
	ttl    time.Duration
}

// NewSummaryCache builds the encrypted summary cache.
func NewSummaryCache(store summaryStore, cipher *security.Cipher, ttl time.Duration) (SummaryCache, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store required")
	}
	if cipher == nil {
		return nil, fmt.Errorf("summary cipher required")
	}
	return &summaryCache{store: store, cipher: cipher, ttl: ttl}, nil
}

// Get returns the cached summary, or nil on a cache miss.
func (c *summaryCache) Get(ctx context.Context, cartID uuid.UUID) (*Summary, error) {
	payload, err := c.store.Get(ctx, c.store.OrderSummaryKey(cartID.String()))
	if err != nil {
		if redis.IsMiss(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read order summary")
	}

	plaintext, err := c.cipher.Decrypt(payload)
	if err != nil {
		return nil, nil
	}
	var summary Summary
	if err := json.Unmarshal(plaintext, &summary); err != nil {
		return nil, nil
	}
	return &summary, nil
}

func (c *summaryCache) Put(ctx context.Context, summary *Summary) error {
	if summary == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "summary required")
	}
	plaintext, err := json.Marshal(summary)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order summary")
	}
	payload, err := c.cipher.Encrypt(plaintext)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encrypt order summary")
	}
	key := c.store.OrderSummaryKey(summary.CartID.String())
	if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write order summary")
	}
	return nil
}

func (c *summaryCache) Delete(ctx context.Context, cartID uuid.UUID) error {
	if err := c.store.Del(ctx, c.store.OrderSummaryKey(cartID.String())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order summary")
	}
	return nil
}
