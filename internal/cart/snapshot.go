package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
	"github.com/shoplinehq/shopline-backend/pkg/redis"
	"github.com/shoplinehq/shopline-backend/pkg/security"
)

// SnapshotItem is one priced cart line inside a snapshot.
type SnapshotItem struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	PriceCents     int       `json:"price_cents"`
}

// Snapshot is the priced view of a cart handed to the checkout pipeline and
// cached under the cart key.
type Snapshot struct {
	CartID        uuid.UUID      `json:"id"`
	UserID        uuid.UUID      `json:"user_id"`
	Items         []SnapshotItem `json:"items"`
	SubTotalCents int            `json:"sub_total_cents"`
	TotalProducts int            `json:"total_products"`
}

// SnapshotCache stores priced cart snapshots. Payloads carry prices, so they
// are encrypted before touching the shared cache.
type SnapshotCache interface {
	Get(ctx context.Context, cartID uuid.UUID) (*Snapshot, error)
	Put(ctx context.Context, snapshot *Snapshot) error
	Delete(ctx context.Context, cartID uuid.UUID) error
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(cartID string) string
}

type snapshotCache struct {
	store  cacheStore
	cipher *security.Cipher
	ttl    time.Duration
}

// NewSnapshotCache builds the encrypted snapshot cache.
func NewSnapshotCache(store cacheStore, cipher *security.Cipher, ttl time.Duration) (SnapshotCache, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store required")
	}
	if cipher == nil {
		return nil, fmt.Errorf("snapshot cipher required")
	}
	return &snapshotCache{store: store, cipher: cipher, ttl: ttl}, nil
}

// Get returns the cached snapshot, or nil on a cache miss.
func (c *snapshotCache) Get(ctx context.Context, cartID uuid.UUID) (*Snapshot, error) {
	payload, err := c.store.Get(ctx, c.store.CartKey(cartID.String()))
	if err != nil {
		if redis.IsMiss(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart snapshot")
	}

	plaintext, err := c.cipher.Decrypt(payload)
	if err != nil {
		// Undecryptable entries are treated as misses so a recompute heals them.
		return nil, nil
	}
	var snapshot Snapshot
	if err := json.Unmarshal(plaintext, &snapshot); err != nil {
		return nil, nil
	}
	return &snapshot, nil
}

func (c *snapshotCache) Put(ctx context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "snapshot required")
	}
	plaintext, err := json.Marshal(snapshot)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart snapshot")
	}
	payload, err := c.cipher.Encrypt(plaintext)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encrypt cart snapshot")
	}
	key := c.store.CartKey(snapshot.CartID.String())
	if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write cart snapshot")
	}
	return nil
}

func (c *snapshotCache) Delete(ctx context.Context, cartID uuid.UUID) error {
	if err := c.store.Del(ctx, c.store.CartKey(cartID.String())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart snapshot")
	}
	return nil
}
