package sequence

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
)

// maxAttempts bounds collision retries for a single Next call.
const maxAttempts = 5

// CounterStore is the cache backing sequence counters. The redis client
// satisfies it.
type CounterStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// SeedFunc recovers the last persisted counter for a category by scanning the
// backing store (soft-deleted records included). It returns 0 when no record
// of the category exists yet.
type SeedFunc func(ctx context.Context) (int, error)

// ExistsFunc reports whether an identifier is already persisted.
type ExistsFunc func(ctx context.Context, identifier string) (bool, error)

// Issuer generates unique identifiers for one category. Counters live in the
// cache and are advanced with an atomic increment, so concurrent callers can
// never mint the same candidate from a shared stale read. The persisted-record
// existence check is kept as a safety net around date rollovers and counter
// wraps.
type Issuer struct {
	spec   Spec
	store  CounterStore
	key    string
	ttl    time.Duration
	seed   SeedFunc
	exists ExistsFunc
	now    func() time.Time
}

// IssuerParams wires an Issuer.
type IssuerParams struct {
	Category   Category
	Store      CounterStore
	CounterKey string
	TTL        time.Duration
	Seed       SeedFunc
	Exists     ExistsFunc
	Now        func() time.Time
}

// NewIssuer validates the wiring and builds an Issuer.
func NewIssuer(params IssuerParams) (*Issuer, error) {
	spec, err := SpecFor(params.Category)
	if err != nil {
		return nil, err
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "counter store required")
	}
	if params.CounterKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "counter key required")
	}
	if params.Seed == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "seed func required")
	}
	if params.Exists == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "exists func required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		spec:   spec,
		store:  params.Store,
		key:    params.CounterKey,
		ttl:    params.TTL,
		seed:   params.Seed,
		exists: params.Exists,
		now:    now,
	}, nil
}

// Next mints the next identifier for the category. The discriminator is empty
// for order/transaction numbers; SKU callers pass the product category id.
func (i *Issuer) Next(ctx context.Context, discriminator string) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := i.ensureSeeded(ctx); err != nil {
			return "", err
		}

		raw, err := i.store.Incr(ctx, i.key)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "incrementing sequence counter")
		}
		seq := i.spec.Wrap(raw)
		if seq != int(raw) {
			// Fold the stored counter back into range so it does not grow
			// without bound across wraps.
			if err := i.store.Set(ctx, i.key, strconv.Itoa(seq), i.ttl); err != nil {
				return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resetting wrapped sequence counter")
			}
		}

		identifier := i.spec.Format(i.now(), discriminator, seq)

		taken, err := i.exists(ctx, identifier)
		if err != nil {
			return "", err
		}
		if !taken {
			if i.ttl > 0 {
				if err := i.store.Expire(ctx, i.key, i.ttl); err != nil {
					return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refreshing sequence counter ttl")
				}
			}
			return identifier, nil
		}

		// Collision: move the counter to the colliding value so the next
		// attempt continues past it.
		collided, err := i.spec.Extract(identifier)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "extracting colliding counter")
		}
		if err := i.store.Set(ctx, i.key, strconv.Itoa(collided), i.ttl); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resetting sequence counter after collision")
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "exhausted sequence generation attempts")
}

func (i *Issuer) ensureSeeded(ctx context.Context) error {
	_, err := i.store.Get(ctx, i.key)
	if err == nil {
		return nil
	}
	if !isMiss(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading sequence counter")
	}

	last, err := i.seed(ctx)
	if err != nil {
		return err
	}
	// SETNX keeps the first writer's seed when two callers race past the miss.
	if _, err := i.store.SetNX(ctx, i.key, strconv.Itoa(last), i.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seeding sequence counter")
	}
	return nil
}

func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
