package reaper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/shoplinehq/shopline-backend/internal/orders"
	"github.com/shoplinehq/shopline-backend/internal/transactions"
	"github.com/shoplinehq/shopline-backend/pkg/enums"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
	"github.com/shoplinehq/shopline-backend/pkg/metrics"
)

const defaultBatchSize = 100

// cacheDeleter drops a cart's cached entry once its checkout is dead.
type cacheDeleter interface {
	Delete(ctx context.Context, cartID uuid.UUID) error
}

// CheckoutJobParams configure the stale checkout job.
type CheckoutJobParams struct {
	Logger       *logger.Logger
	Orders       orders.Repository
	Transactions transactions.Repository
	CartCache    cacheDeleter
	SummaryCache cacheDeleter
	Metrics      *metrics.JobMetrics
	PendingTTL   time.Duration
	BatchSize    int
}

// NewCheckoutJob builds the job that cancels stale pending orders and fails
// the pending transactions left behind by abandoned checkouts.
func NewCheckoutJob(params CheckoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.CartCache == nil {
		return nil, fmt.Errorf("cart cache required")
	}
	if params.SummaryCache == nil {
		return nil, fmt.Errorf("summary cache required")
	}
	if params.PendingTTL <= 0 {
		return nil, fmt.Errorf("pending ttl required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &checkoutJob{
		logg:         params.Logger,
		orders:       params.Orders,
		transactions: params.Transactions,
		cartCache:    params.CartCache,
		summaryCache: params.SummaryCache,
		metrics:      params.Metrics,
		pendingTTL:   params.PendingTTL,
		batchSize:    batchSize,
		now:          time.Now,
	}, nil
}

type checkoutJob struct {
	logg         *logger.Logger
	orders       orders.Repository
	transactions transactions.Repository
	cartCache    cacheDeleter
	summaryCache cacheDeleter
	metrics      *metrics.JobMetrics
	pendingTTL   time.Duration
	batchSize    int
	now          func() time.Time
}

func (j *checkoutJob) Name() string { return "stale-checkout" }

func (j *checkoutJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.cancelPendingOrders(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.failPendingTransactions(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *checkoutJob) cancelPendingOrders(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.pendingTTL)
	stale, err := j.orders.FindPendingBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var errs []error
	count := 0
	for _, order := range stale {
		moved, err := j.orders.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
		if err != nil {
			errs = append(errs, fmt.Errorf("cancel order %s: %w", order.ID, err))
			continue
		}
		// Confirmed between the scan and the update; leave it alone.
		if !moved {
			continue
		}
		j.dropCaches(ctx, order.CartID)
		count++
	}
	j.metrics.AddCancelledOrders(count)
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "order cancellation loop complete")
	return multierr.Combine(errs...)
}

func (j *checkoutJob) failPendingTransactions(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.pendingTTL)
	stale, err := j.transactions.FindPendingBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query stale pending transactions: %w", err)
	}

	var errs []error
	count := 0
	for _, transaction := range stale {
		moved, err := j.transactions.TransitionStatus(ctx, transaction.ID, enums.TransactionStatusPending, enums.TransactionStatusFailed)
		if err != nil {
			errs = append(errs, fmt.Errorf("fail transaction %s: %w", transaction.ID, err))
			continue
		}
		if !moved {
			continue
		}
		count++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "transaction expiry loop complete")
	return multierr.Combine(errs...)
}

func (j *checkoutJob) dropCaches(ctx context.Context, cartID uuid.UUID) {
	if err := j.summaryCache.Delete(ctx, cartID); err != nil {
		j.logg.Error(ctx, "failed to drop stale order summary", err)
	}
	if err := j.cartCache.Delete(ctx, cartID); err != nil {
		j.logg.Error(ctx, "failed to drop stale cart snapshot", err)
	}
}
