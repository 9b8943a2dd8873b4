package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/shoplinehq/shopline-backend/pkg/config"
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	retrieveBaseBackoff = 200 * time.Millisecond
	retrieveMaxRetries  = 3
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// StripeClient implements Gateway on top of Stripe payment intents.
type StripeClient struct {
	environment string
}

// NewStripeClient initializes Stripe once with the configured secret and env.
func NewStripeClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*StripeClient, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &StripeClient{environment: env}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *StripeClient) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateAuthorization creates a payment intent and returns its client secret.
// Not retried: a repeated create could authorize the customer twice.
func (c *StripeClient) CreateAuthorization(ctx context.Context, amountCents int64, currency string, metadata Metadata) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(strings.ToLower(currency)),
	}
	params.Context = ctx
	for k, v := range metadata.ToMap() {
		params.AddMetadata(k, v)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create payment intent")
	}
	return intent.ClientSecret, nil
}

// RetrieveAuthorization fetches the status of a payment intent. The read is
// idempotent, so transient gateway failures are retried with backoff.
func (c *StripeClient) RetrieveAuthorization(ctx context.Context, reference string) (*Authorization, error) {
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	var intent *stripe.PaymentIntent
	backoff := retry.WithMaxRetries(retrieveMaxRetries, retry.NewExponential(retrieveBaseBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		got, err := paymentintent.Get(reference, params)
		if err != nil {
			return retry.RetryableError(err)
		}
		intent = got
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to verify payment")
	}

	return &Authorization{
		Reference:    intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
		Succeeded:    intent.Status == stripe.PaymentIntentStatusSucceeded,
		Metadata:     MetadataFromMap(intent.Metadata),
	}, nil
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
