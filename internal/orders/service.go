package orders

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
	"github.com/shoplinehq/shopline-backend/pkg/sequence"
)

// ShippingDetails carries the delivery fields checkout captures.
type ShippingDetails struct {
	StreetAddress string
	City          string
	State         string
	PostalCode    string
	Country       string
}

// Validate rejects incomplete shipping details.
func (d ShippingDetails) Validate() error {
	missing := []string{}
	for field, value := range map[string]string{
		"street_address": d.StreetAddress,
		"city":           d.City,
		"state":          d.State,
		"postal_code":    d.PostalCode,
		"country":        d.Country,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping details incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

// FromAddress copies a saved billing address into shipping details.
func FromAddress(addr *models.Address) ShippingDetails {
	if addr == nil {
		return ShippingDetails{}
	}
	return ShippingDetails{
		StreetAddress: addr.StreetAddress,
		City:          addr.City,
		State:         addr.State,
		PostalCode:    addr.PostalCode,
		Country:       addr.Country,
	}
}

// StoreShippingDetails persists a shipping snapshot for the order, reusing an
// identical snapshot when the same details were already stored.
func StoreShippingDetails(ctx context.Context, repo Repository, order *models.Order, details ShippingDetails) (*models.ShippingAddress, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}

	candidate := &models.ShippingAddress{
		OrderID:       order.ID,
		UserID:        order.UserID,
		StreetAddress: strings.TrimSpace(details.StreetAddress),
		City:          strings.TrimSpace(details.City),
		State:         strings.TrimSpace(details.State),
		PostalCode:    strings.TrimSpace(details.PostalCode),
		Country:       strings.TrimSpace(details.Country),
	}

	existing, err := repo.FindMatchingShippingAddress(ctx, candidate)
	if err == nil {
		return existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping address")
	}

	created, err := repo.CreateShippingAddress(ctx, candidate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipping address")
	}
	return created, nil
}

// SeedFromLatestNumber adapts the repository into the sequence seed contract.
func SeedFromLatestNumber(repo Repository) sequence.SeedFunc {
	return func(ctx context.Context) (int, error) {
		number, err := repo.LatestOrderNumber(ctx)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest order number")
		}
		if number == "" {
			return 0, nil
		}
		spec, err := sequence.SpecFor(sequence.CategoryOrder)
		if err != nil {
			return 0, err
		}
		seq, err := spec.Extract(number)
		if err != nil {
			return 0, nil
		}
		return seq, nil
	}
}

// ExistsNumber adapts the repository into the sequence existence contract.
func ExistsNumber(repo Repository) sequence.ExistsFunc {
	return func(ctx context.Context, identifier string) (bool, error) {
		taken, err := repo.OrderNumberExists(ctx, identifier)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order number")
		}
		return taken, nil
	}
}
