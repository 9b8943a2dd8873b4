package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplinehq/shopline-backend/pkg/db"
	"github.com/shoplinehq/shopline-backend/pkg/db/models"
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
	"github.com/shoplinehq/shopline-backend/pkg/sequence"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// skuIssuer mints catalog SKUs; satisfied by *sequence.Issuer.
type skuIssuer interface {
	Next(ctx context.Context, discriminator string) (string, error)
}

// Service creates catalog products with generated SKUs and an initial stock row.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// CreateProductInput carries the fields for a new product and its stock.
type CreateProductInput struct {
	CategoryID       int
	Name             string
	Description      string
	Quantity         int
	CostPriceCents   int
	RetailPriceCents int
}

type service struct {
	repo   Repository
	issuer skuIssuer
	tx     txRunner
}

// NewService builds the catalog service.
func NewService(repo Repository, issuer skuIssuer, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("sku issuer required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, issuer: issuer, tx: tx}, nil
}

// SeedFromLatestSKU adapts the repository into the sequence seed contract.
func SeedFromLatestSKU(repo Repository) sequence.SeedFunc {
	return func(ctx context.Context) (int, error) {
		sku, err := repo.LatestSKU(ctx)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest sku")
		}
		if sku == "" {
			return 0, nil
		}
		spec, err := sequence.SpecFor(sequence.CategorySKU)
		if err != nil {
			return 0, err
		}
		seq, err := spec.Extract(sku)
		if err != nil {
			// Malformed legacy rows seed from zero rather than blocking issuance.
			return 0, nil
		}
		return seq, nil
	}
}

// ExistsSKU adapts the repository into the sequence existence contract.
func ExistsSKU(repo Repository) sequence.ExistsFunc {
	return func(ctx context.Context, identifier string) (bool, error) {
		taken, err := repo.SKUExists(ctx, identifier)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sku")
		}
		return taken, nil
	}
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if input.CategoryID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id required")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	sku, err := s.issuer.Next(ctx, strconv.Itoa(input.CategoryID))
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		CategoryID:  input.CategoryID,
		Name:        strings.TrimSpace(input.Name),
		SKU:         sku,
		Description: input.Description,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, product); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		stockRow := &models.Stock{
			ProductID:        product.ID,
			Quantity:         input.Quantity,
			CostPriceCents:   input.CostPriceCents,
			RetailPriceCents: input.RetailPriceCents,
		}
		if err := tx.WithContext(ctx).Create(stockRow).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock")
		}
		product.Stock = stockRow
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}
