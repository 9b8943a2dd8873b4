package transactions

import (
	"context"

	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
	"github.com/shoplinehq/shopline-backend/pkg/sequence"
)

// SeedFromLatestNumber adapts the repository into the sequence seed contract.
func SeedFromLatestNumber(repo Repository) sequence.SeedFunc {
	return func(ctx context.Context) (int, error) {
		number, err := repo.LatestTransactionNumber(ctx)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest transaction number")
		}
		if number == "" {
			return 0, nil
		}
		spec, err := sequence.SpecFor(sequence.CategoryTransaction)
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
		taken, err := repo.TransactionNumberExists(ctx, identifier)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check transaction number")
		}
		return taken, nil
	}
}
