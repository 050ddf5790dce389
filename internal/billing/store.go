package billing

import (
	"context"

	"reride/internal/types"
)

// CatalogStore is the persistence contract for the plan catalog. Plans reads
// without locking; Mutate runs fn against a transaction-bound view whose
// Plans read holds row locks, serializing the catalog capacity check against
// concurrent creation. db.CatalogStore satisfies it.
type CatalogStore interface {
	Plans(ctx context.Context) ([]types.PlanDefinition, error)
	Mutate(ctx context.Context, fn func(tx CatalogTx) error) error
}

// CatalogTx is the locked catalog view handed to Mutate callbacks.
type CatalogTx interface {
	Plans(ctx context.Context) ([]types.PlanDefinition, error)
	Upsert(ctx context.Context, plan types.PlanDefinition) error
	Delete(ctx context.Context, id types.PlanID) error
}
