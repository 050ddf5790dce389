package db

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reride/internal/billing"
	"reride/internal/types"
)

// CatalogStore implements billing.CatalogStore: plain reads off the pool,
// mutations inside a transaction that locks the plan rows for the duration.
type CatalogStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ billing.CatalogStore = (*CatalogStore)(nil)

// NewCatalogStore creates a CatalogStore over the given pool.
func NewCatalogStore(pool *pgxpool.Pool, logger *slog.Logger) *CatalogStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogStore{pool: pool, logger: logger}
}

// Plans returns the stored plan definitions without locking.
func (s *CatalogStore) Plans(ctx context.Context) ([]types.PlanDefinition, error) {
	return NewPlanRepo(s.pool, s.logger).List(ctx)
}

// Mutate runs fn against a locked view of the catalog. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *CatalogStore) Mutate(ctx context.Context, fn func(tx billing.CatalogTx) error) error {
	return WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(catalogTx{repo: NewPlanRepo(tx, s.logger)})
	})
}

type catalogTx struct {
	repo *PlanRepo
}

func (t catalogTx) Plans(ctx context.Context) ([]types.PlanDefinition, error) {
	return t.repo.ListForUpdate(ctx)
}

func (t catalogTx) Upsert(ctx context.Context, plan types.PlanDefinition) error {
	return t.repo.Upsert(ctx, plan)
}

func (t catalogTx) Delete(ctx context.Context, id types.PlanID) error {
	return t.repo.Delete(ctx, id)
}
