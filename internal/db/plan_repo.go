package db

import (
	"context"
	"log/slog"

	"reride/internal/types"
)

// PlanRepo persists the plan catalog. Built-in plans live in the table
// alongside custom ones so that administrator edits to built-ins survive
// restarts; missing built-ins are backfilled from defaults at load time by
// billing.NewCatalog.
type PlanRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewPlanRepo creates a PlanRepo backed by the given database connection
// (pool or transaction).
func NewPlanRepo(db DBTX, logger *slog.Logger) *PlanRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanRepo{db: db, logger: logger}
}

const planColumns = `id, name, price_cents, listing_limit, featured_credits,
	   free_certifications, features, is_most_popular`

// List returns every stored plan definition, built-ins first, then custom
// plans in creation order.
func (r *PlanRepo) List(ctx context.Context) ([]types.PlanDefinition, error) {
	return r.list(ctx, false)
}

// ListForUpdate returns the stored plans while holding row locks for the
// remainder of the enclosing transaction. Callers use it to serialize the
// catalog capacity check against concurrent plan creation. Must run on a
// pgx.Tx.
func (r *PlanRepo) ListForUpdate(ctx context.Context) ([]types.PlanDefinition, error) {
	return r.list(ctx, true)
}

func (r *PlanRepo) list(ctx context.Context, forUpdate bool) ([]types.PlanDefinition, error) {
	query := `SELECT ` + planColumns + `
		 FROM plans
		 ORDER BY is_builtin DESC, created_at ASC`
	if forUpdate {
		query += `
		 FOR UPDATE`
	}

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list plans", err)
	}
	defer rows.Close()

	var plans []types.PlanDefinition
	for rows.Next() {
		var p types.PlanDefinition
		var limit int
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Price, &limit, &p.FeaturedCredits,
			&p.FreeCertifications, &p.Features, &p.IsMostPopular,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan plan row", err)
		}
		p.ListingLimit = types.ListingLimit(limit)
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read plan rows", err)
	}

	return plans, nil
}

// Upsert inserts the plan or, when the id already exists, overwrites its
// definition. Used both for custom plan creation and built-in plan edits.
func (r *PlanRepo) Upsert(ctx context.Context, plan types.PlanDefinition) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO plans (id, name, price_cents, listing_limit, featured_credits,
		                    free_certifications, features, is_most_popular, is_builtin,
		                    created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name,
		     price_cents = EXCLUDED.price_cents,
		     listing_limit = EXCLUDED.listing_limit,
		     featured_credits = EXCLUDED.featured_credits,
		     free_certifications = EXCLUDED.free_certifications,
		     features = EXCLUDED.features,
		     is_most_popular = EXCLUDED.is_most_popular,
		     updated_at = NOW()`,
		plan.ID,
		plan.Name,
		plan.Price,
		int(plan.ListingLimit),
		plan.FeaturedCredits,
		plan.FreeCertifications,
		plan.Features,
		plan.IsMostPopular,
		plan.ID.IsBuiltin(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert plan", err)
	}
	return nil
}

// Delete removes a plan row. The caller is responsible for refusing built-in
// deletion before calling; this method only reports not-found.
func (r *PlanRepo) Delete(ctx context.Context, id types.PlanID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM plans WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete plan", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPlan, "plan not found", nil)
	}
	return nil
}
