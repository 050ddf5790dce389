package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"reride/internal/types"
)

// SellerRepo manages seller accounts and their embedded subscription state.
//
// Plan assignment uses optimistic locking via subscription_version so that a
// concurrent admin assignment and a Stripe webhook cannot silently overwrite
// each other: the loser of the race gets ErrCodeConflictConcurrent and must
// re-read.
type SellerRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewSellerRepo creates a SellerRepo backed by the given database connection
// (pool or transaction).
func NewSellerRepo(db DBTX, logger *slog.Logger) *SellerRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SellerRepo{db: db, logger: logger}
}

// GetByID loads a seller together with its subscription state. Soft-deleted
// sellers are treated as not found.
func (r *SellerRepo) GetByID(ctx context.Context, id string) (*types.Seller, error) {
	var s types.Seller
	err := r.db.QueryRow(ctx,
		`SELECT id, name, email,
		        plan_id, plan_activated_at, plan_expires_at,
		        stored_featured_credits, used_certifications,
		        subscription_version, COALESCE(stripe_customer_id, ''),
		        created_at, updated_at
		 FROM sellers
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	).Scan(
		&s.ID, &s.Name, &s.Email,
		&s.Subscription.PlanID, &s.Subscription.PlanActivatedAt, &s.Subscription.PlanExpiresAt,
		&s.Subscription.StoredFeaturedCredits, &s.Subscription.UsedCertifications,
		&s.SubscriptionVersion, &s.StripeCustomerID,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSeller, "seller not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load seller", err)
	}
	return &s, nil
}

// UpdateSubscription persists a new subscription state for the seller using
// optimistic locking. expectedVersion must match the version read alongside
// the state being replaced; on mismatch the write is rejected with
// ErrCodeConflictConcurrent.
func (r *SellerRepo) UpdateSubscription(
	ctx context.Context,
	sellerID string,
	sub types.SellerSubscriptionState,
	expectedVersion int,
) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sellers
		 SET plan_id = $1,
		     plan_activated_at = $2,
		     plan_expires_at = $3,
		     stored_featured_credits = $4,
		     used_certifications = $5,
		     subscription_version = subscription_version + 1,
		     updated_at = NOW()
		 WHERE id = $6
		   AND deleted_at IS NULL
		   AND subscription_version = $7`,
		sub.PlanID,
		sub.PlanActivatedAt,
		sub.PlanExpiresAt,
		sub.StoredFeaturedCredits,
		sub.UsedCertifications,
		sellerID,
		expectedVersion,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription", err)
	}

	if tag.RowsAffected() == 0 {
		// Distinguish a missing seller from a lost race.
		var exists bool
		err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM sellers WHERE id = $1 AND deleted_at IS NULL)`,
			sellerID,
		).Scan(&exists)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to check seller existence", err)
		}
		if !exists {
			return types.NewAppError(types.ErrCodeNotFoundSeller, "seller not found", nil)
		}
		r.logger.Warn("subscription update lost optimistic lock race",
			slog.String("seller_id", sellerID),
			slog.Int("expected_version", expectedVersion),
		)
		return types.NewAppError(types.ErrCodeConflictConcurrent, "subscription was modified concurrently", nil)
	}

	return nil
}

// GetBillingInfo returns the Stripe customer id and contact email for a
// seller. The customer id is empty when the seller never checked out.
func (r *SellerRepo) GetBillingInfo(ctx context.Context, sellerID string) (string, string, error) {
	var customerID, email string
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(stripe_customer_id, ''), email
		 FROM sellers
		 WHERE id = $1 AND deleted_at IS NULL`,
		sellerID,
	).Scan(&customerID, &email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", types.NewAppError(types.ErrCodeNotFoundSeller, "seller not found", nil)
		}
		return "", "", types.NewAppError(types.ErrCodeInternalDB, "failed to load seller billing info", err)
	}
	return customerID, email, nil
}

// SetStripeCustomerID records the Stripe customer created for a seller on
// first checkout. Idempotent for the same customer id.
func (r *SellerRepo) SetStripeCustomerID(ctx context.Context, sellerID, customerID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sellers
		 SET stripe_customer_id = $1,
		     updated_at = NOW()
		 WHERE id = $2 AND deleted_at IS NULL`,
		customerID,
		sellerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set stripe customer id", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSeller, "seller not found", nil)
	}
	return nil
}

// CountOnPlan returns how many active sellers are assigned to the given plan.
// Used before custom plan deletion to report how many sellers will fall back
// to the free tier.
func (r *SellerRepo) CountOnPlan(ctx context.Context, planID types.PlanID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM sellers
		 WHERE plan_id = $1 AND deleted_at IS NULL`,
		planID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count sellers on plan", err)
	}
	return count, nil
}
