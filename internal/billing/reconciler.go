package billing

import (
	"log/slog"
	"time"

	"reride/internal/types"
)

// Reconciler is the orchestration layer of the entitlement engine. It applies
// catalog, calculator, and lifecycle rules against host-supplied snapshots to
// produce entitlement reports, and validates plan-admin mutations before they
// touch a catalog. Every operation is a synchronous computation over already
// fetched data; no operation partially applies on failure.
type Reconciler struct {
	logger *slog.Logger
}

// NewReconciler creates a Reconciler. A nil logger falls back to slog.Default().
func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger}
}

// Report produces the entitlement report for one seller: it resolves the
// seller's plan from the catalog, computes usage and remaining credits, and
// merges in the expiry facts.
//
// A seller referencing an unknown plan id (a deleted custom plan, or state
// written by an older deployment) falls back to the built-in free definition.
// Failing to the most restrictive tier is the safe direction for a monetized
// resource.
func (r *Reconciler) Report(
	catalog *Catalog,
	sub types.SellerSubscriptionState,
	listings []types.ListingSnapshot,
	now time.Time,
) types.EntitlementReport {
	plan, err := catalog.Get(sub.PlanID)
	if err != nil {
		r.logger.Warn("seller references unknown plan, falling back to free",
			slog.String("plan_id", string(sub.PlanID)),
		)
		plan, _ = BuiltinDefinition(types.PlanFree)
	}
	return ComputeEntitlements(plan, sub, listings, now)
}

// CreatePlan validates the draft against catalog rules and appends the new
// custom plan. Validation failures leave the catalog untouched.
func (r *Reconciler) CreatePlan(catalog *Catalog, draft types.PlanDraft) (types.PlanDefinition, error) {
	plan, err := catalog.Create(draft)
	if err != nil {
		return types.PlanDefinition{}, err
	}
	r.logger.Info("custom plan created",
		slog.String("plan_id", string(plan.ID)),
		slog.String("name", plan.Name),
	)
	return plan, nil
}

// UpdatePlan validates the draft and replaces an existing plan's fields in
// place. The plan id never changes.
func (r *Reconciler) UpdatePlan(
	catalog *Catalog,
	id types.PlanID,
	draft types.PlanDraft,
) (types.PlanDefinition, error) {
	plan, err := catalog.Update(id, draft)
	if err != nil {
		return types.PlanDefinition{}, err
	}
	r.logger.Info("plan updated", slog.String("plan_id", string(plan.ID)))
	return plan, nil
}

// DeletePlan removes a custom plan. Built-in plans are always rejected.
func (r *Reconciler) DeletePlan(catalog *Catalog, id types.PlanID) error {
	if err := catalog.Delete(id); err != nil {
		return err
	}
	r.logger.Info("custom plan deleted", slog.String("plan_id", string(id)))
	return nil
}

// AssignPlan validates that the plan exists in the catalog, then delegates
// the state transition to the lifecycle rules. The returned state replaces
// the seller's subscription atomically on the host side.
func (r *Reconciler) AssignPlan(
	catalog *Catalog,
	sub types.SellerSubscriptionState,
	planID types.PlanID,
	activatedAt time.Time,
	expiresAt *time.Time,
	now time.Time,
) (types.SellerSubscriptionState, error) {
	if _, err := catalog.Get(planID); err != nil {
		return sub, err
	}
	next, err := AssignPlan(sub, planID, activatedAt, expiresAt, now)
	if err != nil {
		return sub, err
	}
	r.logger.Info("plan assigned",
		slog.String("plan_id", string(planID)),
		slog.Time("activated_at", activatedAt),
		slog.Bool("has_expiry", expiresAt != nil),
	)
	return next, nil
}

// EditExpiry sets or clears the expiry date on a subscription without
// touching the plan id or activation date.
func (r *Reconciler) EditExpiry(
	sub types.SellerSubscriptionState,
	expiresAt *time.Time,
) (types.SellerSubscriptionState, error) {
	return EditExpiry(sub, expiresAt)
}
