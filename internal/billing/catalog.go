// Package billing implements the subscription entitlement and credit
// reconciliation engine for the marketplace: the plan catalog, the pure
// entitlement calculator, the plan lifecycle rules, and the reconciliation
// service that ties them together. The engine is side-effect free; all
// durable state is supplied by the host and persisted by the host.
package billing

import (
	"strings"

	"github.com/google/uuid"

	"reride/internal/types"
)

// MaxCatalogPlans caps how many plan definitions may exist concurrently:
// the three built-ins plus at most one custom tier.
const MaxCatalogPlans = 4

// customPlanPrefix is prepended to generated custom plan identifiers.
const customPlanPrefix = "plan_"

// Catalog holds an ordered snapshot of the plan definitions: built-ins first,
// in their fixed order, then custom plans in insertion order. A Catalog is a
// plain in-memory value; the host loads it from storage, applies mutations
// through the engine, and persists the result.
type Catalog struct {
	plans []types.PlanDefinition
}

// NewCatalog builds a catalog from a stored plan snapshot. Any built-in
// missing from the snapshot is backfilled from its immutable default, so a
// catalog can never lose its protected tiers. Order is normalized to
// built-ins first.
func NewCatalog(plans []types.PlanDefinition) *Catalog {
	byID := make(map[types.PlanID]types.PlanDefinition, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
	}

	ordered := make([]types.PlanDefinition, 0, len(plans)+len(types.BuiltinPlanIDs))
	for _, id := range types.BuiltinPlanIDs {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, clonePlan(p))
		} else {
			ordered = append(ordered, clonePlan(builtinDefaults[id]))
		}
	}
	for _, p := range plans {
		if !p.ID.IsBuiltin() {
			ordered = append(ordered, clonePlan(p))
		}
	}
	return &Catalog{plans: ordered}
}

// DefaultCatalog returns a catalog holding only the three built-in plans.
func DefaultCatalog() *Catalog {
	return &Catalog{plans: BuiltinPlans()}
}

// Plans returns all plan definitions, built-ins first, in stable order.
// The returned slice is a deep copy; mutating it does not affect the catalog.
func (c *Catalog) Plans() []types.PlanDefinition {
	out := make([]types.PlanDefinition, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, clonePlan(p))
	}
	return out
}

// Get returns the plan with the given id, or a not-found error.
func (c *Catalog) Get(id types.PlanID) (types.PlanDefinition, error) {
	for _, p := range c.plans {
		if p.ID == id {
			return clonePlan(p), nil
		}
	}
	return types.PlanDefinition{}, types.NewAppError(
		types.ErrCodeNotFoundPlan,
		"no plan with id "+string(id),
		nil,
	)
}

// CanCreate reports whether the catalog has room for another plan.
func (c *Catalog) CanCreate() bool {
	return len(c.plans) < MaxCatalogPlans
}

// Create validates the draft, assigns a fresh custom id, and appends the new
// plan. The capacity check runs before validation: a full catalog rejects
// every payload with catalog_full, valid or not. On any failure the catalog
// is untouched.
func (c *Catalog) Create(draft types.PlanDraft) (types.PlanDefinition, error) {
	if !c.CanCreate() {
		return types.PlanDefinition{}, types.NewAppErrorWithDetails(
			types.ErrCodeCatalogFull,
			"plan catalog is full",
			nil,
			map[string]any{"max_plans": MaxCatalogPlans},
		)
	}
	if err := validateDraft(draft, validateCreate); err != nil {
		return types.PlanDefinition{}, err
	}

	plan := draftToPlan(types.PlanID(customPlanPrefix+uuid.NewString()), draft)
	c.plans = append(c.plans, clonePlan(plan))
	return plan, nil
}

// Update replaces the fields of an existing plan (built-in or custom) in
// place. The id never changes. Editing tolerates a listing limit of zero so
// an administrator can freeze a plan at no new listings.
func (c *Catalog) Update(id types.PlanID, draft types.PlanDraft) (types.PlanDefinition, error) {
	idx := -1
	for i, p := range c.plans {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return types.PlanDefinition{}, types.NewAppError(
			types.ErrCodeNotFoundPlan,
			"no plan with id "+string(id),
			nil,
		)
	}
	if err := validateDraft(draft, validateUpdate); err != nil {
		return types.PlanDefinition{}, err
	}

	plan := draftToPlan(id, draft)
	c.plans[idx] = clonePlan(plan)
	return plan, nil
}

// Delete removes a custom plan from the catalog. Built-in ids are protected:
// any id for which BuiltinDefinition succeeds is rejected with
// cannot_delete_builtin. Unknown ids report not_found_plan.
//
// Deletion does not check whether any seller currently holds the plan; such
// sellers fall back to the free definition on their next entitlement read.
func (c *Catalog) Delete(id types.PlanID) error {
	if _, err := BuiltinDefinition(id); err == nil {
		return types.NewAppError(
			types.ErrCodeCannotDeleteBuiltin,
			"built-in plans cannot be deleted",
			nil,
		)
	}
	for i, p := range c.plans {
		if p.ID == id {
			c.plans = append(c.plans[:i], c.plans[i+1:]...)
			return nil
		}
	}
	return types.NewAppError(
		types.ErrCodeNotFoundPlan,
		"no plan with id "+string(id),
		nil,
	)
}

// draftToPlan materializes a draft under the given id.
func draftToPlan(id types.PlanID, draft types.PlanDraft) types.PlanDefinition {
	features := make([]string, len(draft.Features))
	copy(features, draft.Features)
	return types.PlanDefinition{
		ID:                 id,
		Name:               strings.TrimSpace(draft.Name),
		Price:              draft.Price,
		ListingLimit:       draft.ListingLimit,
		FeaturedCredits:    draft.FeaturedCredits,
		FreeCertifications: draft.FreeCertifications,
		Features:           features,
		IsMostPopular:      draft.IsMostPopular,
	}
}

// validationMode distinguishes the create and update rule sets.
type validationMode int

const (
	validateCreate validationMode = iota
	validateUpdate
)

// validateDraft runs every field rule and collects the failures, so the
// caller sees all offending fields at once instead of the first one.
func validateDraft(draft types.PlanDraft, mode validationMode) error {
	fields := types.FieldErrors{}

	if strings.TrimSpace(draft.Name) == "" {
		fields.Add("name", "name must not be empty")
	}
	if draft.Price < 0 {
		fields.Add("price", "price must not be negative")
	}
	if !draft.ListingLimit.IsUnlimited() {
		switch mode {
		case validateCreate:
			if draft.ListingLimit < 1 {
				fields.Add("listing_limit", "listing limit must be unlimited or at least 1")
			}
		case validateUpdate:
			if draft.ListingLimit < 0 {
				fields.Add("listing_limit", "listing limit must be unlimited or at least 0")
			}
		}
	}
	if draft.FeaturedCredits < 0 {
		fields.Add("featured_credits", "featured credits must not be negative")
	}
	if draft.FreeCertifications < 0 {
		fields.Add("free_certifications", "free certifications must not be negative")
	}

	return fields.AsError()
}
