package billing

import "reride/internal/types"

// builtinDefaults defines the immutable built-in plan definitions.
// This is the single source of truth for what each built-in tier grants
// before an administrator customizes it. BuiltinDefinition always answers
// from this table, never from the live catalog, so callers can detect
// whether a built-in has been customized and can block deletion.
//
//	| Plan    | Price | Listings  | Featured | Certifications |
//	|---------|-------|-----------|----------|----------------|
//	| free    | 0     | 5         | 0        | 0              |
//	| pro     | 1999  | 50        | 5        | 2              |
//	| premium | 4999  | unlimited | 15       | 10             |
var builtinDefaults = map[types.PlanID]types.PlanDefinition{
	types.PlanFree: {
		ID:                 types.PlanFree,
		Name:               "Free",
		Price:              0,
		ListingLimit:       5,
		FeaturedCredits:    0,
		FreeCertifications: 0,
		Features: []string{
			"Up to 5 active listings",
			"Standard search placement",
			"Email support",
		},
	},
	types.PlanPro: {
		ID:                 types.PlanPro,
		Name:               "Pro",
		Price:              1999,
		ListingLimit:       50,
		FeaturedCredits:    5,
		FreeCertifications: 2,
		Features: []string{
			"Up to 50 active listings",
			"5 featured promotion credits",
			"2 free certification requests",
			"Priority support",
		},
		IsMostPopular: true,
	},
	types.PlanPremium: {
		ID:                 types.PlanPremium,
		Name:               "Premium",
		Price:              4999,
		ListingLimit:       types.ListingLimitUnlimited,
		FeaturedCredits:    15,
		FreeCertifications: 10,
		Features: []string{
			"Unlimited active listings",
			"15 featured promotion credits",
			"10 free certification requests",
			"Dedicated account manager",
		},
	},
}

// clonePlan returns a deep copy so callers cannot mutate shared state
// through the Features slice.
func clonePlan(p types.PlanDefinition) types.PlanDefinition {
	out := p
	if p.Features != nil {
		out.Features = make([]string, len(p.Features))
		copy(out.Features, p.Features)
	}
	return out
}

// BuiltinDefinition returns the original immutable definition for a built-in
// plan id. It returns a not-found error for any id outside the protected set;
// custom plan ids always fail here.
func BuiltinDefinition(id types.PlanID) (types.PlanDefinition, error) {
	def, ok := builtinDefaults[id]
	if !ok {
		return types.PlanDefinition{}, types.NewAppError(
			types.ErrCodeNotFoundPlan,
			"no built-in plan with id "+string(id),
			nil,
		)
	}
	return clonePlan(def), nil
}

// BuiltinPlans returns deep copies of the built-in definitions in catalog
// order (free, pro, premium). Used to seed an empty catalog.
func BuiltinPlans() []types.PlanDefinition {
	out := make([]types.PlanDefinition, 0, len(types.BuiltinPlanIDs))
	for _, id := range types.BuiltinPlanIDs {
		out = append(out, clonePlan(builtinDefaults[id]))
	}
	return out
}
