package types

// PlanID identifies a subscription plan in the catalog.
type PlanID string

// Built-in plan identifiers. These three plans always exist and can never
// be deleted from the catalog. Custom plans carry generated identifiers
// with the "plan_" prefix.
const (
	PlanFree    PlanID = "free"
	PlanPro     PlanID = "pro"
	PlanPremium PlanID = "premium"
)

// BuiltinPlanIDs lists the protected plan identifiers in catalog order.
var BuiltinPlanIDs = []PlanID{PlanFree, PlanPro, PlanPremium}

// IsBuiltin reports whether the id is one of the three protected plan ids.
func (p PlanID) IsBuiltin() bool {
	return p == PlanFree || p == PlanPro || p == PlanPremium
}

// ListingStatus represents the lifecycle state of a vehicle listing.
type ListingStatus string

const (
	ListingPublished   ListingStatus = "published"
	ListingUnpublished ListingStatus = "unpublished"
	ListingSold        ListingStatus = "sold"
)

// SubscriptionPhase is the derived lifecycle state of a seller's plan.
// It is never stored; it is computed from the activation/expiry dates and
// the evaluation instant.
type SubscriptionPhase string

const (
	// PhaseActiveNoExpiry: the plan has no expiry date (typical for free).
	PhaseActiveNoExpiry SubscriptionPhase = "active_no_expiry"
	// PhaseActive: an expiry date exists and is comfortably in the future.
	PhaseActive SubscriptionPhase = "active"
	// PhaseExpiring: the expiry date is within the expiring-soon window.
	PhaseExpiring SubscriptionPhase = "expiring"
	// PhaseExpired: the expiry date has passed and the plan was not renewed.
	PhaseExpired SubscriptionPhase = "expired"
)
