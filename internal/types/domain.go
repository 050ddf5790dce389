package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// unlimitedToken is the JSON representation of an unlimited listing quota.
const unlimitedToken = "unlimited"

// ListingLimit is a listing quota that is either a concrete count or
// unlimited. The sentinel is negative so that a stored limit of zero keeps
// its meaning: a plan frozen at zero new listings.
type ListingLimit int

// ListingLimitUnlimited is the sentinel for "no listing cap".
const ListingLimitUnlimited ListingLimit = -1

// IsUnlimited reports whether the limit represents an uncapped quota.
func (l ListingLimit) IsUnlimited() bool {
	return l < 0
}

// MarshalJSON encodes the limit as a number, or the string "unlimited".
func (l ListingLimit) MarshalJSON() ([]byte, error) {
	if l.IsUnlimited() {
		return json.Marshal(unlimitedToken)
	}
	return json.Marshal(int(l))
}

// UnmarshalJSON accepts either a non-negative number or the string "unlimited".
func (l *ListingLimit) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != unlimitedToken {
			return fmt.Errorf("invalid listing limit %q", s)
		}
		*l = ListingLimitUnlimited
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid listing limit: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("listing limit must not be negative, got %d", n)
	}
	*l = ListingLimit(n)
	return nil
}

// PlanDefinition describes one tier of seller service: its price and the
// quotas it grants per cycle. Three built-in definitions always exist;
// administrators may add at most one custom definition alongside them.
type PlanDefinition struct {
	ID                 PlanID       `json:"id" db:"id"`
	Name               string       `json:"name" db:"name"`
	Price              int64        `json:"price" db:"price"`
	ListingLimit       ListingLimit `json:"listing_limit" db:"listing_limit"`
	FeaturedCredits    int          `json:"featured_credits" db:"featured_credits"`
	FreeCertifications int          `json:"free_certifications" db:"free_certifications"`
	Features           []string     `json:"features" db:"features"`
	IsMostPopular      bool         `json:"is_most_popular" db:"is_most_popular"`
}

// IsCustom reports whether this plan is an administrator-created tier rather
// than one of the protected built-ins. Derived from the id, never stored.
func (p PlanDefinition) IsCustom() bool {
	return !p.ID.IsBuiltin()
}

// PlanDraft is the id-less payload for creating or editing a plan.
type PlanDraft struct {
	Name               string       `json:"name"`
	Price              int64        `json:"price"`
	ListingLimit       ListingLimit `json:"listing_limit"`
	FeaturedCredits    int          `json:"featured_credits"`
	FreeCertifications int          `json:"free_certifications"`
	Features           []string     `json:"features,omitempty"`
	IsMostPopular      bool         `json:"is_most_popular,omitempty"`
}

// SellerSubscriptionState is the persisted per-seller subscription record.
type SellerSubscriptionState struct {
	PlanID PlanID `json:"plan_id" db:"plan_id"`

	// PlanActivatedAt is absent when the seller never explicitly activated
	// a plan (the implicit free default).
	PlanActivatedAt *time.Time `json:"plan_activated_at,omitempty" db:"plan_activated_at"`

	// PlanExpiresAt absent means the plan does not expire.
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty" db:"plan_expires_at"`

	// StoredFeaturedCredits is an optimistically decremented counter that may
	// drift from the value implied by the plan and the live listings. Absent
	// means "derive entirely from the plan".
	StoredFeaturedCredits *int `json:"stored_featured_credits,omitempty" db:"stored_featured_credits"`

	// UsedCertifications counts certification requests consumed this cycle.
	// Monotonically non-decreasing.
	UsedCertifications int `json:"used_certifications" db:"used_certifications"`
}

// DefaultSubscription returns the implicit subscription every seller starts
// with: free plan, no dates, no stored counters.
func DefaultSubscription() SellerSubscriptionState {
	return SellerSubscriptionState{PlanID: PlanFree}
}

// Seller is a marketplace seller account together with its subscription state.
type Seller struct {
	ID           string                  `json:"id" db:"id"`
	Name         string                  `json:"name" db:"name"`
	Email        string                  `json:"email" db:"email"`
	Subscription SellerSubscriptionState `json:"subscription" db:"-"`

	// SubscriptionVersion supports optimistic locking on plan assignment.
	SubscriptionVersion int `json:"-" db:"subscription_version"`

	StripeCustomerID string     `json:"-" db:"stripe_customer_id"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt        *time.Time `json:"-" db:"deleted_at"`
}

// ListingSnapshot is the projection of a vehicle listing that entitlement
// math needs: whether it occupies an active-listing slot and whether it holds
// a featured-credit slot.
type ListingSnapshot struct {
	ID         string        `json:"id" db:"id"`
	Status     ListingStatus `json:"status" db:"status"`
	IsFeatured bool          `json:"is_featured" db:"is_featured"`
}

// EntitlementReport is the computed, never-persisted snapshot of what a
// seller is currently allowed and has currently consumed. It is recomputed on
// every read so it can never go stale independently of its inputs.
type EntitlementReport struct {
	ActiveListingCount int          `json:"active_listing_count"`
	ListingLimit       ListingLimit `json:"listing_limit"`

	FeaturedUsed      int `json:"featured_used"`
	FeaturedRemaining int `json:"featured_remaining"`
	FeaturedTotal     int `json:"featured_total"`

	CertificationsUsed      int `json:"certifications_used"`
	CertificationsRemaining int `json:"certifications_remaining"`
	CertificationsTotal     int `json:"certifications_total"`

	IsExpired bool `json:"is_expired"`

	// DaysUntilExpiry is absent when no expiry date is set or the plan has
	// already expired.
	DaysUntilExpiry *int `json:"days_until_expiry,omitempty"`

	ListingCreationAllowed bool `json:"listing_creation_allowed"`

	Phase SubscriptionPhase `json:"phase"`
}
