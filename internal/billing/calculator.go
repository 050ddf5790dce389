package billing

import (
	"time"

	"reride/internal/types"
)

// ComputeEntitlements is the pure entitlement calculator. Given a plan, a
// seller's persisted subscription state, the seller's current listings, and
// the evaluation instant, it computes the effective remaining quotas for
// listings, featured promotions, and certifications.
//
// Two independent signals exist for featured-credit consumption: the stored
// counter (decremented optimistically when a credit is spent) and the count
// of listings currently holding the featured flag. The two can drift. The
// calculator takes the minimum of "stored remaining" and "remaining implied
// by observable usage", which never over-credits the seller; the used count
// is the larger of what the credit math implies and what is observably in
// use, which never hides consumption. Every output is clamped at zero.
//
// Callers must re-run the calculator on every read: the expiry facts depend
// on now, and a cached report would go stale the moment an expiry boundary
// passes.
func ComputeEntitlements(
	plan types.PlanDefinition,
	sub types.SellerSubscriptionState,
	listings []types.ListingSnapshot,
	now time.Time,
) types.EntitlementReport {
	activeListings := 0
	featuredListings := 0
	for _, l := range listings {
		if l.Status == types.ListingPublished {
			activeListings++
		}
		// A featured slot stays occupied regardless of status; a sold
		// listing can still hold one.
		if l.IsFeatured {
			featuredListings++
		}
	}

	planCredits := plan.FeaturedCredits
	if planCredits < 0 {
		planCredits = 0
	}

	storedRemaining := planCredits
	if sub.StoredFeaturedCredits != nil {
		storedRemaining = *sub.StoredFeaturedCredits
	}

	impliedRemaining := max(planCredits-featuredListings, 0)
	featuredRemaining := max(min(storedRemaining, impliedRemaining), 0)
	featuredUsed := max(planCredits-featuredRemaining, featuredListings)

	certsTotal := max(plan.FreeCertifications, 0)
	certsUsed := max(sub.UsedCertifications, 0)
	certsRemaining := max(certsTotal-certsUsed, 0)

	expired := IsExpired(sub, now)

	return types.EntitlementReport{
		ActiveListingCount: activeListings,
		ListingLimit:       plan.ListingLimit,

		FeaturedUsed:      featuredUsed,
		FeaturedRemaining: featuredRemaining,
		FeaturedTotal:     planCredits,

		CertificationsUsed:      certsUsed,
		CertificationsRemaining: certsRemaining,
		CertificationsTotal:     certsTotal,

		IsExpired:       expired,
		DaysUntilExpiry: DaysUntilExpiry(sub, now),

		// Only new listing creation is gated by expiry; edits to existing
		// listings are always allowed.
		ListingCreationAllowed: !expired,

		Phase: Phase(sub, now),
	}
}
