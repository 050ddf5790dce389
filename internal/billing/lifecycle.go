package billing

import (
	"time"

	"reride/internal/types"
)

// expiringSoonDays is the window before expiry in which a subscription is
// reported as PhaseExpiring so the host can surface a renewal prompt.
const expiringSoonDays = 7

// AssignPlan replaces the seller's plan id, activation date, and expiry date
// as one state transition; a caller never observes a half-applied assignment.
// The remaining subscription fields (stored featured credits, used
// certifications) carry over unchanged; the calculator's reconciliation
// clamps any resulting drift.
//
// The activation date must not be in the future relative to now, and the
// expiry date, when given, must be on or after the activation date.
func AssignPlan(
	sub types.SellerSubscriptionState,
	planID types.PlanID,
	activatedAt time.Time,
	expiresAt *time.Time,
	now time.Time,
) (types.SellerSubscriptionState, error) {
	if activatedAt.After(now) {
		return sub, types.NewAppErrorWithDetails(
			types.ErrCodeValidationDateRange,
			"activation date must not be in the future",
			nil,
			map[string]any{
				"activated_at": activatedAt,
				"now":          now,
			},
		)
	}
	if expiresAt != nil && expiresAt.Before(activatedAt) {
		return sub, types.NewAppErrorWithDetails(
			types.ErrCodeValidationDateRange,
			"expiry date must be on or after the activation date",
			nil,
			map[string]any{
				"activated_at": activatedAt,
				"expires_at":   *expiresAt,
			},
		)
	}

	next := sub
	next.PlanID = planID
	activated := activatedAt
	next.PlanActivatedAt = &activated
	if expiresAt != nil {
		expiry := *expiresAt
		next.PlanExpiresAt = &expiry
	} else {
		next.PlanExpiresAt = nil
	}
	return next, nil
}

// EditExpiry sets or clears the expiry date without touching the plan id or
// activation date. Clearing the expiry on a paid plan is permitted; whether
// that grants perpetual service is a caller-level business decision. When an
// activation date exists, a new expiry before it is rejected.
func EditExpiry(
	sub types.SellerSubscriptionState,
	expiresAt *time.Time,
) (types.SellerSubscriptionState, error) {
	if expiresAt != nil && sub.PlanActivatedAt != nil && expiresAt.Before(*sub.PlanActivatedAt) {
		return sub, types.NewAppErrorWithDetails(
			types.ErrCodeValidationDateRange,
			"expiry date must be on or after the activation date",
			nil,
			map[string]any{
				"activated_at": *sub.PlanActivatedAt,
				"expires_at":   *expiresAt,
			},
		)
	}

	next := sub
	if expiresAt != nil {
		expiry := *expiresAt
		next.PlanExpiresAt = &expiry
	} else {
		next.PlanExpiresAt = nil
	}
	return next, nil
}

// IsExpired reports whether the subscription's expiry date has passed.
// A subscription without an expiry date never expires.
func IsExpired(sub types.SellerSubscriptionState, now time.Time) bool {
	return sub.PlanExpiresAt != nil && sub.PlanExpiresAt.Before(now)
}

// DaysUntilExpiry returns the number of whole-or-partial days remaining
// before expiry, rounded up. It returns nil when no expiry date is set or
// the subscription has already expired.
func DaysUntilExpiry(sub types.SellerSubscriptionState, now time.Time) *int {
	if sub.PlanExpiresAt == nil || IsExpired(sub, now) {
		return nil
	}
	remaining := sub.PlanExpiresAt.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return &days
}

// Phase derives the conceptual lifecycle state from the subscription dates.
// It is evaluated fresh on every read; an expiry boundary is reactive to
// wall-clock time.
func Phase(sub types.SellerSubscriptionState, now time.Time) types.SubscriptionPhase {
	if IsExpired(sub, now) {
		return types.PhaseExpired
	}
	if sub.PlanExpiresAt == nil {
		return types.PhaseActiveNoExpiry
	}
	if days := DaysUntilExpiry(sub, now); days != nil && *days <= expiringSoonDays {
		return types.PhaseExpiring
	}
	return types.PhaseActive
}
