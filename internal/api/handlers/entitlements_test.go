package handlers

import (
	"net/http"
	"testing"
	"time"

	"reride/internal/billing"
	"reride/internal/types"
)

func newTestEntitlementHandler(
	sellers *fakeSellerStore,
	listings *fakeListingReader,
	store *fakeCatalogStore,
) *EntitlementHandler {
	h := NewEntitlementHandler(sellers, listings, store, billing.NewReconciler(nil), nil)
	h.now = fixedTime
	return h
}

func proSeller(stored *int) *types.Seller {
	activated := fixedTime().Add(-10 * 24 * time.Hour)
	return &types.Seller{
		ID:    "seller_1",
		Name:  "Moto Mendoza",
		Email: "ventas@motomendoza.example",
		Subscription: types.SellerSubscriptionState{
			PlanID:                types.PlanPro,
			PlanActivatedAt:       &activated,
			StoredFeaturedCredits: stored,
		},
		SubscriptionVersion: 2,
	}
}

func TestEntitlements_ComputedFromLiveData(t *testing.T) {
	stored := 3
	sellers := &fakeSellerStore{seller: proSeller(&stored)}
	listings := &fakeListingReader{
		snapshots: []types.ListingSnapshot{
			{ID: "lst_1", Status: types.ListingPublished, IsFeatured: true},
			{ID: "lst_2", Status: types.ListingSold, IsFeatured: true},
			{ID: "lst_3", Status: types.ListingPublished, IsFeatured: false},
		},
	}
	router := routerFor(newTestEntitlementHandler(sellers, listings, &fakeCatalogStore{}))

	rr := performJSON(t, router, http.MethodGet, "/sellers/seller_1/entitlements", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var report types.EntitlementReport
	parseData(t, rr, &report)

	// Sold listings do not occupy active slots but keep their featured credit.
	if report.ActiveListingCount != 2 {
		t.Errorf("expected 2 active listings, got %d", report.ActiveListingCount)
	}
	if report.FeaturedUsed != 2 {
		t.Errorf("expected 2 featured used, got %d", report.FeaturedUsed)
	}
	if report.FeaturedRemaining != 3 {
		t.Errorf("expected 3 featured remaining, got %d", report.FeaturedRemaining)
	}
	if report.IsExpired {
		t.Error("expected plan not expired")
	}
	if !report.ListingCreationAllowed {
		t.Error("expected listing creation allowed")
	}
	if report.Phase != types.PhaseActiveNoExpiry {
		t.Errorf("expected phase %s, got %s", types.PhaseActiveNoExpiry, report.Phase)
	}
}

func TestEntitlements_DriftedCounterClamped(t *testing.T) {
	// Counter says 5 remaining but the plan only grants 5 and two are in use:
	// the listings table wins.
	stored := 5
	sellers := &fakeSellerStore{seller: proSeller(&stored)}
	listings := &fakeListingReader{
		snapshots: []types.ListingSnapshot{
			{ID: "lst_1", Status: types.ListingPublished, IsFeatured: true},
			{ID: "lst_2", Status: types.ListingPublished, IsFeatured: true},
		},
	}
	router := routerFor(newTestEntitlementHandler(sellers, listings, &fakeCatalogStore{}))

	rr := performJSON(t, router, http.MethodGet, "/sellers/seller_1/entitlements", nil)

	var report types.EntitlementReport
	parseData(t, rr, &report)

	if report.FeaturedRemaining != 3 {
		t.Errorf("expected remaining clamped to 3, got %d", report.FeaturedRemaining)
	}
	if report.FeaturedUsed != 2 {
		t.Errorf("expected used 2, got %d", report.FeaturedUsed)
	}
}

func TestEntitlements_UnknownPlanFallsBackToFree(t *testing.T) {
	seller := proSeller(nil)
	seller.Subscription.PlanID = "plan_deleted"
	sellers := &fakeSellerStore{seller: seller}
	router := routerFor(newTestEntitlementHandler(sellers, &fakeListingReader{}, &fakeCatalogStore{}))

	rr := performJSON(t, router, http.MethodGet, "/sellers/seller_1/entitlements", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var report types.EntitlementReport
	parseData(t, rr, &report)

	if report.ListingLimit != 5 {
		t.Errorf("expected free-tier listing limit 5, got %v", report.ListingLimit)
	}
	if report.FeaturedTotal != 0 {
		t.Errorf("expected free-tier featured total 0, got %d", report.FeaturedTotal)
	}
}

func TestEntitlements_ExpiredPlan(t *testing.T) {
	seller := proSeller(nil)
	expired := fixedTime().Add(-24 * time.Hour)
	seller.Subscription.PlanExpiresAt = &expired
	sellers := &fakeSellerStore{seller: seller}
	router := routerFor(newTestEntitlementHandler(sellers, &fakeListingReader{}, &fakeCatalogStore{}))

	rr := performJSON(t, router, http.MethodGet, "/sellers/seller_1/entitlements", nil)

	var report types.EntitlementReport
	parseData(t, rr, &report)

	if !report.IsExpired {
		t.Error("expected expired plan")
	}
	if report.ListingCreationAllowed {
		t.Error("expected listing creation blocked on expired plan")
	}
	if report.DaysUntilExpiry != nil {
		t.Errorf("expected days_until_expiry omitted, got %d", *report.DaysUntilExpiry)
	}
	if report.Phase != types.PhaseExpired {
		t.Errorf("expected phase %s, got %s", types.PhaseExpired, report.Phase)
	}
}

func TestEntitlements_SellerNotFound(t *testing.T) {
	sellers := &fakeSellerStore{getErr: types.NewAppError(types.ErrCodeNotFoundSeller, "seller not found", nil)}
	router := routerFor(newTestEntitlementHandler(sellers, &fakeListingReader{}, &fakeCatalogStore{}))

	rr := performJSON(t, router, http.MethodGet, "/sellers/seller_missing/entitlements", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCodeOf(t, rr); code != string(types.ErrCodeNotFoundSeller) {
		t.Errorf("expected %s, got %s", types.ErrCodeNotFoundSeller, code)
	}
}
