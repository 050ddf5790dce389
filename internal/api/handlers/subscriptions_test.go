package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"reride/internal/billing"
	"reride/internal/config"
	"reride/internal/core"
	"reride/internal/types"
)

// fakeCheckoutService implements CheckoutService.
type fakeCheckoutService struct {
	createFn func(ctx context.Context, sellerID, email string, plan types.PlanDefinition, successURL, cancelURL string) (string, string, error)
	lastPlan types.PlanDefinition
}

func (f *fakeCheckoutService) CreateCheckoutSession(
	ctx context.Context,
	sellerID string,
	email string,
	plan types.PlanDefinition,
	successURL string,
	cancelURL string,
) (string, string, error) {
	f.lastPlan = plan
	if f.createFn != nil {
		return f.createFn(ctx, sellerID, email, plan, successURL, cancelURL)
	}
	return "https://checkout.stripe.com/pay/cs_test", "cs_test", nil
}

func newTestSubscriptionHandler(
	sellers *fakeSellerStore,
	store *fakeCatalogStore,
	checkout CheckoutService,
) *SubscriptionHandler {
	h := NewSubscriptionHandler(
		sellers, store, billing.NewReconciler(nil), checkout,
		config.BillingConfig{
			CheckoutSuccessURL:    "https://reride.example/billing/success",
			CheckoutCancelURL:     "https://reride.example/billing/cancel",
			SubscriptionCycleDays: 30,
		},
		core.NewValidator(nil), nil,
	)
	h.now = fixedTime
	return h
}

func TestAssignPlan_Success(t *testing.T) {
	sellers := &fakeSellerStore{seller: proSeller(nil)}
	router := routerFor(newTestSubscriptionHandler(sellers, &fakeCatalogStore{}, nil))

	expires := fixedTime().Add(30 * 24 * time.Hour)
	rr := performJSON(t, router, http.MethodPost, "/admin/sellers/seller_1/plan", AssignPlanRequest{
		PlanID:    types.PlanPremium,
		ExpiresAt: &expires,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if sellers.updated == nil {
		t.Fatal("expected subscription persisted")
	}
	if sellers.updated.PlanID != types.PlanPremium {
		t.Errorf("expected premium assigned, got %v", sellers.updated.PlanID)
	}
	if sellers.updatedVersion != 2 {
		t.Errorf("expected optimistic lock on version 2, got %d", sellers.updatedVersion)
	}
	if sellers.updated.PlanActivatedAt == nil || !sellers.updated.PlanActivatedAt.Equal(fixedTime()) {
		t.Errorf("expected activation defaulted to now, got %v", sellers.updated.PlanActivatedAt)
	}
	if sellers.updated.PlanExpiresAt == nil || !sellers.updated.PlanExpiresAt.Equal(expires) {
		t.Errorf("expected expiry persisted, got %v", sellers.updated.PlanExpiresAt)
	}
}

func TestAssignPlan_CountersCarryOver(t *testing.T) {
	stored := 1
	seller := proSeller(&stored)
	seller.Subscription.UsedCertifications = 2
	sellers := &fakeSellerStore{seller: seller}
	router := routerFor(newTestSubscriptionHandler(sellers, &fakeCatalogStore{}, nil))

	rr := performJSON(t, router, http.MethodPost, "/admin/sellers/seller_1/plan", AssignPlanRequest{
		PlanID: types.PlanPremium,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if sellers.updated.UsedCertifications != 2 {
		t.Errorf("expected used certifications carried over, got %d", sellers.updated.UsedCertifications)
	}
	if sellers.updated.StoredFeaturedCredits == nil || *sellers.updated.StoredFeaturedCredits != 1 {
		t.Errorf("expected stored credits carried over, got %v", sellers.updated.StoredFeaturedCredits)
	}
}

func TestAssignPlan_UnknownPlan(t *testing.T) {
	sellers := &fakeSellerStore{seller: proSeller(nil)}
	router := routerFor(newTestSubscriptionHandler(sellers, &fakeCatalogStore{}, nil))

	rr := performJSON(t, router, http.MethodPost, "/admin/sellers/seller_1/plan", AssignPlanRequest{
		PlanID: "plan_ghost",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
	if sellers.updated != nil {
		t.Error("expected no persistence on unknown plan")
	}
}

func TestAssignPlan_ExpiryBeforeActivationRejected(t *testing.T) {
	sellers := &fakeSellerStore{seller: proSeller(nil)}
	router := routerFor(newTestSubscriptionHandler(sellers, &fakeCatalogStore{}, nil))

	activated := fixedTime().Add(-time.Hour)
	expires := activated.Add(-24 * time.Hour)
	rr := performJSON(t, router, http.MethodPost, "/admin/sellers/seller_1/plan", AssignPlanRequest{
		PlanID:      types.PlanPro,
		ActivatedAt: &activated,
		ExpiresAt:   &expires,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCodeOf(t, rr); code != string(types.ErrCodeValidationDateRange) {
		t.Errorf("expected %s, got %s", types.ErrCodeValidationDateRange, code)
	}
}

func TestAssignPlan_MissingPlanID(t *testing.T) {
	sellers := &fakeSellerStore{seller: proSeller(nil)}
	router := routerFor(newTestSubscriptionHandler(sellers, &fakeCatalogStore{}, nil))

	rr := performJSON(t, router, http.MethodPost, "/admin/sellers/seller_1/plan", map[string]any{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAssignPlan_ConcurrentModification(t *testing.T) {
	sellers := &fakeSellerStore{
		seller:    proSeller(nil),
		updateErr: types.NewAppError(types.ErrCodeConflictConcurrent, "subscription was modified concurrently", nil),
	}
	router := routerFor(newTestSubscriptionHandler(sellers, &fakeCatalogStore{}, nil))

	rr := performJSON(t, router, http.MethodPost, "/admin/sellers/seller_1/plan", AssignPlanRequest{
		PlanID: types.PlanPro,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestEditExpiry_Set(t *testing.T) {
	sellers := &fakeSellerStore{seller: proSeller(nil)}
	router := routerFor(newTestSubscriptionHandler(sellers, &fakeCatalogStore{}, nil))

	expires := fixedTime().Add(7 * 24 * time.Hour)
	rr := performJSON(t, router, http.MethodPatch, "/admin/sellers/seller_1/plan/expiry", EditExpiryRequest{
		ExpiresAt: &expires,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if sellers.updated == nil || sellers.updated.PlanExpiresAt == nil {
		t.Fatal("expected expiry persisted")
	}
	if !sellers.updated.PlanExpiresAt.Equal(expires) {
		t.Errorf("expected expiry %v, got %v", expires, sellers.updated.PlanExpiresAt)
	}
	if sellers.updated.PlanID != types.PlanPro {
		t.Errorf("expected plan untouched, got %v", sellers.updated.PlanID)
	}
}

func TestEditExpiry_Clear(t *testing.T) {
	seller := proSeller(nil)
	expires := fixedTime().Add(24 * time.Hour)
	seller.Subscription.PlanExpiresAt = &expires
	sellers := &fakeSellerStore{seller: seller}
	router := routerFor(newTestSubscriptionHandler(sellers, &fakeCatalogStore{}, nil))

	rr := performJSON(t, router, http.MethodPatch, "/admin/sellers/seller_1/plan/expiry", map[string]any{
		"expires_at": nil,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if sellers.updated == nil {
		t.Fatal("expected subscription persisted")
	}
	if sellers.updated.PlanExpiresAt != nil {
		t.Errorf("expected expiry cleared, got %v", sellers.updated.PlanExpiresAt)
	}
}

func TestEditExpiry_BeforeActivationRejected(t *testing.T) {
	sellers := &fakeSellerStore{seller: proSeller(nil)}
	router := routerFor(newTestSubscriptionHandler(sellers, &fakeCatalogStore{}, nil))

	// Activation is 10 days before fixedTime; aim before that.
	expires := fixedTime().Add(-11 * 24 * time.Hour)
	rr := performJSON(t, router, http.MethodPatch, "/admin/sellers/seller_1/plan/expiry", EditExpiryRequest{
		ExpiresAt: &expires,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCheckout_Success(t *testing.T) {
	sellers := &fakeSellerStore{seller: proSeller(nil)}
	checkout := &fakeCheckoutService{}
	router := routerFor(newTestSubscriptionHandler(sellers, &fakeCatalogStore{}, checkout))

	rr := performJSON(t, router, http.MethodPost, "/sellers/seller_1/checkout", CheckoutRequest{
		PlanID: types.PlanPremium,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp CheckoutResponse
	parseData(t, rr, &resp)

	if resp.CheckoutURL != "https://checkout.stripe.com/pay/cs_test" {
		t.Errorf("unexpected checkout url %q", resp.CheckoutURL)
	}
	if checkout.lastPlan.ID != types.PlanPremium {
		t.Errorf("expected premium passed to checkout, got %v", checkout.lastPlan.ID)
	}
}

func TestCheckout_FreePlanRejected(t *testing.T) {
	sellers := &fakeSellerStore{seller: proSeller(nil)}
	router := routerFor(newTestSubscriptionHandler(sellers, &fakeCatalogStore{}, &fakeCheckoutService{}))

	rr := performJSON(t, router, http.MethodPost, "/sellers/seller_1/checkout", CheckoutRequest{
		PlanID: types.PlanFree,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCheckout_NotConfigured(t *testing.T) {
	sellers := &fakeSellerStore{seller: proSeller(nil)}
	router := routerFor(newTestSubscriptionHandler(sellers, &fakeCatalogStore{}, nil))

	rr := performJSON(t, router, http.MethodPost, "/sellers/seller_1/checkout", CheckoutRequest{
		PlanID: types.PlanPro,
	})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCheckout_SellerNotFound(t *testing.T) {
	sellers := &fakeSellerStore{getErr: types.NewAppError(types.ErrCodeNotFoundSeller, "seller not found", nil)}
	router := routerFor(newTestSubscriptionHandler(sellers, &fakeCatalogStore{}, &fakeCheckoutService{}))

	rr := performJSON(t, router, http.MethodPost, "/sellers/seller_gone/checkout", CheckoutRequest{
		PlanID: types.PlanPro,
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}
