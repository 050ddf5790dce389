// Package handlers contains the HTTP handler implementations for the seller
// subscription API.
//
// This file implements the subscription lifecycle surface:
//   - POST /v1/admin/sellers/{sellerID}/plan (direct plan assignment)
//   - PATCH /v1/admin/sellers/{sellerID}/plan/expiry (expiry edit)
//   - POST /v1/sellers/{sellerID}/checkout (Stripe checkout for paid plans)
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reride/internal/billing"
	"reride/internal/config"
	"reride/internal/core"
	"reride/internal/types"
)

// SellerStore is the seller access the subscription surface needs: reads
// plus the optimistically locked subscription write. db.SellerRepo
// satisfies it.
type SellerStore interface {
	GetByID(ctx context.Context, id string) (*types.Seller, error)
	UpdateSubscription(ctx context.Context, sellerID string, sub types.SellerSubscriptionState, expectedVersion int) error
}

// CheckoutService creates hosted payment sessions. external.StripeClient
// satisfies it.
type CheckoutService interface {
	CreateCheckoutSession(
		ctx context.Context,
		sellerID string,
		email string,
		plan types.PlanDefinition,
		successURL string,
		cancelURL string,
	) (checkoutURL string, sessionID string, err error)
}

// AssignPlanRequest is the body for POST /v1/admin/sellers/{id}/plan.
// activated_at defaults to the current time; expires_at absent means the
// plan never expires.
type AssignPlanRequest struct {
	PlanID      types.PlanID `json:"plan_id" validate:"required"`
	ActivatedAt *time.Time   `json:"activated_at,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
}

// EditExpiryRequest is the body for PATCH /v1/admin/sellers/{id}/plan/expiry.
// A null expires_at clears the expiry.
type EditExpiryRequest struct {
	ExpiresAt *time.Time `json:"expires_at"`
}

// CheckoutRequest is the body for POST /v1/sellers/{id}/checkout.
type CheckoutRequest struct {
	PlanID types.PlanID `json:"plan_id" validate:"required"`
}

// CheckoutResponse is the response for POST /v1/sellers/{id}/checkout.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// SubscriptionHandler manages plan assignment, expiry edits, and checkout.
type SubscriptionHandler struct {
	sellers   SellerStore
	catalog   billing.CatalogStore
	recon     *billing.Reconciler
	checkout  CheckoutService
	validator *core.Validator
	billing   config.BillingConfig
	logger    *slog.Logger

	now func() time.Time
}

// NewSubscriptionHandler creates a SubscriptionHandler with the provided
// dependencies. checkout may be nil when Stripe is not configured; the
// checkout endpoint then reports the upstream as unavailable.
func NewSubscriptionHandler(
	sellers SellerStore,
	catalog billing.CatalogStore,
	recon *billing.Reconciler,
	checkout CheckoutService,
	billingCfg config.BillingConfig,
	v *core.Validator,
	logger *slog.Logger,
) *SubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionHandler{
		sellers:   sellers,
		catalog:   catalog,
		recon:     recon,
		checkout:  checkout,
		validator: v,
		billing:   billingCfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes mounts the subscription endpoints under /v1.
func (h *SubscriptionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/admin/sellers/{sellerID}/plan", h.AssignPlan)
	r.Patch("/admin/sellers/{sellerID}/plan/expiry", h.EditExpiry)
	r.Post("/sellers/{sellerID}/checkout", h.CreateCheckout)
}

// AssignPlan handles POST /v1/admin/sellers/{sellerID}/plan. The new state
// replaces the plan id and dates atomically; consumed counters carry over so
// an assignment can never refund already spent credits.
func (h *SubscriptionHandler) AssignPlan(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")

	var req AssignPlanRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	seller, err := h.sellers.GetByID(r.Context(), sellerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	stored, err := h.catalog.Plans(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	now := h.now()
	activatedAt := now
	if req.ActivatedAt != nil {
		activatedAt = req.ActivatedAt.UTC()
	}

	next, err := h.recon.AssignPlan(
		billing.NewCatalog(stored), seller.Subscription,
		req.PlanID, activatedAt, req.ExpiresAt, now,
	)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.sellers.UpdateSubscription(r.Context(), sellerID, next, seller.SubscriptionVersion); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, next)
}

// EditExpiry handles PATCH /v1/admin/sellers/{sellerID}/plan/expiry.
func (h *SubscriptionHandler) EditExpiry(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")

	var req EditExpiryRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	seller, err := h.sellers.GetByID(r.Context(), sellerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t := req.ExpiresAt.UTC()
		expiresAt = &t
	}

	next, err := h.recon.EditExpiry(seller.Subscription, expiresAt)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.sellers.UpdateSubscription(r.Context(), sellerID, next, seller.SubscriptionVersion); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, next)
}

// CreateCheckout handles POST /v1/sellers/{sellerID}/checkout. Only plans
// with a price can be checked out; the free tier (and any zero-priced custom
// plan) is assigned directly through the admin API instead.
func (h *SubscriptionHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")

	var req CheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if h.checkout == nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeUpstreamStripe,
			"checkout is not configured",
			nil,
		))
		return
	}

	seller, err := h.sellers.GetByID(r.Context(), sellerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	stored, err := h.catalog.Plans(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	plan, err := billing.NewCatalog(stored).Get(req.PlanID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if plan.Price == 0 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationPlan,
			"free plans cannot be checked out; assign them directly",
			nil,
		))
		return
	}

	checkoutURL, sessionID, err := h.checkout.CreateCheckoutSession(
		r.Context(), sellerID, seller.Email, plan,
		h.billing.CheckoutSuccessURL, h.billing.CheckoutCancelURL,
	)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "checkout session creation failed",
			"seller_id", sellerID,
			"plan_id", string(plan.ID),
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, CheckoutResponse{
		CheckoutURL: checkoutURL,
		SessionID:   sessionID,
	})
}
