// Package handlers contains the HTTP handler implementations for the seller
// subscription API.
//
// This file implements the Stripe webhook endpoint. It is mounted outside
// /v1 and is not behind any auth middleware -- Stripe calls it directly.
// Security comes from verifying the Stripe-Signature header.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reride/internal/billing"
	"reride/internal/core"
	"reride/internal/external"
	"reride/internal/types"
)

// maxWebhookBodySize caps Stripe webhook payloads at 64 KB. Checkout events
// are small; the limit protects against abuse.
const maxWebhookBodySize = 64 * 1024

// StripeWebhookHandler applies completed checkouts to seller subscriptions:
// a checkout.session.completed event assigns the purchased plan for one
// billing cycle.
type StripeWebhookHandler struct {
	verifier  external.WebhookVerifier
	sellers   SellerStore
	catalog   billing.CatalogStore
	recon     *billing.Reconciler
	secret    string
	cycleDays int
	logger    *slog.Logger

	now func() time.Time
}

// NewStripeWebhookHandler creates a StripeWebhookHandler with the provided
// dependencies.
func NewStripeWebhookHandler(
	verifier external.WebhookVerifier,
	sellers SellerStore,
	catalog billing.CatalogStore,
	recon *billing.Reconciler,
	secret string,
	cycleDays int,
	logger *slog.Logger,
) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier:  verifier,
		sellers:   sellers,
		catalog:   catalog,
		recon:     recon,
		secret:    secret,
		cycleDays: cycleDays,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes mounts the webhook endpoint. Kept separate from the /v1
// registrars because webhook routes are public.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// stripeEvent is the subset of the Stripe event envelope the handler reads.
type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// Handle processes incoming Stripe webhook events. Signature verification
// happens before any payload field is trusted. Unhandled event types are
// acknowledged with 200 so Stripe stops retrying them; a lost optimistic
// lock returns 409, which makes Stripe redeliver the event against the
// updated subscription state.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationRequest,
			"failed to read webhook body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationRequest,
			"missing Stripe-Signature header",
			nil,
		))
		return
	}

	if err := h.verifier.Verify(payload, sigHeader, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationRequest,
			"invalid webhook signature",
			nil,
		))
		return
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"malformed webhook payload",
			err,
		))
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		if err := h.applyCheckout(r, event); err != nil {
			core.Error(w, r, err)
			return
		}
	default:
		h.logger.InfoContext(r.Context(), "ignoring webhook event",
			"event_id", event.ID,
			"event_type", event.Type,
		)
	}

	core.JSON(w, r, http.StatusOK, map[string]any{"received": true})
}

// applyCheckout assigns the purchased plan for one billing cycle. The seller
// and plan ids come from the session metadata written at checkout creation.
func (h *StripeWebhookHandler) applyCheckout(r *http.Request, event stripeEvent) error {
	sellerID := event.Data.Object.Metadata["seller_id"]
	planID := types.PlanID(event.Data.Object.Metadata["plan_id"])
	if sellerID == "" || planID == "" {
		return types.NewAppError(
			types.ErrCodeValidationMissingField,
			"checkout session metadata is missing seller_id or plan_id",
			nil,
		)
	}

	ctx := r.Context()
	seller, err := h.sellers.GetByID(ctx, sellerID)
	if err != nil {
		return err
	}

	stored, err := h.catalog.Plans(ctx)
	if err != nil {
		return err
	}

	now := h.now()
	expiresAt := now.Add(time.Duration(h.cycleDays) * 24 * time.Hour)

	next, err := h.recon.AssignPlan(
		billing.NewCatalog(stored), seller.Subscription,
		planID, now, &expiresAt, now,
	)
	if err != nil {
		// The plan may have been deleted between checkout and completion.
		// Acknowledge rather than bounce forever; the payment is resolved
		// manually in that case.
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundPlan {
			h.logger.ErrorContext(ctx, "checkout completed for a plan no longer in the catalog",
				"event_id", event.ID,
				"seller_id", sellerID,
				"plan_id", string(planID),
			)
			return nil
		}
		return err
	}

	if err := h.sellers.UpdateSubscription(ctx, sellerID, next, seller.SubscriptionVersion); err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "checkout applied",
		"event_id", event.ID,
		"seller_id", sellerID,
		"plan_id", string(planID),
		"expires_at", expiresAt,
	)
	return nil
}
