package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reride/internal/billing"
	"reride/internal/core"
	"reride/internal/types"
)

// SellerReader provides the seller lookup the entitlement surface needs.
// db.SellerRepo satisfies it.
type SellerReader interface {
	GetByID(ctx context.Context, id string) (*types.Seller, error)
}

// ListingReader provides the listing projections entitlement math counts
// against. db.ListingRepo satisfies it.
type ListingReader interface {
	SnapshotsBySeller(ctx context.Context, sellerID string) ([]types.ListingSnapshot, error)
}

// EntitlementHandler serves GET /v1/sellers/{sellerID}/entitlements. The
// report is recomputed from live data on every request; nothing derived is
// ever persisted, so a drifted stored counter heals on the next read.
type EntitlementHandler struct {
	sellers  SellerReader
	listings ListingReader
	catalog  billing.CatalogStore
	recon    *billing.Reconciler
	logger   *slog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewEntitlementHandler creates an EntitlementHandler with the provided
// dependencies.
func NewEntitlementHandler(
	sellers SellerReader,
	listings ListingReader,
	catalog billing.CatalogStore,
	recon *billing.Reconciler,
	logger *slog.Logger,
) *EntitlementHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntitlementHandler{
		sellers:  sellers,
		listings: listings,
		catalog:  catalog,
		recon:    recon,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes mounts the entitlement endpoint under /v1.
func (h *EntitlementHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sellers/{sellerID}/entitlements", h.Get)
}

// Get computes the entitlement report for one seller.
func (h *EntitlementHandler) Get(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")

	seller, err := h.sellers.GetByID(r.Context(), sellerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	snapshots, err := h.listings.SnapshotsBySeller(r.Context(), sellerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	stored, err := h.catalog.Plans(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	report := h.recon.Report(billing.NewCatalog(stored), seller.Subscription, snapshots, h.now())
	core.JSON(w, r, http.StatusOK, report)
}
