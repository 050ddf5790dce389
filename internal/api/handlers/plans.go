// Package handlers contains the HTTP handler implementations for the seller
// subscription API.
//
// This file implements the plan catalog surface:
//   - GET /v1/plans (public listing for the pricing page)
//   - POST/PUT/DELETE /v1/admin/plans (administrator catalog management)
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reride/internal/billing"
	"reride/internal/core"
	"reride/internal/types"
)

// PlanHandler serves the catalog listing and administrator plan management.
// The store contract lives in the billing package so the db implementation
// and this handler agree on the transaction-view type.
type PlanHandler struct {
	store  billing.CatalogStore
	recon  *billing.Reconciler
	logger *slog.Logger
}

// NewPlanHandler creates a PlanHandler with the provided dependencies.
func NewPlanHandler(store billing.CatalogStore, recon *billing.Reconciler, logger *slog.Logger) *PlanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanHandler{store: store, recon: recon, logger: logger}
}

// RegisterRoutes mounts the plan endpoints under /v1.
func (h *PlanHandler) RegisterRoutes(r chi.Router) {
	r.Get("/plans", h.List)
	r.Route("/admin/plans", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Put("/{planID}", h.Update)
		r.Delete("/{planID}", h.Delete)
	})
}

// List handles GET /v1/plans. It returns every plan in catalog order,
// built-ins first, backfilling any built-in missing from storage.
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	stored, err := h.store.Plans(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, billing.NewCatalog(stored).Plans())
}

// Create handles POST /v1/admin/plans. The capacity check and the insert
// happen against the same locked catalog read, so two concurrent creates
// cannot both observe a free slot.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft types.PlanDraft
	if err := core.DecodeJSON(w, r, &draft); err != nil {
		core.Error(w, r, err)
		return
	}

	var created types.PlanDefinition
	err := h.store.Mutate(r.Context(), func(tx billing.CatalogTx) error {
		stored, err := tx.Plans(r.Context())
		if err != nil {
			return err
		}

		catalog := billing.NewCatalog(stored)
		plan, err := h.recon.CreatePlan(catalog, draft)
		if err != nil {
			return err
		}

		if err := tx.Upsert(r.Context(), plan); err != nil {
			return err
		}
		created = plan
		return nil
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, created)
}

// Update handles PUT /v1/admin/plans/{planID}. Both built-in and custom
// plans accept edits; the plan id never changes.
func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	planID := types.PlanID(chi.URLParam(r, "planID"))

	var draft types.PlanDraft
	if err := core.DecodeJSON(w, r, &draft); err != nil {
		core.Error(w, r, err)
		return
	}

	var updated types.PlanDefinition
	err := h.store.Mutate(r.Context(), func(tx billing.CatalogTx) error {
		stored, err := tx.Plans(r.Context())
		if err != nil {
			return err
		}

		catalog := billing.NewCatalog(stored)
		plan, err := h.recon.UpdatePlan(catalog, planID, draft)
		if err != nil {
			return err
		}

		if err := tx.Upsert(r.Context(), plan); err != nil {
			return err
		}
		updated = plan
		return nil
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, updated)
}

// Delete handles DELETE /v1/admin/plans/{planID}. Built-ins are always
// refused. Sellers left referencing the deleted plan fall back to the free
// tier on their next entitlement read.
func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	planID := types.PlanID(chi.URLParam(r, "planID"))

	err := h.store.Mutate(r.Context(), func(tx billing.CatalogTx) error {
		stored, err := tx.Plans(r.Context())
		if err != nil {
			return err
		}

		catalog := billing.NewCatalog(stored)
		if err := h.recon.DeletePlan(catalog, planID); err != nil {
			return err
		}

		return tx.Delete(r.Context(), planID)
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, map[string]any{"deleted": string(planID)})
}
