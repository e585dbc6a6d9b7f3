package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/emreisik/kahveqr/internal/brand"
	"github.com/emreisik/kahveqr/middleware"
	"github.com/emreisik/kahveqr/services"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
	brandService     *services.BrandService
}

func NewDashboardHandler(dashboardService *services.DashboardService, brandService *services.BrandService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		brandService:     brandService,
	}
}

func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	actor, ok := middleware.GetBusinessUser(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	stats, err := h.dashboardService.Dashboard(ctx, actor)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

func (h *DashboardHandler) Customers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	actor, ok := middleware.GetBusinessUser(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	customers, err := h.dashboardService.Customers(ctx, actor)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, customers)
}

func (h *DashboardHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	actor, ok := middleware.GetBusinessUser(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	filter := services.TransactionFilter{
		Type:      r.URL.Query().Get("type"),
		DateRange: r.URL.Query().Get("dateRange"),
		Search:    r.URL.Query().Get("search"),
	}

	transactions, err := h.dashboardService.Transactions(ctx, actor, filter)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, transactions)
}

func (h *DashboardHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	actor, ok := middleware.GetBusinessUser(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	stats, err := h.dashboardService.Statistics(ctx, actor, r.URL.Query().Get("dateRange"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

func (h *DashboardHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	actor, ok := middleware.GetBusinessUser(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	settings, err := h.brandService.GetSettings(ctx, actor)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, settings)
}

func (h *DashboardHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	actor, ok := middleware.GetBusinessUser(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req services.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.brandService.UpdateSettings(ctx, actor, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	settings, err := h.brandService.GetSettings(ctx, actor)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Settings updated successfully",
		"settings": settings,
	})
}

func (h *DashboardHandler) GetLoyalty(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	actor, ok := middleware.GetBusinessUser(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	program, err := h.brandService.GetLoyalty(ctx, actor)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, program)
}

func (h *DashboardHandler) UpdateLoyalty(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	actor, ok := middleware.GetBusinessUser(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req brand.UpdateLoyaltyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	program, err := h.brandService.UpdateLoyalty(ctx, actor, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Loyalty program updated successfully",
		"loyalty": program,
	})
}
