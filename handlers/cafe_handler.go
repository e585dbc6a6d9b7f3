package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/emreisik/kahveqr/services"
)

type CafeHandler struct {
	brandService *services.BrandService
}

func NewCafeHandler(brandService *services.BrandService) *CafeHandler {
	return &CafeHandler{
		brandService: brandService,
	}
}

func (h *CafeHandler) GetBrands(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	brands, err := h.brandService.ListBrands(ctx)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, brands)
}

func (h *CafeHandler) GetNearby(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var lat, lng *float64
	if v, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64); err == nil {
		lat = &v
	}
	if v, err := strconv.ParseFloat(r.URL.Query().Get("lng"), 64); err == nil {
		lng = &v
	}

	branches, err := h.brandService.NearbyBranches(ctx, lat, lng)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, branches)
}

func (h *CafeHandler) GetBrand(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	brand, err := h.brandService.GetBrand(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, brand)
}
