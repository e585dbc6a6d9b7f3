package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/emreisik/kahveqr/internal/apperr"
	"github.com/emreisik/kahveqr/middleware"
	"github.com/emreisik/kahveqr/services"
)

type ScanHandler struct {
	scanService *services.ScanService
}

func NewScanHandler(scanService *services.ScanService) *ScanHandler {
	return &ScanHandler{
		scanService: scanService,
	}
}

type scanRequest struct {
	QRData string `json:"qrData"`
}

func (h *ScanHandler) Stamp(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	actor, ok := middleware.GetBusinessUser(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QRData == "" {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.scanService.Stamp(ctx, actor, req.QRData)
	if err != nil {
		middleware.CountScanRejection(rejectionReason(err))
		respondWithAppError(w, err)
		return
	}

	middleware.CountStampIssued()
	respondWithJSON(w, http.StatusOK, result)
}

func (h *ScanHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	actor, ok := middleware.GetBusinessUser(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QRData == "" {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.scanService.Redeem(ctx, actor, req.QRData)
	if err != nil {
		middleware.CountScanRejection(rejectionReason(err))
		respondWithAppError(w, err)
		return
	}

	middleware.CountRewardRedeemed()
	respondWithJSON(w, http.StatusOK, result)
}

func rejectionReason(err error) string {
	appErr, ok := apperr.As(err)
	if !ok {
		return "internal"
	}
	switch appErr.Kind {
	case apperr.Validation:
		return "validation"
	case apperr.Forbidden:
		return "forbidden"
	case apperr.NotFound:
		return "not_found"
	case apperr.Cooldown:
		return "cooldown"
	}
	return "internal"
}
