package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/emreisik/kahveqr/middleware"
	"github.com/emreisik/kahveqr/services"
)

type QRHandler struct {
	qrService *services.QRService
}

func NewQRHandler(qrService *services.QRService) *QRHandler {
	return &QRHandler{
		qrService: qrService,
	}
}

func (h *QRHandler) GenerateUserCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	code, err := h.qrService.GenerateUserCode(ctx, userID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, code)
}

func (h *QRHandler) GenerateRedeemCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	brandID := r.URL.Query().Get("brandId")
	if brandID == "" {
		respondWithError(w, http.StatusBadRequest, "brandId is required")
		return
	}

	code, err := h.qrService.GenerateRedeemCode(ctx, userID, brandID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, code)
}
