package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/emreisik/kahveqr/internal/business"
	"github.com/emreisik/kahveqr/services"
)

type BusinessAuthHandler struct {
	authService *services.AuthService
}

func NewBusinessAuthHandler(authService *services.AuthService) *BusinessAuthHandler {
	return &BusinessAuthHandler{
		authService: authService,
	}
}

func (h *BusinessAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req business.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.authService.LoginBusiness(ctx, &req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}
