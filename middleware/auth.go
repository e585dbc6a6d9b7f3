package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/emreisik/kahveqr/internal/apperr"
	"github.com/emreisik/kahveqr/internal/auth"
	"github.com/emreisik/kahveqr/internal/business"
)

type contextKey string

const UserIDKey contextKey = "userID"
const BusinessUserKey contextKey = "businessUser"

// BusinessUserLoader fetches the acting staff account during business
// authentication; implemented by services.AuthService.
type BusinessUserLoader interface {
	GetBusinessUserByID(ctx context.Context, id string) (*business.BusinessUser, error)
}

// CustomerAuthMiddleware validates a customer bearer token and puts the
// customer id on the request context.
func CustomerAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(w, r)
		if !ok {
			return
		}

		userID, err := auth.VerifyCustomerToken(token)
		if err != nil {
			respondWithError(w, http.StatusForbidden, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BusinessAuthMiddleware validates a business bearer token, loads the staff
// account and rejects deactivated accounts. Customer tokens never pass here:
// they carry a different claim.
func BusinessAuthMiddleware(loader BusinessUserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(w, r)
			if !ok {
				return
			}

			businessUserID, err := auth.VerifyBusinessToken(token)
			if err != nil {
				respondWithError(w, http.StatusForbidden, "Invalid or expired token")
				return
			}

			bu, err := loader.GetBusinessUserByID(r.Context(), businessUserID)
			if err != nil {
				if appErr, ok := apperr.As(err); ok && appErr.Kind == apperr.NotFound {
					respondWithError(w, http.StatusNotFound, "Business user not found")
					return
				}
				log.Printf("Business auth lookup failed: %v", err)
				respondWithError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			if !bu.IsActive {
				respondWithError(w, http.StatusForbidden, "Account is disabled")
				return
			}

			ctx := context.WithValue(r.Context(), BusinessUserKey, bu)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a business route to the given roles. Must run after
// BusinessAuthMiddleware.
func RequireRole(roles ...business.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bu, ok := GetBusinessUser(r.Context())
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			for _, role := range roles {
				if bu.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			respondWithError(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}

// GetUserID extracts the authenticated customer id from context.
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetBusinessUser extracts the authenticated staff account from context.
func GetBusinessUser(ctx context.Context) (*business.BusinessUser, bool) {
	bu, ok := ctx.Value(BusinessUserKey).(*business.BusinessUser)
	return bu, ok
}

func bearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		respondWithError(w, http.StatusUnauthorized, "Access token required")
		return "", false
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		respondWithError(w, http.StatusUnauthorized, "Invalid authorization format. Use 'Bearer <token>'")
		return "", false
	}
	return token, true
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"error": "` + message + `"}`))
}
