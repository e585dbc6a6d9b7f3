package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emreisik/kahveqr/internal/apperr"
	"github.com/emreisik/kahveqr/internal/auth"
	"github.com/emreisik/kahveqr/internal/business"
)

type stubLoader struct {
	user *business.BusinessUser
	err  error
}

func (s *stubLoader) GetBusinessUserByID(ctx context.Context, id string) (*business.BusinessUser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func bearerRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestBusinessAuth_RejectsCustomerToken(t *testing.T) {
	customerToken, err := auth.GenerateCustomerToken("user-1")
	require.NoError(t, err)

	var called bool
	loader := &stubLoader{user: &business.BusinessUser{ID: "staff-1", IsActive: true}}
	handler := BusinessAuthMiddleware(loader)(okHandler(&called))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, bearerRequest(customerToken))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, called, "a customer token must never reach business routes")
}

func TestCustomerAuth_RejectsBusinessToken(t *testing.T) {
	businessToken, err := auth.GenerateBusinessToken("staff-1")
	require.NoError(t, err)

	var called bool
	handler := CustomerAuthMiddleware(okHandler(&called))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, bearerRequest(businessToken))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, called, "a business token must never reach customer routes")
}

func TestBusinessAuth_LoaderNotFoundIs404(t *testing.T) {
	token, err := auth.GenerateBusinessToken("staff-gone")
	require.NoError(t, err)

	var called bool
	loader := &stubLoader{err: apperr.New(apperr.NotFound, "Business user not found")}
	handler := BusinessAuthMiddleware(loader)(okHandler(&called))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, bearerRequest(token))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.False(t, called)
}

func TestBusinessAuth_LoaderFailureIs500(t *testing.T) {
	token, err := auth.GenerateBusinessToken("staff-1")
	require.NoError(t, err)

	var called bool
	loader := &stubLoader{err: errors.New("connection refused")}
	handler := BusinessAuthMiddleware(loader)(okHandler(&called))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, bearerRequest(token))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.False(t, called)
}

func TestBusinessAuth_DisabledAccountIs403(t *testing.T) {
	token, err := auth.GenerateBusinessToken("staff-1")
	require.NoError(t, err)

	var called bool
	loader := &stubLoader{user: &business.BusinessUser{ID: "staff-1", IsActive: false}}
	handler := BusinessAuthMiddleware(loader)(okHandler(&called))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, bearerRequest(token))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, called)
}

func TestBusinessAuth_PassesActiveUser(t *testing.T) {
	token, err := auth.GenerateBusinessToken("staff-1")
	require.NoError(t, err)

	loader := &stubLoader{user: &business.BusinessUser{ID: "staff-1", Role: business.RoleStaff, IsActive: true}}
	handler := BusinessAuthMiddleware(loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bu, ok := GetBusinessUser(r.Context())
		require.True(t, ok)
		assert.Equal(t, "staff-1", bu.ID)
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, bearerRequest(token))

	assert.Equal(t, http.StatusOK, rr.Code)
}
