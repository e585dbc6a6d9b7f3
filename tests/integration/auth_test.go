package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emreisik/kahveqr/handlers"
	"github.com/emreisik/kahveqr/internal/business"
	"github.com/emreisik/kahveqr/internal/customer"
	"github.com/emreisik/kahveqr/middleware"
	"github.com/emreisik/kahveqr/services"
	"github.com/emreisik/kahveqr/tests/helpers"
)

func TestRegister_CreatesCustomer(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	authService := services.NewAuthService(pool)
	authHandler := handlers.NewAuthHandler(authService)

	body := `{"email": "testregister@example.com", "password": "sekret1", "name": "Test Register"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	// Execute
	authHandler.Register(rr, req)

	// Assert
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var response customer.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	require.NotNil(t, response.User)
	assert.Equal(t, "testregister@example.com", response.User.Email)
	assert.Equal(t, "Test Register", response.User.Name)
	assert.NotEmpty(t, response.Token)
}

func TestRegister_DuplicateEmailRejected(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	authService := services.NewAuthService(pool)
	authHandler := handlers.NewAuthHandler(authService)

	helpers.CreateTestCustomer(t, pool, "testdupe@example.com")

	body := `{"email": "testdupe@example.com", "password": "sekret1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	// Execute
	authHandler.Register(rr, req)

	// Assert
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "already in use")
}

func TestLogin_WrongPassword(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	authService := services.NewAuthService(pool)
	authHandler := handlers.NewAuthHandler(authService)

	helpers.CreateTestCustomer(t, pool, "testlogin@example.com")

	body := `{"email": "testlogin@example.com", "password": "not-the-password"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	// Execute
	authHandler.Login(rr, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetMe_Authenticated(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	authService := services.NewAuthService(pool)
	authHandler := handlers.NewAuthHandler(authService)

	userID := helpers.CreateTestCustomer(t, pool, "testme@example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	req = req.WithContext(ctx)
	rr := httptest.NewRecorder()

	// Execute
	authHandler.GetMe(rr, req)

	// Assert
	assert.Equal(t, http.StatusOK, rr.Code)

	var response customer.Customer
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, userID, response.ID)
	assert.Equal(t, "testme@example.com", response.Email)
}

func TestBusinessLogin_DisabledAccountRejected(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	authService := services.NewAuthService(pool)
	businessAuthHandler := handlers.NewBusinessAuthHandler(authService)

	brandID, branchID := helpers.CreateTestBrand(t, pool, "Test Brand Disabled", 5)
	staff := helpers.CreateTestBusinessUser(t, pool, "testdisabled@example.com", business.RoleStaff, brandID, branchID)

	_, err := pool.Exec(context.Background(),
		`UPDATE business_users SET is_active = false WHERE id = $1`, staff.ID)
	require.NoError(t, err)

	body := `{"email": "testdisabled@example.com", "password": "password123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/business-auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	// Execute
	businessAuthHandler.Login(rr, req)

	// Assert
	assert.Equal(t, http.StatusForbidden, rr.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "disabled")
}

func TestBusinessLogin_ReturnsToken(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	authService := services.NewAuthService(pool)
	businessAuthHandler := handlers.NewBusinessAuthHandler(authService)

	brandID, branchID := helpers.CreateTestBrand(t, pool, "Test Brand Biz", 5)
	helpers.CreateTestBusinessUser(t, pool, "testbizlogin@example.com", business.RoleBranchManager, brandID, branchID)

	body := `{"email": "testbizlogin@example.com", "password": "password123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/business-auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	// Execute
	businessAuthHandler.Login(rr, req)

	// Assert
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var response business.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Token)
	require.NotNil(t, response.BusinessUser)
	assert.Equal(t, business.RoleBranchManager, response.BusinessUser.Role)
}
