package helpers

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/emreisik/kahveqr/internal/business"
)

// SetupTestDB creates a test database connection
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		t.Fatal("TEST_DATABASE_URL or DATABASE_URL must be set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	return pool
}

// CleanupTestDB cleans up test data
func CleanupTestDB(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	stmts := []string{
		"DELETE FROM activities WHERE brand_id IN (SELECT id FROM cafe_brands WHERE name LIKE 'Test Brand%')",
		"DELETE FROM memberships WHERE brand_id IN (SELECT id FROM cafe_brands WHERE name LIKE 'Test Brand%')",
		"DELETE FROM business_users WHERE email LIKE 'test%@example.com'",
		"DELETE FROM cafe_branches WHERE brand_id IN (SELECT id FROM cafe_brands WHERE name LIKE 'Test Brand%')",
		"DELETE FROM cafe_brands WHERE name LIKE 'Test Brand%'",
		"DELETE FROM users WHERE email LIKE 'test%@example.com'",
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Logf("Warning: failed to cleanup test data: %v", err)
		}
	}
	pool.Close()
}

// CreateTestCustomer inserts a customer account and returns its id.
func CreateTestCustomer(t *testing.T, pool *pgxpool.Pool, email string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("Failed to hash test password: %v", err)
	}

	var id string
	err = pool.QueryRow(context.Background(),
		`INSERT INTO users (email, password_hash, name) VALUES ($1, $2, 'Test Customer') RETURNING id`,
		email, string(hash),
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test customer: %v", err)
	}
	return id
}

// CreateTestBrand inserts a brand with one branch and returns both ids.
func CreateTestBrand(t *testing.T, pool *pgxpool.Pool, name string, stampsRequired int) (brandID, branchID string) {
	ctx := context.Background()
	err := pool.QueryRow(ctx,
		`INSERT INTO cafe_brands (name, category, stamps_required, reward_name)
		 VALUES ($1, 'coffee', $2, 'Free coffee') RETURNING id`,
		name, stampsRequired,
	).Scan(&brandID)
	if err != nil {
		t.Fatalf("Failed to create test brand: %v", err)
	}

	err = pool.QueryRow(ctx,
		`INSERT INTO cafe_branches (brand_id, name, address) VALUES ($1, 'Main', 'Test Street 1') RETURNING id`,
		brandID,
	).Scan(&branchID)
	if err != nil {
		t.Fatalf("Failed to create test branch: %v", err)
	}
	return brandID, branchID
}

// CreateTestBusinessUser inserts a staff account for the given brand/branch.
// branchID may be empty for owners without a home branch.
func CreateTestBusinessUser(t *testing.T, pool *pgxpool.Pool, email string, role business.Role, brandID, branchID string) *business.BusinessUser {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("Failed to hash test password: %v", err)
	}

	var branch *string
	if branchID != "" {
		branch = &branchID
	}

	bu := &business.BusinessUser{
		Email:    email,
		Name:     "Test " + string(role),
		Role:     role,
		BrandID:  &brandID,
		BranchID: branch,
		IsActive: true,
	}
	err = pool.QueryRow(context.Background(),
		`INSERT INTO business_users (email, password_hash, name, role, brand_id, branch_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		email, string(hash), bu.Name, string(role), brandID, branch,
	).Scan(&bu.ID)
	if err != nil {
		t.Fatalf("Failed to create test business user: %v", err)
	}
	return bu
}

// EarnQRData builds the JSON payload a customer's stamp tab encodes.
func EarnQRData(t *testing.T, userID, email string, issuedAt time.Time) string {
	data, err := json.Marshal(map[string]any{
		"type":      "user",
		"userId":    userID,
		"email":     email,
		"timestamp": issuedAt.UnixMilli(),
	})
	if err != nil {
		t.Fatalf("Failed to marshal QR payload: %v", err)
	}
	return string(data)
}

// RedeemQRData builds the JSON payload a customer's redeem screen encodes.
func RedeemQRData(t *testing.T, userID, brandID string, issuedAt time.Time) string {
	data, err := json.Marshal(map[string]any{
		"type":      "redeem",
		"userId":    userID,
		"brandId":   brandID,
		"timestamp": issuedAt.UnixMilli(),
	})
	if err != nil {
		t.Fatalf("Failed to marshal QR payload: %v", err)
	}
	return string(data)
}
