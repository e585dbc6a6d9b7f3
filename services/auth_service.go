package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/emreisik/kahveqr/internal/apperr"
	"github.com/emreisik/kahveqr/internal/auth"
	"github.com/emreisik/kahveqr/internal/business"
	"github.com/emreisik/kahveqr/internal/customer"
)

const minPasswordLength = 6

type AuthService struct {
	db *pgxpool.Pool
}

func NewAuthService(db *pgxpool.Pool) *AuthService {
	return &AuthService{db: db}
}

// RegisterCustomer creates a customer account and returns it with a fresh
// bearer token. Only the bcrypt hash of the password is stored.
func (s *AuthService) RegisterCustomer(ctx context.Context, req *customer.RegisterRequest) (*customer.AuthResponse, error) {
	if !strings.Contains(req.Email, "@") {
		return nil, apperr.New(apperr.Validation, "Invalid email address")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperr.Newf(apperr.Validation, "Password must be at least %d characters", minPasswordLength)
	}

	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, req.Email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing email: %w", err)
	}
	if exists {
		return nil, apperr.New(apperr.Validation, "This email address is already in use")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	name := req.Name
	if name == "" {
		name = strings.Split(req.Email, "@")[0]
	}

	var c customer.Customer
	query := `
		INSERT INTO users (email, password_hash, name)
		VALUES ($1, $2, $3)
		RETURNING id, email, name, phone, created_at, updated_at
	`
	err = s.db.QueryRow(ctx, query, req.Email, string(hash), name).Scan(
		&c.ID, &c.Email, &c.Name, &c.Phone, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := auth.GenerateCustomerToken(c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &customer.AuthResponse{User: &c, Token: token}, nil
}

// LoginCustomer verifies email/password credentials.
func (s *AuthService) LoginCustomer(ctx context.Context, req *customer.LoginRequest) (*customer.AuthResponse, error) {
	var c customer.Customer
	var passwordHash *string
	query := `
		SELECT id, email, password_hash, name, phone, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	err := s.db.QueryRow(ctx, query, req.Email).Scan(
		&c.ID, &c.Email, &passwordHash, &c.Name, &c.Phone, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if passwordHash == nil {
		return nil, apperr.New(apperr.Unauthorized, "Invalid password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*passwordHash), []byte(req.Password)); err != nil {
		return nil, apperr.New(apperr.Unauthorized, "Invalid password")
	}

	token, err := auth.GenerateCustomerToken(c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &customer.AuthResponse{User: &c, Token: token}, nil
}

// DemoLogin gets or creates the shared demo account.
func (s *AuthService) DemoLogin(ctx context.Context) (*customer.AuthResponse, error) {
	var c customer.Customer
	query := `
		SELECT id, email, name, phone, created_at, updated_at
		FROM users
		WHERE email = 'demo@kahveqr.com'
	`
	err := s.db.QueryRow(ctx, query).Scan(&c.ID, &c.Email, &c.Name, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		insert := `
			INSERT INTO users (email, name, phone)
			VALUES ('demo@kahveqr.com', 'Demo User', '+905551234567')
			RETURNING id, email, name, phone, created_at, updated_at
		`
		err = s.db.QueryRow(ctx, insert).Scan(&c.ID, &c.Email, &c.Name, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get demo user: %w", err)
	}

	token, err := auth.GenerateCustomerToken(c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &customer.AuthResponse{User: &c, Token: token}, nil
}

func (s *AuthService) GetCustomerByID(ctx context.Context, userID string) (*customer.Customer, error) {
	var c customer.Customer
	query := `
		SELECT id, email, name, phone, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&c.ID, &c.Email, &c.Name, &c.Phone, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &c, nil
}

func (s *AuthService) UpdateCustomerProfile(ctx context.Context, userID string, req *customer.UpdateProfileRequest) (*customer.Customer, error) {
	var c customer.Customer
	query := `
		UPDATE users
		SET name = COALESCE($1, name),
		    email = COALESCE($2, email),
		    phone = COALESCE($3, phone),
		    updated_at = now()
		WHERE id = $4
		RETURNING id, email, name, phone, created_at, updated_at
	`
	err := s.db.QueryRow(ctx, query, req.Name, req.Email, req.Phone, userID).Scan(
		&c.ID, &c.Email, &c.Name, &c.Phone, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "User not found")
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &c, nil
}

// LoginBusiness verifies staff credentials, rejects deactivated accounts and
// records the login time.
func (s *AuthService) LoginBusiness(ctx context.Context, req *business.LoginRequest) (*business.AuthResponse, error) {
	bu, err := s.getBusinessUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	if !bu.IsActive {
		return nil, apperr.New(apperr.Forbidden, "Your account has been disabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(bu.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.New(apperr.Unauthorized, "Invalid password")
	}

	_, err = s.db.Exec(ctx, `UPDATE business_users SET last_login_at = now() WHERE id = $1`, bu.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to record login time: %w", err)
	}
	now := time.Now()
	bu.LastLoginAt = &now

	token, err := auth.GenerateBusinessToken(bu.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &business.AuthResponse{BusinessUser: bu, Token: token}, nil
}

// GetBusinessUserByID loads a staff account; used by the business auth
// middleware on every request.
func (s *AuthService) GetBusinessUserByID(ctx context.Context, id string) (*business.BusinessUser, error) {
	var bu business.BusinessUser
	query := `
		SELECT id, email, password_hash, name, role, brand_id, branch_id,
		       is_active, created_by, last_login_at, created_at
		FROM business_users
		WHERE id = $1
	`
	err := s.db.QueryRow(ctx, query, id).Scan(
		&bu.ID, &bu.Email, &bu.PasswordHash, &bu.Name, &bu.Role, &bu.BrandID,
		&bu.BranchID, &bu.IsActive, &bu.CreatedBy, &bu.LastLoginAt, &bu.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "Business user not found")
		}
		return nil, fmt.Errorf("failed to get business user: %w", err)
	}
	return &bu, nil
}

func (s *AuthService) getBusinessUserByEmail(ctx context.Context, email string) (*business.BusinessUser, error) {
	var bu business.BusinessUser
	query := `
		SELECT id, email, password_hash, name, role, brand_id, branch_id,
		       is_active, created_by, last_login_at, created_at
		FROM business_users
		WHERE email = $1
	`
	err := s.db.QueryRow(ctx, query, email).Scan(
		&bu.ID, &bu.Email, &bu.PasswordHash, &bu.Name, &bu.Role, &bu.BrandID,
		&bu.BranchID, &bu.IsActive, &bu.CreatedBy, &bu.LastLoginAt, &bu.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "Business user not found")
		}
		return nil, fmt.Errorf("failed to get business user: %w", err)
	}
	return &bu, nil
}
