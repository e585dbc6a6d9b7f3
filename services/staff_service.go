package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/emreisik/kahveqr/internal/apperr"
	"github.com/emreisik/kahveqr/internal/business"
)

// StaffService manages the brand's staff directory. Deletion is always a
// soft-deactivation so created_by provenance survives for the permission
// cascade.
type StaffService struct {
	db *pgxpool.Pool
}

func NewStaffService(db *pgxpool.Pool) *StaffService {
	return &StaffService{db: db}
}

// List returns staff visible to the actor: owners see their whole brand,
// branch managers only accounts they created in their branch.
func (s *StaffService) List(ctx context.Context, actor *business.BusinessUser) ([]*business.StaffMember, error) {
	if err := business.CanViewStaff(actor); err != nil {
		return nil, err
	}
	if actor.BrandID == nil {
		return nil, apperr.New(apperr.Validation, "Brand information not found")
	}

	query := `
		SELECT u.id, u.email, u.name, u.role, u.is_active, u.created_by,
		       u.last_login_at, u.created_at, b.name, br.name
		FROM business_users u
		JOIN cafe_brands b ON b.id = u.brand_id
		LEFT JOIN cafe_branches br ON br.id = u.branch_id
		WHERE u.brand_id = $1
	`
	args := []any{*actor.BrandID}

	if actor.Role == business.RoleBranchManager {
		query += ` AND u.branch_id = $2 AND u.created_by = $3`
		args = append(args, actor.BranchID, actor.ID)
	}
	query += ` ORDER BY u.created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	staff := []*business.StaffMember{}
	for rows.Next() {
		var m business.StaffMember
		err := rows.Scan(
			&m.ID, &m.Email, &m.Name, &m.Role, &m.IsActive, &m.CreatedBy,
			&m.LastLoginAt, &m.CreatedAt, &m.BrandName, &m.BranchName,
		)
		if err != nil {
			return nil, err
		}
		staff = append(staff, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return staff, nil
}

// Create adds a staff account under the actor's brand, recording the actor
// as creator.
func (s *StaffService) Create(ctx context.Context, actor *business.BusinessUser, req *business.CreateStaffRequest) (*business.StaffMember, error) {
	if !strings.Contains(req.Email, "@") {
		return nil, apperr.New(apperr.Validation, "Invalid email address")
	}
	if len(req.Name) < 2 {
		return nil, apperr.New(apperr.Validation, "Name must be at least 2 characters")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperr.Newf(apperr.Validation, "Password must be at least %d characters", minPasswordLength)
	}
	if !req.Role.Valid() {
		return nil, apperr.New(apperr.Validation, "Invalid role")
	}
	if actor.BrandID == nil {
		return nil, apperr.New(apperr.Validation, "Brand information not found")
	}

	if err := business.CheckCreateStaff(actor, req); err != nil {
		return nil, err
	}

	branchID := req.BranchID
	if branchID == nil {
		branchID = actor.BranchID
	}
	if branchID != nil {
		if err := s.verifyBranchInBrand(ctx, *branchID, *actor.BrandID); err != nil {
			return nil, err
		}
	}

	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM business_users WHERE email = $1)`, req.Email).Scan(&exists)
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

	var staffID string
	err = s.db.QueryRow(ctx, `
		INSERT INTO business_users (email, name, password_hash, role, brand_id, branch_id, created_by, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING id
	`, req.Email, req.Name, string(hash), req.Role, *actor.BrandID, branchID, actor.ID).Scan(&staffID)
	if err != nil {
		return nil, fmt.Errorf("failed to create staff: %w", err)
	}

	return s.getStaffMember(ctx, staffID)
}

// Update edits a staff account, enforcing the role policy and owner
// self-protection rules.
func (s *StaffService) Update(ctx context.Context, actor *business.BusinessUser, staffID string, req *business.UpdateStaffRequest) (*business.StaffMember, error) {
	target, err := s.getBusinessUser(ctx, staffID)
	if err != nil {
		return nil, err
	}

	if target.BrandID == nil || business.SameBrand(actor, *target.BrandID) != nil {
		return nil, apperr.New(apperr.Forbidden, "You are not allowed to edit this staff member")
	}
	if req.Role != nil && !req.Role.Valid() {
		return nil, apperr.New(apperr.Validation, "Invalid role")
	}
	if err := business.CheckUpdateStaff(actor, target, req); err != nil {
		return nil, err
	}

	var passwordHash *string
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			return nil, apperr.Newf(apperr.Validation, "Password must be at least %d characters", minPasswordLength)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		hashed := string(hash)
		passwordHash = &hashed
	}

	_, err = s.db.Exec(ctx, `
		UPDATE business_users
		SET name = COALESCE($1, name),
		    email = COALESCE($2, email),
		    role = COALESCE($3, role),
		    is_active = COALESCE($4, is_active),
		    password_hash = COALESCE($5, password_hash)
		WHERE id = $6
	`, req.Name, req.Email, req.Role, req.IsActive, passwordHash, staffID)
	if err != nil {
		return nil, fmt.Errorf("failed to update staff: %w", err)
	}

	return s.getStaffMember(ctx, staffID)
}

// Deactivate is the delete path: the row stays, is_active flips to false.
func (s *StaffService) Deactivate(ctx context.Context, actor *business.BusinessUser, staffID string) error {
	target, err := s.getBusinessUser(ctx, staffID)
	if err != nil {
		return err
	}

	if target.BrandID == nil || business.SameBrand(actor, *target.BrandID) != nil {
		return apperr.New(apperr.Forbidden, "You are not allowed to delete this staff member")
	}
	if err := business.CheckDeactivateStaff(actor, target); err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `UPDATE business_users SET is_active = false WHERE id = $1`, staffID)
	if err != nil {
		return fmt.Errorf("failed to deactivate staff: %w", err)
	}
	return nil
}

// Activate re-enables a deactivated account. Owner-only via the route gate.
func (s *StaffService) Activate(ctx context.Context, actor *business.BusinessUser, staffID string) error {
	target, err := s.getBusinessUser(ctx, staffID)
	if err != nil {
		return err
	}

	if target.BrandID == nil || business.SameBrand(actor, *target.BrandID) != nil {
		return apperr.New(apperr.Forbidden, "You are not allowed to activate this staff member")
	}

	_, err = s.db.Exec(ctx, `UPDATE business_users SET is_active = true WHERE id = $1`, staffID)
	if err != nil {
		return fmt.Errorf("failed to activate staff: %w", err)
	}
	return nil
}

// ResetPassword sets a new password for a staff member within the actor's
// scope.
func (s *StaffService) ResetPassword(ctx context.Context, actor *business.BusinessUser, staffID, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperr.Newf(apperr.Validation, "Password must be at least %d characters", minPasswordLength)
	}

	target, err := s.getBusinessUser(ctx, staffID)
	if err != nil {
		return err
	}

	if target.BrandID == nil || business.SameBrand(actor, *target.BrandID) != nil {
		return apperr.New(apperr.Forbidden, "You are not allowed to reset this staff member's password")
	}
	if err := business.CheckResetStaffPassword(actor, target); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = s.db.Exec(ctx, `UPDATE business_users SET password_hash = $1 WHERE id = $2`, string(hash), staffID)
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	return nil
}

func (s *StaffService) getBusinessUser(ctx context.Context, id string) (*business.BusinessUser, error) {
	var bu business.BusinessUser
	err := s.db.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, brand_id, branch_id,
		       is_active, created_by, last_login_at, created_at
		FROM business_users
		WHERE id = $1
	`, id).Scan(
		&bu.ID, &bu.Email, &bu.PasswordHash, &bu.Name, &bu.Role, &bu.BrandID,
		&bu.BranchID, &bu.IsActive, &bu.CreatedBy, &bu.LastLoginAt, &bu.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "Staff member not found")
		}
		return nil, fmt.Errorf("failed to get staff member: %w", err)
	}
	return &bu, nil
}

func (s *StaffService) getStaffMember(ctx context.Context, id string) (*business.StaffMember, error) {
	var m business.StaffMember
	err := s.db.QueryRow(ctx, `
		SELECT u.id, u.email, u.name, u.role, u.is_active, u.created_by,
		       u.last_login_at, u.created_at, b.name, br.name
		FROM business_users u
		JOIN cafe_brands b ON b.id = u.brand_id
		LEFT JOIN cafe_branches br ON br.id = u.branch_id
		WHERE u.id = $1
	`, id).Scan(
		&m.ID, &m.Email, &m.Name, &m.Role, &m.IsActive, &m.CreatedBy,
		&m.LastLoginAt, &m.CreatedAt, &m.BrandName, &m.BranchName,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "Staff member not found")
		}
		return nil, fmt.Errorf("failed to get staff member: %w", err)
	}
	return &m, nil
}

func (s *StaffService) verifyBranchInBrand(ctx context.Context, branchID, brandID string) error {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM cafe_branches WHERE id = $1 AND brand_id = $2)
	`, branchID, brandID).Scan(&ok)
	if err != nil {
		return fmt.Errorf("failed to verify branch: %w", err)
	}
	if !ok {
		return apperr.New(apperr.Forbidden, "Branch belongs to another brand")
	}
	return nil
}
