package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emreisik/kahveqr/internal/apperr"
	"github.com/emreisik/kahveqr/internal/brand"
	"github.com/emreisik/kahveqr/internal/business"
)

// BranchService is the brand->branch directory.
type BranchService struct {
	db *pgxpool.Pool
}

func NewBranchService(db *pgxpool.Pool) *BranchService {
	return &BranchService{db: db}
}

// ResolveScanBranch returns the branch a scan is attributed to: the actor's
// own branch, or for owners (who carry none) the brand's earliest-created
// branch.
func (s *BranchService) ResolveScanBranch(ctx context.Context, actor *business.BusinessUser) (string, error) {
	if actor.BranchID != nil {
		return *actor.BranchID, nil
	}
	if actor.BrandID == nil {
		return "", apperr.New(apperr.Validation, "Brand information not found")
	}

	var branchID string
	err := s.db.QueryRow(ctx, `
		SELECT id FROM cafe_branches
		WHERE brand_id = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, *actor.BrandID).Scan(&branchID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", apperr.New(apperr.Validation, "No branch found for this brand")
		}
		return "", fmt.Errorf("failed to resolve scan branch: %w", err)
	}
	return branchID, nil
}

// ListByBrand returns the brand's branches in creation order.
func (s *BranchService) ListByBrand(ctx context.Context, actor *business.BusinessUser) ([]*brand.Branch, error) {
	if actor.BrandID == nil {
		return nil, apperr.New(apperr.Validation, "Brand information not found")
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, brand_id, name, address, phone, latitude, longitude,
		       open_now, working_hours, notification_settings, created_at
		FROM cafe_branches
		WHERE brand_id = $1
		ORDER BY created_at ASC
	`, *actor.BrandID)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer rows.Close()

	return scanBranches(rows)
}

// Create adds a branch to the actor's brand. Owner-only, enforced by the
// route's role gate.
func (s *BranchService) Create(ctx context.Context, actor *business.BusinessUser, req *brand.CreateBranchRequest) (*brand.Branch, error) {
	if actor.BrandID == nil {
		return nil, apperr.New(apperr.Validation, "Brand information not found")
	}
	if len(req.Name) < 2 {
		return nil, apperr.New(apperr.Validation, "Branch name must be at least 2 characters")
	}

	workingHours, err := jsonOrNil(req.WorkingHours)
	if err != nil {
		return nil, err
	}
	notificationSettings, err := jsonOrNil(req.NotificationSettings)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO cafe_branches (brand_id, name, address, phone, latitude, longitude, working_hours, notification_settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, brand_id, name, address, phone, latitude, longitude,
		          open_now, working_hours, notification_settings, created_at
	`, *actor.BrandID, req.Name, req.Address, req.Phone, req.Latitude, req.Longitude, workingHours, notificationSettings)

	b, err := scanBranch(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create branch: %w", err)
	}
	return b, nil
}

// Update edits a branch subject to the branch policy: owners any branch of
// their brand, branch managers only their own.
func (s *BranchService) Update(ctx context.Context, actor *business.BusinessUser, branchID string, req *brand.UpdateBranchRequest) (*brand.Branch, error) {
	existing, err := s.getByID(ctx, branchID)
	if err != nil {
		return nil, err
	}

	if err := business.CheckUpdateBranch(actor, existing.BrandID, existing.ID); err != nil {
		return nil, err
	}
	if req.Name != nil && len(*req.Name) < 2 {
		return nil, apperr.New(apperr.Validation, "Branch name must be at least 2 characters")
	}

	workingHours, err := jsonOrNil(req.WorkingHours)
	if err != nil {
		return nil, err
	}
	notificationSettings, err := jsonOrNil(req.NotificationSettings)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		UPDATE cafe_branches
		SET name = COALESCE($1, name),
		    address = COALESCE($2, address),
		    phone = COALESCE($3, phone),
		    latitude = COALESCE($4, latitude),
		    longitude = COALESCE($5, longitude),
		    open_now = COALESCE($6, open_now),
		    working_hours = COALESCE($7, working_hours),
		    notification_settings = COALESCE($8, notification_settings)
		WHERE id = $9
		RETURNING id, brand_id, name, address, phone, latitude, longitude,
		          open_now, working_hours, notification_settings, created_at
	`, req.Name, req.Address, req.Phone, req.Latitude, req.Longitude, req.OpenNow,
		workingHours, notificationSettings, branchID)

	b, err := scanBranch(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update branch: %w", err)
	}
	return b, nil
}

// Delete removes an empty branch. Branches with active staff assigned are
// protected; staff themselves are only ever soft-deactivated.
func (s *BranchService) Delete(ctx context.Context, actor *business.BusinessUser, branchID string) error {
	existing, err := s.getByID(ctx, branchID)
	if err != nil {
		return err
	}

	if err := business.CheckDeleteBranch(actor, existing.BrandID); err != nil {
		return err
	}

	var activeStaff int
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM business_users
		WHERE branch_id = $1 AND is_active = true
	`, branchID).Scan(&activeStaff)
	if err != nil {
		return fmt.Errorf("failed to count branch staff: %w", err)
	}
	if activeStaff > 0 {
		return apperr.New(apperr.Validation, "Branch has staff assigned and cannot be deleted. Move the staff to another branch first.")
	}

	_, err = s.db.Exec(ctx, `DELETE FROM cafe_branches WHERE id = $1`, branchID)
	if err != nil {
		return fmt.Errorf("failed to delete branch: %w", err)
	}
	return nil
}

type BranchStats struct {
	BranchID        string `json:"branchId"`
	BranchName      string `json:"branchName"`
	TotalActivities int    `json:"totalActivities"`
	TodayActivities int    `json:"todayActivities"`
	UniqueCustomers int    `json:"uniqueCustomers"`
}

// Stats aggregates the branch's slice of the activity ledger.
func (s *BranchService) Stats(ctx context.Context, actor *business.BusinessUser, branchID string) (*BranchStats, error) {
	existing, err := s.getByID(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if err := business.SameBrand(actor, existing.BrandID); err != nil {
		return nil, apperr.New(apperr.NotFound, "Branch not found")
	}

	stats := BranchStats{BranchID: existing.ID, BranchName: existing.Name}
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE created_at >= date_trunc('day', now())),
		       COUNT(DISTINCT user_id)
		FROM activities
		WHERE branch_id = $1
	`, branchID).Scan(&stats.TotalActivities, &stats.TodayActivities, &stats.UniqueCustomers)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate branch stats: %w", err)
	}
	return &stats, nil
}

func (s *BranchService) getByID(ctx context.Context, branchID string) (*brand.Branch, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, brand_id, name, address, phone, latitude, longitude,
		       open_now, working_hours, notification_settings, created_at
		FROM cafe_branches
		WHERE id = $1
	`, branchID)

	b, err := scanBranch(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "Branch not found")
		}
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	return b, nil
}

func scanBranch(row pgx.Row) (*brand.Branch, error) {
	var b brand.Branch
	var workingHours, notificationSettings []byte
	err := row.Scan(
		&b.ID, &b.BrandID, &b.Name, &b.Address, &b.Phone, &b.Latitude, &b.Longitude,
		&b.OpenNow, &workingHours, &notificationSettings, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if workingHours != nil {
		if err := json.Unmarshal(workingHours, &b.WorkingHours); err != nil {
			log.Printf("Failed to decode working_hours for branch %s: %v", b.ID, err)
		}
	}
	if notificationSettings != nil {
		if err := json.Unmarshal(notificationSettings, &b.NotificationSettings); err != nil {
			log.Printf("Failed to decode notification_settings for branch %s: %v", b.ID, err)
		}
	}
	return &b, nil
}

func scanBranches(rows pgx.Rows) ([]*brand.Branch, error) {
	branches := []*brand.Branch{}
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return branches, nil
}

func jsonOrNil(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return data, nil
}
