package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emreisik/kahveqr/internal/apperr"
	"github.com/emreisik/kahveqr/internal/brand"
	"github.com/emreisik/kahveqr/internal/loyalty"
)

// MembershipService owns the loyalty ledger: the per-(customer, brand)
// balance row and the append-only activity log. Mutations go through the
// tx-scoped helpers so the scan engine can keep balance update and ledger
// append in one atomic unit.
type MembershipService struct {
	db *pgxpool.Pool
}

func NewMembershipService(db *pgxpool.Pool) *MembershipService {
	return &MembershipService{db: db}
}

// GetOrCreateForUpdate returns the membership row locked for the duration of
// tx, creating it with zero stamps if absent. The row lock serializes
// concurrent scans for the same (userID, brandID) pair.
func (s *MembershipService) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, userID, brandID string) (*loyalty.Membership, error) {
	m, err := s.lockMembership(ctx, tx, userID, brandID)
	if err == nil {
		return m, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	// Lazy creation on first stamp. ON CONFLICT covers the race where two
	// scanners create the membership at the same instant; the loser falls
	// through to the locked re-read.
	_, err = tx.Exec(ctx, `
		INSERT INTO memberships (user_id, brand_id, stamps)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id, brand_id) DO NOTHING
	`, userID, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	m, err = s.lockMembership(ctx, tx, userID, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read membership: %w", err)
	}
	return m, nil
}

// GetForUpdate returns the locked membership row or MembershipNotFound.
func (s *MembershipService) GetForUpdate(ctx context.Context, tx pgx.Tx, userID, brandID string) (*loyalty.Membership, error) {
	m, err := s.lockMembership(ctx, tx, userID, brandID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "Membership not found")
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

func (s *MembershipService) lockMembership(ctx context.Context, tx pgx.Tx, userID, brandID string) (*loyalty.Membership, error) {
	var m loyalty.Membership
	err := tx.QueryRow(ctx, `
		SELECT id, user_id, brand_id, stamps, joined_at, last_stamp_at
		FROM memberships
		WHERE user_id = $1 AND brand_id = $2
		FOR UPDATE
	`, userID, brandID).Scan(&m.ID, &m.UserID, &m.BrandID, &m.Stamps, &m.JoinedAt, &m.LastStampAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ApplyStamp increments the locked membership and stamps the cooldown clock.
func (s *MembershipService) ApplyStamp(ctx context.Context, tx pgx.Tx, m *loyalty.Membership) error {
	err := tx.QueryRow(ctx, `
		UPDATE memberships
		SET stamps = stamps + 1, last_stamp_at = now()
		WHERE id = $1
		RETURNING stamps, last_stamp_at
	`, m.ID).Scan(&m.Stamps, &m.LastStampAt)
	if err != nil {
		return fmt.Errorf("failed to add stamp: %w", err)
	}
	return nil
}

// ApplyRedeem decrements the locked membership by the redemption threshold.
func (s *MembershipService) ApplyRedeem(ctx context.Context, tx pgx.Tx, m *loyalty.Membership, stampsRequired int) error {
	err := tx.QueryRow(ctx, `
		UPDATE memberships
		SET stamps = stamps - $1
		WHERE id = $2
		RETURNING stamps
	`, stampsRequired, m.ID).Scan(&m.Stamps)
	if err != nil {
		return fmt.Errorf("failed to redeem stamps: %w", err)
	}
	return nil
}

// RecordActivity appends one immutable ledger row inside the same tx as the
// balance write.
func (s *MembershipService) RecordActivity(ctx context.Context, tx pgx.Tx, userID, brandID, branchID, activityType string, delta int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO activities (user_id, brand_id, branch_id, type, delta)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, brandID, branchID, activityType, delta)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// ListByUser returns the customer's memberships with brand info, newest
// joined first.
func (s *MembershipService) ListByUser(ctx context.Context, userID string) ([]*loyalty.Membership, error) {
	rows, err := s.db.Query(ctx, `
		SELECT m.id, m.user_id, m.brand_id, m.stamps, m.joined_at, m.last_stamp_at,
		       b.id, b.name, b.category, b.stamps_required, b.reward_name, b.created_at
		FROM memberships m
		JOIN cafe_brands b ON b.id = m.brand_id
		WHERE m.user_id = $1
		ORDER BY m.joined_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	memberships := []*loyalty.Membership{}
	for rows.Next() {
		var m loyalty.Membership
		var b brand.Brand
		err := rows.Scan(
			&m.ID, &m.UserID, &m.BrandID, &m.Stamps, &m.JoinedAt, &m.LastStampAt,
			&b.ID, &b.Name, &b.Category, &b.StampsRequired, &b.RewardName, &b.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		m.Brand = &b
		memberships = append(memberships, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return memberships, nil
}

// GetByUserAndBrand returns one membership with brand info.
func (s *MembershipService) GetByUserAndBrand(ctx context.Context, userID, brandID string) (*loyalty.Membership, error) {
	var m loyalty.Membership
	var b brand.Brand
	err := s.db.QueryRow(ctx, `
		SELECT m.id, m.user_id, m.brand_id, m.stamps, m.joined_at, m.last_stamp_at,
		       b.id, b.name, b.category, b.stamps_required, b.reward_name, b.created_at
		FROM memberships m
		JOIN cafe_brands b ON b.id = m.brand_id
		WHERE m.user_id = $1 AND m.brand_id = $2
	`, userID, brandID).Scan(
		&m.ID, &m.UserID, &m.BrandID, &m.Stamps, &m.JoinedAt, &m.LastStampAt,
		&b.ID, &b.Name, &b.Category, &b.StampsRequired, &b.RewardName, &b.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "Membership not found")
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	m.Brand = &b
	return &m, nil
}

// ListActivities returns the customer's ledger rows, newest first, optionally
// filtered by type and brand.
func (s *MembershipService) ListActivities(ctx context.Context, userID, activityType, brandID string, limit int) ([]*loyalty.Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT a.id, a.user_id, a.brand_id, a.branch_id, a.type, a.delta, a.created_at,
		       b.name, br.name
		FROM activities a
		JOIN cafe_brands b ON b.id = a.brand_id
		JOIN cafe_branches br ON br.id = a.branch_id
		WHERE a.user_id = $1
		  AND ($2 = '' OR a.type = $2)
		  AND ($3 = '' OR a.brand_id::text = $3)
		ORDER BY a.created_at DESC
		LIMIT $4
	`
	rows, err := s.db.Query(ctx, query, userID, activityType, brandID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := []*loyalty.Activity{}
	for rows.Next() {
		var a loyalty.Activity
		err := rows.Scan(
			&a.ID, &a.UserID, &a.BrandID, &a.BranchID, &a.Type, &a.Delta, &a.CreatedAt,
			&a.BrandName, &a.BranchName,
		)
		if err != nil {
			return nil, err
		}
		activities = append(activities, &a)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return activities, nil
}

type ActivityTotals struct {
	TotalStampsEarned   int `json:"totalStampsEarned"`
	TotalStampsRedeemed int `json:"totalStampsRedeemed"`
	TotalActivities     int `json:"totalActivities"`
}

// ActivityStats aggregates the customer's ledger.
func (s *MembershipService) ActivityStats(ctx context.Context, userID string) (*ActivityTotals, error) {
	var t ActivityTotals
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(delta) FILTER (WHERE type = 'earn'), 0),
		       COALESCE(ABS(SUM(delta) FILTER (WHERE type = 'redeem')), 0),
		       COUNT(*)
		FROM activities
		WHERE user_id = $1
	`, userID).Scan(&t.TotalStampsEarned, &t.TotalStampsRedeemed, &t.TotalActivities)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate activities: %w", err)
	}
	return &t, nil
}
