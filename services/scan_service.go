package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emreisik/kahveqr/internal/apperr"
	"github.com/emreisik/kahveqr/internal/brand"
	"github.com/emreisik/kahveqr/internal/business"
	"github.com/emreisik/kahveqr/internal/loyalty"
)

// ScanService is the QR transaction engine. Earn and redeem each run their
// balance read, threshold/cooldown validation and paired membership+activity
// writes inside one transaction holding a row lock on the membership, so
// scans for the same (customer, brand) pair serialize. Every failure path
// leaves both tables untouched.
type ScanService struct {
	db          *pgxpool.Pool
	branches    *BranchService
	memberships *MembershipService
}

func NewScanService(db *pgxpool.Pool, branches *BranchService, memberships *MembershipService) *ScanService {
	return &ScanService{db: db, branches: branches, memberships: memberships}
}

type ScanResult struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Membership *loyalty.Membership `json:"membership"`
	Brand      *brand.Brand        `json:"brand,omitempty"`
	Reward     string              `json:"reward,omitempty"`
}

// Stamp applies the earn transition for a scanned customer QR.
func (s *ScanService) Stamp(ctx context.Context, actor *business.BusinessUser, qrData string) (*ScanResult, error) {
	payload, err := loyalty.ParseQRPayload(qrData)
	if err != nil {
		return nil, err
	}

	if payload.Type != loyalty.QRTypeUser {
		return nil, apperr.New(apperr.Validation, "This QR code cannot be used to earn stamps")
	}
	if uuid.Validate(payload.UserID) != nil {
		return nil, apperr.New(apperr.Validation, "Invalid QR code")
	}

	now := time.Now()
	if payload.Expired(now) {
		return nil, apperr.New(apperr.Validation, "QR code has expired. Please refresh your QR tab.")
	}

	if actor.BrandID == nil {
		return nil, apperr.New(apperr.Validation, "Brand information not found")
	}
	brandID := *actor.BrandID

	branchID, err := s.branches.ResolveScanBranch(ctx, actor)
	if err != nil {
		return nil, err
	}

	if err := s.verifyCustomerExists(ctx, payload.UserID); err != nil {
		return nil, err
	}

	b, err := s.getBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	membership, err := s.memberships.GetOrCreateForUpdate(ctx, tx, payload.UserID, brandID)
	if err != nil {
		return nil, err
	}

	// Cooldown is brand-wide: two tills of the same brand share the clock.
	if membership.LastStampAt != nil {
		elapsed := now.Sub(*membership.LastStampAt)
		if elapsed < loyalty.StampCooldown {
			remaining := int(math.Ceil((loyalty.StampCooldown - elapsed).Seconds()))
			return nil, apperr.Newf(apperr.Cooldown, "Too fast! Try again in %d seconds.", remaining).
				WithDetails(map[string]int{"remainingSeconds": remaining})
		}
	}

	if err := s.memberships.ApplyStamp(ctx, tx, membership); err != nil {
		return nil, err
	}
	if err := s.memberships.RecordActivity(ctx, tx, payload.UserID, brandID, branchID, loyalty.ActivityEarn, 1); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	membership.Brand = b
	return &ScanResult{
		Success:    true,
		Message:    fmt.Sprintf("Stamp added! %d/%d", membership.Stamps, b.StampsRequired),
		Membership: membership,
		Brand:      b,
	}, nil
}

// Redeem applies the redeem transition for a scanned redemption QR.
func (s *ScanService) Redeem(ctx context.Context, actor *business.BusinessUser, qrData string) (*ScanResult, error) {
	payload, err := loyalty.ParseQRPayload(qrData)
	if err != nil {
		return nil, err
	}

	if payload.Type != loyalty.QRTypeRedeem {
		return nil, apperr.New(apperr.Validation, "This QR code is not for redeeming rewards")
	}
	if uuid.Validate(payload.UserID) != nil || uuid.Validate(payload.BrandID) != nil {
		return nil, apperr.New(apperr.Validation, "Invalid QR code")
	}

	// A QR minted for brand A can never be redeemed at brand B.
	if actor.BrandID == nil || payload.BrandID != *actor.BrandID {
		return nil, apperr.New(apperr.Forbidden, "This QR code belongs to another brand")
	}
	brandID := payload.BrandID

	branchID, err := s.branches.ResolveScanBranch(ctx, actor)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if payload.Expired(now) {
		return nil, apperr.New(apperr.Validation, "QR code has expired. Please refresh.")
	}

	b, err := s.getBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	membership, err := s.memberships.GetForUpdate(ctx, tx, payload.UserID, brandID)
	if err != nil {
		return nil, err
	}

	if membership.Stamps < b.StampsRequired {
		shortfall := b.StampsRequired - membership.Stamps
		return nil, apperr.Newf(apperr.Validation, "Insufficient stamps. %d more stamps needed.", shortfall).
			WithDetails(map[string]int{"shortfall": shortfall})
	}

	if err := s.memberships.ApplyRedeem(ctx, tx, membership, b.StampsRequired); err != nil {
		return nil, err
	}
	if err := s.memberships.RecordActivity(ctx, tx, payload.UserID, brandID, branchID, loyalty.ActivityRedeem, -b.StampsRequired); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	membership.Brand = b
	return &ScanResult{
		Success:    true,
		Message:    fmt.Sprintf("%s redeemed!", b.RewardName),
		Membership: membership,
		Brand:      b,
		Reward:     b.RewardName,
	}, nil
}

func (s *ScanService) verifyCustomerExists(ctx context.Context, userID string) error {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to verify customer: %w", err)
	}
	if !exists {
		return apperr.New(apperr.NotFound, "Customer not found. Please sign out and sign in again.")
	}
	return nil
}

func (s *ScanService) getBrand(ctx context.Context, brandID string) (*brand.Brand, error) {
	var b brand.Brand
	err := s.db.QueryRow(ctx, `
		SELECT id, name, category, stamps_required, reward_name, created_at
		FROM cafe_brands
		WHERE id = $1
	`, brandID).Scan(&b.ID, &b.Name, &b.Category, &b.StampsRequired, &b.RewardName, &b.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "Brand not found")
		}
		return nil, fmt.Errorf("failed to get brand: %w", err)
	}
	return &b, nil
}
