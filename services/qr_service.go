package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skip2/go-qrcode"

	"github.com/emreisik/kahveqr/internal/apperr"
	"github.com/emreisik/kahveqr/internal/loyalty"
)

// QRService renders the scan payloads as PNG images for clients that cannot
// draw QR codes themselves.
type QRService struct {
	db *pgxpool.Pool
}

func NewQRService(db *pgxpool.Pool) *QRService {
	return &QRService{db: db}
}

type QRCodeResponse struct {
	Payload      string    `json:"payload"`
	QrCodeBase64 string    `json:"qr_code_base64"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// GenerateUserCode produces the earn payload for the customer, valid for the
// freshness window.
func (s *QRService) GenerateUserCode(ctx context.Context, userID string) (*QRCodeResponse, error) {
	var email string
	err := s.db.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	now := time.Now()
	return s.encode(loyalty.QRPayload{
		Type:      loyalty.QRTypeUser,
		UserID:    userID,
		Email:     email,
		Timestamp: now.UnixMilli(),
	}, now)
}

// GenerateRedeemCode produces the redeem payload for one of the customer's
// memberships.
func (s *QRService) GenerateRedeemCode(ctx context.Context, userID, brandID string) (*QRCodeResponse, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM memberships WHERE user_id = $1 AND brand_id = $2)
	`, userID, brandID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !exists {
		return nil, apperr.New(apperr.NotFound, "Membership not found")
	}

	now := time.Now()
	return s.encode(loyalty.QRPayload{
		Type:      loyalty.QRTypeRedeem,
		UserID:    userID,
		BrandID:   brandID,
		Timestamp: now.UnixMilli(),
	}, now)
}

func (s *QRService) encode(payload loyalty.QRPayload, now time.Time) (*QRCodeResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	pngBytes, err := qrcode.Encode(string(raw), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR png: %w", err)
	}

	return &QRCodeResponse{
		Payload:      string(raw),
		QrCodeBase64: base64.StdEncoding.EncodeToString(pngBytes),
		ExpiresAt:    now.Add(loyalty.QRFreshness),
	}, nil
}
