package loyalty

import (
	"encoding/json"
	"time"

	"github.com/emreisik/kahveqr/internal/apperr"
)

const (
	QRTypeUser   = "user"
	QRTypeRedeem = "redeem"

	// QRFreshness is how old a scanned payload's embedded timestamp may be
	// before it is rejected as a replay.
	QRFreshness = 5 * time.Minute

	// StampCooldown is the minimum gap between stamps for one customer at
	// one brand, across all of the brand's branches.
	StampCooldown = 30 * time.Second
)

// QRPayload is the wire format rendered by the customer client.
// Earn:   {"type":"user","userId":...,"email":...,"timestamp":ms}
// Redeem: {"type":"redeem","userId":...,"brandId":...,"timestamp":ms}
type QRPayload struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Email     string `json:"email,omitempty"`
	BrandID   string `json:"brandId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func ParseQRPayload(qrData string) (*QRPayload, error) {
	var p QRPayload
	if err := json.Unmarshal([]byte(qrData), &p); err != nil {
		return nil, apperr.New(apperr.Validation, "Invalid QR code format")
	}
	return &p, nil
}

// Expired reports whether the payload's timestamp is older than the
// freshness window at the given instant.
func (p *QRPayload) Expired(now time.Time) bool {
	issued := time.UnixMilli(p.Timestamp)
	return now.Sub(issued) > QRFreshness
}
