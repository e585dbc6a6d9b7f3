package loyalty

import (
	"time"

	"github.com/emreisik/kahveqr/internal/brand"
)

// Membership is the current stamp balance for one (customer, brand) pair.
// Balances are brand-wide; branches only attribute activity rows.
type Membership struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	BrandID     string       `json:"brandId"`
	Stamps      int          `json:"stamps"`
	JoinedAt    time.Time    `json:"joinedAt"`
	LastStampAt *time.Time   `json:"lastStampAt,omitempty"`
	Brand       *brand.Brand `json:"brand,omitempty"`
}

const (
	ActivityEarn   = "earn"
	ActivityRedeem = "redeem"
)

// Activity is one immutable ledger row. delta is +1 for earn and
// -stampsRequired for redeem.
type Activity struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	BrandID    string    `json:"brandId"`
	BranchID   string    `json:"branchId"`
	Type       string    `json:"type"`
	Delta      int       `json:"delta"`
	CreatedAt  time.Time `json:"createdAt"`
	BrandName  string    `json:"brandName,omitempty"`
	BranchName string    `json:"branchName,omitempty"`
}
