package brand

import "time"

type LoyaltySettings struct {
	IsActive        bool `json:"isActive"`
	ValidityDays    int  `json:"validityDays"`
	MaxStampsPerDay int  `json:"maxStampsPerDay"`
}

// DefaultLoyaltySettings fills the gaps for brands created before the
// settings column existed.
func DefaultLoyaltySettings() LoyaltySettings {
	return LoyaltySettings{
		IsActive:        true,
		ValidityDays:    90,
		MaxStampsPerDay: 5,
	}
}

type Brand struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Category        string           `json:"category"`
	StampsRequired  int              `json:"stampsRequired"`
	RewardName      string           `json:"rewardName"`
	LoyaltySettings *LoyaltySettings `json:"loyaltySettings,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	Branches        []*Branch        `json:"branches,omitempty"`
}

type Branch struct {
	ID                   string          `json:"id"`
	BrandID              string          `json:"brandId"`
	Name                 string          `json:"name"`
	Address              string          `json:"address"`
	Phone                string          `json:"phone"`
	Latitude             *float64        `json:"latitude,omitempty"`
	Longitude            *float64        `json:"longitude,omitempty"`
	OpenNow              bool            `json:"openNow"`
	WorkingHours         map[string]any  `json:"workingHours,omitempty"`
	NotificationSettings map[string]any  `json:"notificationSettings,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	DistanceKm           *float64        `json:"distanceKm,omitempty"`
	BrandInfo            *Brand          `json:"brand,omitempty"`
}
