package brand

type CreateBranchRequest struct {
	Name                 string         `json:"name"`
	Address              string         `json:"address,omitempty"`
	Phone                string         `json:"phone,omitempty"`
	Latitude             *float64       `json:"latitude,omitempty"`
	Longitude            *float64       `json:"longitude,omitempty"`
	WorkingHours         map[string]any `json:"workingHours,omitempty"`
	NotificationSettings map[string]any `json:"notificationSettings,omitempty"`
}

type UpdateBranchRequest struct {
	Name                 *string        `json:"name,omitempty"`
	Address              *string        `json:"address,omitempty"`
	Phone                *string        `json:"phone,omitempty"`
	Latitude             *float64       `json:"latitude,omitempty"`
	Longitude            *float64       `json:"longitude,omitempty"`
	OpenNow              *bool          `json:"openNow,omitempty"`
	WorkingHours         map[string]any `json:"workingHours,omitempty"`
	NotificationSettings map[string]any `json:"notificationSettings,omitempty"`
}

type UpdateLoyaltyRequest struct {
	StampsRequired  *int    `json:"stampsRequired,omitempty"`
	RewardName      *string `json:"rewardName,omitempty"`
	IsActive        *bool   `json:"isActive,omitempty"`
	ValidityDays    *int    `json:"validityDays,omitempty"`
	MaxStampsPerDay *int    `json:"maxStampsPerDay,omitempty"`
}
