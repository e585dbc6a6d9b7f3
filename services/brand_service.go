package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emreisik/kahveqr/internal/apperr"
	"github.com/emreisik/kahveqr/internal/brand"
	"github.com/emreisik/kahveqr/internal/business"
)

// BrandService covers the public brand catalog and the brand-level settings
// surface of the business dashboard.
type BrandService struct {
	db *pgxpool.Pool
}

func NewBrandService(db *pgxpool.Pool) *BrandService {
	return &BrandService{db: db}
}

// ListBrands returns every brand with its branches, alphabetical.
func (s *BrandService) ListBrands(ctx context.Context) ([]*brand.Brand, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, category, stamps_required, reward_name, created_at
		FROM cafe_brands
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	defer rows.Close()

	brands := []*brand.Brand{}
	byID := map[string]*brand.Brand{}
	for rows.Next() {
		var b brand.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.Category, &b.StampsRequired, &b.RewardName, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Branches = []*brand.Branch{}
		brands = append(brands, &b)
		byID[b.ID] = &b
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	branchRows, err := s.db.Query(ctx, `
		SELECT id, brand_id, name, address, phone, latitude, longitude,
		       open_now, working_hours, notification_settings, created_at
		FROM cafe_branches
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer branchRows.Close()

	branches, err := scanBranches(branchRows)
	if err != nil {
		return nil, err
	}
	for _, br := range branches {
		if b, ok := byID[br.BrandID]; ok {
			b.Branches = append(b.Branches, br)
		}
	}

	return brands, nil
}

// GetBrand returns one brand with its branches.
func (s *BrandService) GetBrand(ctx context.Context, brandID string) (*brand.Brand, error) {
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

	rows, err := s.db.Query(ctx, `
		SELECT id, brand_id, name, address, phone, latitude, longitude,
		       open_now, working_hours, notification_settings, created_at
		FROM cafe_branches
		WHERE brand_id = $1
		ORDER BY created_at ASC
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer rows.Close()

	b.Branches, err = scanBranches(rows)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// NearbyBranches returns all branches; when coordinates are given, each is
// annotated with the haversine distance and the list is sorted closest
// first.
func (s *BrandService) NearbyBranches(ctx context.Context, lat, lng *float64) ([]*brand.Branch, error) {
	rows, err := s.db.Query(ctx, `
		SELECT br.id, br.brand_id, br.name, br.address, br.phone, br.latitude, br.longitude,
		       br.open_now, br.working_hours, br.notification_settings, br.created_at
		FROM cafe_branches br
		ORDER BY br.created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer rows.Close()

	branches, err := scanBranches(rows)
	if err != nil {
		return nil, err
	}

	if lat != nil && lng != nil {
		for _, br := range branches {
			var brLat, brLng float64
			if br.Latitude != nil {
				brLat = *br.Latitude
			}
			if br.Longitude != nil {
				brLng = *br.Longitude
			}
			d := haversineKm(*lat, *lng, brLat, brLng)
			br.DistanceKm = &d
		}
		sort.Slice(branches, func(i, j int) bool {
			return *branches[i].DistanceKm < *branches[j].DistanceKm
		})
	}

	return branches, nil
}

type BusinessSettings struct {
	BusinessInfo BusinessInfo  `json:"businessInfo"`
	Branch       *brand.Branch `json:"branch"`
}

type BusinessInfo struct {
	Name           string `json:"name"`
	Category       string `json:"category"`
	StampsRequired int    `json:"stampsRequired"`
	RewardName     string `json:"rewardName"`
	Email          string `json:"email"`
}

// GetSettings returns the brand info plus the actor's branch, if any.
func (s *BrandService) GetSettings(ctx context.Context, actor *business.BusinessUser) (*BusinessSettings, error) {
	if actor.BrandID == nil {
		return nil, apperr.New(apperr.Validation, "Brand information not found")
	}

	b, err := s.GetBrand(ctx, *actor.BrandID)
	if err != nil {
		return nil, err
	}

	settings := BusinessSettings{
		BusinessInfo: BusinessInfo{
			Name:           b.Name,
			Category:       b.Category,
			StampsRequired: b.StampsRequired,
			RewardName:     b.RewardName,
			Email:          actor.Email,
		},
	}

	if actor.BranchID != nil {
		for _, br := range b.Branches {
			if br.ID == *actor.BranchID {
				settings.Branch = br
				break
			}
		}
	}

	return &settings, nil
}

type UpdateSettingsRequest struct {
	BusinessInfo *struct {
		Name     string `json:"name,omitempty"`
		Category string `json:"category,omitempty"`
	} `json:"businessInfo,omitempty"`
	Branch *brand.UpdateBranchRequest `json:"branch,omitempty"`
}

// UpdateSettings writes brand info (owner only) and the actor's own branch.
func (s *BrandService) UpdateSettings(ctx context.Context, actor *business.BusinessUser, req *UpdateSettingsRequest) error {
	if actor.BrandID == nil {
		return apperr.New(apperr.Validation, "Brand information not found")
	}

	if req.BusinessInfo != nil && actor.Role == business.RoleOwner {
		_, err := s.db.Exec(ctx, `
			UPDATE cafe_brands
			SET name = COALESCE(NULLIF($1, ''), name),
			    category = COALESCE(NULLIF($2, ''), category)
			WHERE id = $3
		`, req.BusinessInfo.Name, req.BusinessInfo.Category, *actor.BrandID)
		if err != nil {
			return fmt.Errorf("failed to update brand info: %w", err)
		}
	}

	if req.Branch != nil && actor.BranchID != nil {
		workingHours, err := jsonOrNil(req.Branch.WorkingHours)
		if err != nil {
			return err
		}
		notificationSettings, err := jsonOrNil(req.Branch.NotificationSettings)
		if err != nil {
			return err
		}

		_, err = s.db.Exec(ctx, `
			UPDATE cafe_branches
			SET address = COALESCE($1, address),
			    phone = COALESCE($2, phone),
			    working_hours = COALESCE($3, working_hours),
			    notification_settings = COALESCE($4, notification_settings)
			WHERE id = $5
		`, req.Branch.Address, req.Branch.Phone, workingHours, notificationSettings, *actor.BranchID)
		if err != nil {
			return fmt.Errorf("failed to update branch info: %w", err)
		}
	}

	return nil
}

type LoyaltyProgram struct {
	StampsRequired  int    `json:"stampsRequired"`
	RewardName      string `json:"rewardName"`
	IsActive        bool   `json:"isActive"`
	ValidityDays    int    `json:"validityDays"`
	MaxStampsPerDay int    `json:"maxStampsPerDay"`
}

// GetLoyalty returns the brand's loyalty program configuration, filling
// defaults for brands that never stored settings.
func (s *BrandService) GetLoyalty(ctx context.Context, actor *business.BusinessUser) (*LoyaltyProgram, error) {
	if actor.BrandID == nil {
		return nil, apperr.New(apperr.Validation, "Brand information not found")
	}

	var p LoyaltyProgram
	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT stamps_required, reward_name, loyalty_settings
		FROM cafe_brands
		WHERE id = $1
	`, *actor.BrandID).Scan(&p.StampsRequired, &p.RewardName, &raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "Brand not found")
		}
		return nil, fmt.Errorf("failed to get loyalty settings: %w", err)
	}

	settings := brand.DefaultLoyaltySettings()
	if raw != nil {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return nil, fmt.Errorf("failed to decode loyalty settings: %w", err)
		}
	}
	p.IsActive = settings.IsActive
	p.ValidityDays = settings.ValidityDays
	p.MaxStampsPerDay = settings.MaxStampsPerDay

	return &p, nil
}

// UpdateLoyalty merges the request into the brand's loyalty program.
func (s *BrandService) UpdateLoyalty(ctx context.Context, actor *business.BusinessUser, req *brand.UpdateLoyaltyRequest) (*LoyaltyProgram, error) {
	if actor.BrandID == nil {
		return nil, apperr.New(apperr.Validation, "Brand information not found")
	}
	if req.StampsRequired != nil && *req.StampsRequired < 1 {
		return nil, apperr.New(apperr.Validation, "Stamps required must be at least 1")
	}

	current, err := s.GetLoyalty(ctx, actor)
	if err != nil {
		return nil, err
	}

	merged := brand.LoyaltySettings{
		IsActive:        current.IsActive,
		ValidityDays:    current.ValidityDays,
		MaxStampsPerDay: current.MaxStampsPerDay,
	}
	if req.IsActive != nil {
		merged.IsActive = *req.IsActive
	}
	if req.ValidityDays != nil {
		merged.ValidityDays = *req.ValidityDays
	}
	if req.MaxStampsPerDay != nil {
		merged.MaxStampsPerDay = *req.MaxStampsPerDay
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode loyalty settings: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		UPDATE cafe_brands
		SET stamps_required = COALESCE($1, stamps_required),
		    reward_name = COALESCE($2, reward_name),
		    loyalty_settings = $3
		WHERE id = $4
	`, req.StampsRequired, req.RewardName, raw, *actor.BrandID)
	if err != nil {
		return nil, fmt.Errorf("failed to update loyalty settings: %w", err)
	}

	return s.GetLoyalty(ctx, actor)
}

// Haversine distance between two coordinates in kilometers.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRad(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}
