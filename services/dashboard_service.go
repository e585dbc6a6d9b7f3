package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emreisik/kahveqr/internal/apperr"
	"github.com/emreisik/kahveqr/internal/business"
)

// DashboardService derives business-side metrics from the activity ledger
// and membership table with indexed range queries. Nothing here is cached;
// the ledger is the source of truth.
type DashboardService struct {
	db *pgxpool.Pool
}

func NewDashboardService(db *pgxpool.Pool) *DashboardService {
	return &DashboardService{db: db}
}

type PeriodStats struct {
	Stamps    int `json:"stamps"`
	Redeems   int `json:"redeems"`
	Customers int `json:"customers"`
}

type TodayStats struct {
	PeriodStats
	StampsChange float64 `json:"stampsChange"`
}

type RecentTransaction struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Customer string    `json:"customer"`
	Branch   string    `json:"branch"`
	Time     time.Time `json:"time"`
}

type DashboardStats struct {
	Today              TodayStats          `json:"today"`
	Week               PeriodStats         `json:"week"`
	Month              PeriodStats         `json:"month"`
	RecentTransactions []RecentTransaction `json:"recentTransactions"`
}

// scanScope returns the brand id plus the branch filter for the actor:
// owners see the whole brand, branch managers and staff only their branch.
func scanScope(actor *business.BusinessUser) (string, *string, error) {
	if actor.BrandID == nil {
		return "", nil, apperr.New(apperr.Validation, "Brand information not found")
	}
	if actor.Role != business.RoleOwner && actor.BranchID != nil {
		return *actor.BrandID, actor.BranchID, nil
	}
	return *actor.BrandID, nil, nil
}

// Dashboard aggregates today/week/month activity for the actor's scope plus
// the last ten transactions.
func (s *DashboardService) Dashboard(ctx context.Context, actor *business.BusinessUser) (*DashboardStats, error) {
	brandID, branchID, err := scanScope(actor)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := today.AddDate(0, 0, -1)
	weekAgo := today.AddDate(0, 0, -7)
	monthAgo := today.AddDate(0, 0, -30)

	var stats DashboardStats

	todayStats, err := s.periodStats(ctx, brandID, branchID, today, now)
	if err != nil {
		return nil, err
	}
	stats.Today.PeriodStats = *todayStats

	yesterdayStats, err := s.periodStats(ctx, brandID, branchID, yesterday, today)
	if err != nil {
		return nil, err
	}

	week, err := s.periodStats(ctx, brandID, branchID, weekAgo, now)
	if err != nil {
		return nil, err
	}
	stats.Week = *week

	month, err := s.periodStats(ctx, brandID, branchID, monthAgo, now)
	if err != nil {
		return nil, err
	}
	stats.Month = *month

	switch {
	case yesterdayStats.Stamps > 0:
		change := float64(todayStats.Stamps-yesterdayStats.Stamps) / float64(yesterdayStats.Stamps) * 100
		stats.Today.StampsChange = roundTo(change, 1)
	case todayStats.Stamps > 0:
		stats.Today.StampsChange = 100
	}

	stats.RecentTransactions, err = s.recentTransactions(ctx, brandID, branchID, 10)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func (s *DashboardService) periodStats(ctx context.Context, brandID string, branchID *string, from, to time.Time) (*PeriodStats, error) {
	var p PeriodStats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE type = 'earn'),
		       COUNT(*) FILTER (WHERE type = 'redeem'),
		       COUNT(DISTINCT user_id)
		FROM activities
		WHERE brand_id = $1
		  AND ($2::uuid IS NULL OR branch_id = $2)
		  AND created_at >= $3 AND created_at < $4
	`, brandID, branchID, from, to).Scan(&p.Stamps, &p.Redeems, &p.Customers)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate period stats: %w", err)
	}
	return &p, nil
}

func (s *DashboardService) recentTransactions(ctx context.Context, brandID string, branchID *string, limit int) ([]RecentTransaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.type, COALESCE(NULLIF(u.name, ''), u.email), br.name, a.created_at
		FROM activities a
		JOIN users u ON u.id = a.user_id
		JOIN cafe_branches br ON br.id = a.branch_id
		WHERE a.brand_id = $1
		  AND ($2::uuid IS NULL OR a.branch_id = $2)
		ORDER BY a.created_at DESC
		LIMIT $3
	`, brandID, branchID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent transactions: %w", err)
	}
	defer rows.Close()

	transactions := []RecentTransaction{}
	for rows.Next() {
		var t RecentTransaction
		var activityType string
		if err := rows.Scan(&t.ID, &activityType, &t.Customer, &t.Branch, &t.Time); err != nil {
			return nil, err
		}
		t.Type = displayType(activityType)
		transactions = append(transactions, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return transactions, nil
}

type CustomerSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	CurrentStamps int       `json:"currentStamps"`
	TotalStamps   int       `json:"totalStamps"`
	TotalRedeems  int       `json:"totalRedeems"`
	LastVisit     time.Time `json:"lastVisit"`
	MemberSince   time.Time `json:"memberSince"`
}

// Customers lists every member of the brand with lifetime totals derived
// from the ledger.
func (s *DashboardService) Customers(ctx context.Context, actor *business.BusinessUser) ([]*CustomerSummary, error) {
	if actor.BrandID == nil {
		return nil, apperr.New(apperr.Validation, "Brand information not found")
	}

	rows, err := s.db.Query(ctx, `
		SELECT u.id, COALESCE(NULLIF(u.name, ''), u.email), u.email,
		       m.stamps, m.joined_at, COALESCE(m.last_stamp_at, m.joined_at),
		       COALESCE(a.total_stamps, 0), COALESCE(a.total_redeems, 0)
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		LEFT JOIN (
			SELECT user_id,
			       COUNT(*) FILTER (WHERE type = 'earn') AS total_stamps,
			       COUNT(*) FILTER (WHERE type = 'redeem') AS total_redeems
			FROM activities
			WHERE brand_id = $1
			GROUP BY user_id
		) a ON a.user_id = m.user_id
		WHERE m.brand_id = $1
		ORDER BY m.last_stamp_at DESC NULLS LAST
	`, *actor.BrandID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := []*CustomerSummary{}
	for rows.Next() {
		var c CustomerSummary
		err := rows.Scan(
			&c.ID, &c.Name, &c.Email, &c.CurrentStamps, &c.MemberSince,
			&c.LastVisit, &c.TotalStamps, &c.TotalRedeems,
		)
		if err != nil {
			return nil, err
		}
		customers = append(customers, &c)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return customers, nil
}

type TransactionFilter struct {
	Type      string // "stamp", "redeem" or "all"
	DateRange string // "today", "week", "month" or "all"
	Search    string
}

type Transaction struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	CustomerName  string    `json:"customerName"`
	CustomerEmail string    `json:"customerEmail"`
	BranchName    string    `json:"branchName"`
	Timestamp     time.Time `json:"timestamp"`
	StaffName     string    `json:"staffName"`
}

// Transactions returns the scoped activity history, newest first, capped at
// 200 rows.
func (s *DashboardService) Transactions(ctx context.Context, actor *business.BusinessUser, filter TransactionFilter) ([]*Transaction, error) {
	brandID, branchID, err := scanScope(actor)
	if err != nil {
		return nil, err
	}

	activityType := ""
	switch filter.Type {
	case "stamp":
		activityType = "earn"
	case "redeem":
		activityType = "redeem"
	}

	var from *time.Time
	if t, ok := rangeStart(filter.DateRange); ok {
		from = &t
	}

	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.type, COALESCE(NULLIF(u.name, ''), u.email), u.email, br.name, a.created_at
		FROM activities a
		JOIN users u ON u.id = a.user_id
		JOIN cafe_branches br ON br.id = a.branch_id
		WHERE a.brand_id = $1
		  AND ($2::uuid IS NULL OR a.branch_id = $2)
		  AND ($3 = '' OR a.type = $3)
		  AND ($4::timestamptz IS NULL OR a.created_at >= $4)
		  AND ($5 = '' OR u.name ILIKE '%' || $5 || '%' OR u.email ILIKE '%' || $5 || '%')
		ORDER BY a.created_at DESC
		LIMIT 200
	`, brandID, branchID, activityType, from, filter.Search)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*Transaction{}
	for rows.Next() {
		var t Transaction
		var rowType string
		err := rows.Scan(&t.ID, &rowType, &t.CustomerName, &t.CustomerEmail, &t.BranchName, &t.Timestamp)
		if err != nil {
			return nil, err
		}
		t.Type = displayType(rowType)
		t.StaffName = actor.Name
		transactions = append(transactions, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return transactions, nil
}

type HourlyActivity struct {
	Hour   string `json:"hour"`
	Stamps int    `json:"stamps"`
}

type Statistics struct {
	TotalStamps          int              `json:"totalStamps"`
	TotalRedeems         int              `json:"totalRedeems"`
	UniqueCustomers      int              `json:"uniqueCustomers"`
	AvgStampsPerCustomer float64          `json:"avgStampsPerCustomer"`
	ConversionRate       float64          `json:"conversionRate"`
	HourlyActivity       []HourlyActivity `json:"hourlyActivity"`
}

// Statistics computes chart data for the requested range ("today", "week"
// default, "month"). The hourly histogram covers working hours 9:00-18:00.
func (s *DashboardService) Statistics(ctx context.Context, actor *business.BusinessUser, dateRange string) (*Statistics, error) {
	brandID, branchID, err := scanScope(actor)
	if err != nil {
		return nil, err
	}

	start, ok := rangeStart(dateRange)
	if !ok {
		start, _ = rangeStart("week")
	}

	var stats Statistics
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE type = 'earn'),
		       COUNT(*) FILTER (WHERE type = 'redeem'),
		       COUNT(DISTINCT user_id)
		FROM activities
		WHERE brand_id = $1
		  AND ($2::uuid IS NULL OR branch_id = $2)
		  AND created_at >= $3
	`, brandID, branchID, start).Scan(&stats.TotalStamps, &stats.TotalRedeems, &stats.UniqueCustomers)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate statistics: %w", err)
	}

	if stats.UniqueCustomers > 0 {
		stats.AvgStampsPerCustomer = roundTo(float64(stats.TotalStamps)/float64(stats.UniqueCustomers), 2)
	}
	if stats.TotalStamps > 0 {
		stats.ConversionRate = roundTo(float64(stats.TotalRedeems)/float64(stats.TotalStamps)*100, 1)
	}

	counts := map[int]int{}
	rows, err := s.db.Query(ctx, `
		SELECT EXTRACT(HOUR FROM created_at)::int, COUNT(*)
		FROM activities
		WHERE brand_id = $1
		  AND ($2::uuid IS NULL OR branch_id = $2)
		  AND created_at >= $3
		GROUP BY 1
	`, brandID, branchID, start)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate hourly activity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hour, count int
		if err := rows.Scan(&hour, &count); err != nil {
			return nil, err
		}
		counts[hour] = count
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for hour := 9; hour <= 18; hour++ {
		stats.HourlyActivity = append(stats.HourlyActivity, HourlyActivity{
			Hour:   fmt.Sprintf("%d:00", hour),
			Stamps: counts[hour],
		})
	}

	return &stats, nil
}

func displayType(activityType string) string {
	if activityType == "earn" {
		return "stamp"
	}
	return "redeem"
}

func rangeStart(dateRange string) (time.Time, bool) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch dateRange {
	case "today":
		return today, true
	case "week":
		return today.AddDate(0, 0, -7), true
	case "month":
		return today.AddDate(0, 0, -30), true
	}
	return time.Time{}, false
}

func roundTo(v float64, places int) float64 {
	factor := 1.0
	for i := 0; i < places; i++ {
		factor *= 10
	}
	return math.Round(v*factor) / factor
}
