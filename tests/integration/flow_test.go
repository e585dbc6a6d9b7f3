package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emreisik/kahveqr/internal/business"
	"github.com/emreisik/kahveqr/services"
	"github.com/emreisik/kahveqr/tests/helpers"
)

func TestFullLoyaltyCycle(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	branchService := services.NewBranchService(pool)
	membershipService := services.NewMembershipService(pool)
	scanService := services.NewScanService(pool, branchService, membershipService)
	scanHandler := newScanHandler(scanService)

	email := "testcycle@example.com"
	userID := helpers.CreateTestCustomer(t, pool, email)
	brandID, branchID := helpers.CreateTestBrand(t, pool, "Test Brand Cycle", 10)
	staff := helpers.CreateTestBusinessUser(t, pool, "testcyclestaff@example.com", business.RoleStaff, brandID, branchID)

	ctx := context.Background()
	earn := func() *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		scanHandler.Stamp(rr, scanRequest(t, "/api/scan/stamp", helpers.EarnQRData(t, userID, email, time.Now()), staff))
		return rr
	}
	rewindCooldown := func() {
		_, err := pool.Exec(ctx,
			`UPDATE memberships SET last_stamp_at = last_stamp_at - interval '1 minute'
			 WHERE user_id = $1 AND brand_id = $2`, userID, brandID)
		require.NoError(t, err)
	}

	// Execute: 8 visits
	for i := 0; i < 8; i++ {
		rr := earn()
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		rewindCooldown()
	}

	// An impatient re-scan right after rewinding would pass, so scan twice
	// without the rewind to observe the throttle once.
	rr := earn()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = earn()
	require.Equal(t, http.StatusTooManyRequests, rr.Code, rr.Body.String())
	rewindCooldown()

	rr = earn()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var stamps int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT stamps FROM memberships WHERE user_id = $1 AND brand_id = $2`, userID, brandID).Scan(&stamps))
	require.Equal(t, 10, stamps)

	// Redeem the full card
	rr = httptest.NewRecorder()
	scanHandler.Redeem(rr, scanRequest(t, "/api/scan/redeem", helpers.RedeemQRData(t, userID, brandID, time.Now()), staff))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Assert: balance is zero and the ledger carries 10 earns + 1 redeem
	// summing to the balance
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT stamps FROM memberships WHERE user_id = $1 AND brand_id = $2`, userID, brandID).Scan(&stamps))
	assert.Equal(t, 0, stamps)

	var rowCount, deltaSum int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(delta), 0) FROM activities WHERE user_id = $1 AND brand_id = $2`,
		userID, brandID).Scan(&rowCount, &deltaSum))
	assert.Equal(t, 11, rowCount)
	assert.Equal(t, 0, deltaSum)

	// A second redeem with an empty card reports the full shortfall
	rr = httptest.NewRecorder()
	scanHandler.Redeem(rr, scanRequest(t, "/api/scan/redeem", helpers.RedeemQRData(t, userID, brandID, time.Now()), staff))
	assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
}

func TestConcurrentEarns_OneWinsOneThrottled(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	branchService := services.NewBranchService(pool)
	membershipService := services.NewMembershipService(pool)
	scanService := services.NewScanService(pool, branchService, membershipService)
	scanHandler := newScanHandler(scanService)

	email := "testrace@example.com"
	userID := helpers.CreateTestCustomer(t, pool, email)
	brandID, branchID := helpers.CreateTestBrand(t, pool, "Test Brand Race", 5)
	staff := helpers.CreateTestBusinessUser(t, pool, "testracestaff@example.com", business.RoleStaff, brandID, branchID)

	qrData := helpers.EarnQRData(t, userID, email, time.Now())

	// Execute: two scanners hit the same customer at the same instant
	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rr := httptest.NewRecorder()
			scanHandler.Stamp(rr, scanRequest(t, "/api/scan/stamp", qrData, staff))
			codes[i] = rr.Code
		}(i)
	}
	wg.Wait()

	// Assert: the row lock serialized them; exactly one stamp landed
	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	var stamps int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT stamps FROM memberships WHERE user_id = $1 AND brand_id = $2`, userID, brandID).Scan(&stamps))
	assert.Equal(t, 1, stamps)

	var deltaSum int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT COALESCE(SUM(delta), 0) FROM activities WHERE user_id = $1 AND brand_id = $2`,
		userID, brandID).Scan(&deltaSum))
	assert.Equal(t, 1, deltaSum)
}
