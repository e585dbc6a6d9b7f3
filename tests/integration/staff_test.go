package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emreisik/kahveqr/internal/apperr"
	"github.com/emreisik/kahveqr/internal/brand"
	"github.com/emreisik/kahveqr/internal/business"
	"github.com/emreisik/kahveqr/services"
	"github.com/emreisik/kahveqr/tests/helpers"
)

func errKind(t *testing.T, err error) apperr.Kind {
	t.Helper()
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected an application error, got %v", err)
	return appErr.Kind
}

func TestStaffCreate_ManagerCannotCreateManager(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	staffService := services.NewStaffService(pool)
	brandID, branchID := helpers.CreateTestBrand(t, pool, "Test Brand Roles", 5)
	manager := helpers.CreateTestBusinessUser(t, pool, "testmanager@example.com", business.RoleBranchManager, brandID, branchID)

	req := &business.CreateStaffRequest{
		Email:    "testnewmanager@example.com",
		Name:     "New Manager",
		Password: "password123",
		Role:     business.RoleBranchManager,
	}

	// Execute
	_, err := staffService.Create(context.Background(), manager, req)

	// Assert
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, errKind(t, err))
}

func TestStaffCreate_OwnerMustPickBranch(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	staffService := services.NewStaffService(pool)
	brandID, _ := helpers.CreateTestBrand(t, pool, "Test Brand OwnerBranch", 5)
	owner := helpers.CreateTestBusinessUser(t, pool, "testownercreate@example.com", business.RoleOwner, brandID, "")

	req := &business.CreateStaffRequest{
		Email:    "testnostaffbranch@example.com",
		Name:     "Branchless",
		Password: "password123",
		Role:     business.RoleStaff,
	}

	// Execute
	_, err := staffService.Create(context.Background(), owner, req)

	// Assert
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, errKind(t, err))
}

func TestStaffCreate_BranchOfAnotherBrandRejected(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	staffService := services.NewStaffService(pool)
	brandA, _ := helpers.CreateTestBrand(t, pool, "Test Brand Here", 5)
	_, foreignBranch := helpers.CreateTestBrand(t, pool, "Test Brand There", 5)
	owner := helpers.CreateTestBusinessUser(t, pool, "testforeign@example.com", business.RoleOwner, brandA, "")

	req := &business.CreateStaffRequest{
		Email:    "testforeignstaff@example.com",
		Name:     "Foreign Staff",
		Password: "password123",
		Role:     business.RoleStaff,
		BranchID: &foreignBranch,
	}

	// Execute
	_, err := staffService.Create(context.Background(), owner, req)

	// Assert
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, errKind(t, err))
}

func TestStaffUpdate_ManagerOnlyTouchesOwnCreations(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	staffService := services.NewStaffService(pool)
	brandID, branchID := helpers.CreateTestBrand(t, pool, "Test Brand Cascade", 5)
	owner := helpers.CreateTestBusinessUser(t, pool, "testcascadeowner@example.com", business.RoleOwner, brandID, "")
	manager := helpers.CreateTestBusinessUser(t, pool, "testcascademgr@example.com", business.RoleBranchManager, brandID, branchID)

	// Staff created by the owner, not the manager
	created, err := staffService.Create(context.Background(), owner, &business.CreateStaffRequest{
		Email:    "testcascadestaff@example.com",
		Name:     "Owner Made",
		Password: "password123",
		Role:     business.RoleStaff,
		BranchID: &branchID,
	})
	require.NoError(t, err)

	newName := "Renamed"

	// Execute
	_, err = staffService.Update(context.Background(), manager, created.ID, &business.UpdateStaffRequest{Name: &newName})

	// Assert
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, errKind(t, err))

	// The owner can
	updated, err := staffService.Update(context.Background(), owner, created.ID, &business.UpdateStaffRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
}

func TestStaffDeactivate_SelfDeleteRejected(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	staffService := services.NewStaffService(pool)
	brandID, _ := helpers.CreateTestBrand(t, pool, "Test Brand Self", 5)
	owner := helpers.CreateTestBusinessUser(t, pool, "testselfdelete@example.com", business.RoleOwner, brandID, "")

	// Execute
	err := staffService.Deactivate(context.Background(), owner, owner.ID)

	// Assert
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, errKind(t, err))
}

func TestStaffDeactivate_KeepsRowForReactivation(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	staffService := services.NewStaffService(pool)
	brandID, branchID := helpers.CreateTestBrand(t, pool, "Test Brand Reactivate", 5)
	owner := helpers.CreateTestBusinessUser(t, pool, "testreactowner@example.com", business.RoleOwner, brandID, "")
	staff := helpers.CreateTestBusinessUser(t, pool, "testreactstaff@example.com", business.RoleStaff, brandID, branchID)

	// Execute
	require.NoError(t, staffService.Deactivate(context.Background(), owner, staff.ID))

	// Assert
	var isActive bool
	err := pool.QueryRow(context.Background(),
		`SELECT is_active FROM business_users WHERE id = $1`, staff.ID).Scan(&isActive)
	require.NoError(t, err)
	assert.False(t, isActive)

	require.NoError(t, staffService.Activate(context.Background(), owner, staff.ID))
	err = pool.QueryRow(context.Background(),
		`SELECT is_active FROM business_users WHERE id = $1`, staff.ID).Scan(&isActive)
	require.NoError(t, err)
	assert.True(t, isActive)
}

func TestBranchDelete_RejectedWhileStaffAssigned(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	branchService := services.NewBranchService(pool)
	brandID, branchID := helpers.CreateTestBrand(t, pool, "Test Brand Busy", 5)
	owner := helpers.CreateTestBusinessUser(t, pool, "testbusyowner@example.com", business.RoleOwner, brandID, "")
	helpers.CreateTestBusinessUser(t, pool, "testbusystaff@example.com", business.RoleStaff, brandID, branchID)

	// Execute
	err := branchService.Delete(context.Background(), owner, branchID)

	// Assert
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, errKind(t, err))
	assert.Contains(t, err.Error(), "staff assigned")
}

func TestBranchUpdate_ManagerLimitedToOwnBranch(t *testing.T) {
	// Setup
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	branchService := services.NewBranchService(pool)
	brandID, branchID := helpers.CreateTestBrand(t, pool, "Test Brand Scope", 5)
	manager := helpers.CreateTestBusinessUser(t, pool, "testscopemgr@example.com", business.RoleBranchManager, brandID, branchID)

	var otherBranch string
	err := pool.QueryRow(context.Background(),
		`INSERT INTO cafe_branches (brand_id, name) VALUES ($1, 'Other') RETURNING id`, brandID).Scan(&otherBranch)
	require.NoError(t, err)

	newAddr := "New Address 5"

	// Execute
	_, err = branchService.Update(context.Background(), manager, otherBranch, &brand.UpdateBranchRequest{Address: &newAddr})

	// Assert
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, errKind(t, err))

	// Their own branch works
	updated, err := branchService.Update(context.Background(), manager, branchID, &brand.UpdateBranchRequest{Address: &newAddr})
	require.NoError(t, err)
	assert.Equal(t, "New Address 5", updated.Address)
}
