package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/store"
	"github.com/bahiamar/hoa-backend/internal/testutil"
)

func TestStatementRunningBalance(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation)
	s := newTestStack(t, now)

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 460000)
	testutil.SeedCredit(t, s.store, client.ID, "1A", 50000)

	_, err := s.dues.EnsureYear(ctx, client.ID, "1A", 2026)
	require.NoError(t, err)

	seedBill(t, s, client.ID, &domain.WaterBill{
		FiscalYear: 2026,
		Quarter:    1,
		DueDate:    time.Date(2025, 7, 5, 0, 0, 0, 0, fiscal.DefaultLocation),
		Units: map[string]*domain.UnitBill{
			"1A": {CurrentCharge: 155000, PenaltyAmount: 15887},
		},
	})

	_, err = s.txns.Create(ctx, client.ID, "user-1", CreateTransactionInput{
		Date:         time.Date(2025, 7, 10, 0, 0, 0, 0, fiscal.DefaultLocation),
		Amount:       460000,
		CategoryID:   "hoa_dues",
		CategoryName: "HOA Dues",
		UnitID:       "1A",
	})
	require.NoError(t, err)

	stmt, err := s.reports.Statement(ctx, client.ID, "1A", 2026)
	require.NoError(t, err)

	// Three Q1 dues charges on Jul 1, the water bill and its penalty on
	// Jul 5, then the payment on Jul 10.
	require.Len(t, stmt.Rows, 6)
	assert.Equal(t, domain.RowCharge, stmt.Rows[0].Kind)
	assert.Equal(t, domain.Centavos(460000), stmt.Rows[0].Running)
	assert.Equal(t, domain.Centavos(920000), stmt.Rows[1].Running)
	assert.Equal(t, domain.Centavos(1380000), stmt.Rows[2].Running)
	assert.Equal(t, domain.Centavos(1535000), stmt.Rows[3].Running)
	assert.Equal(t, domain.Centavos(1550887), stmt.Rows[4].Running)
	assert.Equal(t, domain.RowPayment, stmt.Rows[5].Kind)
	assert.Equal(t, domain.Centavos(1090887), stmt.Rows[5].Running)

	assert.Equal(t, domain.Centavos(1550887), stmt.TotalCharges)
	assert.Equal(t, domain.Centavos(460000), stmt.TotalPayments)
	assert.Equal(t, domain.Centavos(1090887), stmt.Balance)
	assert.Equal(t, domain.Centavos(50000), stmt.CreditBalance)
}

func TestStatementOrdersChargesBeforePaymentsSameDay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation)
	s := newTestStack(t, now)

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 460000)

	_, err := s.dues.EnsureYear(ctx, client.ID, "1A", 2026)
	require.NoError(t, err)

	// Payment on the same civil day the quarter comes due.
	_, err = s.txns.Create(ctx, client.ID, "user-1", CreateTransactionInput{
		Date:       time.Date(2025, 7, 1, 0, 0, 0, 0, fiscal.DefaultLocation),
		Amount:     460000,
		CategoryID: "hoa_dues",
		UnitID:     "1A",
	})
	require.NoError(t, err)

	stmt, err := s.reports.Statement(ctx, client.ID, "1A", 2026)
	require.NoError(t, err)

	require.Len(t, stmt.Rows, 4)
	for _, row := range stmt.Rows[:3] {
		assert.Equal(t, domain.RowCharge, row.Kind)
	}
	assert.Equal(t, domain.RowPayment, stmt.Rows[3].Kind)
	assert.Equal(t, domain.Centavos(920000), stmt.Balance)
}

func TestBudgetVsActual(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation)
	s := newTestStack(t, now)

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 460000)

	testutil.MustSet(t, s.store, store.CategoryPath(client.ID, "maintenance"),
		&domain.Category{Name: "Maintenance", Type: domain.CategoryExpense})
	testutil.MustSet(t, s.store, store.CategoryPath(client.ID, "projects_pool"),
		&domain.Category{Name: "Pool Project", Type: domain.CategoryIncome})

	require.NoError(t, s.clients.SetBudget(ctx, client.ID, "user-1", domain.Budget{
		FiscalYear:   2026,
		CategoryID:   "maintenance",
		AnnualAmount: 1200000,
	}))

	_, err := s.txns.Create(ctx, client.ID, "user-1", CreateTransactionInput{
		Date:       time.Date(2025, 8, 1, 0, 0, 0, 0, fiscal.DefaultLocation),
		Amount:     -300000,
		CategoryID: "maintenance",
	})
	require.NoError(t, err)

	// A distributor split with an uncategorized dues allocation folds into
	// the well-known income bucket.
	_, err = s.txns.Create(ctx, client.ID, "user-1", CreateTransactionInput{
		Date:       time.Date(2025, 8, 5, 0, 0, 0, 0, fiscal.DefaultLocation),
		Amount:     460000,
		CategoryID: domain.CategorySplit,
		UnitID:     "1A",
		Allocations: []domain.Allocation{
			{TargetID: "2026-01", Type: domain.AllocHOAMonth, Amount: 460000},
		},
	})
	require.NoError(t, err)

	_, err = s.txns.Create(ctx, client.ID, "user-1", CreateTransactionInput{
		Date:       time.Date(2025, 8, 10, 0, 0, 0, 0, fiscal.DefaultLocation),
		Amount:     500000,
		CategoryID: "projects_pool",
	})
	require.NoError(t, err)

	report, err := s.reports.BudgetVsActual(ctx, client.ID, 2026)
	require.NoError(t, err)

	percent := fiscal.PercentElapsed(2026, client.FiscalYearStartMonth, now, fiscal.DefaultLocation)
	assert.InDelta(t, percent, report.PercentElapsed, 1e-9)

	require.Len(t, report.Income, 1)
	income := report.Income[0]
	assert.Equal(t, "hoa_dues", income.CategoryID)
	assert.Equal(t, "HOA Dues", income.CategoryName)
	assert.Equal(t, domain.Centavos(460000), income.Actual)
	assert.Equal(t, domain.Centavos(460000), income.Variance) // no budget set

	require.Len(t, report.Expense, 1)
	expense := report.Expense[0]
	assert.Equal(t, "maintenance", expense.CategoryID)
	assert.Equal(t, domain.Centavos(1200000), expense.AnnualBudget)
	assert.Equal(t, domain.Centavos(-300000), expense.Actual)
	wantYTD := domain.Centavos(float64(1200000) * percent)
	assert.Equal(t, wantYTD, expense.YTDBudget)
	assert.Equal(t, wantYTD-300000, expense.Variance)

	require.Len(t, report.Special.Collections, 1)
	assert.Equal(t, "projects_pool", report.Special.Collections[0].CategoryID)
	assert.Equal(t, domain.Centavos(500000), report.Special.NetBalance)
	assert.Empty(t, report.Special.Expenditures)
}
