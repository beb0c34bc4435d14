package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/testutil"
)

func TestComputePenaltyCompound(t *testing.T) {
	cfg := testutil.NewFixtureWaterConfig()

	// Month 1: 155000 * 5% = 7750. Month 2: 162750 * 5% = 8137.5,
	// truncated to 8137.
	assert.Equal(t, domain.Centavos(7750), ComputePenalty(cfg, 155000, 1))
	assert.Equal(t, domain.Centavos(15887), ComputePenalty(cfg, 155000, 2))

	assert.Zero(t, ComputePenalty(cfg, 155000, 0))
	assert.Zero(t, ComputePenalty(cfg, 0, 3))
	assert.Zero(t, ComputePenalty(cfg, -100, 3))
}

func TestComputePenaltySimple(t *testing.T) {
	cfg := testutil.NewFixtureWaterConfig()
	cfg.CompoundPenalty = false

	assert.Equal(t, domain.Centavos(7750), ComputePenalty(cfg, 155000, 1))
	assert.Equal(t, domain.Centavos(15500), ComputePenalty(cfg, 155000, 2))
}

func TestPenaltyAsOfWithinGrace(t *testing.T) {
	cfg := testutil.NewFixtureWaterConfig()
	dueDate := time.Date(2025, 7, 5, 0, 0, 0, 0, fiscal.DefaultLocation)
	entry := &domain.UnitBill{CurrentCharge: 155000}

	// Grace runs through July 15; no penalty on or before that day.
	asOf := time.Date(2025, 7, 15, 0, 0, 0, 0, fiscal.DefaultLocation)
	assert.Zero(t, PenaltyAsOf(cfg, entry, dueDate, asOf))

	asOf = time.Date(2025, 9, 20, 0, 0, 0, 0, fiscal.DefaultLocation)
	assert.Equal(t, domain.Centavos(15887), PenaltyAsOf(cfg, entry, dueDate, asOf))
}

func TestRecalculateAllAccruesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 20, 12, 0, 0, 0, fiscal.DefaultLocation)
	s := newTestStack(t, now)

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 0)

	seedBill(t, s, client.ID, &domain.WaterBill{
		FiscalYear: 2026,
		Quarter:    1,
		DueDate:    time.Date(2025, 7, 5, 0, 0, 0, 0, fiscal.DefaultLocation),
		Units: map[string]*domain.UnitBill{
			"1A": {CurrentCharge: 155000},
		},
	})

	result, err := s.penalty.RecalculateAll(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.BillsExamined)
	assert.Equal(t, 1, result.UnitsUpdated)

	bill, err := s.bills.Get(ctx, client.ID, 2026, 1)
	require.NoError(t, err)
	entry := bill.Units["1A"]
	assert.Equal(t, domain.Centavos(15887), entry.PenaltyAmount)
	require.NotNil(t, entry.LastPenaltyUpdate)

	// Rerunning at the same instant changes nothing.
	result, err = s.penalty.RecalculateAll(ctx, client.ID)
	require.NoError(t, err)
	assert.Zero(t, result.UnitsUpdated)
	assert.Equal(t, 1, result.UnitsSkipped)

	bill, err = s.bills.Get(ctx, client.ID, 2026, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Centavos(15887), bill.Units["1A"].PenaltyAmount)
}

func TestRecalculateNeverLowersPenalty(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 20, 12, 0, 0, 0, fiscal.DefaultLocation)
	s := newTestStack(t, now)

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 0)

	seedBill(t, s, client.ID, &domain.WaterBill{
		FiscalYear: 2026,
		Quarter:    1,
		DueDate:    time.Date(2025, 7, 5, 0, 0, 0, 0, fiscal.DefaultLocation),
		Units: map[string]*domain.UnitBill{
			"1A": {CurrentCharge: 155000, PenaltyAmount: 999999},
		},
	})

	result, err := s.penalty.RecalculateAll(ctx, client.ID)
	require.NoError(t, err)
	assert.Zero(t, result.UnitsUpdated)

	bill, err := s.bills.Get(ctx, client.ID, 2026, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Centavos(999999), bill.Units["1A"].PenaltyAmount)
}

func TestRecalculateSkipsBillsStillInGrace(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 20, 12, 0, 0, 0, fiscal.DefaultLocation)
	s := newTestStack(t, now)

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 0)

	seedBill(t, s, client.ID, &domain.WaterBill{
		FiscalYear: 2026,
		Quarter:    2,
		DueDate:    time.Date(2025, 9, 18, 0, 0, 0, 0, fiscal.DefaultLocation),
		Units: map[string]*domain.UnitBill{
			"1A": {CurrentCharge: 80000},
		},
	})

	result, err := s.penalty.RecalculateAll(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.BillsNotYetDue)
	assert.Zero(t, result.UnitsUpdated)

	bill, err := s.bills.Get(ctx, client.ID, 2026, 2)
	require.NoError(t, err)
	assert.Zero(t, bill.Units["1A"].PenaltyAmount)
}

func TestRecalculateUnitsScopesThePass(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 20, 12, 0, 0, 0, fiscal.DefaultLocation)
	s := newTestStack(t, now)

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 0)

	seedBill(t, s, client.ID, &domain.WaterBill{
		FiscalYear: 2026,
		Quarter:    1,
		DueDate:    time.Date(2025, 7, 5, 0, 0, 0, 0, fiscal.DefaultLocation),
		Units: map[string]*domain.UnitBill{
			"1A": {CurrentCharge: 155000},
			"1B": {CurrentCharge: 155000},
		},
	})

	_, err := s.penalty.RecalculateUnits(ctx, client.ID, []string{"1A"})
	require.NoError(t, err)

	bill, err := s.bills.Get(ctx, client.ID, 2026, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Centavos(15887), bill.Units["1A"].PenaltyAmount)
	assert.Zero(t, bill.Units["1B"].PenaltyAmount)
}
