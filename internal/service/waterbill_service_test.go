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

func TestGenerateComputesCharges(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, fiscal.DefaultLocation)
	s := newTestStack(t, now)

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 0)

	// Baseline in fiscal month 2, then the three months of Q2 (3, 4, 5).
	// 1C appears for the first time in the closing month.
	testutil.SeedReadings(t, s.store, client.ID, 2026, 2, map[string]int64{"1A": 100, "1B": 500})
	testutil.SeedReadings(t, s.store, client.ID, 2026, 3, map[string]int64{"1A": 110, "1B": 490})
	testutil.SeedReadings(t, s.store, client.ID, 2026, 4, map[string]int64{"1A": 120, "1B": 485})
	testutil.SeedReadings(t, s.store, client.ID, 2026, 5, map[string]int64{"1A": 130, "1B": 480, "1C": 50})

	bill, err := s.bills.Generate(ctx, client.ID, "user-1", GenerateBillInput{
		FiscalYear: 2026,
		Quarter:    2,
		CarWashes:  map[string]int{"1A": 2},
	})
	require.NoError(t, err)

	assert.Equal(t, "2026-Q2", bill.ID())
	// Q2 of a July-start year opens October 1; due day 5.
	assert.True(t, bill.DueDate.Equal(time.Date(2025, 10, 5, 0, 0, 0, 0, fiscal.DefaultLocation)))
	require.Len(t, bill.Units, 3)

	// 30 m3 at $27.50 plus two car washes at $100.
	a := bill.Units["1A"]
	assert.Equal(t, int64(100), a.PriorReading)
	assert.Equal(t, int64(30), a.Consumption)
	assert.Equal(t, 2, a.CarWashCount)
	assert.Equal(t, domain.Centavos(102500), a.CurrentCharge)
	assert.Equal(t, domain.BillUnpaid, a.Status)

	// Reading went backwards: meter replaced, consumption clamps to zero and
	// the minimum charge applies.
	b := bill.Units["1B"]
	assert.True(t, b.MeterReset)
	assert.Zero(t, b.Consumption)
	assert.Equal(t, domain.Centavos(15000), b.CurrentCharge)

	// No baseline reading: the first bill carries zero metered consumption.
	c := bill.Units["1C"]
	assert.False(t, c.MeterReset)
	assert.Equal(t, int64(50), c.PriorReading)
	assert.Zero(t, c.Consumption)
	assert.Equal(t, domain.Centavos(15000), c.CurrentCharge)

	_, err = s.bills.Generate(ctx, client.ID, "user-1", GenerateBillInput{FiscalYear: 2026, Quarter: 2})
	assert.ErrorIs(t, err, domain.ErrBillAlreadyExists)
}

func TestGenerateRequiresAllQuarterReadings(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 11, 10, 12, 0, 0, 0, fiscal.DefaultLocation))

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 0)

	testutil.SeedReadings(t, s.store, client.ID, 2026, 3, map[string]int64{"1A": 110})
	testutil.SeedReadings(t, s.store, client.ID, 2026, 4, map[string]int64{"1A": 120})

	_, err := s.bills.Generate(ctx, client.ID, "user-1", GenerateBillInput{FiscalYear: 2026, Quarter: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingReadings)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestGenerateRejectsBadQuarter(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 11, 10, 12, 0, 0, 0, fiscal.DefaultLocation))

	_, err := s.bills.Generate(ctx, "bahiamar", "user-1", GenerateBillInput{FiscalYear: 2026, Quarter: 5})
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestApplyPaymentConsumesPenaltyFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 20, 12, 0, 0, 0, fiscal.DefaultLocation))

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 0)

	seedBill(t, s, client.ID, &domain.WaterBill{
		FiscalYear: 2026,
		Quarter:    1,
		DueDate:    time.Date(2025, 7, 5, 0, 0, 0, 0, fiscal.DefaultLocation),
		Units: map[string]*domain.UnitBill{
			"1A": {CurrentCharge: 155000, PenaltyAmount: 15887},
		},
	})

	paymentDate := time.Date(2025, 9, 20, 0, 0, 0, 0, fiscal.DefaultLocation)
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.bills.ApplyPaymentTx(ctx, tx, client.ID, "1A", "2026-Q1", 100000, "tx-1", paymentDate)
	})
	require.NoError(t, err)

	bill, err := s.bills.Get(ctx, client.ID, 2026, 1)
	require.NoError(t, err)
	entry := bill.Units["1A"]
	assert.Equal(t, domain.Centavos(100000), entry.PaidAmount)
	assert.Equal(t, domain.BillUnpaid, entry.Status)
	assert.Equal(t, domain.Centavos(70887), entry.Outstanding())
	require.Len(t, entry.Payments, 1)
	assert.Equal(t, domain.Centavos(15887), entry.Payments[0].PenaltyPaid)
	assert.Equal(t, domain.Centavos(84113), entry.Payments[0].BaseChargePaid)

	// Settling the remainder flips the entry to paid.
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.bills.ApplyPaymentTx(ctx, tx, client.ID, "1A", "2026-Q1", 70887, "tx-2", paymentDate)
	})
	require.NoError(t, err)

	bill, err = s.bills.Get(ctx, client.ID, 2026, 1)
	require.NoError(t, err)
	entry = bill.Units["1A"]
	assert.Equal(t, domain.BillPaid, entry.Status)
	assert.Zero(t, entry.Outstanding())
}

func TestApplyPaymentRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 20, 12, 0, 0, 0, fiscal.DefaultLocation))

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.bills.ApplyPaymentTx(ctx, tx, "bahiamar", "1A", "2026-Q1", 0, "tx-1", time.Now())
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestReverseTransactionRestoresBill(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 20, 12, 0, 0, 0, fiscal.DefaultLocation))

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 0)

	seedBill(t, s, client.ID, &domain.WaterBill{
		FiscalYear: 2026,
		Quarter:    1,
		DueDate:    time.Date(2025, 7, 5, 0, 0, 0, 0, fiscal.DefaultLocation),
		Units: map[string]*domain.UnitBill{
			"1A": {CurrentCharge: 80000},
		},
	})

	paymentDate := time.Date(2025, 9, 20, 0, 0, 0, 0, fiscal.DefaultLocation)
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.bills.ApplyPaymentTx(ctx, tx, client.ID, "1A", "2026-Q1", 80000, "tx-1", paymentDate)
	})
	require.NoError(t, err)

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.bills.ReverseTransactionTx(ctx, tx, client.ID, "1A", "tx-1")
	})
	require.NoError(t, err)

	bill, err := s.bills.Get(ctx, client.ID, 2026, 1)
	require.NoError(t, err)
	entry := bill.Units["1A"]
	assert.Zero(t, entry.PaidAmount)
	assert.Empty(t, entry.Payments)
	assert.Equal(t, domain.BillUnpaid, entry.Status)
}

func TestListOpenSkipsSettledEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 20, 12, 0, 0, 0, fiscal.DefaultLocation))

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 0)

	seedBill(t, s, client.ID, &domain.WaterBill{
		FiscalYear: 2026,
		Quarter:    1,
		DueDate:    time.Date(2025, 7, 5, 0, 0, 0, 0, fiscal.DefaultLocation),
		Units: map[string]*domain.UnitBill{
			"1A": {CurrentCharge: 80000, PaidAmount: 80000, Status: domain.BillPaid},
			"1B": {CurrentCharge: 80000},
		},
	})

	open, err := s.bills.ListOpen(ctx, client.ID, "1A")
	require.NoError(t, err)
	assert.Empty(t, open)

	open, err = s.bills.ListOpen(ctx, client.ID, "1B")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "2026-Q1", open[0].ID())
}
