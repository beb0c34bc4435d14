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

func TestEnsureYearQuarterlySeedsQuarterDueDates(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation))

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 460000)

	rec, err := s.dues.EnsureYear(ctx, client.ID, "1A", 2026)
	require.NoError(t, err)
	assert.Equal(t, domain.Centavos(460000), rec.ScheduledAmount)
	assert.Zero(t, rec.TotalPaid)

	// Fiscal year 2026 of a July-start client runs Jul 2025 through Jun 2026.
	// Only the first slot of each quarter carries a due date.
	wantDue := map[int]time.Time{
		1:  time.Date(2025, 7, 1, 0, 0, 0, 0, fiscal.DefaultLocation),
		4:  time.Date(2025, 10, 1, 0, 0, 0, 0, fiscal.DefaultLocation),
		7:  time.Date(2026, 1, 1, 0, 0, 0, 0, fiscal.DefaultLocation),
		10: time.Date(2026, 4, 1, 0, 0, 0, 0, fiscal.DefaultLocation),
	}
	for m := 1; m <= domain.DuesMonths; m++ {
		slot := rec.Slot(m)
		require.NotNil(t, slot)
		assert.Equal(t, m, slot.Month)
		if want, ok := wantDue[m]; ok {
			require.NotNil(t, slot.DueDate, "month %d", m)
			assert.True(t, slot.DueDate.Equal(want), "month %d: got %v", m, slot.DueDate)
		} else {
			assert.Nil(t, slot.DueDate, "month %d", m)
		}
	}
}

func TestEnsureYearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation))

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 460000)

	_, err := s.dues.EnsureYear(ctx, client.ID, "1A", 2026)
	require.NoError(t, err)

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.dues.RecordPaymentTx(ctx, tx, client.ID, "1A", 2026, []int{1}, []domain.Centavos{460000}, "tx-1", s.dues.now(), "transfer")
	})
	require.NoError(t, err)

	rec, err := s.dues.EnsureYear(ctx, client.ID, "1A", 2026)
	require.NoError(t, err)
	assert.Equal(t, domain.Centavos(460000), rec.TotalPaid)
	assert.True(t, rec.Slot(1).Paid)
}

func TestEnsureYearRequiresUnit(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation))

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)

	_, err := s.dues.EnsureYear(ctx, client.ID, "9Z", 2026)
	assert.ErrorIs(t, err, domain.ErrUnitNotFound)
}

func TestRecordAndReversePayment(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation))

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 460000)

	paymentDate := time.Date(2025, 9, 10, 0, 0, 0, 0, fiscal.DefaultLocation)
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.dues.RecordPaymentTx(ctx, tx, client.ID, "1A", 2026,
			[]int{1, 2, 3}, []domain.Centavos{460000, 460000, 460000},
			"tx-1", paymentDate, "transfer")
	})
	require.NoError(t, err)

	rec, err := s.dues.Get(ctx, client.ID, "1A", 2026)
	require.NoError(t, err)
	assert.Equal(t, domain.Centavos(1380000), rec.TotalPaid)
	for _, m := range []int{1, 2, 3} {
		slot := rec.Slot(m)
		assert.True(t, slot.Paid, "month %d", m)
		assert.Equal(t, domain.Centavos(460000), slot.Amount)
		assert.Equal(t, "tx-1", slot.TransactionID)
		assert.Equal(t, "transfer", slot.PaymentMethod)
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.dues.ReversePaymentTx(ctx, tx, client.ID, "1A", 2026, "tx-1")
	})
	require.NoError(t, err)

	rec, err = s.dues.Get(ctx, client.ID, "1A", 2026)
	require.NoError(t, err)
	assert.Zero(t, rec.TotalPaid)
	slot := rec.Slot(1)
	assert.False(t, slot.Paid)
	assert.Empty(t, slot.TransactionID)
	// Reversal restores the slot to unpaid but keeps the schedule.
	require.NotNil(t, slot.DueDate)
	assert.True(t, slot.DueDate.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, fiscal.DefaultLocation)))
}

func TestRecordPaymentAccumulatesUntilScheduledCovered(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation))

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 460000)

	paymentDate := time.Date(2025, 9, 10, 0, 0, 0, 0, fiscal.DefaultLocation)
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.dues.RecordPaymentTx(ctx, tx, client.ID, "1A", 2026,
			[]int{1}, []domain.Centavos{40000}, "tx-1", paymentDate, "cash")
	})
	require.NoError(t, err)

	rec, err := s.dues.Get(ctx, client.ID, "1A", 2026)
	require.NoError(t, err)
	slot := rec.Slot(1)
	assert.False(t, slot.Paid)
	assert.Equal(t, domain.Centavos(40000), slot.Amount)
	assert.Equal(t, domain.Centavos(40000), rec.TotalPaid)

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.dues.RecordPaymentTx(ctx, tx, client.ID, "1A", 2026,
			[]int{1}, []domain.Centavos{420000}, "tx-2", paymentDate, "cash")
	})
	require.NoError(t, err)

	rec, err = s.dues.Get(ctx, client.ID, "1A", 2026)
	require.NoError(t, err)
	slot = rec.Slot(1)
	assert.True(t, slot.Paid)
	assert.Equal(t, domain.Centavos(460000), slot.Amount)
	assert.Equal(t, "tx-2", slot.TransactionID)
	assert.Equal(t, domain.Centavos(460000), rec.TotalPaid)
}

func TestRecordPaymentRejectsBadMonth(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation))

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 460000)

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.dues.RecordPaymentTx(ctx, tx, client.ID, "1A", 2026,
			[]int{13}, []domain.Centavos{460000}, "tx-1", s.dues.now(), "transfer")
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestVisibleMonthsQuarterlyExposesWholeQuarter(t *testing.T) {
	ctx := context.Background()
	s := newTestStack(t, time.Date(2025, 9, 15, 12, 0, 0, 0, fiscal.DefaultLocation))

	client := testutil.NewFixtureClient()
	testutil.SeedClient(t, s.store, client)
	testutil.SeedUnits(t, s.store, client.ID, 460000)

	rec, err := s.dues.EnsureYear(ctx, client.ID, "1A", 2026)
	require.NoError(t, err)

	// Mid-September: only Q1 (Jul-Sep, due Jul 1) has come due.
	today := time.Date(2025, 9, 15, 0, 0, 0, 0, fiscal.DefaultLocation)
	assert.Equal(t, []int{1, 2, 3}, VisibleMonths(client, rec, today))

	// A paid slot pulls its entire quarter into view.
	rec.Slot(5).Paid = true
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, VisibleMonths(client, rec, today))
}
