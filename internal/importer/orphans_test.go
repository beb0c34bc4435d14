package importer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/store"
	"github.com/bahiamar/hoa-backend/internal/store/memory"
)

func seedOrphanedLedger(t *testing.T, st store.Store) {
	t.Helper()
	mustSet(t, st, store.ClientPath("bahiamar"), &domain.Client{ID: "bahiamar"})
	mustSet(t, st, store.UnitPath("bahiamar", "1A"), &domain.Unit{ID: "1A", UnitNumber: "1A"})
	mustSet(t, st, store.TransactionPath("bahiamar", "good-tx"), &domain.Transaction{
		ID: "good-tx", Amount: 460000, CategoryID: "hoa_dues",
	})

	due := time.Date(2025, 7, 1, 0, 0, 0, 0, fiscal.DefaultLocation)
	rec := &domain.DuesRecord{UnitID: "1A", FiscalYear: 2026, ScheduledAmount: 460000}
	for i := range rec.Payments {
		rec.Payments[i].Month = i + 1
	}
	rec.Payments[0].DueDate = &due
	rec.Payments[0].Amount = 460000
	rec.Payments[0].Paid = true
	rec.Payments[0].TransactionID = "good-tx"
	rec.Payments[1].Amount = 460000
	rec.Payments[1].Paid = true
	rec.Payments[1].TransactionID = "missing-tx"
	rec.RecomputeTotal()
	mustSet(t, st, store.DuesPath("bahiamar", "1A", 2026), rec)

	mustSet(t, st, store.BillPath("bahiamar", "2026-Q1"), &domain.WaterBill{
		FiscalYear: 2026,
		Quarter:    1,
		DueDate:    time.Date(2025, 7, 5, 0, 0, 0, 0, fiscal.DefaultLocation),
		Units: map[string]*domain.UnitBill{
			"1A": {
				CurrentCharge: 155000,
				PaidAmount:    155000,
				Status:        domain.BillPaid,
				Payments: []domain.BillPayment{
					{TransactionID: "missing-tx", Amount: 155000, BaseChargePaid: 155000},
				},
			},
		},
	})
}

func TestOrphanScanDryRunReportsOnly(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedOrphanedLedger(t, st)

	result, err := NewOrphanScanner(st).Scan(ctx, "bahiamar", false)
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.DocsScanned)
	assert.Zero(t, result.Fixed)
	require.Len(t, result.Orphans, 2)

	kinds := map[string]bool{}
	for _, o := range result.Orphans {
		kinds[o.Kind] = true
		assert.Equal(t, "missing-tx", o.TransactionID)
		assert.Equal(t, "1A", o.UnitID)
	}
	assert.True(t, kinds["dues"])
	assert.True(t, kinds["water_bill"])

	// Nothing was modified.
	doc, err := st.Get(ctx, store.DuesPath("bahiamar", "1A", 2026))
	require.NoError(t, err)
	var rec domain.DuesRecord
	require.NoError(t, store.Decode(doc, &rec))
	assert.Equal(t, domain.Centavos(920000), rec.TotalPaid)
}

func TestOrphanScanFixClearsReferences(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedOrphanedLedger(t, st)

	result, err := NewOrphanScanner(st).Scan(ctx, "bahiamar", true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fixed)

	doc, err := st.Get(ctx, store.DuesPath("bahiamar", "1A", 2026))
	require.NoError(t, err)
	var rec domain.DuesRecord
	require.NoError(t, store.Decode(doc, &rec))

	// The valid slot survives, the orphaned one resets to unpaid.
	assert.True(t, rec.Slot(1).Paid)
	assert.Equal(t, "good-tx", rec.Slot(1).TransactionID)
	assert.False(t, rec.Slot(2).Paid)
	assert.Zero(t, rec.Slot(2).Amount)
	assert.Empty(t, rec.Slot(2).TransactionID)
	assert.Equal(t, domain.Centavos(460000), rec.TotalPaid)

	doc, err = st.Get(ctx, store.BillPath("bahiamar", "2026-Q1"))
	require.NoError(t, err)
	var bill domain.WaterBill
	require.NoError(t, store.Decode(doc, &bill))
	entry := bill.Units["1A"]
	assert.Empty(t, entry.Payments)
	assert.Zero(t, entry.PaidAmount)
	assert.Equal(t, domain.BillUnpaid, entry.Status)

	// A second pass finds nothing left to fix.
	result, err = NewOrphanScanner(st).Scan(ctx, "bahiamar", true)
	require.NoError(t, err)
	assert.Empty(t, result.Orphans)
	assert.Zero(t, result.Fixed)
}
