package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/repository/storage"
	"github.com/bahiamar/hoa-backend/internal/service"
	"github.com/bahiamar/hoa-backend/internal/store"
	"github.com/bahiamar/hoa-backend/internal/store/memory"
)

// exportFiles is a minimal but complete legacy export for one client with a
// single unit, one transaction, a paid dues slot and a settled water bill.
var exportFiles = map[string]string{
	"Client.json": `{
		"clientId": "bahiamar",
		"name": "Bahía Mar HOA",
		"fiscalYearStartMonth": 7,
		"displayCurrency": "MXN",
		"duesFrequency": "quarterly",
		"duesGraceDays": 10
	}`,
	"Config.json": `{
		"waterBills": {
			"ratePerM3": 27.5,
			"minimumCharge": 150,
			"penaltyRate": 0.05,
			"penaltyDays": 10,
			"compoundPenalty": true,
			"carWashRate": 100,
			"boatWashRate": 200,
			"dueDay": 5
		}
	}`,
	"PaymentMethods.json": `[{"id": "cash", "name": "Cash"}]`,
	"Categories.json":     `[{"id": "maintenance", "name": "Maintenance", "type": "expense"}]`,
	"Vendors.json":        `[{"id": "acme", "name": "ACME Pools"}]`,
	"Units.json":          `[{"id": "1A", "unitNumber": "1A", "scheduledDuesAmount": 4600}]`,
	"YearEndBalances.json": `[
		{"unitId": "1A", "creditBalance": 500}
	]`,
	"Transactions.json": `[{
		"date": "2025-07-10",
		"amount": 4600,
		"categoryId": "hoa_dues",
		"categoryName": "HOA Dues",
		"unitId": "1A",
		"paySeq": "PS-1"
	}]`,
	"HOADues.json": `[{
		"unitId": "1A",
		"fiscalYear": 2026,
		"scheduledAmount": 4600,
		"payments": [{"month": 1, "amount": 4600, "paySeq": "PS-1", "date": "2025-07-10", "paymentMethod": "cash"}]
	}]`,
	"WaterBills.json": `[{
		"fiscalYear": 2026,
		"quarter": 1,
		"billDate": "2025-10-01",
		"dueDate": "2025-10-05",
		"commonAreaConsumption": 10,
		"units": {
			"1A": {
				"priorReading": 100,
				"currentReading": 130,
				"currentCharge": 825,
				"payments": [{"paySeq": "PS-1", "amount": 825, "baseChargePaid": 825, "date": "2025-07-10"}]
			}
		}
	}]`,
}

func writeExport(t *testing.T, files map[string]string) *storage.DirSource {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return storage.NewDirSource(dir)
}

func newTestImporter(st store.Store) *Importer {
	audit := service.NewAuditService(st)
	ids := fiscal.NewIDGenerator(fiscal.DefaultLocation)
	return NewImporter(st, audit, ids, nil)
}

func getDecoded(t *testing.T, st store.Store, path string, out any) {
	t.Helper()
	doc, err := st.Get(context.Background(), path)
	require.NoError(t, err, path)
	require.NoError(t, store.Decode(doc, out), path)
}

func TestRunImportsFullExport(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	imp := newTestImporter(st)

	run, err := imp.Run(ctx, "bahiamar", "tester", writeExport(t, exportFiles))
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, domain.JobCompleted, run.Status)

	var client domain.Client
	getDecoded(t, st, store.ClientPath("bahiamar"), &client)
	assert.Equal(t, "Bahía Mar HOA", client.Name)
	assert.Equal(t, domain.DuesQuarterly, client.DuesFrequency)

	var cfg domain.WaterConfig
	getDecoded(t, st, store.WaterConfigPath("bahiamar"), &cfg)
	assert.Equal(t, domain.Centavos(2750), cfg.RatePerM3)
	assert.Equal(t, domain.Centavos(15000), cfg.MinimumCharge)

	var unit domain.Unit
	getDecoded(t, st, store.UnitPath("bahiamar", "1A"), &unit)
	assert.Equal(t, domain.Centavos(460000), unit.ScheduledDuesAmount)

	var cb domain.CreditBalance
	getDecoded(t, st, store.CreditPath("bahiamar", "1A"), &cb)
	assert.Equal(t, domain.Centavos(50000), cb.Balance)
	require.Len(t, cb.History, 1)
	assert.Equal(t, "year-end balance import", cb.History[0].Reason)

	txIDs, err := st.ListDocs(ctx, store.TransactionsCol("bahiamar"))
	require.NoError(t, err)
	require.Len(t, txIDs, 1)
	var txn domain.Transaction
	getDecoded(t, st, store.TransactionPath("bahiamar", txIDs[0]), &txn)
	assert.Equal(t, domain.Centavos(460000), txn.Amount)
	assert.Equal(t, "import", txn.CreatedBy)

	// The paySeq cross-reference stitches the new transaction ID into the
	// dues slot and bill payment.
	var rec domain.DuesRecord
	getDecoded(t, st, store.DuesPath("bahiamar", "1A", 2026), &rec)
	assert.Equal(t, domain.Centavos(460000), rec.TotalPaid)
	slot := rec.Slot(1)
	assert.True(t, slot.Paid)
	assert.Equal(t, txIDs[0], slot.TransactionID)
	require.NotNil(t, slot.DueDate)

	var bill domain.WaterBill
	getDecoded(t, st, store.BillPath("bahiamar", "2026-Q1"), &bill)
	entry := bill.Units["1A"]
	require.NotNil(t, entry)
	assert.Equal(t, int64(30), entry.Consumption)
	assert.Equal(t, domain.Centavos(82500), entry.PaidAmount)
	assert.Equal(t, domain.BillPaid, entry.Status)
	require.Len(t, entry.Payments, 1)
	assert.Equal(t, txIDs[0], entry.Payments[0].TransactionID)

	// Run metadata is persisted for the job status endpoint.
	runIDs, err := st.ListDocs(ctx, store.ImportMetaCol("bahiamar"))
	require.NoError(t, err)
	assert.Contains(t, runIDs, run.ID)
}

func TestRunRejectsClientIDMismatch(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	imp := newTestImporter(st)

	files := make(map[string]string, len(exportFiles))
	for k, v := range exportFiles {
		files[k] = v
	}
	files["Client.json"] = `{
		"clientId": "someone-else",
		"name": "Wrong Club",
		"fiscalYearStartMonth": 7,
		"displayCurrency": "MXN",
		"duesFrequency": "quarterly"
	}`

	run, err := imp.Run(ctx, "bahiamar", "tester", writeExport(t, files))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrClientIDMismatch)
	assert.Equal(t, domain.KindSafetyCheck, domain.KindOf(err))
	assert.Equal(t, domain.JobFailed, run.Status)

	// Nothing was written for the target client.
	_, err = st.Get(ctx, store.ClientPath("bahiamar"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunFailsWhenStepFileMissing(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	imp := newTestImporter(st)

	files := make(map[string]string, len(exportFiles))
	for k, v := range exportFiles {
		files[k] = v
	}
	delete(files, "Transactions.json")

	run, err := imp.Run(ctx, "bahiamar", "tester", writeExport(t, files))
	require.Error(t, err)
	assert.Equal(t, domain.JobFailed, run.Status)

	// Earlier steps already landed; the partial state is what purge exists
	// to clean up.
	_, err = st.Get(ctx, store.ClientPath("bahiamar"))
	assert.NoError(t, err)
}

func TestRunObservesCancellation(t *testing.T) {
	st := memory.New()
	imp := newTestImporter(st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := imp.Run(ctx, "bahiamar", "tester", writeExport(t, exportFiles))
	require.Error(t, err)
	assert.Equal(t, domain.JobCancelled, run.Status)
}

func TestJobsSerializePerClient(t *testing.T) {
	jobs := NewJobs()

	started := make(chan struct{})
	release := make(chan struct{})
	err := jobs.Start("bahiamar", "import", func(ctx context.Context) {
		close(started)
		<-release
	})
	require.NoError(t, err)
	<-started

	assert.True(t, jobs.Running("bahiamar"))
	err = jobs.Start("bahiamar", "purge", func(ctx context.Context) {})
	assert.ErrorIs(t, err, domain.ErrJobAlreadyRunning)

	// A different client is unaffected.
	done := make(chan struct{})
	err = jobs.Start("otherclub", "import", func(ctx context.Context) { close(done) })
	require.NoError(t, err)
	<-done

	close(release)
	deadline := time.After(2 * time.Second)
	for jobs.Running("bahiamar") {
		select {
		case <-deadline:
			t.Fatal("job slot not released")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestJobsCancelPropagates(t *testing.T) {
	jobs := NewJobs()

	cancelled := make(chan struct{})
	err := jobs.Start("bahiamar", "import", func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	})
	require.NoError(t, err)

	assert.True(t, jobs.Cancel("bahiamar"))
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation not observed")
	}
	assert.False(t, jobs.Cancel("bahiamar-not-running"))
}
