package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/port"
	"github.com/bahiamar/hoa-backend/internal/service"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// Importer loads a client's legacy JSON export in a fixed step order:
// Client, Config, PaymentMethods, Categories, Vendors, Units,
// YearEndBalances, Transactions, HOADues, WaterBills. The Transactions step
// builds the cross-reference the dues and water steps consume. A failure in
// the Transactions step halts the run; a later failure leaves the client
// partially imported, to be purged before retry.
type Importer struct {
	store    store.Store
	audit    *service.AuditService
	ids      *fiscal.IDGenerator
	reporter Reporter
	now      func() time.Time
}

// NewImporter creates an Importer. reporter may be nil.
func NewImporter(st store.Store, audit *service.AuditService, ids *fiscal.IDGenerator, reporter Reporter) *Importer {
	return &Importer{store: st, audit: audit, ids: ids, reporter: reporter, now: time.Now}
}

// Legacy export shapes. Amounts are pesos floats; conversion to centavos
// happens here, at the boundary, and a conversion failure fails the record.

type legacyClient struct {
	ClientID             string `json:"clientId"`
	Name                 string `json:"name"`
	FiscalYearStartMonth int    `json:"fiscalYearStartMonth"`
	DisplayCurrency      string `json:"displayCurrency"`
	DuesFrequency        string `json:"duesFrequency"`
	DuesGraceDays        int    `json:"duesGraceDays"`
	Timezone             string `json:"timezone"`
}

type legacyWaterConfig struct {
	RatePerM3       float64 `json:"ratePerM3"`
	MinimumCharge   float64 `json:"minimumCharge"`
	PenaltyRate     float64 `json:"penaltyRate"`
	PenaltyDays     int     `json:"penaltyDays"`
	CompoundPenalty bool    `json:"compoundPenalty"`
	CarWashRate     float64 `json:"carWashRate"`
	BoatWashRate    float64 `json:"boatWashRate"`
	DueDay          int     `json:"dueDay"`
}

type legacyConfig struct {
	WaterBills *legacyWaterConfig `json:"waterBills"`
}

type legacyNamed struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type legacyUnit struct {
	ID                  string   `json:"id"`
	UnitNumber          string   `json:"unitNumber"`
	Owners              []string `json:"owners"`
	Managers            []string `json:"managers"`
	ScheduledDuesAmount float64  `json:"scheduledDuesAmount"`
}

type legacyYearEndBalance struct {
	UnitID        string  `json:"unitId"`
	CreditBalance float64 `json:"creditBalance"`
}

type legacyAllocation struct {
	TargetID   string         `json:"targetId"`
	TargetName string         `json:"targetName"`
	Type       string         `json:"type"`
	CategoryID string         `json:"categoryId"`
	Amount     float64        `json:"amount"`
	Metadata   map[string]any `json:"metadata"`
}

type legacyTransaction struct {
	Date          string             `json:"date"`
	Amount        float64            `json:"amount"`
	CategoryID    string             `json:"categoryId"`
	CategoryName  string             `json:"categoryName"`
	VendorID      string             `json:"vendorId"`
	VendorName    string             `json:"vendorName"`
	AccountID     string             `json:"accountId"`
	PaymentMethod string             `json:"paymentMethod"`
	UnitID        string             `json:"unitId"`
	Notes         string             `json:"notes"`
	PaySeq        string             `json:"paySeq"`
	Allocations   []legacyAllocation `json:"allocations"`
}

type legacyDuesPayment struct {
	Month         int     `json:"month"`
	Amount        float64 `json:"amount"`
	PaySeq        string  `json:"paySeq"`
	Date          string  `json:"date"`
	Notes         string  `json:"notes"`
	PaymentMethod string  `json:"paymentMethod"`
	Reference     string  `json:"reference"`
}

type legacyDuesRecord struct {
	UnitID          string              `json:"unitId"`
	FiscalYear      int                 `json:"fiscalYear"`
	ScheduledAmount float64             `json:"scheduledAmount"`
	Payments        []legacyDuesPayment `json:"payments"`
}

type legacyBillPayment struct {
	PaySeq         string  `json:"paySeq"`
	Amount         float64 `json:"amount"`
	BaseChargePaid float64 `json:"baseChargePaid"`
	PenaltyPaid    float64 `json:"penaltyPaid"`
	Date           string  `json:"date"`
}

type legacyUnitBill struct {
	PriorReading   int64               `json:"priorReading"`
	CurrentReading int64               `json:"currentReading"`
	CarWashCount   int                 `json:"carWashCount"`
	BoatWashCount  int                 `json:"boatWashCount"`
	CurrentCharge  float64             `json:"currentCharge"`
	PenaltyAmount  float64             `json:"penaltyAmount"`
	Payments       []legacyBillPayment `json:"payments"`
}

type legacyWaterBill struct {
	FiscalYear int                       `json:"fiscalYear"`
	Quarter    int                       `json:"quarter"`
	BillDate   string                    `json:"billDate"`
	DueDate    string                    `json:"dueDate"`
	CommonArea int64                     `json:"commonAreaConsumption"`
	Config     *legacyWaterConfig        `json:"configSnapshot"`
	Units      map[string]legacyUnitBill `json:"units"`
}

// Run executes the full import sequence from the file source into clientID.
func (im *Importer) Run(ctx context.Context, clientID, startedBy string, files port.FileSource) (*domain.ImportRun, error) {
	run := &domain.ImportRun{
		ID:        uuid.New().String(),
		ClientID:  clientID,
		Kind:      "import",
		Status:    domain.JobRunning,
		StartedAt: im.now().UTC(),
		StartedBy: startedBy,
	}
	t := newTracker(im.store, im.reporter, run)

	client, loc, err := im.importClient(ctx, t, clientID, files)
	if err != nil {
		t.finish(ctx, domain.JobFailed, im.now().UTC())
		return run, err
	}

	xref := NewCrossRef()
	steps := []struct {
		name string
		fn   func(context.Context, *tracker, int) error
	}{
		{"config", func(ctx context.Context, t *tracker, s int) error {
			return im.importConfig(ctx, t, s, clientID, files)
		}},
		{"paymentMethods", func(ctx context.Context, t *tracker, s int) error {
			return im.importNamed(ctx, t, s, files, "PaymentMethods.json", store.PaymentMethodsCol(clientID))
		}},
		{"categories", func(ctx context.Context, t *tracker, s int) error {
			return im.importNamed(ctx, t, s, files, "Categories.json", store.CategoriesCol(clientID))
		}},
		{"vendors", func(ctx context.Context, t *tracker, s int) error {
			return im.importNamed(ctx, t, s, files, "Vendors.json", store.VendorsCol(clientID))
		}},
		{"units", func(ctx context.Context, t *tracker, s int) error {
			return im.importUnits(ctx, t, s, clientID, files)
		}},
		{"yearEndBalances", func(ctx context.Context, t *tracker, s int) error {
			return im.importYearEndBalances(ctx, t, s, clientID, files)
		}},
		{"transactions", func(ctx context.Context, t *tracker, s int) error {
			return im.importTransactions(ctx, t, s, client, loc, files, xref)
		}},
		{"hoaDues", func(ctx context.Context, t *tracker, s int) error {
			return im.importDues(ctx, t, s, client, loc, files, xref)
		}},
		{"waterBills", func(ctx context.Context, t *tracker, s int) error {
			return im.importWaterBills(ctx, t, s, clientID, loc, files, xref)
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			t.finish(ctx, domain.JobCancelled, im.now().UTC())
			return run, err
		}
		idx := t.beginStep(ctx, step.name)
		if err := step.fn(ctx, t, idx); err != nil {
			t.endStep(ctx, idx, domain.JobFailed, err)
			// Partial state: later steps would consume incomplete data, so
			// the run stops here and the client must be purged before retry.
			t.finish(ctx, domain.JobFailed, im.now().UTC())
			return run, err
		}
		t.endStep(ctx, idx, domain.JobCompleted, nil)
	}

	t.finish(ctx, domain.JobCompleted, im.now().UTC())
	if err := im.audit.Record(ctx, clientID, service.AuditEntry{
		Module: "import",
		Action: "run",
		DocID:  run.ID,
		UserID: startedBy,
		Metadata: map[string]any{
			"crossRefEntries": xref.Len(),
		},
	}); err != nil {
		// Audit is fatal for import runs.
		return run, err
	}
	log.Info().Str("client_id", clientID).Str("run_id", run.ID).Msg("Import completed")
	return run, nil
}

func (im *Importer) readJSON(ctx context.Context, files port.FileSource, name string, v any) error {
	rc, err := files.Open(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// importClient reads Client.json, enforces the clientId safety check, and
// writes the client document.
func (im *Importer) importClient(ctx context.Context, t *tracker, clientID string, files port.FileSource) (*domain.Client, *time.Location, error) {
	step := t.beginStep(ctx, "client")

	var lc legacyClient
	if err := im.readJSON(ctx, files, "Client.json", &lc); err != nil {
		t.endStep(ctx, step, domain.JobFailed, err)
		return nil, nil, err
	}
	if lc.ClientID != clientID {
		err := domain.ErrClientIDMismatch
		t.endStep(ctx, step, domain.JobFailed, err)
		return nil, nil, err
	}

	client := &domain.Client{
		ID:                   lc.ClientID,
		Name:                 lc.Name,
		FiscalYearStartMonth: lc.FiscalYearStartMonth,
		DisplayCurrency:      lc.DisplayCurrency,
		DuesFrequency:        domain.DuesFrequency(lc.DuesFrequency),
		DuesGraceDays:        lc.DuesGraceDays,
		Timezone:             lc.Timezone,
	}
	if err := client.Validate(); err != nil {
		t.endStep(ctx, step, domain.JobFailed, err)
		return nil, nil, err
	}

	data, err := store.Encode(client)
	if err == nil {
		err = im.store.Set(ctx, store.ClientPath(clientID), data)
	}
	if err != nil {
		t.endStep(ctx, step, domain.JobFailed, err)
		return nil, nil, err
	}

	loc := fiscal.DefaultLocation
	if client.Timezone != "" {
		if l, lerr := time.LoadLocation(client.Timezone); lerr == nil {
			loc = l
		}
	}
	t.tick(ctx, step, true, 1)
	t.endStep(ctx, step, domain.JobCompleted, nil)
	return client, loc, nil
}

func (im *Importer) importConfig(ctx context.Context, t *tracker, step int, clientID string, files port.FileSource) error {
	var lc legacyConfig
	if err := im.readJSON(ctx, files, "Config.json", &lc); err != nil {
		return err
	}
	if lc.WaterBills == nil {
		return nil
	}
	cfg, err := convertWaterConfig(lc.WaterBills)
	if err != nil {
		return err
	}
	data, err := store.Encode(cfg)
	if err != nil {
		return err
	}
	if err := im.store.Set(ctx, store.WaterConfigPath(clientID), data); err != nil {
		return err
	}
	t.tick(ctx, step, true, 1)
	return nil
}

func convertWaterConfig(lw *legacyWaterConfig) (*domain.WaterConfig, error) {
	rate, err := domain.CentavosFromFloat(lw.RatePerM3)
	if err != nil {
		return nil, err
	}
	minCharge, err := domain.CentavosFromFloat(lw.MinimumCharge)
	if err != nil {
		return nil, err
	}
	carWash, err := domain.CentavosFromFloat(lw.CarWashRate)
	if err != nil {
		return nil, err
	}
	boatWash, err := domain.CentavosFromFloat(lw.BoatWashRate)
	if err != nil {
		return nil, err
	}
	cfg := &domain.WaterConfig{
		RatePerM3:       rate,
		MinimumCharge:   minCharge,
		PenaltyRate:     lw.PenaltyRate,
		PenaltyDays:     lw.PenaltyDays,
		CompoundPenalty: lw.CompoundPenalty,
		CarWashRate:     carWash,
		BoatWashRate:    boatWash,
		DueDay:          lw.DueDay,
	}
	return cfg, cfg.Validate()
}

// importNamed loads a flat id/name file into one collection.
func (im *Importer) importNamed(ctx context.Context, t *tracker, step int, files port.FileSource, fileName, colPath string) error {
	var items []legacyNamed
	if err := im.readJSON(ctx, files, fileName, &items); err != nil {
		return err
	}
	for _, item := range items {
		if item.ID == "" {
			t.tick(ctx, step, false, len(items))
			continue
		}
		data := map[string]any{"name": item.Name}
		if item.Type != "" {
			data["type"] = item.Type
		}
		if err := im.store.Set(ctx, colPath+"/"+item.ID, data); err != nil {
			return err
		}
		t.tick(ctx, step, true, len(items))
	}
	return nil
}

func (im *Importer) importUnits(ctx context.Context, t *tracker, step int, clientID string, files port.FileSource) error {
	var units []legacyUnit
	if err := im.readJSON(ctx, files, "Units.json", &units); err != nil {
		return err
	}
	for _, lu := range units {
		scheduled, err := domain.CentavosFromFloat(lu.ScheduledDuesAmount)
		if err != nil {
			t.tick(ctx, step, false, len(units))
			continue
		}
		unit := &domain.Unit{
			ID:                  lu.ID,
			UnitNumber:          lu.UnitNumber,
			Owners:              lu.Owners,
			Managers:            lu.Managers,
			ScheduledDuesAmount: scheduled,
		}
		data, err := store.Encode(unit)
		if err != nil {
			return err
		}
		if err := im.store.Set(ctx, store.UnitPath(clientID, lu.ID), data); err != nil {
			return err
		}
		t.tick(ctx, step, true, len(units))
	}
	return nil
}

func (im *Importer) importYearEndBalances(ctx context.Context, t *tracker, step int, clientID string, files port.FileSource) error {
	var balances []legacyYearEndBalance
	if err := im.readJSON(ctx, files, "YearEndBalances.json", &balances); err != nil {
		return err
	}
	for _, lb := range balances {
		amount, err := domain.CentavosFromFloat(lb.CreditBalance)
		if err != nil || amount < 0 {
			t.tick(ctx, step, false, len(balances))
			continue
		}
		cb := &domain.CreditBalance{
			UnitID:  lb.UnitID,
			Balance: amount,
			History: []domain.CreditEntry{{
				Timestamp:  im.now().UTC(),
				Delta:      amount,
				NewBalance: amount,
				Reason:     "year-end balance import",
			}},
		}
		data, err := store.Encode(cb)
		if err != nil {
			return err
		}
		if err := im.store.Set(ctx, store.CreditPath(clientID, lb.UnitID), data); err != nil {
			return err
		}
		t.tick(ctx, step, true, len(balances))
	}
	return nil
}

// importTransactions writes every transaction and fills the cross-reference
// from legacy paySeq tags. Corrupt split records (a "-split-" category with
// no allocations) are rejected and written to the audit log as corrupt.
func (im *Importer) importTransactions(ctx context.Context, t *tracker, step int, client *domain.Client, loc *time.Location, files port.FileSource, xref *CrossRef) error {
	var txns []legacyTransaction
	if err := im.readJSON(ctx, files, "Transactions.json", &txns); err != nil {
		return err
	}
	for i, lt := range txns {
		txn, err := im.convertTransaction(&lt, loc)
		if err == nil {
			err = txn.Validate()
		}
		if err != nil {
			t.tick(ctx, step, false, len(txns))
			if aerr := im.audit.Record(ctx, client.ID, service.AuditEntry{
				Module: "import",
				Action: "corrupt",
				DocID:  fmt.Sprintf("Transactions.json#%d", i),
				Notes:  err.Error(),
			}); aerr != nil {
				return aerr
			}
			continue
		}

		data, err := store.Encode(txn)
		if err != nil {
			return err
		}
		if err := im.store.Set(ctx, store.TransactionPath(client.ID, txn.ID), data); err != nil {
			return err
		}
		if lt.PaySeq != "" {
			xref.Put(lt.PaySeq, CrossRefEntry{
				TransactionID: txn.ID,
				UnitID:        txn.UnitID,
				Amount:        txn.Amount,
				Date:          txn.Date,
			})
		}
		t.tick(ctx, step, true, len(txns))
	}
	return nil
}

func (im *Importer) convertTransaction(lt *legacyTransaction, loc *time.Location) (*domain.Transaction, error) {
	date, err := fiscal.ParseDate(lt.Date, loc)
	if err != nil {
		return nil, err
	}
	amount, err := domain.CentavosFromFloat(lt.Amount)
	if err != nil {
		return nil, err
	}
	var allocations []domain.Allocation
	for _, la := range lt.Allocations {
		aAmount, err := domain.CentavosFromFloat(la.Amount)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, domain.Allocation{
			TargetID:   la.TargetID,
			TargetName: la.TargetName,
			Type:       domain.AllocationType(la.Type),
			CategoryID: la.CategoryID,
			Amount:     aAmount,
			Metadata:   la.Metadata,
		})
	}
	return &domain.Transaction{
		ID:            im.ids.TransactionIDAt(date),
		Date:          date,
		Amount:        amount,
		CategoryID:    lt.CategoryID,
		CategoryName:  lt.CategoryName,
		VendorID:      lt.VendorID,
		VendorName:    lt.VendorName,
		AccountID:     lt.AccountID,
		PaymentMethod: lt.PaymentMethod,
		UnitID:        lt.UnitID,
		Notes:         lt.Notes,
		Allocations:   allocations,
		CreatedAt:     im.now().UTC(),
		CreatedBy:     "import",
	}, nil
}

// importDues builds the 12-slot records, consuming the cross-reference to
// attach the new transaction IDs to paid slots.
func (im *Importer) importDues(ctx context.Context, t *tracker, step int, client *domain.Client, loc *time.Location, files port.FileSource, xref *CrossRef) error {
	var records []legacyDuesRecord
	if err := im.readJSON(ctx, files, "HOADues.json", &records); err != nil {
		return err
	}
	for _, lr := range records {
		scheduled, err := domain.CentavosFromFloat(lr.ScheduledAmount)
		if err != nil {
			t.tick(ctx, step, false, len(records))
			continue
		}
		rec := &domain.DuesRecord{
			UnitID:          lr.UnitID,
			FiscalYear:      lr.FiscalYear,
			ScheduledAmount: scheduled,
		}
		for i := 0; i < domain.DuesMonths; i++ {
			slot := &rec.Payments[i]
			slot.Month = i + 1
			if client.DuesFrequency == domain.DuesQuarterly && i%3 != 0 {
				continue
			}
			y, m := fiscal.CalendarMonth(lr.FiscalYear, i, client.FiscalYearStartMonth)
			due := time.Date(y, m, 1, 0, 0, 0, 0, loc)
			slot.DueDate = &due
		}

		ok := true
		for _, lp := range lr.Payments {
			slot := rec.Slot(lp.Month)
			if slot == nil {
				ok = false
				continue
			}
			amount, err := domain.CentavosFromFloat(lp.Amount)
			if err != nil {
				ok = false
				continue
			}
			slot.Amount = amount
			slot.BasePaid = amount
			slot.Paid = amount > 0
			slot.Notes = lp.Notes
			slot.PaymentMethod = lp.PaymentMethod
			slot.Reference = lp.Reference
			if lp.Date != "" {
				if d, derr := fiscal.ParseDate(lp.Date, loc); derr == nil {
					slot.Date = &d
				}
			}
			if e, found := xref.Get(lp.PaySeq); found {
				slot.TransactionID = e.TransactionID
			}
		}
		rec.RecomputeTotal()

		data, err := store.Encode(rec)
		if err != nil {
			return err
		}
		if err := im.store.Set(ctx, store.DuesPath(client.ID, lr.UnitID, lr.FiscalYear), data); err != nil {
			return err
		}
		t.tick(ctx, step, ok, len(records))
	}
	return nil
}

// importWaterBills writes quarter bills, resolving paySeq references to the
// transactions created earlier in the run.
func (im *Importer) importWaterBills(ctx context.Context, t *tracker, step int, clientID string, loc *time.Location, files port.FileSource, xref *CrossRef) error {
	var bills []legacyWaterBill
	if err := im.readJSON(ctx, files, "WaterBills.json", &bills); err != nil {
		return err
	}
	for _, lb := range bills {
		bill, ok, err := im.convertWaterBill(&lb, loc, xref)
		if err != nil {
			return err
		}
		data, err := store.Encode(bill)
		if err != nil {
			return err
		}
		if err := im.store.Set(ctx, store.BillPath(clientID, bill.ID()), data); err != nil {
			return err
		}
		t.tick(ctx, step, ok, len(bills))
	}
	return nil
}

func (im *Importer) convertWaterBill(lb *legacyWaterBill, loc *time.Location, xref *CrossRef) (*domain.WaterBill, bool, error) {
	bill := &domain.WaterBill{
		FiscalYear: lb.FiscalYear,
		Quarter:    lb.Quarter,
		CommonArea: lb.CommonArea,
		Units:      make(map[string]*domain.UnitBill, len(lb.Units)),
	}
	if d, err := fiscal.ParseDate(lb.BillDate, loc); err == nil {
		bill.BillDate = d
	}
	if d, err := fiscal.ParseDate(lb.DueDate, loc); err == nil {
		bill.DueDate = d
	}
	if lb.Config != nil {
		cfg, err := convertWaterConfig(lb.Config)
		if err != nil {
			return nil, false, err
		}
		bill.ConfigSnapshot = *cfg
	}

	ok := true
	for unitID, lu := range lb.Units {
		charge, err := domain.CentavosFromFloat(lu.CurrentCharge)
		if err != nil {
			ok = false
			continue
		}
		penalty, err := domain.CentavosFromFloat(lu.PenaltyAmount)
		if err != nil {
			ok = false
			continue
		}
		consumption := lu.CurrentReading - lu.PriorReading
		meterReset := false
		if consumption < 0 {
			consumption = 0
			meterReset = true
		}
		entry := &domain.UnitBill{
			PriorReading:   lu.PriorReading,
			CurrentReading: lu.CurrentReading,
			Consumption:    consumption,
			MeterReset:     meterReset,
			CarWashCount:   lu.CarWashCount,
			BoatWashCount:  lu.BoatWashCount,
			CurrentCharge:  charge,
			PenaltyAmount:  penalty,
			Status:         domain.BillUnpaid,
		}
		for _, lp := range lu.Payments {
			amount, err := domain.CentavosFromFloat(lp.Amount)
			if err != nil {
				ok = false
				continue
			}
			basePaid, _ := domain.CentavosFromFloat(lp.BaseChargePaid)
			penaltyPaid, _ := domain.CentavosFromFloat(lp.PenaltyPaid)
			p := domain.BillPayment{
				Amount:         amount,
				BaseChargePaid: basePaid,
				PenaltyPaid:    penaltyPaid,
			}
			if d, derr := fiscal.ParseDate(lp.Date, loc); derr == nil {
				p.Date = d
			}
			if e, found := xref.Get(lp.PaySeq); found {
				p.TransactionID = e.TransactionID
			}
			entry.PaidAmount += amount
			entry.Payments = append(entry.Payments, p)
		}
		if entry.Outstanding() == 0 {
			entry.Status = domain.BillPaid
		}
		bill.Units[unitID] = entry
	}
	return bill, ok, nil
}
