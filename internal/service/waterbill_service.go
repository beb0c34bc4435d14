package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// WaterBillService generates quarterly water bills from meter readings and
// applies payments to them. A bill is one document per fiscal quarter with
// one entry per unit; once generated it is immutable except for payments and
// penalty accrual.
type WaterBillService struct {
	store    store.Store
	clients  *ClientService
	readings *ReadingsService
	penalty  *PenaltyService
	audit    *AuditService
	now      func() time.Time
}

// NewWaterBillService creates a new WaterBillService.
func NewWaterBillService(
	st store.Store,
	clients *ClientService,
	readings *ReadingsService,
	penalty *PenaltyService,
	audit *AuditService,
) *WaterBillService {
	return &WaterBillService{
		store:    st,
		clients:  clients,
		readings: readings,
		penalty:  penalty,
		audit:    audit,
		now:      time.Now,
	}
}

// GenerateBillInput names the quarter to bill and the per-unit wash add-ons
// counted during it.
type GenerateBillInput struct {
	FiscalYear int
	Quarter    int
	CarWashes  map[string]int
	BoatWashes map[string]int
}

// Generate builds the bill for one fiscal quarter. It refuses to run unless
// all three months of the quarter have captured readings, recalculates
// penalties on earlier bills first so carried balances are current, and
// refuses to overwrite an existing bill.
func (s *WaterBillService) Generate(ctx context.Context, clientID, userID string, input GenerateBillInput) (*domain.WaterBill, error) {
	if input.Quarter < 1 || input.Quarter > 4 {
		return nil, domain.NewError(domain.KindInvalidInput, "quarter must be 1..4")
	}
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := client.Water.Validate(); err != nil {
		return nil, err
	}
	cfg := client.Water

	if _, err := s.penalty.RecalculateAll(ctx, clientID); err != nil {
		return nil, err
	}

	months := fiscal.QuarterMonths(input.Quarter)
	quarterReadings := make([]*domain.WaterReadings, 3)
	for i, m := range months {
		r, err := s.readings.Get(ctx, clientID, input.FiscalYear, m)
		if err == domain.ErrNotFound {
			return nil, domain.WrapError(domain.KindInvalidInput, "readings missing for quarter", domain.ErrMissingReadings).
				With("fiscalYear", input.FiscalYear).
				With("fiscalMonth", m)
		}
		if err != nil {
			return nil, err
		}
		quarterReadings[i] = r
	}
	closing := quarterReadings[2]

	units, err := s.clients.ListUnits(ctx, clientID)
	if err != nil {
		return nil, err
	}

	loc := s.clients.Location(client)
	dueDay := cfg.DueDay
	if dueDay < 1 {
		dueDay = 1
	}
	quarterStart := fiscal.QuarterStart(input.FiscalYear, input.Quarter, client.FiscalYearStartMonth, loc)
	bill := &domain.WaterBill{
		FiscalYear:     input.FiscalYear,
		Quarter:        input.Quarter,
		BillDate:       s.now().In(loc),
		DueDate:        time.Date(quarterStart.Year(), quarterStart.Month(), dueDay, 0, 0, 0, 0, loc),
		ConfigSnapshot: *cfg,
		CommonArea:     closing.CommonArea,
		Units:          make(map[string]*domain.UnitBill, len(units)),
	}

	for _, unit := range units {
		current, ok := closing.Readings[unit.ID]
		if !ok {
			continue
		}
		entry := s.buildUnitEntry(ctx, clientID, unit.ID, cfg, input, current, months[0])
		bill.Units[unit.ID] = entry
	}

	data, err := store.Encode(bill)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, store.BillPath(clientID, bill.ID()), data); err != nil {
		if err == domain.ErrAlreadyExists {
			return nil, domain.ErrBillAlreadyExists
		}
		return nil, err
	}

	s.audit.RecordBestEffort(ctx, clientID, AuditEntry{
		Module:     "waterBills",
		Action:     "generate",
		ParentPath: store.BillsCol(clientID),
		DocID:      bill.ID(),
		UserID:     userID,
	})
	log.Info().
		Str("client_id", clientID).
		Str("bill_id", bill.ID()).
		Int("units", len(bill.Units)).
		Msg("Water bill generated")
	return bill, nil
}

// buildUnitEntry computes one unit's consumption and base charge. A reading
// lower than the prior one means the meter was replaced or rolled over;
// consumption clamps to zero and the entry is flagged.
func (s *WaterBillService) buildUnitEntry(ctx context.Context, clientID, unitID string, cfg *domain.WaterConfig, input GenerateBillInput, current int64, firstMonth int) *domain.UnitBill {
	prior, found, err := s.readings.PriorReading(ctx, clientID, unitID, input.FiscalYear, firstMonth)
	if err != nil || !found {
		// First bill for this meter: no baseline, so no metered consumption.
		prior = current
	}

	consumption := current - prior
	meterReset := false
	if consumption < 0 {
		consumption = 0
		meterReset = true
	}

	charge := domain.Centavos(consumption) * cfg.RatePerM3
	carWashes := input.CarWashes[unitID]
	boatWashes := input.BoatWashes[unitID]
	charge += domain.Centavos(carWashes) * cfg.CarWashRate
	charge += domain.Centavos(boatWashes) * cfg.BoatWashRate
	if charge < cfg.MinimumCharge {
		charge = cfg.MinimumCharge
	}

	return &domain.UnitBill{
		PriorReading:   prior,
		CurrentReading: current,
		Consumption:    consumption,
		MeterReset:     meterReset,
		CarWashCount:   carWashes,
		BoatWashCount:  boatWashes,
		CurrentCharge:  charge,
		Status:         domain.BillUnpaid,
	}
}

// Get loads one quarter's bill.
func (s *WaterBillService) Get(ctx context.Context, clientID string, fiscalYear, quarter int) (*domain.WaterBill, error) {
	return s.getByID(ctx, s.store, clientID, domain.WaterBillID(fiscalYear, quarter))
}

func (s *WaterBillService) getByID(ctx context.Context, r store.Reader, clientID, billID string) (*domain.WaterBill, error) {
	doc, err := r.Get(ctx, store.BillPath(clientID, billID))
	if err != nil {
		return nil, err
	}
	var bill domain.WaterBill
	if err := store.Decode(doc, &bill); err != nil {
		return nil, err
	}
	return &bill, nil
}

// List returns every bill of the client in chronological order. Bill IDs sort
// lexicographically by fiscal year and quarter.
func (s *WaterBillService) List(ctx context.Context, clientID string) ([]*domain.WaterBill, error) {
	ids, err := s.store.ListDocs(ctx, store.BillsCol(clientID))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.WaterBill, 0, len(ids))
	for _, id := range ids {
		bill, err := s.getByID(ctx, s.store, clientID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, bill)
	}
	return out, nil
}

// ListOpen returns the bills on which the unit still owes something, oldest
// first. Used by the payment distributor to build the obligation queue.
func (s *WaterBillService) ListOpen(ctx context.Context, clientID, unitID string) ([]*domain.WaterBill, error) {
	return s.listOpen(ctx, s.store, clientID, unitID)
}

func (s *WaterBillService) listOpen(ctx context.Context, r store.Reader, clientID, unitID string) ([]*domain.WaterBill, error) {
	ids, err := r.ListDocs(ctx, store.BillsCol(clientID))
	if err != nil {
		return nil, err
	}
	var open []*domain.WaterBill
	for _, id := range ids {
		bill, err := s.getByID(ctx, r, clientID, id)
		if err != nil {
			return nil, err
		}
		entry, ok := bill.Units[unitID]
		if !ok || entry.Status == domain.BillPaid || entry.Outstanding() <= 0 {
			continue
		}
		open = append(open, bill)
	}
	return open, nil
}

// ApplyPaymentTx records a payment against one unit's entry inside an open
// store transaction. Penalty is consumed before principal. The entry flips to
// paid when nothing remains outstanding.
func (s *WaterBillService) ApplyPaymentTx(ctx context.Context, tx store.Tx, clientID, unitID, billID string, amount domain.Centavos, transactionID string, paymentDate time.Time) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	bill, err := s.getByID(ctx, tx, clientID, billID)
	if err != nil {
		return err
	}
	entry, ok := bill.Units[unitID]
	if !ok {
		return domain.NewError(domain.KindNotFound, "unit has no entry on this bill").
			With("unitId", unitID).
			With("billId", billID)
	}

	penaltyPaid := entry.OutstandingPenalty()
	if penaltyPaid > amount {
		penaltyPaid = amount
	}
	basePaid := amount - penaltyPaid

	entry.PaidAmount += amount
	entry.Payments = append(entry.Payments, domain.BillPayment{
		TransactionID:  transactionID,
		Amount:         amount,
		BaseChargePaid: basePaid,
		PenaltyPaid:    penaltyPaid,
		Date:           paymentDate,
	})
	if entry.Outstanding() == 0 {
		entry.Status = domain.BillPaid
	}

	data, err := store.Encode(bill)
	if err != nil {
		return err
	}
	return tx.Set(ctx, store.BillPath(clientID, billID), data)
}

// ReverseTransactionTx removes the transaction's payments from every bill
// entry of the unit and recomputes the paid amount and status. Used when an
// admin deletes a water payment transaction.
func (s *WaterBillService) ReverseTransactionTx(ctx context.Context, tx store.Tx, clientID, unitID, transactionID string) error {
	billIDs, err := tx.ListDocs(ctx, store.BillsCol(clientID))
	if err != nil {
		return err
	}
	for _, billID := range billIDs {
		bill, err := s.getByID(ctx, tx, clientID, billID)
		if err == domain.ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}
		entry, ok := bill.Units[unitID]
		if !ok {
			continue
		}

		kept := entry.Payments[:0]
		removed := false
		for _, p := range entry.Payments {
			if p.TransactionID == transactionID {
				entry.PaidAmount -= p.Amount
				removed = true
				continue
			}
			kept = append(kept, p)
		}
		if !removed {
			continue
		}
		entry.Payments = kept
		if entry.PaidAmount < 0 {
			entry.PaidAmount = 0
		}
		if entry.Outstanding() > 0 {
			entry.Status = domain.BillUnpaid
		}

		data, err := store.Encode(bill)
		if err != nil {
			return err
		}
		if err := tx.Set(ctx, store.BillPath(clientID, billID), data); err != nil {
			return err
		}
	}
	return nil
}
