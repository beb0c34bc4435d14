package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// DuesService maintains per-unit, per-fiscal-year HOA dues records: a fixed
// 12-slot payments array with scheduled amount and due dates.
type DuesService struct {
	store   store.Store
	clients *ClientService
	audit   *AuditService
	now     func() time.Time
}

// NewDuesService creates a new DuesService.
func NewDuesService(st store.Store, clients *ClientService, audit *AuditService) *DuesService {
	return &DuesService{store: st, clients: clients, audit: audit, now: time.Now}
}

// Get loads a unit's dues record for a fiscal year.
func (s *DuesService) Get(ctx context.Context, clientID, unitID string, fiscalYear int) (*domain.DuesRecord, error) {
	doc, err := s.store.Get(ctx, store.DuesPath(clientID, unitID, fiscalYear))
	if err != nil {
		return nil, err
	}
	return decodeDues(doc, unitID, fiscalYear)
}

func (s *DuesService) getTx(ctx context.Context, tx store.Tx, clientID, unitID string, fiscalYear int) (*domain.DuesRecord, error) {
	doc, err := tx.Get(ctx, store.DuesPath(clientID, unitID, fiscalYear))
	if err != nil {
		return nil, err
	}
	return decodeDues(doc, unitID, fiscalYear)
}

func decodeDues(doc *store.Doc, unitID string, fiscalYear int) (*domain.DuesRecord, error) {
	var rec domain.DuesRecord
	if err := store.Decode(doc, &rec); err != nil {
		return nil, err
	}
	rec.UnitID = unitID
	rec.FiscalYear = fiscalYear
	return &rec, nil
}

// EnsureYear creates the 12-slot record for (unit, fiscalYear) if absent and
// returns it. Idempotent: an existing record is returned untouched.
func (s *DuesService) EnsureYear(ctx context.Context, clientID, unitID string, fiscalYear int) (*domain.DuesRecord, error) {
	var rec *domain.DuesRecord
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rec, err = s.EnsureYearTx(ctx, tx, clientID, unitID, fiscalYear)
		return err
	})
	return rec, err
}

// EnsureYearTx is EnsureYear inside an open store transaction.
func (s *DuesService) EnsureYearTx(ctx context.Context, tx store.Tx, clientID, unitID string, fiscalYear int) (*domain.DuesRecord, error) {
	if existing, err := s.getTx(ctx, tx, clientID, unitID, fiscalYear); err == nil {
		return existing, nil
	} else if err != domain.ErrNotFound {
		return nil, err
	}

	client, err := s.clients.GetTx(ctx, tx, clientID)
	if err != nil {
		return nil, err
	}
	unitDoc, err := tx.Get(ctx, store.UnitPath(clientID, unitID))
	if err != nil {
		return nil, domain.ErrUnitNotFound
	}
	var unit domain.Unit
	if err := store.Decode(unitDoc, &unit); err != nil {
		return nil, err
	}

	rec := s.newRecord(client, unitID, unit.ScheduledDuesAmount, fiscalYear)
	data, err := store.Encode(rec)
	if err != nil {
		return nil, err
	}
	if err := tx.Set(ctx, store.DuesPath(clientID, unitID, fiscalYear), data); err != nil {
		return nil, err
	}
	return rec, nil
}

// newRecord seeds the 12 slots with due dates. For quarterly clients only
// the first month of each quarter carries the authoritative due date; the
// other two slots leave it nil.
func (s *DuesService) newRecord(client *domain.Client, unitID string, scheduled domain.Centavos, fiscalYear int) *domain.DuesRecord {
	loc := s.clients.Location(client)
	rec := &domain.DuesRecord{
		UnitID:          unitID,
		FiscalYear:      fiscalYear,
		ScheduledAmount: scheduled,
	}
	for i := 0; i < domain.DuesMonths; i++ {
		slot := &rec.Payments[i]
		slot.Month = i + 1
		if client.DuesFrequency == domain.DuesQuarterly && i%3 != 0 {
			continue
		}
		y, m := fiscal.CalendarMonth(fiscalYear, i, client.FiscalYearStartMonth)
		due := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		slot.DueDate = &due
	}
	return rec
}

// RecordPaymentTx adds the amounts to the given month slots atomically and
// recomputes the paid total. Months are fiscal month numbers 1..12; amounts
// align by index. A slot flips to paid only once it accumulates the scheduled
// amount; a partial payment leaves the remainder collectible.
func (s *DuesService) RecordPaymentTx(ctx context.Context, tx store.Tx, clientID, unitID string, fiscalYear int, months []int, amounts []domain.Centavos, transactionID string, paymentDate time.Time, paymentMethod string) error {
	if len(months) != len(amounts) {
		return domain.NewError(domain.KindInvalidInput, "months and amounts length mismatch")
	}

	rec, err := s.EnsureYearTx(ctx, tx, clientID, unitID, fiscalYear)
	if err != nil {
		return err
	}

	for i, m := range months {
		slot := rec.Slot(m)
		if slot == nil {
			return domain.NewError(domain.KindInvalidInput, "month out of range").With("month", m)
		}
		slot.Amount += amounts[i]
		slot.BasePaid += amounts[i]
		slot.Paid = slot.Amount >= rec.ScheduledAmount
		d := paymentDate
		slot.Date = &d
		slot.TransactionID = transactionID
		slot.PaymentMethod = paymentMethod
	}
	rec.RecomputeTotal()

	data, err := store.Encode(rec)
	if err != nil {
		return err
	}
	return tx.Set(ctx, store.DuesPath(clientID, unitID, fiscalYear), data)
}

// ReversePaymentTx clears every slot of one fiscal year whose transactionId
// matches, restoring it to unpaid.
func (s *DuesService) ReversePaymentTx(ctx context.Context, tx store.Tx, clientID, unitID string, fiscalYear int, transactionID string) error {
	rec, err := s.getTx(ctx, tx, clientID, unitID, fiscalYear)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil
		}
		return err
	}

	changed := false
	for i := range rec.Payments {
		slot := &rec.Payments[i]
		if slot.TransactionID != transactionID {
			continue
		}
		dueDate := slot.DueDate
		*slot = domain.DuesPayment{Month: i + 1, DueDate: dueDate}
		changed = true
	}
	if !changed {
		return nil
	}
	rec.RecomputeTotal()

	data, err := store.Encode(rec)
	if err != nil {
		return err
	}
	return tx.Set(ctx, store.DuesPath(clientID, unitID, fiscalYear), data)
}

// ReverseTransactionTx clears the transaction's slots across every dues year
// of the unit. Used when an admin deletes an HOA payment transaction.
func (s *DuesService) ReverseTransactionTx(ctx context.Context, tx store.Tx, clientID, unitID, transactionID string) error {
	years, err := tx.ListDocs(ctx, store.DuesCol(clientID, unitID))
	if err != nil {
		return err
	}
	for _, y := range years {
		var fiscalYear int
		if _, err := fmt.Sscanf(y, "%d", &fiscalYear); err != nil {
			continue
		}
		if err := s.ReversePaymentTx(ctx, tx, clientID, unitID, fiscalYear, transactionID); err != nil {
			return err
		}
	}
	return nil
}

// ListYear returns every unit's dues record for one fiscal year.
func (s *DuesService) ListYear(ctx context.Context, clientID string, fiscalYear int) (map[string]*domain.DuesRecord, error) {
	units, err := s.store.ListDocs(ctx, store.UnitsCol(clientID))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.DuesRecord, len(units))
	for _, unitID := range units {
		rec, err := s.Get(ctx, clientID, unitID, fiscalYear)
		if err == domain.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[unitID] = rec
	}
	return out, nil
}

// VisibleMonths applies the display policy: a slot is visible when its due
// date has arrived or it is already paid. For quarterly billing, one overdue
// month exposes its whole quarter.
func VisibleMonths(client *domain.Client, rec *domain.DuesRecord, today time.Time) []int {
	visible := make([]bool, domain.DuesMonths)
	for i := range rec.Payments {
		slot := &rec.Payments[i]
		if slot.Paid {
			visible[i] = true
			continue
		}
		if slot.DueDate != nil && !slot.DueDate.After(today) {
			visible[i] = true
		}
	}
	if client.DuesFrequency == domain.DuesQuarterly {
		for q := 0; q < 4; q++ {
			any := visible[q*3] || visible[q*3+1] || visible[q*3+2]
			if any {
				visible[q*3], visible[q*3+1], visible[q*3+2] = true, true, true
			}
		}
	}
	var out []int
	for i, v := range visible {
		if v {
			out = append(out, i+1)
		}
	}
	return out
}
