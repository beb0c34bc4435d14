package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// PenaltyService recalculates the compounding monthly penalty on unpaid
// water bills. It runs on a schedule, before each new bill generation, and
// surgically for a subset of units after payments. Recalculation is
// idempotent and never adjusts a penalty downward; only an explicit
// reversal does that.
type PenaltyService struct {
	store   store.Store
	clients *ClientService
	now     func() time.Time
}

// NewPenaltyService creates a new PenaltyService.
func NewPenaltyService(st store.Store, clients *ClientService) *PenaltyService {
	return &PenaltyService{store: st, clients: clients, now: time.Now}
}

// RecalcResult reports what one recalculation pass touched.
type RecalcResult struct {
	BillsExamined  int       `json:"billsExamined"`
	UnitsUpdated   int       `json:"unitsUpdated"`
	UnitsSkipped   int       `json:"unitsSkipped"`
	BillsNotYetDue int       `json:"billsNotYetDue"`
	RanAt          time.Time `json:"ranAt"`
}

// ComputePenalty returns the penalty on an overdue principal after
// monthsLate whole months. Compound mode accrues monthly against the growing
// balance; each month's accrual truncates to whole centavos. Simple mode is
// principal x rate x months.
func ComputePenalty(cfg *domain.WaterConfig, principal domain.Centavos, monthsLate int) domain.Centavos {
	if principal <= 0 || monthsLate <= 0 {
		return 0
	}
	if !cfg.CompoundPenalty {
		return domain.Centavos(float64(principal) * cfg.PenaltyRate * float64(monthsLate))
	}
	running := principal
	var total domain.Centavos
	for m := 0; m < monthsLate; m++ {
		monthly := domain.Centavos(float64(running) * cfg.PenaltyRate)
		total += monthly
		running += monthly
	}
	return total
}

// PenaltyAsOf computes a unit bill's expected penalty as of a given instant,
// without persisting. Used for backdated-payment previews.
func PenaltyAsOf(cfg *domain.WaterConfig, entry *domain.UnitBill, dueDate time.Time, asOf time.Time) domain.Centavos {
	graceEnd := dueDate.AddDate(0, 0, cfg.PenaltyDays)
	if !graceEnd.Before(asOf) {
		return 0
	}
	principal := entry.CurrentCharge - entry.PaidAmount
	if principal < 0 {
		principal = 0
	}
	months := fiscal.MonthsBetween(graceEnd, asOf)
	return ComputePenalty(cfg, principal, months)
}

// RecalculateAll recalculates penalties for every unpaid bill of the client.
func (s *PenaltyService) RecalculateAll(ctx context.Context, clientID string) (*RecalcResult, error) {
	return s.recalculate(ctx, clientID, nil)
}

// RecalculateUnits restricts the pass to the given units, as after a payment.
func (s *PenaltyService) RecalculateUnits(ctx context.Context, clientID string, unitIDs []string) (*RecalcResult, error) {
	scope := make(map[string]bool, len(unitIDs))
	for _, id := range unitIDs {
		scope[id] = true
	}
	return s.recalculate(ctx, clientID, scope)
}

func (s *PenaltyService) recalculate(ctx context.Context, clientID string, scope map[string]bool) (*RecalcResult, error) {
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := client.Water.Validate(); err != nil {
		return nil, err
	}
	cfg := client.Water
	now := s.now()
	result := &RecalcResult{RanAt: now}

	billIDs, err := s.store.ListDocs(ctx, store.BillsCol(clientID))
	if err != nil {
		return nil, err
	}

	for _, billID := range billIDs {
		result.BillsExamined++
		err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
			doc, err := tx.Get(ctx, store.BillPath(clientID, billID))
			if err != nil {
				return err
			}
			var bill domain.WaterBill
			if err := store.Decode(doc, &bill); err != nil {
				return err
			}

			graceEnd := bill.DueDate.AddDate(0, 0, cfg.PenaltyDays)
			if !graceEnd.Before(now) {
				result.BillsNotYetDue++
				return nil
			}

			changed := false
			for unitID, entry := range bill.Units {
				if scope != nil && !scope[unitID] {
					result.UnitsSkipped++
					continue
				}
				if entry.Status == domain.BillPaid {
					result.UnitsSkipped++
					continue
				}

				principal := entry.CurrentCharge - entry.PaidAmount
				if principal < 0 {
					principal = 0
				}
				monthsLate := fiscal.MonthsBetween(graceEnd, now)
				expected := ComputePenalty(cfg, principal, monthsLate)

				diff := expected - entry.PenaltyAmount
				if diff <= domain.SplitTolerance {
					// Within tolerance, or lower than the accrued penalty:
					// never recalculated downward except by explicit reversal.
					result.UnitsSkipped++
					continue
				}
				entry.PenaltyAmount = expected
				ts := now
				entry.LastPenaltyUpdate = &ts
				changed = true
				result.UnitsUpdated++
			}
			if !changed {
				return nil
			}

			data, err := store.Encode(&bill)
			if err != nil {
				return err
			}
			return tx.Set(ctx, store.BillPath(clientID, billID), data)
		})
		if err != nil {
			return nil, domain.WrapError(domain.KindInternal, "penalty recalculation failed", err).
				With("billId", billID)
		}
	}

	log.Info().
		Str("client_id", clientID).
		Int("bills", result.BillsExamined).
		Int("updated", result.UnitsUpdated).
		Int("skipped", result.UnitsSkipped).
		Msg("Penalty recalculation complete")
	return result, nil
}
