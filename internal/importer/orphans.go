package importer

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// OrphanRef is one ledger entry pointing at a transaction that no longer
// exists, typically left behind by an interrupted import or a manual
// transaction deletion outside the application.
type OrphanRef struct {
	DocPath       string `json:"docPath"`
	UnitID        string `json:"unitId"`
	TransactionID string `json:"transactionId"`
	// Kind is "dues" or "water_bill".
	Kind       string `json:"kind"`
	FiscalYear int    `json:"fiscalYear"`
	// Month is the fiscal month for dues orphans; Quarter for bill orphans.
	Month   int `json:"month,omitempty"`
	Quarter int `json:"quarter,omitempty"`
}

// OrphanScanResult summarizes one scan.
type OrphanScanResult struct {
	DocsScanned int         `json:"docsScanned"`
	Orphans     []OrphanRef `json:"orphans"`
	Fixed       int         `json:"fixed"`
	DryRun      bool        `json:"dryRun"`
}

// OrphanScanner cross-checks dues records and water bills against the
// transaction log.
type OrphanScanner struct {
	store store.Store
}

// NewOrphanScanner creates a new OrphanScanner.
func NewOrphanScanner(st store.Store) *OrphanScanner {
	return &OrphanScanner{store: st}
}

// Scan walks every dues record and water bill of the client and reports
// payment entries whose transactionId has no matching transaction document.
// With fix set, dues slots are cleared and bill payments removed, and the
// affected totals recomputed.
func (s *OrphanScanner) Scan(ctx context.Context, clientID string, fix bool) (*OrphanScanResult, error) {
	result := &OrphanScanResult{DryRun: !fix}

	txIDs, err := s.store.ListDocs(ctx, store.TransactionsCol(clientID))
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(txIDs))
	for _, id := range txIDs {
		known[id] = true
	}

	if err := s.scanDues(ctx, clientID, known, fix, result); err != nil {
		return nil, err
	}
	if err := s.scanBills(ctx, clientID, known, fix, result); err != nil {
		return nil, err
	}

	log.Info().
		Str("client_id", clientID).
		Int("docs_scanned", result.DocsScanned).
		Int("orphans", len(result.Orphans)).
		Int("fixed", result.Fixed).
		Bool("dry_run", result.DryRun).
		Msg("Orphan scan finished")
	return result, nil
}

func (s *OrphanScanner) scanDues(ctx context.Context, clientID string, known map[string]bool, fix bool, result *OrphanScanResult) error {
	unitIDs, err := s.store.ListDocs(ctx, store.UnitsCol(clientID))
	if err != nil {
		return err
	}
	for _, unitID := range unitIDs {
		yearIDs, err := s.store.ListDocs(ctx, store.DuesCol(clientID, unitID))
		if err != nil {
			return err
		}
		for _, yearID := range yearIDs {
			path := store.DuesCol(clientID, unitID) + "/" + yearID
			doc, err := s.store.Get(ctx, path)
			if err != nil {
				continue
			}
			var rec domain.DuesRecord
			if err := store.Decode(doc, &rec); err != nil {
				continue
			}
			result.DocsScanned++

			changed := false
			for i := range rec.Payments {
				slot := &rec.Payments[i]
				if slot.TransactionID == "" || known[slot.TransactionID] {
					continue
				}
				result.Orphans = append(result.Orphans, OrphanRef{
					DocPath:       path,
					UnitID:        unitID,
					TransactionID: slot.TransactionID,
					Kind:          "dues",
					FiscalYear:    rec.FiscalYear,
					Month:         slot.Month,
				})
				if fix {
					*slot = domain.DuesPayment{Month: slot.Month, DueDate: slot.DueDate}
					changed = true
				}
			}
			if changed {
				rec.RecomputeTotal()
				data, err := store.Encode(&rec)
				if err != nil {
					return err
				}
				if err := s.store.Set(ctx, path, data); err != nil {
					return err
				}
				result.Fixed++
			}
		}
	}
	return nil
}

func (s *OrphanScanner) scanBills(ctx context.Context, clientID string, known map[string]bool, fix bool, result *OrphanScanResult) error {
	billIDs, err := s.store.ListDocs(ctx, store.BillsCol(clientID))
	if err != nil {
		return err
	}
	for _, billID := range billIDs {
		path := store.BillPath(clientID, billID)
		doc, err := s.store.Get(ctx, path)
		if err != nil {
			continue
		}
		var bill domain.WaterBill
		if err := store.Decode(doc, &bill); err != nil {
			continue
		}
		result.DocsScanned++

		changed := false
		for unitID, entry := range bill.Units {
			kept := entry.Payments[:0]
			for _, p := range entry.Payments {
				if p.TransactionID != "" && !known[p.TransactionID] {
					result.Orphans = append(result.Orphans, OrphanRef{
						DocPath:       path,
						UnitID:        unitID,
						TransactionID: p.TransactionID,
						Kind:          "water_bill",
						FiscalYear:    bill.FiscalYear,
						Quarter:       bill.Quarter,
					})
					if fix {
						changed = true
						continue
					}
				}
				kept = append(kept, p)
			}
			if !fix {
				continue
			}
			entry.Payments = kept
			var paid domain.Centavos
			for _, p := range entry.Payments {
				paid += p.Amount
			}
			entry.PaidAmount = paid
			if entry.Outstanding() == 0 {
				entry.Status = domain.BillPaid
			} else {
				entry.Status = domain.BillUnpaid
			}
		}
		if changed {
			data, err := store.Encode(&bill)
			if err != nil {
				return err
			}
			if err := s.store.Set(ctx, path, data); err != nil {
				return err
			}
			result.Fixed++
		}
	}
	return nil
}
