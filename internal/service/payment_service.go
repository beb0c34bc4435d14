package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/port"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// PaymentService distributes a tendered amount across a unit's open
// obligations: overdue water penalties first, then water consumption, then
// HOA dues, oldest due date first. Overflow becomes prepayment credit. The
// two-phase flow is Preview (pure computation plus a staleness signature)
// then Commit (one store transaction re-deriving and applying the plan).
type PaymentService struct {
	store   store.Store
	clients *ClientService
	credit  *CreditService
	dues    *DuesService
	bills   *WaterBillService
	txns    *TransactionService
	penalty *PenaltyService
	audit   *AuditService
	email   port.EmailSender
	now     func() time.Time
}

// NewPaymentService creates a new PaymentService. email may be nil; receipts
// are then skipped.
func NewPaymentService(
	st store.Store,
	clients *ClientService,
	credit *CreditService,
	dues *DuesService,
	bills *WaterBillService,
	txns *TransactionService,
	penalty *PenaltyService,
	audit *AuditService,
	email port.EmailSender,
) *PaymentService {
	return &PaymentService{
		store:   st,
		clients: clients,
		credit:  credit,
		dues:    dues,
		bills:   bills,
		txns:    txns,
		penalty: penalty,
		audit:   audit,
		email:   email,
		now:     time.Now,
	}
}

// Obligation is one open item a payment can be applied to. Amount is the
// outstanding remainder, not the original charge.
type Obligation struct {
	Type       domain.AllocationType `json:"type"`
	TargetID   string                `json:"targetId"`
	TargetName string                `json:"targetName"`
	DueDate    time.Time             `json:"dueDate"`
	// Due reports whether the due date has arrived as of the distribution
	// instant. Items not yet due are prepayable only in full.
	Due        bool            `json:"due"`
	Amount     domain.Centavos `json:"amount"`
	FiscalYear int             `json:"fiscalYear"`
	Month      int             `json:"month,omitempty"`
	BillID     string          `json:"billId,omitempty"`
}

// allocPriority orders obligations sharing a due date: within a bill the
// penalty is settled before the consumption charge, and water before dues.
func allocPriority(t domain.AllocationType) int {
	switch t {
	case domain.AllocWaterPenalty:
		return 3
	case domain.AllocWaterConsumption:
		return 2
	case domain.AllocHOAMonth:
		return 1
	}
	return 0
}

// PreviewPaymentInput describes a tendered payment to distribute.
type PreviewPaymentInput struct {
	UnitID string
	// Amount may be zero when the payment is settled entirely from credit.
	Amount domain.Centavos
	// AsOf backdates the distribution: penalties are recomputed as of this
	// instant instead of read from the stored bills.
	AsOf *time.Time
	// SelectedMonth, when positive, restricts the dues candidate set to
	// fiscal months at or before this one (1..12).
	SelectedMonth int
	// RequireObligations rejects a payment that would go entirely to credit.
	RequireObligations bool
}

// CommitPaymentInput carries the preview input plus the recording details.
type CommitPaymentInput struct {
	PreviewPaymentInput
	Date          time.Time
	PaymentMethod string
	AccountID     string
	Notes         string
	// Signature from the previewed plan. Commit fails with ErrStale when the
	// unit's obligations changed since the preview was shown.
	Signature    string
	NotifyEmails []string
}

// Preview computes the distribution plan without recording a payment. It runs
// in a store transaction so the obligations and credit balance it fingerprints
// are one consistent snapshot.
func (s *PaymentService) Preview(ctx context.Context, clientID string, input PreviewPaymentInput) (*domain.PaymentPlan, error) {
	if input.Amount < 0 {
		return nil, domain.ErrInvalidAmount
	}
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	var plan *domain.PaymentPlan
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		plan, err = s.previewTx(ctx, tx, client, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// previewTx assembles the plan from reads against the open transaction.
func (s *PaymentService) previewTx(ctx context.Context, tx store.Tx, client *domain.Client, input PreviewPaymentInput) (*domain.PaymentPlan, error) {
	asOf := s.now().In(s.clients.Location(client))
	if input.AsOf != nil {
		asOf = *input.AsOf
	}

	obligations, err := s.openObligations(ctx, tx, client, input, asOf)
	if err != nil {
		return nil, err
	}
	cb, err := s.credit.GetTx(ctx, tx, client.ID, input.UnitID)
	if err != nil {
		return nil, err
	}
	plan := distribute(input.UnitID, input.Amount, cb.Balance, obligations)

	applied := plan.Amount + plan.CreditUsed - plan.CreditAdded
	if input.RequireObligations && applied == 0 {
		return nil, domain.ErrInsufficientObligations
	}
	return plan, nil
}

// openObligations assembles the unit's unpaid items in application order:
// every month of the current fiscal year with an outstanding balance, then
// every bill the unit still owes on.
func (s *PaymentService) openObligations(ctx context.Context, tx store.Tx, client *domain.Client, input PreviewPaymentInput, asOf time.Time) ([]Obligation, error) {
	var obligations []Obligation

	fiscalYear := fiscal.Year(asOf, client.FiscalYearStartMonth)
	rec, err := s.dues.EnsureYearTx(ctx, tx, client.ID, input.UnitID, fiscalYear)
	if err != nil {
		return nil, err
	}
	loc := s.clients.Location(client)
	for m := 1; m <= domain.DuesMonths; m++ {
		if input.SelectedMonth > 0 && m > input.SelectedMonth {
			continue
		}
		slot := rec.Slot(m)
		outstanding := rec.ScheduledAmount - slot.Amount
		if slot.Paid || outstanding <= 0 {
			continue
		}
		due := duesSlotDueDate(client, rec, m, loc)
		calYear, calMonth := fiscal.CalendarMonth(fiscalYear, m-1, client.FiscalYearStartMonth)
		obligations = append(obligations, Obligation{
			Type:       domain.AllocHOAMonth,
			TargetID:   fmt.Sprintf("%04d-%02d", fiscalYear, m),
			TargetName: fmt.Sprintf("HOA dues %s %d", calMonth, calYear),
			DueDate:    due,
			Due:        !due.After(asOf),
			Amount:     outstanding,
			FiscalYear: fiscalYear,
			Month:      m,
		})
	}

	if client.Water == nil {
		sortObligations(obligations)
		return obligations, nil
	}
	open, err := s.bills.listOpen(ctx, tx, client.ID, input.UnitID)
	if err != nil {
		return nil, err
	}
	for _, bill := range open {
		entry := bill.Units[input.UnitID]
		penaltyTotal := entry.PenaltyAmount
		if input.AsOf != nil {
			penaltyTotal = PenaltyAsOf(client.Water, entry, bill.DueDate, asOf)
		}
		outPenalty := penaltyTotal - entry.PaidAmount
		if outPenalty < 0 {
			outPenalty = 0
		}
		outTotal := entry.CurrentCharge + penaltyTotal - entry.PaidAmount
		if outTotal < 0 {
			outTotal = 0
		}
		outPrincipal := outTotal - outPenalty

		billID := bill.ID()
		billDue := !bill.DueDate.After(asOf)
		if outPenalty > 0 {
			obligations = append(obligations, Obligation{
				Type:       domain.AllocWaterPenalty,
				TargetID:   billID,
				TargetName: fmt.Sprintf("Water bill %s penalty", billID),
				DueDate:    bill.DueDate,
				Due:        billDue,
				Amount:     outPenalty,
				FiscalYear: bill.FiscalYear,
				BillID:     billID,
			})
		}
		if outPrincipal > 0 {
			obligations = append(obligations, Obligation{
				Type:       domain.AllocWaterConsumption,
				TargetID:   billID,
				TargetName: fmt.Sprintf("Water bill %s", billID),
				DueDate:    bill.DueDate,
				Due:        billDue,
				Amount:     outPrincipal,
				FiscalYear: bill.FiscalYear,
				BillID:     billID,
			})
		}
	}

	sortObligations(obligations)
	return obligations, nil
}

// sortObligations orders by due date, then application priority, then target
// ID for determinism.
func sortObligations(obligations []Obligation) {
	sort.SliceStable(obligations, func(i, j int) bool {
		a, b := obligations[i], obligations[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if allocPriority(a.Type) != allocPriority(b.Type) {
			return allocPriority(a.Type) > allocPriority(b.Type)
		}
		return a.TargetID < b.TargetID
	})
}

// duesSlotDueDate resolves a slot's due date. Quarterly slots after the first
// month of their quarter carry no date of their own and inherit the quarter's.
func duesSlotDueDate(client *domain.Client, rec *domain.DuesRecord, month int, loc *time.Location) time.Time {
	if slot := rec.Slot(month); slot != nil && slot.DueDate != nil {
		return *slot.DueDate
	}
	quarterFirst := ((month - 1) / 3) * 3
	if slot := rec.Slot(quarterFirst + 1); slot != nil && slot.DueDate != nil {
		return *slot.DueDate
	}
	y, m := fiscal.CalendarMonth(rec.FiscalYear, month-1, client.FiscalYearStartMonth)
	return time.Date(y, m, 1, 0, 0, 0, 0, loc)
}

// distribute walks the pool of amount plus available credit across the
// ordered obligations. Due items absorb whatever remains, down to a partial
// sliver that stays collectible; items not yet due are filled only in full,
// so a remainder banks as credit instead of part-paying a future month. The
// resulting allocations always sum to the tendered amount: credit_used is a
// negative entry, credit_added a positive one.
func distribute(unitID string, amount, creditBalance domain.Centavos, obligations []Obligation) *domain.PaymentPlan {
	plan := &domain.PaymentPlan{UnitID: unitID, Amount: amount}
	pool := amount + creditBalance

	var totalApplied, unpaid domain.Centavos
	for _, ob := range obligations {
		applied := ob.Amount
		if applied > pool {
			applied = pool
		}
		if !ob.Due && applied < ob.Amount {
			continue
		}
		if ob.Due {
			unpaid += ob.Amount - applied
		}
		if applied <= 0 {
			continue
		}
		pool -= applied
		totalApplied += applied

		meta := map[string]any{"fiscalYear": ob.FiscalYear}
		if ob.Month > 0 {
			meta["month"] = ob.Month
		}
		if ob.BillID != "" {
			meta["billId"] = ob.BillID
		}
		plan.Allocations = append(plan.Allocations, domain.Allocation{
			TargetID:   ob.TargetID,
			TargetName: ob.TargetName,
			Type:       ob.Type,
			Amount:     applied,
			Metadata:   meta,
		})
		switch ob.Type {
		case domain.AllocWaterPenalty:
			plan.AppliedToPenalties += applied
		case domain.AllocWaterConsumption:
			plan.AppliedToBills += applied
		}
	}

	creditUsed := totalApplied - amount
	if creditUsed < 0 {
		creditUsed = 0
	}
	if creditUsed > creditBalance {
		creditUsed = creditBalance
	}
	creditAdded := amount - totalApplied
	if creditAdded < 0 {
		creditAdded = 0
	}
	if creditUsed > 0 {
		plan.Allocations = append(plan.Allocations, domain.Allocation{
			TargetID:   "credit",
			TargetName: "Credit applied",
			Type:       domain.AllocCreditUsed,
			Amount:     -creditUsed,
		})
	}
	if creditAdded > 0 {
		plan.Allocations = append(plan.Allocations, domain.Allocation{
			TargetID:   "credit",
			TargetName: "Overpayment to credit",
			Type:       domain.AllocCreditAdded,
			Amount:     creditAdded,
		})
	}

	plan.CreditUsed = creditUsed
	plan.CreditAdded = creditAdded
	plan.NewCreditBalance = creditBalance - creditUsed + creditAdded
	plan.UnpaidRemaining = unpaid
	plan.Signature = planSignature(unitID, amount, creditBalance, obligations)
	return plan
}

// planSignature fingerprints the inputs the plan was computed from. Commit
// recomputes it and rejects the write when the obligations moved underneath
// the preview the caller approved.
func planSignature(unitID string, amount, creditBalance domain.Centavos, obligations []Obligation) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d", unitID, amount, creditBalance)
	for _, ob := range obligations {
		fmt.Fprintf(h, "|%s:%s:%d:%d", ob.Type, ob.TargetID, ob.Amount, ob.DueDate.Unix())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Commit applies the whole plan in one store transaction: the split
// transaction record, bill payments, dues slots, the net credit movement, and
// the audit record. The plan is re-derived from the transaction's own reads
// and checked against the caller's signature before anything is written, so
// two concurrent commits cannot both apply against the same obligations.
func (s *PaymentService) Commit(ctx context.Context, clientID, userID string, input CommitPaymentInput) (*domain.PaymentPlan, *domain.Transaction, error) {
	if input.Amount < 0 {
		return nil, nil, domain.ErrInvalidAmount
	}
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, nil, err
	}
	if client.Water != nil {
		if _, err := s.penalty.RecalculateUnits(ctx, clientID, []string{input.UnitID}); err != nil {
			return nil, nil, err
		}
	}

	date := input.Date
	if date.IsZero() {
		date = s.now()
	}

	var plan *domain.PaymentPlan
	var txn *domain.Transaction
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		plan, err = s.previewTx(ctx, tx, client, input.PreviewPaymentInput)
		if err != nil {
			return err
		}
		if input.Signature != "" && input.Signature != plan.Signature {
			return domain.ErrStale
		}

		txn = s.txns.Build(client, userID, CreateTransactionInput{
			Date:          date,
			Amount:        input.Amount,
			CategoryID:    domain.CategorySplit,
			CategoryName:  "Split payment",
			AccountID:     input.AccountID,
			PaymentMethod: input.PaymentMethod,
			UnitID:        input.UnitID,
			Notes:         input.Notes,
			Allocations:   plan.Allocations,
		})
		if err := s.txns.CreateTx(ctx, tx, clientID, txn); err != nil {
			return err
		}

		billAmounts := make(map[string]domain.Centavos)
		var billOrder []string
		duesMonths := make(map[int][]int)
		duesAmounts := make(map[int][]domain.Centavos)
		for _, a := range plan.Allocations {
			switch a.Type {
			case domain.AllocWaterPenalty, domain.AllocWaterConsumption:
				if _, seen := billAmounts[a.TargetID]; !seen {
					billOrder = append(billOrder, a.TargetID)
				}
				billAmounts[a.TargetID] += a.Amount
			case domain.AllocHOAMonth:
				fy := a.Metadata["fiscalYear"].(int)
				m := a.Metadata["month"].(int)
				duesMonths[fy] = append(duesMonths[fy], m)
				duesAmounts[fy] = append(duesAmounts[fy], a.Amount)
			}
		}
		for _, billID := range billOrder {
			if err := s.bills.ApplyPaymentTx(ctx, tx, clientID, input.UnitID, billID, billAmounts[billID], txn.ID, txn.Date); err != nil {
				return err
			}
		}
		for fy, months := range duesMonths {
			if err := s.dues.RecordPaymentTx(ctx, tx, clientID, input.UnitID, fy, months, duesAmounts[fy], txn.ID, txn.Date, input.PaymentMethod); err != nil {
				return err
			}
		}

		if delta := plan.CreditAdded - plan.CreditUsed; delta != 0 {
			if _, err := s.credit.ApplyTx(ctx, tx, clientID, input.UnitID, delta, txn.ID, "payment distribution"); err != nil {
				return err
			}
		}

		return s.audit.RecordTx(ctx, tx, clientID, AuditEntry{
			Module:     "payments",
			Action:     "commit",
			ParentPath: store.TransactionsCol(clientID),
			DocID:      txn.ID,
			UserID:     userID,
			Metadata: map[string]any{
				"unitId":      input.UnitID,
				"amount":      int64(input.Amount),
				"creditUsed":  int64(plan.CreditUsed),
				"creditAdded": int64(plan.CreditAdded),
			},
		})
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("client_id", clientID).
		Str("unit_id", input.UnitID).
		Str("transaction_id", txn.ID).
		Int64("amount", int64(input.Amount)).
		Msg("Payment committed")

	if s.email != nil && len(input.NotifyEmails) > 0 {
		subject := fmt.Sprintf("Payment receipt %s", txn.ID)
		if err := s.email.Send(ctx, input.NotifyEmails, subject, receiptHTML(client, txn, plan)); err != nil {
			log.Error().Err(err).Str("transaction_id", txn.ID).Msg("Receipt email failed")
		}
	}
	return plan, txn, nil
}

// receiptHTML renders a minimal HTML receipt listing the plan's allocations.
func receiptHTML(client *domain.Client, txn *domain.Transaction, plan *domain.PaymentPlan) string {
	body := fmt.Sprintf("<h2>%s</h2><p>Payment %s on %s for $%.2f</p><ul>",
		client.Name, txn.ID, txn.Date.Format("2006-01-02"), txn.Amount.Pesos())
	for _, a := range plan.Allocations {
		body += fmt.Sprintf("<li>%s: $%.2f</li>", a.TargetName, a.Amount.Pesos())
	}
	body += "</ul>"
	if plan.NewCreditBalance > 0 {
		body += fmt.Sprintf("<p>Credit balance: $%.2f</p>", plan.NewCreditBalance.Pesos())
	}
	return body
}
