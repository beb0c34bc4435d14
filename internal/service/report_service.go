package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
)

// Fallback category IDs for payment allocations that carry none of their
// own. Distributor allocations are typed, not categorized; reports fold them
// into these well-known income buckets.
const (
	categoryHOADues        = "hoa_dues"
	categoryWaterBills     = "water_bills"
	categoryWaterPenalties = "water_penalties"
)

// ReportService aggregates stored documents into read-only reports. It never
// writes; every number is derived on request so reports cannot drift from
// the underlying records.
type ReportService struct {
	clients *ClientService
	credit  *CreditService
	dues    *DuesService
	bills   *WaterBillService
	txns    *TransactionService
	now     func() time.Time
}

// NewReportService creates a new ReportService.
func NewReportService(
	clients *ClientService,
	credit *CreditService,
	dues *DuesService,
	bills *WaterBillService,
	txns *TransactionService,
) *ReportService {
	return &ReportService{
		clients: clients,
		credit:  credit,
		dues:    dues,
		bills:   bills,
		txns:    txns,
		now:     time.Now,
	}
}

// Statement builds a unit's chronological statement of account for one
// fiscal year. Charges are synthesized from the dues schedule and water
// bills; payments come from the transaction log. Charges sort before
// payments on the same civil date.
func (s *ReportService) Statement(ctx context.Context, clientID, unitID string, fiscalYear int) (*domain.Statement, error) {
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	loc := s.clients.Location(client)
	asOf := s.now().In(loc)

	var rows []domain.StatementRow

	rec, err := s.dues.Get(ctx, clientID, unitID, fiscalYear)
	if err != nil && err != domain.ErrNotFound {
		return nil, err
	}
	if rec != nil {
		for _, m := range VisibleMonths(client, rec, asOf) {
			if rec.ScheduledAmount <= 0 {
				continue
			}
			calYear, calMonth := fiscal.CalendarMonth(fiscalYear, m-1, client.FiscalYearStartMonth)
			rows = append(rows, domain.StatementRow{
				Date:        duesSlotDueDate(client, rec, m, loc),
				Kind:        domain.RowCharge,
				Description: fmt.Sprintf("HOA dues %s %d", calMonth, calYear),
				Charge:      rec.ScheduledAmount,
			})
		}
	}

	bills, err := s.bills.List(ctx, clientID)
	if err != nil {
		return nil, err
	}
	for _, bill := range bills {
		if bill.FiscalYear != fiscalYear {
			continue
		}
		entry, ok := bill.Units[unitID]
		if !ok || bill.DueDate.After(asOf) {
			continue
		}
		rows = append(rows, domain.StatementRow{
			Date:        bill.DueDate,
			Kind:        domain.RowCharge,
			Description: fmt.Sprintf("Water bill %s", bill.ID()),
			Charge:      entry.CurrentCharge,
		})
		if entry.PenaltyAmount > 0 {
			penaltyDate := bill.DueDate
			if entry.LastPenaltyUpdate != nil {
				penaltyDate = *entry.LastPenaltyUpdate
			}
			rows = append(rows, domain.StatementRow{
				Date:        penaltyDate,
				Kind:        domain.RowCharge,
				Description: fmt.Sprintf("Water bill %s late penalty", bill.ID()),
				Charge:      entry.PenaltyAmount,
			})
		}
	}

	txns, err := s.txns.ListFiscalYear(ctx, clientID, fiscalYear)
	if err != nil {
		return nil, err
	}
	for _, t := range txns {
		if t.UnitID != unitID || t.Amount <= 0 {
			continue
		}
		desc := t.CategoryName
		if t.IsSplit() || desc == "" {
			desc = "Payment received"
		}
		rows = append(rows, domain.StatementRow{
			Date:          t.Date,
			Kind:          domain.RowPayment,
			Description:   desc,
			Payment:       t.Amount,
			TransactionID: t.ID,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		di := civilDay(rows[i].Date, loc)
		dj := civilDay(rows[j].Date, loc)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return rows[i].Kind == domain.RowCharge && rows[j].Kind == domain.RowPayment
	})

	stmt := &domain.Statement{UnitID: unitID, FiscalYear: fiscalYear, AsOf: asOf}
	var running domain.Centavos
	for i := range rows {
		running += rows[i].Charge - rows[i].Payment
		rows[i].Running = running
		stmt.TotalCharges += rows[i].Charge
		stmt.TotalPayments += rows[i].Payment
	}
	stmt.Rows = rows
	stmt.Balance = stmt.TotalCharges - stmt.TotalPayments

	creditBalance, err := s.credit.Preview(ctx, clientID, unitID)
	if err != nil {
		return nil, err
	}
	stmt.CreditBalance = creditBalance
	return stmt, nil
}

func civilDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// BudgetVsActual compares the fiscal year's transactions against annual
// budgets prorated by the elapsed fraction of the year. Variance is
// favorable-positive for both types: income above prorated budget, expense
// below it. Special-assessment categories report separately with a fund
// balance instead of a variance against operations.
func (s *ReportService) BudgetVsActual(ctx context.Context, clientID string, fiscalYear int) (*domain.BudgetActualReport, error) {
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	loc := s.clients.Location(client)

	categories, err := s.clients.ListCategories(ctx, clientID)
	if err != nil {
		return nil, err
	}
	catByID := make(map[string]*domain.Category, len(categories))
	for _, c := range categories {
		catByID[c.ID] = c
	}

	budgets, err := s.clients.ListBudgets(ctx, clientID, fiscalYear)
	if err != nil {
		return nil, err
	}
	budgetByCat := make(map[string]domain.Centavos, len(budgets))
	for _, b := range budgets {
		budgetByCat[b.CategoryID] = b.AnnualAmount
	}

	txns, err := s.txns.ListFiscalYear(ctx, clientID, fiscalYear)
	if err != nil {
		return nil, err
	}
	actuals := make(map[string]domain.Centavos)
	for _, t := range txns {
		if !t.IsSplit() {
			actuals[t.CategoryID] += t.Amount
			continue
		}
		for _, a := range t.Allocations {
			catID := a.CategoryID
			if catID == "" {
				switch a.Type {
				case domain.AllocHOAMonth:
					catID = categoryHOADues
				case domain.AllocWaterConsumption:
					catID = categoryWaterBills
				case domain.AllocWaterPenalty:
					catID = categoryWaterPenalties
				default:
					continue // credit movements are not income
				}
			}
			actuals[catID] += a.Amount
		}
	}

	percent := fiscal.PercentElapsed(fiscalYear, client.FiscalYearStartMonth, s.now().In(loc), loc)
	report := &domain.BudgetActualReport{FiscalYear: fiscalYear, PercentElapsed: percent}

	seen := make(map[string]bool)
	for catID := range budgetByCat {
		seen[catID] = true
	}
	for catID := range actuals {
		seen[catID] = true
	}
	ids := make([]string, 0, len(seen))
	for catID := range seen {
		ids = append(ids, catID)
	}
	sort.Strings(ids)

	for _, catID := range ids {
		cat := catByID[catID]
		row := domain.BudgetActualRow{
			CategoryID:   catID,
			AnnualBudget: budgetByCat[catID],
			Actual:       actuals[catID],
		}
		row.YTDBudget = domain.Centavos(float64(row.AnnualBudget) * percent)
		if cat != nil {
			row.CategoryName = cat.Name
			row.Type = cat.Type
		} else {
			row.CategoryName = fallbackCategoryName(catID)
			row.Type = fallbackCategoryType(catID, row.Actual)
		}

		if cat != nil && cat.IsSpecialAssessment() {
			if row.Type == domain.CategoryIncome {
				report.Special.Collections = append(report.Special.Collections, row)
				report.Special.NetBalance += row.Actual
			} else {
				report.Special.Expenditures = append(report.Special.Expenditures, row)
				report.Special.NetBalance -= row.Actual.Abs()
			}
			continue
		}

		switch row.Type {
		case domain.CategoryIncome:
			row.Variance = row.Actual - row.YTDBudget
			report.Income = append(report.Income, row)
		default:
			row.Variance = row.YTDBudget - row.Actual.Abs()
			report.Expense = append(report.Expense, row)
		}
	}
	return report, nil
}

func fallbackCategoryName(catID string) string {
	switch catID {
	case categoryHOADues:
		return "HOA Dues"
	case categoryWaterBills:
		return "Water Bills"
	case categoryWaterPenalties:
		return "Water Penalties"
	}
	return catID
}

// fallbackCategoryType guesses the type of an unregistered category from the
// sign of its actuals. The well-known payment buckets are always income.
func fallbackCategoryType(catID string, actual domain.Centavos) domain.CategoryType {
	switch catID {
	case categoryHOADues, categoryWaterBills, categoryWaterPenalties:
		return domain.CategoryIncome
	}
	if actual < 0 {
		return domain.CategoryExpense
	}
	return domain.CategoryIncome
}
