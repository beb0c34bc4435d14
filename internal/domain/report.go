package domain

import "time"

// StatementRowKind distinguishes synthesized charges from payment rows.
type StatementRowKind string

const (
	RowCharge  StatementRowKind = "charge"
	RowPayment StatementRowKind = "payment"
)

// StatementRow is one line of a unit's statement of account. Charges sort
// before payments on the same civil date; Running is the balance after the
// row is applied.
type StatementRow struct {
	Date          time.Time        `json:"date"`
	Kind          StatementRowKind `json:"kind"`
	Description   string           `json:"description"`
	Charge        Centavos         `json:"charge,omitempty"`
	Payment       Centavos         `json:"payment,omitempty"`
	Running       Centavos         `json:"runningBalance"`
	TransactionID string           `json:"transactionId,omitempty"`
}

// Statement is the chronological ledger for one unit and fiscal year.
type Statement struct {
	UnitID        string         `json:"unitId"`
	FiscalYear    int            `json:"fiscalYear"`
	AsOf          time.Time      `json:"asOf"`
	Rows          []StatementRow `json:"rows"`
	TotalCharges  Centavos       `json:"totalCharges"`
	TotalPayments Centavos       `json:"totalPayments"`
	CreditBalance Centavos       `json:"creditBalance"`
	Balance       Centavos       `json:"balance"`
}

// BudgetActualRow is one category line of the budget-vs-actual report.
// Variance sign is favorable-positive: income actual above prorated budget,
// expense actual below prorated budget.
type BudgetActualRow struct {
	CategoryID   string       `json:"categoryId"`
	CategoryName string       `json:"categoryName"`
	Type         CategoryType `json:"type"`
	AnnualBudget Centavos     `json:"annualBudget"`
	YTDBudget    Centavos     `json:"ytdBudget"`
	Actual       Centavos     `json:"actual"`
	Variance     Centavos     `json:"variance"`
}

// SpecialFund separates special-assessment collections from expenditures.
type SpecialFund struct {
	Collections  []BudgetActualRow `json:"collections"`
	Expenditures []BudgetActualRow `json:"expenditures"`
	NetBalance   Centavos          `json:"netBalance"`
}

// BudgetActualReport is the budget-vs-actual report for a fiscal year.
type BudgetActualReport struct {
	FiscalYear     int               `json:"fiscalYear"`
	PercentElapsed float64           `json:"percentElapsed"`
	Income         []BudgetActualRow `json:"income"`
	Expense        []BudgetActualRow `json:"expense"`
	Special        SpecialFund       `json:"specialAssessments"`
}

// PaymentPlan is the distributor's proposed application of a tendered amount
// plus available credit across open obligations.
type PaymentPlan struct {
	UnitID             string       `json:"unitId"`
	Amount             Centavos     `json:"amount"`
	Allocations        []Allocation `json:"allocations"`
	AppliedToBills     Centavos     `json:"appliedToBills"`
	AppliedToPenalties Centavos     `json:"appliedToPenalties"`
	CreditUsed         Centavos     `json:"creditUsed"`
	CreditAdded        Centavos     `json:"creditAdded"`
	NewCreditBalance   Centavos     `json:"newCreditBalance"`
	UnpaidRemaining    Centavos     `json:"unpaidRemaining"`
	Signature          string       `json:"signature"`
}
