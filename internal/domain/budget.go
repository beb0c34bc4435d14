package domain

// Budget is one category's annual budget for a fiscal year.
type Budget struct {
	FiscalYear   int      `json:"fiscalYear"`
	CategoryID   string   `json:"categoryId"`
	AnnualAmount Centavos `json:"annualAmount"`
}
