package domain

import "strings"

// CategoryType distinguishes income from expense categories for variance
// sign handling in reports.
type CategoryType string

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

// CategorySplit is the sentinel categoryId marking a transaction whose amount
// is distributed across allocations.
const CategorySplit = "-split-"

// Category is a client-defined transaction category.
type Category struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Type CategoryType `json:"type"`
}

// IsSpecialAssessment reports whether the category belongs to the special
// assessment fund (reported separately from operating budget).
func (c *Category) IsSpecialAssessment() bool {
	return strings.HasPrefix(c.ID, "projects") || c.ID == "special_assessments"
}
