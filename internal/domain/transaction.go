package domain

import "time"

// AllocationType tags how one slice of a transaction's amount is applied.
type AllocationType string

const (
	AllocHOAMonth         AllocationType = "hoa_month"
	AllocWaterConsumption AllocationType = "water_consumption"
	AllocWaterPenalty     AllocationType = "water_penalty"
	AllocCreditUsed       AllocationType = "credit_used"
	AllocCreditAdded      AllocationType = "credit_added"
	AllocAccountTransfer  AllocationType = "account_transfer"
	AllocOther            AllocationType = "other"
)

// SplitTolerance is the permitted rounding drift between a split
// transaction's amount and the sum of its allocations.
const SplitTolerance = Centavos(1)

// Allocation is one entry of a split transaction. Amounts are signed: income
// inflows positive, expense outflows negative, credit_used negative,
// credit_added positive.
type Allocation struct {
	TargetID   string         `json:"targetId"`
	TargetName string         `json:"targetName,omitempty"`
	Type       AllocationType `json:"type"`
	CategoryID string         `json:"categoryId,omitempty"`
	Amount     Centavos       `json:"amount"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Transaction is an immutable-by-convention financial record. IDs follow the
// YYYY-MM-DD_HHMMSS_nnn scheme and sort lexicographically by time.
type Transaction struct {
	ID            string       `json:"id"`
	Date          time.Time    `json:"date"`
	Amount        Centavos     `json:"amount"`
	CategoryID    string       `json:"categoryId,omitempty"`
	CategoryName  string       `json:"categoryName,omitempty"`
	VendorID      string       `json:"vendorId,omitempty"`
	VendorName    string       `json:"vendorName,omitempty"`
	AccountID     string       `json:"accountId,omitempty"`
	PaymentMethod string       `json:"paymentMethod,omitempty"`
	UnitID        string       `json:"unitId,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	Allocations   []Allocation `json:"allocations,omitempty"`
	CreatedAt     time.Time    `json:"createdAt,omitempty"`
	CreatedBy     string       `json:"createdBy,omitempty"`
}

// IsSplit reports whether the transaction distributes across allocations.
func (t *Transaction) IsSplit() bool {
	return t.CategoryID == CategorySplit
}

// Validate enforces the split-allocation invariant: either a concrete
// category is set, or allocations are present and sum to the amount within
// SplitTolerance. A "-split-" category without allocations is the corrupt
// legacy shape and is rejected.
func (t *Transaction) Validate() error {
	if t.IsSplit() {
		if len(t.Allocations) == 0 {
			return ErrCorruptSplit
		}
		var sum Centavos
		for _, a := range t.Allocations {
			sum += a.Amount
		}
		if (sum - t.Amount).Abs() > SplitTolerance {
			return NewError(KindIntegrity, "allocations do not sum to transaction amount").
				With("amount", int64(t.Amount)).
				With("allocationSum", int64(sum))
		}
		return nil
	}
	if t.CategoryID == "" && len(t.Allocations) == 0 {
		return NewError(KindInvalidInput, "transaction requires a categoryId or allocations")
	}
	return nil
}

// AllocationsFor returns the allocations whose type is in the given set.
func (t *Transaction) AllocationsFor(types ...AllocationType) []Allocation {
	var out []Allocation
	for _, a := range t.Allocations {
		for _, typ := range types {
			if a.Type == typ {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// TransactionFilters narrows a transaction listing.
type TransactionFilters struct {
	StartDate  *time.Time
	EndDate    *time.Time
	CategoryID string
	VendorID   string
	UnitID     string
	Limit      int
}
