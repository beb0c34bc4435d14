package domain

import "time"

// DuesMonths is the fixed length of a dues record's payments array. Index i
// holds fiscal month i+1.
const DuesMonths = 12

// DuesPayment is one month slot of a dues record. A slot is overwritten on
// payment and cleared on reversal.
type DuesPayment struct {
	Month         int        `json:"month"`
	Amount        Centavos   `json:"amount"`
	BasePaid      Centavos   `json:"basePaid,omitempty"`
	PenaltyPaid   Centavos   `json:"penaltyPaid,omitempty"`
	Date          *time.Time `json:"date,omitempty"`
	Paid          bool       `json:"paid"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	TransactionID string     `json:"transactionId,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	PaymentMethod string     `json:"paymentMethod,omitempty"`
	Reference     string     `json:"reference,omitempty"`
}

// DuesRecord holds one unit's HOA dues for one fiscal year.
type DuesRecord struct {
	UnitID          string                  `json:"unitId"`
	FiscalYear      int                     `json:"fiscalYear"`
	ScheduledAmount Centavos                `json:"scheduledAmount"`
	TotalPaid       Centavos                `json:"totalPaid"`
	Payments        [DuesMonths]DuesPayment `json:"payments"`
}

// RecomputeTotal restores the invariant TotalPaid == sum of slot amounts.
func (r *DuesRecord) RecomputeTotal() {
	var total Centavos
	for i := range r.Payments {
		total += r.Payments[i].Amount
	}
	r.TotalPaid = total
}

// Slot returns the payment slot for fiscal month m (1-based).
func (r *DuesRecord) Slot(m int) *DuesPayment {
	if m < 1 || m > DuesMonths {
		return nil
	}
	return &r.Payments[m-1]
}
