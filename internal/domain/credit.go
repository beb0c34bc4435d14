package domain

import "time"

// CreditEntry is one movement in a unit's credit history.
type CreditEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	Delta         Centavos  `json:"delta"`
	NewBalance    Centavos  `json:"newBalance"`
	TransactionID string    `json:"transactionId,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// CreditBalance is a prepayment held against a unit. Balance never goes
// negative; every mutation appends to History.
type CreditBalance struct {
	UnitID  string        `json:"unitId"`
	Balance Centavos      `json:"balance"`
	History []CreditEntry `json:"history,omitempty"`
}
