// Package importer loads legacy JSON exports into the document store and
// purges tenant data. Both run as exclusive background jobs, one per client
// at a time, with step progress persisted and streamed to watchers.
package importer

import (
	"time"

	"github.com/bahiamar/hoa-backend/internal/domain"
)

// CrossRefEntry links a legacy payment sequence number to the transaction
// created for it during the Transactions step.
type CrossRefEntry struct {
	TransactionID string
	UnitID        string
	Amount        domain.Centavos
	Date          time.Time
}

// CrossRef is the per-run lookup built while importing transactions and
// consumed by the dues and water-bill steps to attach new transaction IDs to
// payment slots. It lives for exactly one run and is owned by the
// orchestrator; no concurrent access.
type CrossRef struct {
	entries map[string]CrossRefEntry
}

// NewCrossRef creates an empty cross-reference table.
func NewCrossRef() *CrossRef {
	return &CrossRef{entries: make(map[string]CrossRefEntry)}
}

// Put records the transaction created for a legacy payment sequence.
func (c *CrossRef) Put(paySeq string, e CrossRefEntry) {
	c.entries[paySeq] = e
}

// Get looks a payment sequence up.
func (c *CrossRef) Get(paySeq string) (CrossRefEntry, bool) {
	e, ok := c.entries[paySeq]
	return e, ok
}

// Len returns the number of recorded sequences.
func (c *CrossRef) Len() int {
	return len(c.entries)
}
