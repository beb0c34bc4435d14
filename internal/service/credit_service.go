package service

import (
	"context"
	"time"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// CreditService maintains each unit's prepayment credit ledger. The balance
// never goes negative; every movement appends a history entry referencing
// the transaction that caused it. All mutations run inside the store
// transaction of the originating payment.
type CreditService struct {
	store store.Store
	now   func() time.Time
}

// NewCreditService creates a new CreditService.
func NewCreditService(st store.Store) *CreditService {
	return &CreditService{store: st, now: time.Now}
}

// Get loads a unit's credit balance, defaulting to zero when no credit
// document exists yet.
func (s *CreditService) Get(ctx context.Context, clientID, unitID string) (*domain.CreditBalance, error) {
	doc, err := s.store.Get(ctx, store.CreditPath(clientID, unitID))
	if err == domain.ErrNotFound {
		return &domain.CreditBalance{UnitID: unitID}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeCredit(doc, unitID)
}

// GetTx is Get inside an open store transaction.
func (s *CreditService) GetTx(ctx context.Context, tx store.Tx, clientID, unitID string) (*domain.CreditBalance, error) {
	doc, err := tx.Get(ctx, store.CreditPath(clientID, unitID))
	if err == domain.ErrNotFound {
		return &domain.CreditBalance{UnitID: unitID}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeCredit(doc, unitID)
}

func decodeCredit(doc *store.Doc, unitID string) (*domain.CreditBalance, error) {
	var cb domain.CreditBalance
	if err := store.Decode(doc, &cb); err != nil {
		return nil, err
	}
	cb.UnitID = unitID
	return &cb, nil
}

// Preview returns the current balance without a transaction, for display.
func (s *CreditService) Preview(ctx context.Context, clientID, unitID string) (domain.Centavos, error) {
	cb, err := s.Get(ctx, clientID, unitID)
	if err != nil {
		return 0, err
	}
	return cb.Balance, nil
}

// ApplyTx moves the balance by delta inside an open store transaction and
// appends the history entry. A delta that would push the balance negative
// fails with ErrCreditNegative.
func (s *CreditService) ApplyTx(ctx context.Context, tx store.Tx, clientID, unitID string, delta domain.Centavos, transactionID, reason string) (domain.Centavos, error) {
	if delta == 0 {
		cb, err := s.GetTx(ctx, tx, clientID, unitID)
		if err != nil {
			return 0, err
		}
		return cb.Balance, nil
	}

	cb, err := s.GetTx(ctx, tx, clientID, unitID)
	if err != nil {
		return 0, err
	}
	newBalance := cb.Balance + delta
	if newBalance < 0 {
		return 0, domain.ErrCreditNegative
	}

	cb.Balance = newBalance
	cb.History = append(cb.History, domain.CreditEntry{
		Timestamp:     s.now().UTC(),
		Delta:         delta,
		NewBalance:    newBalance,
		TransactionID: transactionID,
		Reason:        reason,
	})

	data, err := store.Encode(cb)
	if err != nil {
		return 0, err
	}
	if err := tx.Set(ctx, store.CreditPath(clientID, unitID), data); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Apply is ApplyTx wrapped in its own store transaction, for callers outside
// a payment flow (imports, manual adjustments).
func (s *CreditService) Apply(ctx context.Context, clientID, unitID string, delta domain.Centavos, transactionID, reason string) (domain.Centavos, error) {
	var newBalance domain.Centavos
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		newBalance, err = s.ApplyTx(ctx, tx, clientID, unitID, delta, transactionID, reason)
		return err
	})
	return newBalance, err
}
