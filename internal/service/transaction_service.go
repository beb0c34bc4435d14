package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/fiscal"
	"github.com/bahiamar/hoa-backend/internal/store"
)

// createRetries bounds how often Create re-issues an ID when the store
// reports the previous one already taken by another process.
const createRetries = 3

// TransactionService creates, queries and deletes financial transactions.
type TransactionService struct {
	store   store.Store
	clients *ClientService
	credit  *CreditService
	dues    *DuesService
	bills   *WaterBillService
	audit   *AuditService
	ids     *fiscal.IDGenerator
	now     func() time.Time
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(
	st store.Store,
	clients *ClientService,
	credit *CreditService,
	dues *DuesService,
	bills *WaterBillService,
	audit *AuditService,
	ids *fiscal.IDGenerator,
) *TransactionService {
	return &TransactionService{
		store:   st,
		clients: clients,
		credit:  credit,
		dues:    dues,
		bills:   bills,
		audit:   audit,
		ids:     ids,
		now:     time.Now,
	}
}

// CreateTransactionInput holds the caller-supplied fields for a new
// transaction. Amount and allocation amounts are signed centavos.
type CreateTransactionInput struct {
	Date          time.Time
	Amount        domain.Centavos
	CategoryID    string
	CategoryName  string
	VendorID      string
	VendorName    string
	AccountID     string
	PaymentMethod string
	UnitID        string
	Notes         string
	Allocations   []domain.Allocation
}

// Create validates and persists a transaction, assigning its document ID.
func (s *TransactionService) Create(ctx context.Context, clientID, userID string, input CreateTransactionInput) (*domain.Transaction, error) {
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	tx := s.Build(client, userID, input)
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, clientID, tx); err != nil {
		return nil, err
	}

	s.audit.RecordBestEffort(ctx, clientID, AuditEntry{
		Module:     "transactions",
		Action:     "create",
		ParentPath: store.TransactionsCol(clientID),
		DocID:      tx.ID,
		UserID:     userID,
	})
	return tx, nil
}

// Build assembles a transaction without persisting it. The ID is stamped
// from the transaction's civil date and the current time of day in the
// client timezone. The payment distributor builds its split transaction here
// and persists it with CreateTx inside its own store transaction.
func (s *TransactionService) Build(client *domain.Client, userID string, input CreateTransactionInput) *domain.Transaction {
	loc := s.clients.Location(client)
	now := s.now().In(loc)
	d := input.Date.In(loc)
	stamp := time.Date(d.Year(), d.Month(), d.Day(),
		now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), loc)

	return &domain.Transaction{
		ID:            s.ids.TransactionIDAt(stamp),
		Date:          d,
		Amount:        input.Amount,
		CategoryID:    input.CategoryID,
		CategoryName:  input.CategoryName,
		VendorID:      input.VendorID,
		VendorName:    input.VendorName,
		AccountID:     input.AccountID,
		PaymentMethod: input.PaymentMethod,
		UnitID:        input.UnitID,
		Notes:         input.Notes,
		Allocations:   input.Allocations,
		CreatedBy:     userID,
	}
}

// persist writes the transaction with write-if-absent semantics, re-issuing
// the ID when another process claimed it.
func (s *TransactionService) persist(ctx context.Context, clientID string, tx *domain.Transaction) error {
	for attempt := 0; ; attempt++ {
		data, err := store.Encode(tx)
		if err != nil {
			return err
		}
		data["createdAt"] = store.ServerTimestamp()
		err = s.store.Create(ctx, store.TransactionPath(clientID, tx.ID), data)
		if err == nil {
			return nil
		}
		if err != domain.ErrAlreadyExists || attempt >= createRetries {
			return err
		}
		tx.ID = s.ids.TransactionIDAt(tx.Date)
	}
}

// CreateTx writes an already-built transaction inside an open store
// transaction. Used by the payment distributor's commit path.
func (s *TransactionService) CreateTx(ctx context.Context, tx store.Tx, clientID string, t *domain.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	data, err := store.Encode(t)
	if err != nil {
		return err
	}
	data["createdAt"] = store.ServerTimestamp()
	return tx.Create(ctx, store.TransactionPath(clientID, t.ID), data)
}

// Get loads one transaction.
func (s *TransactionService) Get(ctx context.Context, clientID, id string) (*domain.Transaction, error) {
	doc, err := s.store.Get(ctx, store.TransactionPath(clientID, id))
	if err != nil {
		return nil, domain.ErrTransactionNotFound
	}
	var tx domain.Transaction
	if err := store.Decode(doc, &tx); err != nil {
		return nil, err
	}
	tx.ID = id
	return &tx, nil
}

// List returns transactions matching the filters in chronological order.
// Document IDs sort lexicographically by time, so the unordered listing is
// already chronological.
func (s *TransactionService) List(ctx context.Context, clientID string, filters *domain.TransactionFilters) ([]*domain.Transaction, error) {
	q := store.Query{}
	if filters != nil {
		if filters.StartDate != nil {
			q.Predicates = append(q.Predicates, store.Predicate{Field: "date", Op: store.OpGte, Value: *filters.StartDate})
		}
		if filters.EndDate != nil {
			q.Predicates = append(q.Predicates, store.Predicate{Field: "date", Op: store.OpLte, Value: *filters.EndDate})
		}
		if filters.CategoryID != "" {
			q.Predicates = append(q.Predicates, store.Predicate{Field: "categoryId", Op: store.OpEq, Value: filters.CategoryID})
		}
		if filters.VendorID != "" {
			q.Predicates = append(q.Predicates, store.Predicate{Field: "vendorId", Op: store.OpEq, Value: filters.VendorID})
		}
		if filters.UnitID != "" {
			q.Predicates = append(q.Predicates, store.Predicate{Field: "unitId", Op: store.OpEq, Value: filters.UnitID})
		}
		q.Limit = filters.Limit
	}
	docs, err := s.store.QueryDocs(ctx, store.TransactionsCol(clientID), q)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Transaction, 0, len(docs))
	for _, doc := range docs {
		var tx domain.Transaction
		if err := store.Decode(doc, &tx); err != nil {
			return nil, err
		}
		tx.ID = doc.ID
		out = append(out, &tx)
	}
	return out, nil
}

// ListFiscalYear returns the client's transactions within a fiscal year's
// civil bounds.
func (s *TransactionService) ListFiscalYear(ctx context.Context, clientID string, fiscalYear int) ([]*domain.Transaction, error) {
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	start, end := fiscal.YearBounds(fiscalYear, client.FiscalYearStartMonth, s.clients.Location(client))
	return s.List(ctx, clientID, &domain.TransactionFilters{StartDate: &start, EndDate: &end})
}

// Delete removes a transaction. Admin only. Deleting an HOA or water payment
// triggers the compensating reversal in the same store transaction: dues
// slots are cleared, bill payments removed, and credit movements undone.
func (s *TransactionService) Delete(ctx context.Context, clientID string, principal *domain.Principal, id string) error {
	if !principal.IsAdminOf(clientID) {
		return domain.ErrForbidden
	}

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		doc, err := tx.Get(ctx, store.TransactionPath(clientID, id))
		if err != nil {
			return domain.ErrTransactionNotFound
		}
		var t domain.Transaction
		if err := store.Decode(doc, &t); err != nil {
			return err
		}
		t.ID = id

		if len(t.AllocationsFor(domain.AllocHOAMonth)) > 0 {
			if err := s.dues.ReverseTransactionTx(ctx, tx, clientID, t.UnitID, t.ID); err != nil {
				return err
			}
		}
		if len(t.AllocationsFor(domain.AllocWaterConsumption, domain.AllocWaterPenalty)) > 0 {
			if err := s.bills.ReverseTransactionTx(ctx, tx, clientID, t.UnitID, t.ID); err != nil {
				return err
			}
		}
		// Undo credit movements: a credit_used allocation debited the unit,
		// a credit_added credited it; the reversal applies the opposite.
		for _, a := range t.AllocationsFor(domain.AllocCreditUsed, domain.AllocCreditAdded) {
			delta := -a.Amount
			if _, err := s.credit.ApplyTx(ctx, tx, clientID, t.UnitID, delta, t.ID, "transaction deleted"); err != nil {
				return err
			}
		}

		return tx.Delete(ctx, store.TransactionPath(clientID, id))
	})
	if err != nil {
		return err
	}

	s.audit.RecordBestEffort(ctx, clientID, AuditEntry{
		Module:     "transactions",
		Action:     "delete",
		ParentPath: store.TransactionsCol(clientID),
		DocID:      id,
		UserID:     principal.UserID,
	})
	log.Info().Str("client_id", clientID).Str("transaction_id", id).Msg("Transaction deleted with reversal")
	return nil
}
